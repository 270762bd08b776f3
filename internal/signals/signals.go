package signals

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/statusled/internal/bus"
	"github.com/bft-labs/statusled/internal/domain"
	"github.com/bft-labs/statusled/internal/ports"
	"github.com/bft-labs/statusled/internal/store"
	"github.com/bft-labs/statusled/pkg/log"
)

// Profile maps one event topic to an indicator request.
type Profile struct {
	Name    string
	Topic   string
	Color   domain.Color
	Pattern domain.Pattern

	// Hold keeps the request's handle so the next trigger replaces it
	// instead of stacking a second copy, and so Clears can remove it.
	Hold bool

	// Clears names held profiles whose requests are removed when this one fires.
	Clears []string

	// ClearOnly fires Clears without adding a request.
	ClearOnly bool
}

// Validate checks the profile can be turned into a request.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: profile without name", domain.ErrInvalidConfig)
	}
	if p.Topic == "" {
		return fmt.Errorf("%w: profile %q has no topic", domain.ErrInvalidConfig, p.Name)
	}
	if p.ClearOnly {
		return nil
	}
	if err := p.Pattern.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return nil
}

// Indicator is the part of the engine the bridge drives.
type Indicator interface {
	AddColor(c domain.Color, p domain.Pattern) (store.Handle, error)
	Remove(h store.Handle)
}

// Subscriber is the part of the bus the bridge listens on.
type Subscriber interface {
	Subscribe(topic string, h bus.Handler) func()
}

// Bridge turns bus events into indicator requests.
type Bridge struct {
	indicator Indicator
	logger    ports.Logger

	mu      sync.Mutex
	byTopic map[string][]Profile
	held    map[string]store.Handle
	detach  func()
}

// New creates a bridge with no profiles.
func New(indicator Indicator, logger ports.Logger) *Bridge {
	return &Bridge{
		indicator: indicator,
		logger:    logger,
		byTopic:   make(map[string][]Profile),
		held:      make(map[string]store.Handle),
	}
}

// SetProfiles replaces the active profiles. Held requests of profiles that
// no longer exist are removed. Invalid profiles are rejected as a whole.
func (b *Bridge) SetProfiles(profiles []Profile) error {
	byTopic := make(map[string][]Profile)
	names := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return err
		}
		if names[p.Name] {
			return fmt.Errorf("%w: duplicate profile %q", domain.ErrInvalidConfig, p.Name)
		}
		names[p.Name] = true
		byTopic[p.Topic] = append(byTopic[p.Topic], p)
	}

	b.mu.Lock()
	b.byTopic = byTopic
	var stale []store.Handle
	for name, h := range b.held {
		if !names[name] {
			stale = append(stale, h)
			delete(b.held, name)
		}
	}
	b.mu.Unlock()

	for _, h := range stale {
		b.indicator.Remove(h)
	}
	b.logger.Info("signal profiles loaded",
		log.Int("profiles", len(profiles)),
		log.Int("topics", len(byTopic)),
	)
	return nil
}

// Attach subscribes the bridge to every topic on sub.
func (b *Bridge) Attach(sub Subscriber) {
	detach := sub.Subscribe(bus.AllTopics, b.Handle)
	b.mu.Lock()
	b.detach = detach
	b.mu.Unlock()
}

// Detach unsubscribes and removes every held request.
func (b *Bridge) Detach() {
	b.mu.Lock()
	detach := b.detach
	b.detach = nil
	held := b.held
	b.held = make(map[string]store.Handle)
	b.mu.Unlock()

	if detach != nil {
		detach()
	}
	for _, h := range held {
		b.indicator.Remove(h)
	}
}

// Handle applies every profile bound to ev.Topic.
func (b *Bridge) Handle(ctx context.Context, ev ports.Event) {
	b.mu.Lock()
	profiles := b.byTopic[ev.Topic]
	b.mu.Unlock()

	for _, p := range profiles {
		b.fire(p)
	}
}

// Trigger fires the named profile directly.
func (b *Bridge) Trigger(name string) error {
	b.mu.Lock()
	var found *Profile
	for _, ps := range b.byTopic {
		for i := range ps {
			if ps[i].Name == name {
				p := ps[i]
				found = &p
			}
		}
	}
	b.mu.Unlock()

	if found == nil {
		return fmt.Errorf("%w: unknown profile %q", domain.ErrInvalidConfig, name)
	}
	b.fire(*found)
	return nil
}

// fire holds b.mu throughout so concurrent triggers of one held profile
// cannot leave two requests behind.
func (b *Bridge) fire(p Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, name := range p.Clears {
		if h, ok := b.held[name]; ok {
			b.indicator.Remove(h)
			delete(b.held, name)
		}
	}
	if p.ClearOnly {
		return
	}
	if p.Hold {
		if h, ok := b.held[p.Name]; ok {
			b.indicator.Remove(h)
			delete(b.held, p.Name)
		}
	}

	h, err := b.indicator.AddColor(p.Color, p.Pattern)
	if err != nil {
		b.logger.Warn("signal not shown",
			log.String("profile", p.Name),
			log.Err(err),
		)
		return
	}
	if p.Hold {
		b.held[p.Name] = h
	}
}

// Held returns the handle held for the named profile.
func (b *Bridge) Held(name string) (store.Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.held[name]
	return h, ok
}
