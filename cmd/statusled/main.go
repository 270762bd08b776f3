package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"periph.io/x/conn/v3/physic"

	"github.com/bft-labs/statusled/internal/adapters/output"
	"github.com/bft-labs/statusled/internal/adapters/serial"
	"github.com/bft-labs/statusled/internal/bus"
	"github.com/bft-labs/statusled/internal/cliconfig"
	"github.com/bft-labs/statusled/internal/signals"
	"github.com/bft-labs/statusled/pkg/log"
	"github.com/bft-labs/statusled/pkg/statusled"
	"github.com/bft-labs/statusled/plugins/configwatcher"
)

const helpDescription = `
Drive one RGB status light from many independent signals.

Each signal profile maps an event (serial link up or down, traffic, a
manual trigger) to a color and a static, fade or blink pattern. The most
recent live request is shown; when it ends the light falls back to the
one underneath.

Outputs:
  pwm      three GPIO pins via periph.io
  console  log every color change
  none     discard
`

var exampleUsage = strings.TrimSpace(`
  statusled --output pwm --pin-red GPIO17 --pin-green GPIO27 --pin-blue GPIO22
  statusled --serial-port /dev/ttyUSB0 --log-forward
  statusled --config $HOME/.statusled/config.yaml --demo
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:          "statusled",
		Short:        "Drive one RGB status light from many independent signals",
		Long:         strings.TrimSpace(helpDescription),
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if err := cliconfig.Load(&cfg, cfgFile, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg, cfgFile)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file, .toml or .yaml (default: $HOME/.statusled/config.toml)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "render period")
	f.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "maximum concurrent requests")

	f.StringVar(&cfg.Output, "output", cfg.Output, "output driver (pwm, console, none)")
	f.StringVar(&cfg.PinRed, "pin-red", cfg.PinRed, "red channel pin name")
	f.StringVar(&cfg.PinGreen, "pin-green", cfg.PinGreen, "green channel pin name")
	f.StringVar(&cfg.PinBlue, "pin-blue", cfg.PinBlue, "blue channel pin name")
	f.IntVar(&cfg.PWMFrequency, "pwm-frequency", cfg.PWMFrequency, "PWM frequency in Hz")
	f.BoolVar(&cfg.ActiveLow, "active-low", cfg.ActiveLow, "invert duty for common-anode LEDs")

	f.StringVar(&cfg.SerialPort, "serial-port", cfg.SerialPort, "serial device for the diagnostic link (disabled when empty)")
	f.IntVar(&cfg.BaudRate, "baud", cfg.BaudRate, "serial baud rate")
	f.IntVar(&cfg.DataBits, "data-bits", cfg.DataBits, "serial data bits")
	f.IntVar(&cfg.StopBits, "stop-bits", cfg.StopBits, "serial stop bits")
	f.StringVar(&cfg.Parity, "parity", cfg.Parity, "serial parity (N, E, O)")
	f.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "serial read timeout")
	f.BoolVar(&cfg.LogForward, "log-forward", cfg.LogForward, "mirror log lines to the serial link")
	f.BoolVar(&cfg.FlowControlRTS, "rts", cfg.FlowControlRTS, "request RTS flow control")
	f.BoolVar(&cfg.FlowControlCTS, "cts", cfg.FlowControlCTS, "request CTS flow control")

	f.IntVar(&cfg.BusQueue, "bus-queue", cfg.BusQueue, "event bus queue size")
	f.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload signal profiles when the config file changes")
	f.BoolVar(&cfg.Demo, "demo", cfg.Demo, "cycle through every profile on startup")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg cliconfig.Config, cfgFile string) error {
	profiles, err := cliconfig.BuildProfiles(cfg.Profiles)
	if err != nil {
		return err
	}

	// The transport mirrors log lines, so the logger exists before it does.
	var transport *serial.Transport
	mirror := mirrorWriter(func(p []byte) {
		if transport != nil {
			transport.Log(p)
		}
	})
	zl := log.NewConsoleLogger(cfg.LogLevel, mirror)
	logger := log.NewZerologAdapterWithLogger(zl)
	logger.Info("configuration", log.Any("config", cfg))

	eventBus := bus.New(cfg.BusQueue, logger)
	if cfg.SerialPort != "" {
		transport = serial.New(serial.Config{
			Address:        cfg.SerialPort,
			BaudRate:       cfg.BaudRate,
			DataBits:       cfg.DataBits,
			StopBits:       cfg.StopBits,
			Parity:         cfg.Parity,
			ReadTimeout:    cfg.ReadTimeout,
			LogForward:     cfg.LogForward,
			FlowControlRTS: cfg.FlowControlRTS,
			FlowControlCTS: cfg.FlowControlCTS,
		}, eventBus, logger)
	}

	opts := []statusled.Option{
		statusled.WithLogger(logger),
		statusled.WithOutput(buildOutput(cfg, logger)),
		statusled.WithEventHandler(&logEvents{logger: logger}),
	}

	// The bridge needs the indicator and the watcher needs the bridge, so
	// the reload callback resolves it late.
	var bridge *signals.Bridge
	if cfg.Watch && cliconfig.FileExists(cfgFile) {
		opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{
			Path: cfgFile,
			OnChange: func(path string) {
				if err := reloadProfiles(bridge, path); err != nil {
					logger.Error("profile reload failed", log.Err(err))
				}
			},
		}))
	}

	ind, err := statusled.New(statusled.Config{
		TickInterval: cfg.TickInterval,
		Capacity:     cfg.Capacity,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create indicator: %w", err)
	}

	bridge = signals.New(ind, logger)
	if err := bridge.SetProfiles(profiles); err != nil {
		return err
	}
	bridge.Attach(eventBus)
	defer bridge.Detach()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := ind.Start(ctx); err != nil {
		return fmt.Errorf("start indicator: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = eventBus.Run(ctx)
	}()
	if transport != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = transport.Run(ctx)
		}()
	}
	if cfg.Demo {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runDemo(ctx, bridge, profiles, logger)
		}()
	}

	<-sigCh
	logger.Info("received signal, stopping...")

	cancel()
	if transport != nil {
		_ = transport.Close()
	}
	_ = eventBus.Close()
	wg.Wait()

	if err := ind.Stop(); err != nil {
		return fmt.Errorf("stop indicator: %w", err)
	}
	return nil
}

func buildOutput(cfg cliconfig.Config, logger log.Logger) statusled.Output {
	switch cfg.Output {
	case cliconfig.OutputPWM:
		return output.NewPWM(output.PWMConfig{
			Red:       cfg.PinRed,
			Green:     cfg.PinGreen,
			Blue:      cfg.PinBlue,
			Frequency: physic.Frequency(cfg.PWMFrequency) * physic.Hertz,
			ActiveLow: cfg.ActiveLow,
		}, logger)
	case cliconfig.OutputConsole:
		return output.NewConsole(logger)
	default:
		return nil
	}
}

// reloadProfiles re-reads only the profile list; other settings need a restart.
func reloadProfiles(bridge *signals.Bridge, path string) error {
	if bridge == nil {
		return nil
	}
	fc, err := cliconfig.LoadFileConfig(path)
	if err != nil {
		return err
	}
	profiles, err := cliconfig.BuildProfiles(fc.Profiles)
	if err != nil {
		return err
	}
	return bridge.SetProfiles(profiles)
}

// runDemo triggers each profile in turn, two seconds apart.
func runDemo(ctx context.Context, bridge *signals.Bridge, profiles []signals.Profile, logger log.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for _, p := range profiles {
		logger.Info("demo", log.String("profile", p.Name))
		if err := bridge.Trigger(p.Name); err != nil {
			logger.Warn("demo trigger failed", log.String("profile", p.Name), log.Err(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type mirrorWriter func(p []byte)

func (w mirrorWriter) Write(p []byte) (int, error) {
	w(p)
	return len(p), nil
}

type logEvents struct {
	statusled.BaseEventHandler
	logger log.Logger
}

func (h *logEvents) OnStateChange(ev statusled.StateChangeEvent) {
	h.logger.Debug("indicator state",
		log.Stringer("from", ev.Previous),
		log.Stringer("to", ev.Current),
		log.String("reason", ev.Reason))
}

func (h *logEvents) OnExpire(ev statusled.ExpireEvent) {
	h.logger.Debug("request expired", log.String("reason", ev.Reason))
}
