// Package signals maps event bus topics to indicator requests through
// configured profiles.
package signals
