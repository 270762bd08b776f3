// Package output provides the indicator's output adapters: PWM pins through
// periph.io and a log-only console sink.
package output
