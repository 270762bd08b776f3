// Package domain contains the core value objects for statusled.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (GPIO, serial ports, logging) and
// contains only the indicator vocabulary.
//
// # Values
//
//   - [Color]: An 8-bit RGB triple, no color-space handling
//   - [Mode]: How an entry is drawn (static, fade, blink)
//   - [Pattern]: Mode plus its timing budget (interval, duration, expire)
//
// # Design Principles
//
// Domain values are:
//   - Immutable after construction
//   - Free of infrastructure dependencies
//   - Testable without mocks or external systems
package domain
