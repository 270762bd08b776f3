// Package serial is the diagnostic byte transport: a UART opened through
// goburrow/serial, with log forwarding, NMEA framing and a reader that
// publishes inbound data on the event bus.
package serial
