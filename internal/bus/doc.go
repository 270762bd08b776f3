// Package bus fans out events from producers such as the serial transport
// to subscribers such as the signals bridge.
package bus
