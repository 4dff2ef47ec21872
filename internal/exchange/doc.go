// Package exchange fans accepted messages out across service instances.
//
// The memory exchange routes straight into the local message router and is
// the single-instance default. The redis exchange publishes to a per-room
// Pub/Sub channel and pumps everything it hears back into the local router,
// so a message published on any instance reaches the subscribers of all of
// them, the publishing instance included.
package exchange
