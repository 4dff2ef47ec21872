// Package connection implements the Connection Registry component.
//
// The Connection Registry:
//   - Binds each user ID to at most one live push channel
//   - Supersedes the previous connection when the same user reconnects
//   - Runs one delivery loop per connection, the only writer to its channel
//   - Bounds per-connection backlog with a drop-oldest queue
package connection
