// Package httpapi exposes the service over HTTP and WebSocket.
//
// REST endpoints:
//   - GET  /auth          mint a user identifier
//   - POST /send_message  publish into a room
//   - POST /change_room   move a user between rooms
//   - GET  /rooms         room occupancy snapshot
//   - GET  /healthz       component health
//   - GET  /metrics       prometheus exposition
//
// WebSocket endpoint:
//   - GET /chat/{user_id}?room=R
//
// Handlers never write to a websocket directly. Every frame, including
// acks and error notices, is enqueued on the connection's queue and
// written by its delivery loop.
package httpapi
