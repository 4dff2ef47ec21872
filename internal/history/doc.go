// Package history archives routed messages to PostgreSQL.
//
// The writer consumes the router's archive tap and batches inserts into the
// messages table. Message IDs are assigned once at publish, so instances
// sharing a database deduplicate through ON CONFLICT DO NOTHING and the
// table holds a single copy of each message.
package history
