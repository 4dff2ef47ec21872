// Package database provides the PostgreSQL connection pool backing message
// history.
package database
