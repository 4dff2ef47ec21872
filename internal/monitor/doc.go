// Package monitor periodically samples router and registry statistics,
// refreshes the occupancy gauges and logs a service heartbeat.
package monitor
