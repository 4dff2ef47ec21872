package history

import "time"

// WriterConfig contains configuration for the history writer.
type WriterConfig struct {
	// BatchSize triggers a flush once this many rows accumulate.
	BatchSize int

	// FlushInterval bounds how long a partial batch may sit unwritten.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns the production defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
	}
}

// messageRow represents a row to be inserted into the messages table.
type messageRow struct {
	ID          string // UUID assigned at publish
	Room        string
	Sender      string
	Body        string
	Kind        string // "" for chat, "system" for notices
	Seq         int64  // Arrival order at this instance's router
	PublishedAt time.Time
}

// WriterMetrics holds metrics for the history writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Skipped   int64
	Errors    int64
	Flushes   int64
}
