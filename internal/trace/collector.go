package trace

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// DefaultFlushInterval is how often buffered trace lines are applied.
const DefaultFlushInterval = 500 * time.Millisecond

// Collector buffers JSON trace lines until they are flushed.
type Collector struct {
	mu    sync.Mutex
	lines [][]byte
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Emit encodes ev and buffers it.
func (c *Collector) Emit(ev Event) {
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.EmitLine(line)
}

// EmitLine buffers a raw trace line.
func (c *Collector) EmitLine(line []byte) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

// Flush returns the buffered lines in emission order and empties the buffer.
func (c *Collector) Flush() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.lines
	c.lines = nil
	return lines
}

// Drain applies all buffered lines to t. Lines that fail to decode are
// logged and skipped.
func (c *Collector) Drain(t *Tracker) {
	for _, line := range c.Flush() {
		if err := t.Apply(line); err != nil {
			t.logger.Debug().Err(err).Msg("Skipping trace line")
		}
	}
}

// Run drains c into t every interval until ctx is cancelled, with a final
// drain on exit.
func (c *Collector) Run(ctx context.Context, interval time.Duration, t *Tracker) {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Drain(t)
			return
		case <-ticker.C:
			c.Drain(t)
		}
	}
}
