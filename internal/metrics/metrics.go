// Package metrics provides request statistics for the BizChat backend.
//
// In-process counters cover the running instance; the database aggregates
// cover everything ever processed.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"sync/atomic"
	"time"
)

// Collector tracks per-process counters. All methods are safe for
// concurrent use.
type Collector struct {
	startTime time.Time

	requests      atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	blocked       atomic.Int64
	actions       atomic.Int64
	totalDuration atomic.Int64 // nanoseconds
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordRequest records a submitted request.
func (c *Collector) RecordRequest() {
	c.requests.Add(1)
}

// RecordCompleted records a completed request.
func (c *Collector) RecordCompleted(duration time.Duration, withAction bool) {
	c.completed.Add(1)
	c.totalDuration.Add(duration.Nanoseconds())
	if withAction {
		c.actions.Add(1)
	}
}

// RecordFailed records a failed request.
func (c *Collector) RecordFailed(duration time.Duration) {
	c.failed.Add(1)
	c.totalDuration.Add(duration.Nanoseconds())
}

// RecordBlocked records a moderation block.
func (c *Collector) RecordBlocked() {
	c.blocked.Add(1)
}

// Snapshot is the point-in-time view of the collector plus database
// aggregates.
type Snapshot struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`

	// Process counters since startup.
	Requests     int64   `json:"requests"`
	Completed    int64   `json:"completed"`
	Failed       int64   `json:"failed"`
	Blocked      int64   `json:"blocked"`
	Actions      int64   `json:"actions"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	// Database aggregates over all stored requests.
	TotalStored     int64   `json:"total_stored"`
	SuccessRate     float64 `json:"success_rate"`
	ActionRate      float64 `json:"action_rate"`
	AvgProcessingMs float64 `json:"avg_processing_ms"`
}

// Collect gathers the snapshot. db may be nil when no store aggregates are
// wanted.
func (c *Collector) Collect(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	snap := &Snapshot{
		Uptime:     time.Since(c.startTime).String(),
		Goroutines: runtime.NumGoroutine(),
		Requests:   c.requests.Load(),
		Completed:  c.completed.Load(),
		Failed:     c.failed.Load(),
		Blocked:    c.blocked.Load(),
		Actions:    c.actions.Load(),
	}

	if done := snap.Completed + snap.Failed; done > 0 {
		snap.AvgLatencyMs = float64(c.totalDuration.Load()) / float64(done) / 1e6
	}

	if db == nil {
		return snap, nil
	}

	row := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action_json != '' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN processing_ms > 0 THEN processing_ms END), 0)
		FROM chat_requests`)

	var total, succeeded, withAction int64
	var avgMs float64
	if err := row.Scan(&total, &succeeded, &withAction, &avgMs); err != nil {
		return nil, err
	}

	snap.TotalStored = total
	snap.AvgProcessingMs = avgMs
	if total > 0 {
		snap.SuccessRate = float64(succeeded) / float64(total)
		snap.ActionRate = float64(withAction) / float64(total)
	}
	return snap, nil
}
