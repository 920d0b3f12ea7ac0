// Package queue defines message payloads exchanged over the message broker
// and the consumer that feeds raw batches into the pipeline.
package queue

import (
	"time"

	"github.com/iliyamo/bus-occupancy-pricing/internal/quality"
)

// BatchProcessedEvent is published after a batch has been validated and
// loaded.  It carries the complete quality report so downstream consumers
// (alerting, dashboards) never need to query the store.
type BatchProcessedEvent struct {
	BatchID     string         `json:"batch_id"`
	Report      quality.Report `json:"report"`
	Loaded      int            `json:"loaded"`
	Failed      int            `json:"failed"`
	ProcessedAt time.Time      `json:"processed_at"`
}
