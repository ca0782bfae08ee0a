// Package ingest runs the fetch-then-append ingestion pass.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oddsflow/scanner/internal/connector"
	"github.com/oddsflow/scanner/internal/logger"
	"github.com/oddsflow/scanner/internal/models"
	"github.com/oddsflow/scanner/internal/storage"
)

// Poller wires one connector to the snapshot store. It owns the connector
// instance for the process lifetime so the connector's volume-delta state
// survives across ticks.
type Poller struct {
	conn  connector.Connector
	store *storage.Storage
}

// New creates a Poller.
func New(conn connector.Connector, store *storage.Storage) *Poller {
	return &Poller{conn: conn, store: store}
}

// PollOnce fetches the current batch and appends every observation as a
// snapshot, stamping the whole batch with a single timestamp. Individual
// append failures are logged and skipped; a fetch failure aborts the pass but
// never touches previously stored history. Returns the number of snapshots
// ingested.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	observations, err := p.conn.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch failed: %w", err)
	}

	now := time.Now().UTC()
	ingested := 0
	for i := range observations {
		snap := models.Snapshot{
			ID:          uuid.New().String(),
			Observation: observations[i],
			Timestamp:   now,
		}
		if err := p.store.Append(&snap); err != nil {
			logger.Warn("Failed to append snapshot for %s:%s: %v", snap.Platform, snap.MarketID, err)
			continue
		}
		ingested++
	}

	return ingested, nil
}
