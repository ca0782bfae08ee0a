package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/oddsflow/scanner/internal/connector"
	"github.com/oddsflow/scanner/internal/models"
	"github.com/oddsflow/scanner/internal/storage"
)

type stubConnector struct {
	observations []models.Observation
	err          error
}

func (s *stubConnector) Fetch(_ context.Context) ([]models.Observation, error) {
	return s.observations, s.err
}

func newTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func obs(id string, p, flow float64) models.Observation {
	return models.Observation{
		Platform: "mock",
		MarketID: id,
		Title:    "Market " + id,
		P:        p,
		Flow:     flow,
		Depth:    100,
	}
}

func TestPollOnce_IngestsBatch(t *testing.T) {
	store := newTestStore(t)
	conn := &stubConnector{observations: []models.Observation{
		obs("a", 0.4, 10),
		obs("b", 0.6, 25),
	}}

	p := New(conn, store)
	n, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if n != 2 {
		t.Errorf("ingested = %d, want 2", n)
	}

	count, err := store.SnapshotCount()
	if err != nil {
		t.Fatalf("SnapshotCount: %v", err)
	}
	if count != 2 {
		t.Errorf("stored snapshots = %d, want 2", count)
	}
}

func TestPollOnce_BatchSharesTimestamp(t *testing.T) {
	store := newTestStore(t)
	conn := &stubConnector{observations: []models.Observation{
		obs("a", 0.4, 10),
		obs("b", 0.6, 25),
	}}

	p := New(conn, store)
	if _, err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}

	a, err := store.Latest("mock", "a")
	if err != nil || a == nil {
		t.Fatalf("Latest a: snap=%v err=%v", a, err)
	}
	b, err := store.Latest("mock", "b")
	if err != nil || b == nil {
		t.Fatalf("Latest b: snap=%v err=%v", b, err)
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		t.Errorf("timestamps differ within one batch: %v vs %v", a.Timestamp, b.Timestamp)
	}
}

func TestPollOnce_FetchErrorAborts(t *testing.T) {
	store := newTestStore(t)
	conn := &stubConnector{err: errors.New("upstream down")}

	p := New(conn, store)
	n, err := p.PollOnce(context.Background())
	if err == nil {
		t.Fatal("PollOnce succeeded despite fetch failure")
	}
	if n != 0 {
		t.Errorf("ingested = %d, want 0", n)
	}

	count, err := store.SnapshotCount()
	if err != nil {
		t.Fatalf("SnapshotCount: %v", err)
	}
	if count != 0 {
		t.Errorf("stored snapshots = %d, want 0 after failed fetch", count)
	}
}

func TestPollOnce_SkipsInvalidObservations(t *testing.T) {
	store := newTestStore(t)
	bad := obs("bad", 0.5, 10)
	bad.P = 1.5
	conn := &stubConnector{observations: []models.Observation{
		obs("good", 0.5, 10),
		bad,
	}}

	p := New(conn, store)
	n, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("ingested = %d, want 1 (invalid observation skipped)", n)
	}
	if snap, err := store.Latest("mock", "bad"); err != nil || snap != nil {
		t.Errorf("invalid observation was stored: snap=%v err=%v", snap, err)
	}
}

func TestPollOnce_HistoryAccumulates(t *testing.T) {
	store := newTestStore(t)
	conn := &stubConnector{}

	p := New(conn, store)
	flows := []float64{10, 20, 30}
	for _, f := range flows {
		conn.observations = []models.Observation{obs("a", 0.5, f)}
		if _, err := p.PollOnce(context.Background()); err != nil {
			t.Fatalf("PollOnce: %v", err)
		}
	}

	hist, err := store.FlowHistory("mock", "a", 10)
	if err != nil {
		t.Fatalf("FlowHistory: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
}

var _ connector.Connector = (*stubConnector)(nil)
