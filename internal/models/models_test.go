package models

import (
	"testing"
	"time"
)

func validObservation() Observation {
	return Observation{
		Platform: "kalshi",
		MarketID: "PREZ-2028",
		Title:    "Will candidate X win?",
		Category: "politics",
		P:        0.42,
		Flow:     120.0,
		Depth:    3500.0,
	}
}

func TestObservationValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Observation)
		wantErr bool
	}{
		{name: "valid", mutate: func(o *Observation) {}, wantErr: false},
		{name: "empty platform", mutate: func(o *Observation) { o.Platform = "" }, wantErr: true},
		{name: "empty market ID", mutate: func(o *Observation) { o.MarketID = "" }, wantErr: true},
		{name: "empty title", mutate: func(o *Observation) { o.Title = "" }, wantErr: true},
		{name: "p at zero", mutate: func(o *Observation) { o.P = 0.0 }, wantErr: true},
		{name: "p at one", mutate: func(o *Observation) { o.P = 1.0 }, wantErr: true},
		{name: "negative flow", mutate: func(o *Observation) { o.Flow = -1 }, wantErr: true},
		{name: "negative depth", mutate: func(o *Observation) { o.Depth = -0.5 }, wantErr: true},
		{name: "zero flow is fine", mutate: func(o *Observation) { o.Flow = 0 }, wantErr: false},
		{name: "zero depth is fine", mutate: func(o *Observation) { o.Depth = 0 }, wantErr: false},
		{name: "missing category is fine", mutate: func(o *Observation) { o.Category = "" }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := validObservation()
			tt.mutate(&obs)
			err := obs.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Observation.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name     string
		snapshot Snapshot
		wantErr  bool
	}{
		{
			name: "valid snapshot",
			snapshot: Snapshot{
				ID:          "snap-123",
				Observation: validObservation(),
				Timestamp:   time.Now(),
			},
			wantErr: false,
		},
		{
			name: "empty ID",
			snapshot: Snapshot{
				Observation: validObservation(),
				Timestamp:   time.Now(),
			},
			wantErr: true,
		},
		{
			name: "zero timestamp",
			snapshot: Snapshot{
				ID:          "snap-123",
				Observation: validObservation(),
			},
			wantErr: true,
		},
		{
			name: "future timestamp",
			snapshot: Snapshot{
				ID:          "snap-123",
				Observation: validObservation(),
				Timestamp:   time.Now().Add(time.Hour),
			},
			wantErr: true,
		},
		{
			name: "invalid embedded observation",
			snapshot: Snapshot{
				ID:          "snap-123",
				Observation: Observation{Platform: "mock", MarketID: "m1", Title: "t", P: 1.5},
				Timestamp:   time.Now(),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snapshot.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Snapshot.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
