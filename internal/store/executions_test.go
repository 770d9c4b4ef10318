package store

import (
	"context"
	"testing"
	"time"

	"sor-router/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	if err := s.InitExecutionSchema(context.Background()); err != nil {
		t.Fatalf("InitExecutionSchema returned error: %v", err)
	}
	return s
}

func TestSaveAndListExecutions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := ExecutionRecord{
		Side:          "BUY",
		Algorithm:     "hybrid",
		RequestedSize: 8,
		FilledVolume:  8,
		TotalFees:     "0.6432",
		Total:         "805.72",
		AveragePrice:  "100.715",
		Fulfillment:   100,
		CreatedAt:     time.Now().UTC(),
		Fills: []FillRecord{
			{Venue: "E3", Price: 100.6, Volume: 4},
			{Venue: "E3", Price: 100.8, Volume: 4},
		},
	}
	if err := s.SaveExecution(ctx, first); err != nil {
		t.Fatalf("SaveExecution returned error: %v", err)
	}

	second := ExecutionRecord{
		Side:          "SELL",
		Algorithm:     "greedy",
		RequestedSize: 2,
		FilledVolume:  1.5,
		TotalFees:     "0.15",
		Total:         "149.7",
		AveragePrice:  "99.8",
		Fulfillment:   75,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.SaveExecution(ctx, second); err != nil {
		t.Fatalf("SaveExecution returned error: %v", err)
	}

	records, err := s.RecentExecutions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentExecutions returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	// 倒序返回，最近一条在前
	if records[0].Side != "SELL" || records[0].Algorithm != "greedy" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].Side != "BUY" || records[1].TotalFees != "0.6432" {
		t.Errorf("unexpected second record: %+v", records[1])
	}
}

func TestRecentExecutionsEmpty(t *testing.T) {
	s := newTestStore(t)

	records, err := s.RecentExecutions(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentExecutions returned error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %v", records)
	}
}
