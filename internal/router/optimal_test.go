package router

import (
	"math"
	"testing"

	"sor-router/internal/book"
)

func buildHybridBooks(t *testing.T) *Router {
	t.Helper()
	return newTestRouter(
		buildBook(t, "E1", 0.001, 5.0, nil, [][2]float64{{100, 5}, {101, 5}}),
		buildBook(t, "E2", 0.0005, 7.0, nil, [][2]float64{{100.5, 7}}),
		buildBook(t, "E3", 0.0002, 4.0, nil, [][2]float64{{100.6, 4}, {100.8, 4}}),
	)
}

func TestHybridCompletesIndivisibleTail(t *testing.T) {
	r := buildHybridBooks(t)

	result, err := r.Distribute(8, book.Buy, Hybrid)
	if err != nil {
		t.Fatalf("Distribute returned error: %v", err)
	}

	if got := result.FilledVolume(); !closeTo(got, 8) {
		t.Fatalf("expected exact fill of 8, got %v (fills: %v)", got, result.Fills())
	}
	if got := result.FulfillmentPercent(); !closeTo(got, 100) {
		t.Errorf("expected fulfillment 100%%, got %v", got)
	}

	fills := result.Fills()
	if len(fills) != 2 {
		t.Fatalf("expected 2 aggregated fills, got %v", fills)
	}
	assertFill(t, fills[0], "E3", 100.6, 4)
	assertFill(t, fills[1], "E3", 100.8, 4)
}

func TestHybridFillsAtLeastAsMuchAsGreedy(t *testing.T) {
	greedyRouter := buildHybridBooks(t)
	greedyResult, err := greedyRouter.Distribute(8, book.Buy, Greedy)
	if err != nil {
		t.Fatalf("greedy Distribute returned error: %v", err)
	}

	hybridRouter := buildHybridBooks(t)
	hybridResult, err := hybridRouter.Distribute(8, book.Buy, Hybrid)
	if err != nil {
		t.Fatalf("hybrid Distribute returned error: %v", err)
	}

	if hybridResult.FilledVolume()+book.Epsilon < greedyResult.FilledVolume() {
		t.Errorf("hybrid filled %v less than greedy %v",
			hybridResult.FilledVolume(), greedyResult.FilledVolume())
	}
}

func TestHybridBestUndershoot(t *testing.T) {
	r := newTestRouter(
		buildBook(t, "E1", 0.001, 3.0, nil, [][2]float64{{100, 9}}),
	)

	result, err := r.Distribute(8, book.Buy, Hybrid)
	if err != nil {
		t.Fatalf("Distribute returned error: %v", err)
	}

	if got := result.FilledVolume(); !closeTo(got, 6) {
		t.Fatalf("expected undershoot volume 6, got %v (fills: %v)", got, result.Fills())
	}
	if got := result.FulfillmentPercent(); !closeTo(got, 75) {
		t.Errorf("expected fulfillment 75%%, got %v", got)
	}

	fills := result.Fills()
	if len(fills) != 1 {
		t.Fatalf("expected single aggregated fill, got %v", fills)
	}
	assertFill(t, fills[0], "E1", 100, 6)
}

func TestHybridSellSideCrossover(t *testing.T) {
	r := newTestRouter(
		buildBook(t, "E1", 0.001, 5.0, [][2]float64{{100, 5}, {99, 5}}, nil),
		buildBook(t, "E2", 0.0005, 7.0, [][2]float64{{99.5, 7}}, nil),
		buildBook(t, "E3", 0.0002, 4.0, [][2]float64{{99.4, 4}, {99.2, 4}}, nil),
	)

	result, err := r.Distribute(8, book.Sell, Hybrid)
	if err != nil {
		t.Fatalf("Distribute returned error: %v", err)
	}

	if got := result.FilledVolume(); !closeTo(got, 8) {
		t.Fatalf("expected exact fill of 8, got %v (fills: %v)", got, result.Fills())
	}

	fills := result.Fills()
	if len(fills) != 2 {
		t.Fatalf("expected 2 aggregated fills, got %v", fills)
	}
	assertFill(t, fills[0], "E3", 99.4, 4)
	assertFill(t, fills[1], "E3", 99.2, 4)
}

func TestFillVolumesAreLotMultiples(t *testing.T) {
	r := buildHybridBooks(t)
	lots := map[string]float64{"E1": 5.0, "E2": 7.0, "E3": 4.0}

	result, err := r.Distribute(8, book.Buy, Hybrid)
	if err != nil {
		t.Fatalf("Distribute returned error: %v", err)
	}

	for _, f := range result.Fills() {
		lot := lots[f.Venue]
		ratio := f.Volume / lot
		if math.Abs(ratio-math.Round(ratio)) > book.Epsilon {
			t.Errorf("fill %v is not a multiple of lot %v", f, lot)
		}
		if f.Volume <= 0 {
			t.Errorf("non-positive fill volume: %+v", f)
		}
	}
}

func TestUndershootPrefersCheaperAtEqualVolume(t *testing.T) {
	// 两个场所各只有一手2.0，目标3无法精确成交；
	// 最优欠额应选择有效价格更低的那一手。
	r := newTestRouter(
		buildBook(t, "E1", 0, 2.0, nil, [][2]float64{{100, 2}}),
		buildBook(t, "E2", 0, 2.0, nil, [][2]float64{{99, 2}}),
	)

	fills, err := r.distributeOptimal(3, book.Buy, []string{"E1", "E2"})
	if err != nil {
		t.Fatalf("distributeOptimal returned error: %v", err)
	}

	if len(fills) != 1 {
		t.Fatalf("expected single fill, got %v", fills)
	}
	assertFill(t, fills[0], "E2", 99, 2)
}

func TestOptimalExactPrefersCheaperCombination(t *testing.T) {
	// 目标4可由 E1 一手4.0 或 E2 两手2.0 精确构成，应选成本更低者。
	r := newTestRouter(
		buildBook(t, "E1", 0, 4.0, nil, [][2]float64{{101, 4}}),
		buildBook(t, "E2", 0, 2.0, nil, [][2]float64{{100, 4}}),
	)

	fills, err := r.distributeOptimal(4, book.Buy, []string{"E1", "E2"})
	if err != nil {
		t.Fatalf("distributeOptimal returned error: %v", err)
	}

	if len(fills) != 1 {
		t.Fatalf("expected single aggregated fill, got %v", fills)
	}
	assertFill(t, fills[0], "E2", 100, 4)
}

func TestOptimalNoCandidates(t *testing.T) {
	r := newTestRouter(
		buildBook(t, "E1", 0, 5.0, nil, [][2]float64{{100, 3}}),
	)

	fills, err := r.distributeOptimal(4, book.Buy, []string{"E1"})
	if err != nil {
		t.Fatalf("distributeOptimal returned error: %v", err)
	}
	if len(fills) != 0 {
		t.Fatalf("expected no fills when no whole lot fits, got %v", fills)
	}
}
