package plan

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"sor-router/internal/book"
)

var testFees = FeeTable{
	"E1": 0.001,
	"E2": 0.0005,
}

func TestTotalFeesExact(t *testing.T) {
	p := New(book.Buy, 12, testFees)
	mustFill(t, p, Fill{Venue: "E1", Price: 100, Volume: 10})
	mustFill(t, p, Fill{Venue: "E1", Price: 101, Volume: 2})

	want := decimal.RequireFromString("1.202")
	if got := p.TotalFees(); !got.Equal(want) {
		t.Errorf("expected total fees %s, got %s", want, got)
	}
	if got := p.FulfillmentPercent(); !closeTo(got, 100) {
		t.Errorf("expected fulfillment 100%%, got %v", got)
	}
}

func TestTotalBuyIncludesFees(t *testing.T) {
	p := New(book.Buy, 10, testFees)
	mustFill(t, p, Fill{Venue: "E1", Price: 100, Volume: 10})

	// 10 * 100 * 1.001
	want := decimal.RequireFromString("1001")
	if got := p.Total(); !got.Equal(want) {
		t.Errorf("expected total %s, got %s", want, got)
	}
}

func TestTotalSellNetOfFees(t *testing.T) {
	p := New(book.Sell, 12, testFees)
	mustFill(t, p, Fill{Venue: "E1", Price: 101, Volume: 10})
	mustFill(t, p, Fill{Venue: "E1", Price: 100, Volume: 2})

	// 10*101*0.999 + 2*100*0.999
	want := decimal.RequireFromString("1208.79")
	if got := p.Total(); !got.Equal(want) {
		t.Errorf("expected total %s, got %s", want, got)
	}

	wantFees := decimal.RequireFromString("1.21")
	if got := p.TotalFees(); !got.Equal(wantFees) {
		t.Errorf("expected fees %s, got %s", wantFees, got)
	}
}

func TestAverageEffectivePrice(t *testing.T) {
	p := New(book.Buy, 4, testFees)

	if got := p.AverageEffectivePrice(); !got.IsZero() {
		t.Errorf("expected zero average on empty plan, got %s", got)
	}

	mustFill(t, p, Fill{Venue: "E2", Price: 200, Volume: 4})
	// 200 * 1.0005
	want := decimal.RequireFromString("200.1")
	if got := p.AverageEffectivePrice(); !got.Equal(want) {
		t.Errorf("expected average %s, got %s", want, got)
	}
}

func TestFulfillmentZeroRequest(t *testing.T) {
	p := New(book.Buy, 0, testFees)
	if got := p.FulfillmentPercent(); got != 100 {
		t.Errorf("expected 100%% for zero request, got %v", got)
	}
}

func TestAddRejectsInvalidFills(t *testing.T) {
	p := New(book.Buy, 1, testFees)

	if err := p.Add(Fill{Venue: "E1", Price: 100, Volume: 0}); err == nil {
		t.Fatal("expected error for zero volume fill")
	}
	if err := p.Add(Fill{Venue: "E9", Price: 100, Volume: 1}); err == nil || !strings.Contains(err.Error(), "未知场所") {
		t.Fatalf("expected unknown venue error, got %v", err)
	}
}

func TestRebuildFromFillsYieldsSameMetrics(t *testing.T) {
	original := New(book.Buy, 12, testFees)
	mustFill(t, original, Fill{Venue: "E1", Price: 100, Volume: 10})
	mustFill(t, original, Fill{Venue: "E2", Price: 101, Volume: 2})

	rebuilt := New(book.Buy, 12, testFees)
	for _, f := range original.Fills() {
		mustFill(t, rebuilt, f)
	}

	if !original.TotalFees().Equal(rebuilt.TotalFees()) {
		t.Errorf("fees mismatch: %s vs %s", original.TotalFees(), rebuilt.TotalFees())
	}
	if !original.Total().Equal(rebuilt.Total()) {
		t.Errorf("total mismatch: %s vs %s", original.Total(), rebuilt.Total())
	}
	if !original.AverageEffectivePrice().Equal(rebuilt.AverageEffectivePrice()) {
		t.Errorf("average mismatch: %s vs %s", original.AverageEffectivePrice(), rebuilt.AverageEffectivePrice())
	}
	if original.FulfillmentPercent() != rebuilt.FulfillmentPercent() {
		t.Errorf("fulfillment mismatch: %v vs %v", original.FulfillmentPercent(), rebuilt.FulfillmentPercent())
	}
}

func TestRenderContainsMetrics(t *testing.T) {
	p := New(book.Buy, 10, testFees)
	mustFill(t, p, Fill{Venue: "E1", Price: 100, Volume: 10})

	var buf bytes.Buffer
	p.Render(&buf)

	out := buf.String()
	for _, fragment := range []string{"执行计划", "总手续费", "总成本", "平均有效价格", "成交比例"} {
		if !strings.Contains(out, fragment) {
			t.Errorf("render output missing %q:\n%s", fragment, out)
		}
	}
}

func mustFill(t *testing.T, p *Plan, f Fill) {
	t.Helper()
	if err := p.Add(f); err != nil {
		t.Fatalf("add fill failed: %v", err)
	}
}

func closeTo(got, want float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1e-9
}
