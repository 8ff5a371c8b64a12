package schedule

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/freightline/settlement-engine/pkg/enums"
)

func TestBuildCanonicalSchedules(t *testing.T) {
	tests := []struct {
		tier        enums.RiskTier
		percentages []string
	}{
		{enums.RiskTierLow, []string{"0.2", "0.7", "0.1"}},
		{enums.RiskTierMedium, []string{"0.1", "0.7", "0.2"}},
		{enums.RiskTierHigh, []string{"0", "0.8", "0.2"}},
	}

	wantEvents := []enums.ShipmentEventType{
		enums.EventPickupConfirmed,
		enums.EventPodConfirmed,
		enums.EventClaimWindowClosed,
	}

	for _, tt := range tests {
		items, err := Build(tt.tier)
		if err != nil {
			t.Fatalf("Build(%s) error: %v", tt.tier, err)
		}
		if len(items) != len(wantEvents) {
			t.Fatalf("Build(%s) returned %d items, want %d", tt.tier, len(items), len(wantEvents))
		}
		for i, item := range items {
			if item.EventType != wantEvents[i] {
				t.Fatalf("Build(%s) item %d event = %s, want %s", tt.tier, i, item.EventType, wantEvents[i])
			}
			want := decimal.RequireFromString(tt.percentages[i])
			if !item.Percentage.Equal(want) {
				t.Fatalf("Build(%s) item %d percentage = %s, want %s", tt.tier, i, item.Percentage, want)
			}
			if item.Sequence != i+1 {
				t.Fatalf("Build(%s) item %d sequence = %d, want %d", tt.tier, i, item.Sequence, i+1)
			}
		}
	}
}

func TestBuildPercentagesSumToOne(t *testing.T) {
	one := decimal.New(1, 0)
	for _, tier := range []enums.RiskTier{enums.RiskTierLow, enums.RiskTierMedium, enums.RiskTierHigh} {
		items, err := Build(tier)
		if err != nil {
			t.Fatalf("Build(%s) error: %v", tier, err)
		}
		sum := decimal.Zero
		for _, item := range items {
			sum = sum.Add(item.Percentage)
		}
		if sum.Sub(one).Abs().GreaterThan(sumTolerance) {
			t.Fatalf("Build(%s) percentages sum to %s, want 1.0", tier, sum)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	first, err := Build(enums.RiskTierMedium)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	second, err := Build(enums.RiskTierMedium)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	for i := range first {
		if first[i].EventType != second[i].EventType ||
			!first[i].Percentage.Equal(second[i].Percentage) ||
			first[i].Sequence != second[i].Sequence {
			t.Fatalf("Build output differs between calls: %+v vs %+v", first[i], second[i])
		}
	}
}

func TestBuildRejectsUnknownTier(t *testing.T) {
	if _, err := Build(enums.RiskTier("extreme")); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}
