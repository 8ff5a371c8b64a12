package risk

import (
	"testing"
	"time"

	"github.com/freightline/settlement-engine/pkg/enums"
)

func TestResolveCanonicalTable(t *testing.T) {
	tests := []struct {
		score    float64
		event    enums.ShipmentEventType
		want     enums.ReleaseStrategy
		wantHold time.Duration
	}{
		{0.15, enums.EventPickupConfirmed, enums.ReleaseImmediate, 0},
		{0.15, enums.EventPodConfirmed, enums.ReleaseImmediate, 0},
		{0.15, enums.EventClaimWindowClosed, enums.ReleaseImmediate, 0},

		{0.50, enums.EventPickupConfirmed, enums.ReleaseDelayed, 24 * time.Hour},
		{0.50, enums.EventPodConfirmed, enums.ReleaseImmediate, 0},
		{0.50, enums.EventClaimWindowClosed, enums.ReleaseDelayed, 24 * time.Hour},

		{0.85, enums.EventPickupConfirmed, enums.ReleasePending, 0},
		{0.85, enums.EventPodConfirmed, enums.ReleaseManualReview, 0},
		{0.85, enums.EventClaimWindowClosed, enums.ReleaseManualReview, 0},
	}

	for _, tt := range tests {
		got, err := Resolve(tt.score, tt.event)
		if err != nil {
			t.Fatalf("Resolve(%v, %s) error: %v", tt.score, tt.event, err)
		}
		if got.Strategy != tt.want {
			t.Fatalf("Resolve(%v, %s) = %s, want %s", tt.score, tt.event, got.Strategy, tt.want)
		}
		if got.Hold != tt.wantHold {
			t.Fatalf("Resolve(%v, %s) hold = %v, want %v", tt.score, tt.event, got.Hold, tt.wantHold)
		}
	}
}

func TestResolveBoundariesAreLowerBoundInclusive(t *testing.T) {
	if got, _ := Resolve(0.33, enums.EventPickupConfirmed); got.Strategy != enums.ReleaseDelayed {
		t.Fatalf("Resolve(0.33, pickup) = %s, want delayed", got.Strategy)
	}
	if got, _ := Resolve(0.67, enums.EventPodConfirmed); got.Strategy != enums.ReleaseManualReview {
		t.Fatalf("Resolve(0.67, pod) = %s, want manual review", got.Strategy)
	}
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	if _, err := Resolve(1.5, enums.EventPodConfirmed); err == nil {
		t.Fatal("expected error for out-of-range score")
	}
	if _, err := Resolve(0.5, enums.ShipmentEventType("TRUCK_WASHED")); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}
