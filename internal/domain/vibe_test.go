package domain

import (
	"errors"
	"math"
	"testing"
)

func TestVibeFromSliderBoundaries(t *testing.T) {
	cases := []struct {
		in   float64
		want Vibe
	}{
		{0.0, VibeChill},
		{0.124, VibeChill},
		{0.125, VibeCozy},
		{0.25, VibeMellow},
		{0.5, VibeSocial},
		{0.874, VibeEnergetic},
		{0.875, VibeWild},
		{0.999, VibeWild},
		{1.0, VibeWild},
		{-0.5, VibeChill},
		{1.5, VibeWild},
		{math.NaN(), VibeChill},
	}
	for _, tc := range cases {
		if got := VibeFromSlider(tc.in); got != tc.want {
			t.Fatalf("VibeFromSlider(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVibeSliderRoundTripIsBucketStable(t *testing.T) {
	for i := 0; i <= 10; i++ {
		v := float64(i) / 10
		vibe := VibeFromSlider(v)
		back := SliderFromVibe(vibe)
		if got := VibeFromSlider(back); got != vibe {
			t.Fatalf("slider %v: vibe %q -> %v -> %q", v, vibe, back, got)
		}
	}
}

func TestSliderFromVibeLowerEdges(t *testing.T) {
	for i, v := range Vibes() {
		if got, want := SliderFromVibe(v), float64(i)*0.125; got != want {
			t.Fatalf("SliderFromVibe(%q) = %v, want %v", v, got, want)
		}
	}
	if got := SliderFromVibe(Vibe("unknown")); got != 0 {
		t.Fatalf("unknown vibe: got %v", got)
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseVibe("wild"); err != nil {
		t.Fatalf("ParseVibe: %v", err)
	}
	if _, err := ParseVibe("loud"); err == nil {
		t.Fatalf("expected error for unknown vibe")
	}
	if _, err := ParseNotificationStatus("read"); err != nil {
		t.Fatalf("ParseNotificationStatus: %v", err)
	}
	if _, err := ParseDuration("weekend"); err == nil {
		t.Fatalf("expected error for unknown duration")
	}
}

func TestRequireFields(t *testing.T) {
	err := RequireFields(map[string]string{"fromUid": "u1", "toUid": " "})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["toUid"] != "required" {
		t.Fatalf("unexpected fields: %v", err)
	}
	if err := RequireFields(map[string]string{"a": "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
