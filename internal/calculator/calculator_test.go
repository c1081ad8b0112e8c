package calculator

import (
	"math"
	"testing"

	"CascadeBandit/internal/model"
)

func TestConversion(t *testing.T) {
	tests := []struct {
		success, payments int
		want              float64
	}{
		{0, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{5, 5, 100},
	}
	for _, tt := range tests {
		if got := Conversion(tt.success, tt.payments); got != tt.want {
			t.Errorf("Conversion(%d,%d) = %v, want %v", tt.success, tt.payments, got, tt.want)
		}
	}
}

func TestCalculateSMA(t *testing.T) {
	if _, err := CalculateSMA([]float64{1, 2}, 3); err == nil {
		t.Error("expected error for short input")
	}
	if _, err := CalculateSMA([]float64{1}, 0); err == nil {
		t.Error("expected error for zero period")
	}
	got, err := CalculateSMA([]float64{10, 1, 2, 3}, 3)
	if err != nil || got != 2 {
		t.Errorf("CalculateSMA = %v, %v; want 2", got, err)
	}
}

func TestRollingConversion(t *testing.T) {
	got, err := RollingConversion([]int{0, 0, 1, 1, 0, 1}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got != 75 {
		t.Errorf("RollingConversion = %v, want 75", got)
	}
	got, _ = RollingConversion([]int{1, 0}, 10)
	if got != 50 {
		t.Errorf("short history = %v, want 50", got)
	}
	got, _ = RollingConversion(nil, 10)
	if got != 0 {
		t.Errorf("empty history = %v, want 0", got)
	}
}

func TestCredibleInterval(t *testing.T) {
	lo, hi, err := CredibleInterval(model.NewPosterior(), 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lo-0.05) > 1e-6 || math.Abs(hi-0.95) > 1e-6 {
		t.Errorf("uniform interval = [%v,%v], want [0.05,0.95]", lo, hi)
	}

	narrow := model.Posterior{Alpha: 81, Beta: 21}
	lo, hi, _ = CredibleInterval(narrow, 0.9)
	if !(lo < narrow.Mean() && narrow.Mean() < hi) || hi-lo > 0.2 {
		t.Errorf("interval [%v,%v] does not tighten around %v", lo, hi, narrow.Mean())
	}

	if _, _, err := CredibleInterval(narrow, 1); err == nil {
		t.Error("expected error for level 1")
	}
}
