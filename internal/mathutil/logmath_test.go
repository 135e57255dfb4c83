package mathutil

import (
	"math"
	"testing"
)

func TestLogAdd(t *testing.T) {
	// log(exp(log(2)) + exp(log(3))) = log(5)
	got := LogAdd(math.Log(2), math.Log(3))
	want := math.Log(5)
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("LogAdd(log(2), log(3)) = %f, want %f", got, want)
	}
}

func TestLogAddWithLogZero(t *testing.T) {
	a := math.Log(5)
	if got := LogAdd(LogZero, a); math.Abs(got-a) > 1e-10 {
		t.Errorf("LogAdd(LogZero, %f) = %f, want %f", a, got, a)
	}
	if got := LogAdd(a, LogZero); math.Abs(got-a) > 1e-10 {
		t.Errorf("LogAdd(%f, LogZero) = %f, want %f", a, got, a)
	}
}

func TestLogSumExp(t *testing.T) {
	if got := LogSumExp(); got != LogZero {
		t.Errorf("LogSumExp() = %f, want LogZero", got)
	}
	got := LogSumExp(math.Log(1), math.Log(2), math.Log(3))
	if want := math.Log(6); math.Abs(got-want) > 1e-10 {
		t.Errorf("LogSumExp = %f, want %f", got, want)
	}
}

func TestFinite(t *testing.T) {
	tests := []struct {
		x    float64
		want bool
	}{
		{0, true},
		{-3.5, true},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
	}
	for _, tt := range tests {
		if got := Finite(tt.x); got != tt.want {
			t.Errorf("Finite(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}
