package device

import "testing"

func TestClaim(t *testing.T) {
	info, err := Claim(false, true)
	if err != nil {
		t.Skipf("host statistics unavailable: %v", err)
	}
	if info.LogicalCores < 1 {
		t.Errorf("LogicalCores = %d", info.LogicalCores)
	}
	if !info.Benchmark || info.Deterministic {
		t.Errorf("flags not recorded: %+v", info)
	}
	if info.Workers() != info.LogicalCores {
		t.Errorf("Workers() = %d, want %d", info.Workers(), info.LogicalCores)
	}
}

func TestWorkers(t *testing.T) {
	tests := []struct {
		info Info
		want int
	}{
		{Info{LogicalCores: 8}, 8},
		{Info{LogicalCores: 8, Deterministic: true}, 1},
		{Info{}, 1},
	}
	for _, tt := range tests {
		if got := tt.info.Workers(); got != tt.want {
			t.Errorf("%+v.Workers() = %d, want %d", tt.info, got, tt.want)
		}
	}
}
