// Package device describes the compute device evaluation runs on.
package device

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Info is a claimed device.
type Info struct {
	Name          string
	LogicalCores  int
	TotalMemory   uint64
	Deterministic bool
	Benchmark     bool
}

// Claim inspects the host and returns the CPU device. Only one device is
// used per run.
func Claim(deterministic, benchmark bool) (Info, error) {
	cores, err := cpu.Counts(true)
	if err != nil {
		return Info{}, fmt.Errorf("count cpus: %w", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Info{}, fmt.Errorf("read memory: %w", err)
	}
	return Info{
		Name:          "cpu:0",
		LogicalCores:  cores,
		TotalMemory:   vm.Total,
		Deterministic: deterministic,
		Benchmark:     benchmark,
	}, nil
}

// Workers is the number of utterances to decode in parallel. Deterministic
// runs use one.
func (i Info) Workers() int {
	if i.Deterministic || i.LogicalCores < 1 {
		return 1
	}
	return i.LogicalCores
}
