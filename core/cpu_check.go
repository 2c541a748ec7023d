package core

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// SIMDFeatures lists the vector instruction sets detected on this CPU.
// vek picks its kernels from the same flags; an empty result means the pure Go fallback is used.
func SIMDFeatures() []string {
	var features []string
	if cpu.X86.HasAVX {
		features = append(features, "avx")
	}
	if cpu.X86.HasAVX2 {
		features = append(features, "avx2")
	}
	if cpu.X86.HasFMA {
		features = append(features, "fma")
	}
	if cpu.X86.HasAVX512F {
		features = append(features, "avx512f")
	}
	if cpu.ARM64.HasASIMD {
		features = append(features, "asimd")
	}
	return features
}

// SIMDSummary returns SIMDFeatures as a comma separated string, or "none".
func SIMDSummary() string {
	f := SIMDFeatures()
	if len(f) == 0 {
		return "none"
	}
	return strings.Join(f, ",")
}
