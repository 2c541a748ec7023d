package core

import (
	"strings"
	"testing"

	"golang.org/x/sys/cpu"
)

func TestSIMDFeaturesReflectCPU(t *testing.T) {
	features := SIMDFeatures()
	has := func(name string) bool {
		for _, f := range features {
			if f == name {
				return true
			}
		}
		return false
	}
	if has("avx") != cpu.X86.HasAVX {
		t.Errorf("avx reported %v, cpu flag %v", has("avx"), cpu.X86.HasAVX)
	}
	if has("asimd") != cpu.ARM64.HasASIMD {
		t.Errorf("asimd reported %v, cpu flag %v", has("asimd"), cpu.ARM64.HasASIMD)
	}
}

func TestSIMDSummary(t *testing.T) {
	s := SIMDSummary()
	if len(SIMDFeatures()) == 0 {
		if s != "none" {
			t.Errorf("SIMDSummary() = %q; want none", s)
		}
		return
	}
	if s != strings.Join(SIMDFeatures(), ",") {
		t.Errorf("SIMDSummary() = %q; want joined feature list", s)
	}
}
