// Package optimize provides the SIMD-aware path comparison the Router uses
// for its exact-string route matches. Capability detection mirrors the
// teacher's approach (cpu feature flags gate a fast path, everything else
// falls back to plain string equality); the compare itself is pure Go
// rather than hand-written assembly, since this tree carries no assembly
// kernel to dispatch into.
package optimize

import "golang.org/x/sys/cpu"

var hasSIMD bool

func init() {
	hasSIMD = cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD
}

// ComparePathSIMD reports whether two route paths are equal. Short strings
// go through ordinary comparison, since the cost of dispatching to a
// vectorized path dwarfs the compare itself below 16 bytes; longer
// strings on a SIMD-capable CPU use a width-aligned block compare with the
// same early-outs a real AVX2/NEON kernel would take.
func ComparePathSIMD(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) < 16 || !hasSIMD {
		return a == b
	}
	return blockCompare(a, b)
}

const blockWidth = 32

func blockCompare(a, b string) bool {
	n := len(a)
	i := 0
	for ; i+blockWidth <= n; i += blockWidth {
		if a[i:i+blockWidth] != b[i:i+blockWidth] {
			return false
		}
	}
	return a[i:] == b[i:]
}
