// region.go - Region kinds and the declarative Region specs a plan is made of
package main

import (
	"fmt"

	"github.com/gobwas/glob"
)

// RegionKind classifies what a Region holds. The kind decides the segment
// permissions the loader sees, whether the Region occupies file bytes, and
// whether it belongs to the thread-local block.
type RegionKind int

const (
	RegionHeader RegionKind = iota // boot-protocol header, scanned by the loader
	RegionCode
	RegionROData
	RegionUnwindHeader // index the unwinder searches
	RegionUnwindData   // records the index points into
	RegionTLSData
	RegionTLSBSS
	RegionData
	RegionBSS
)

func (k RegionKind) String() string {
	switch k {
	case RegionHeader:
		return "header"
	case RegionCode:
		return "code"
	case RegionROData:
		return "rodata"
	case RegionUnwindHeader:
		return "unwind-header"
	case RegionUnwindData:
		return "unwind-data"
	case RegionTLSData:
		return "tls-data"
	case RegionTLSBSS:
		return "tls-bss"
	case RegionData:
		return "data"
	case RegionBSS:
		return "bss"
	default:
		return "unknown"
	}
}

// ParseRegionKind parses a kind name as written in plan files.
func ParseRegionKind(s string) (RegionKind, error) {
	for k := RegionHeader; k <= RegionBSS; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown region kind %q", s)
}

// Zeroed reports whether Regions of this kind reserve virtual address
// space without contributing initialized bytes to the image file.
func (k RegionKind) Zeroed() bool {
	return k == RegionBSS || k == RegionTLSBSS
}

// TLS reports whether the kind belongs to the thread-local block.
func (k RegionKind) TLS() bool {
	return k == RegionTLSData || k == RegionTLSBSS
}

// Writable reports whether the loader should map the Region writable.
func (k RegionKind) Writable() bool {
	switch k {
	case RegionTLSData, RegionTLSBSS, RegionData, RegionBSS:
		return true
	}
	return false
}

// Executable reports whether the loader should map the Region executable.
func (k RegionKind) Executable() bool {
	return k == RegionCode
}

// RegionSpec is one entry of a layout plan: a named span of the image and
// the input-section patterns it collects, in priority order.
//
// Keep patterns are matched before Patterns and pin their sections into
// the image even when the toolchain considers them unreferenced. The entry
// stub must arrive through a Keep pattern: nothing calls it, so a plain
// pattern match would let section garbage collection drop it.
type RegionSpec struct {
	Name     string
	Kind     RegionKind
	Base     uint64 // fixed base address; 0 means next available
	Align    uint64 // power of two
	Keep     []string
	Patterns []string
}

// compiledRegion is a RegionSpec with its patterns compiled. Keep globs
// come first so force-included sections win over catch-alls.
type compiledRegion struct {
	spec     RegionSpec
	keep     []glob.Glob
	patterns []glob.Glob
}

func compileRegion(spec RegionSpec) (compiledRegion, error) {
	cr := compiledRegion{spec: spec}
	for _, p := range spec.Keep {
		g, err := glob.Compile(p)
		if err != nil {
			return cr, fmt.Errorf("region %s: bad keep pattern %q: %v", spec.Name, p, err)
		}
		cr.keep = append(cr.keep, g)
	}
	for _, p := range spec.Patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return cr, fmt.Errorf("region %s: bad pattern %q: %v", spec.Name, p, err)
		}
		cr.patterns = append(cr.patterns, g)
	}
	return cr, nil
}

// match reports whether the section name matches this Region, and whether
// it arrived through a Keep pattern.
func (cr *compiledRegion) match(section string) (matched, kept bool) {
	for _, g := range cr.keep {
		if g.Match(section) {
			return true, true
		}
	}
	for _, g := range cr.patterns {
		if g.Match(section) {
			return true, false
		}
	}
	return false, false
}
