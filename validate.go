// validate.go - Independent re-check of every layout invariant
package main

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/an-owl/Hootux/internal/engine"
)

// Validate re-checks all layout invariants on an Image, independently of
// how it was built. PlanImage output always passes; the point is catching
// hand-edited or deserialized plans before they become unbootable images.
// All violations are reported, not just the first.
func Validate(img *Image) error {
	var result *multierror.Error

	if len(img.Regions) == 0 {
		return badPlan("image has no regions")
	}

	// Regions are emitted in plan order with no overlap, first pinned to
	// the load base.
	if img.Regions[0].Base != img.LoadBase {
		result = multierror.Append(result, badPlan("first region %s starts at 0x%x, not the load base 0x%x",
			img.Regions[0].Name, img.Regions[0].Base, img.LoadBase))
	}
	for i := range img.Regions {
		r := &img.Regions[i]
		if r.End < r.Base {
			result = multierror.Append(result, badPlan("region %s ends 0x%x before its base 0x%x", r.Name, r.End, r.Base))
		}
		if i > 0 && r.Base < img.Regions[i-1].End {
			result = multierror.Append(result, alignmentViolation(r.Name, r.Base, img.Regions[i-1].End))
		}
		if !engine.IsPowerOfTwo(r.Align) {
			result = multierror.Append(result, badPlan("region %s: alignment 0x%x is not a power of two", r.Name, r.Align))
		} else if r.Base%r.Align != 0 {
			result = multierror.Append(result, alignmentViolation(r.Name, r.Base, r.Align))
		}
		result = multierror.Append(result, validateSections(r))
	}

	// Boot header discoverable within the loader's scan window.
	if hdr := img.regionOfKind(RegionHeader); hdr == nil {
		result = multierror.Append(result, badPlan("image has no header region"))
	} else if off := hdr.Base - img.LoadBase; off >= img.ScanLimit {
		result = multierror.Append(result, headerOutOfRange(hdr.Name, off, img.ScanLimit))
	}

	// Entry point lands inside the code region.
	if code := img.regionOfKind(RegionCode); code == nil {
		result = multierror.Append(result, badPlan("image has no code region"))
	} else if img.EntryAddr < code.Base || img.EntryAddr >= code.End {
		result = multierror.Append(result, unresolvedEntry(img.EntrySymbol,
			fmt.Sprintf("resolves to 0x%x, outside code region %s [0x%x,0x%x)",
				img.EntryAddr, code.Name, code.Base, code.End)))
	}

	result = multierror.Append(result, validatePair(img, RegionTLSData, RegionTLSBSS, "thread-local"))
	result = multierror.Append(result, validatePair(img, RegionUnwindHeader, RegionUnwindData, "unwind"))

	return result.ErrorOrNil()
}

// validateSections checks the sections inside one Region: in bounds,
// non-overlapping, and file bytes only where the Region kind allows them.
func validateSections(r *PlacedRegion) error {
	var result *multierror.Error

	prevEnd := r.Base
	for i := range r.Sections {
		s := &r.Sections[i]
		if s.Addr < prevEnd || s.Addr+s.Size > r.End {
			result = multierror.Append(result, badPlan("region %s: section %s [0x%x,0x%x) outside [0x%x,0x%x) or overlapping",
				r.Name, s.Name, s.Addr, s.Addr+s.Size, prevEnd, r.End))
		} else {
			prevEnd = s.Addr + s.Size
		}
		if r.Kind.Zeroed() && !s.NoBits {
			result = multierror.Append(result, badPlan("region %s: zero-init region holds initialized section %s", r.Name, s.Name))
		}
		if !s.NoBits && uint64(len(s.Data)) != s.Size {
			result = multierror.Append(result, badPlan("region %s: section %s has %d data bytes for size %d",
				r.Name, s.Name, len(s.Data), s.Size))
		}
	}

	return result.ErrorOrNil()
}

// validatePair enforces the paired-region invariants: the unwinder indexes
// from the header into the data region by relative offset, and the TLS
// block must match the thread-control-block layout, so each pair must be
// consecutive (alignment padding at most) and share one alignment.
func validatePair(img *Image, first, second RegionKind, what string) error {
	a := img.regionOfKind(first)
	b := img.regionOfKind(second)
	if a == nil || b == nil {
		return nil // pairs are optional; a kernel without TLS is still bootable
	}

	var result *multierror.Error
	ai, bi := regionIndex(img, a), regionIndex(img, b)
	if bi != ai+1 {
		result = multierror.Append(result, badPlan("%s regions %s and %s are not consecutive", what, a.Name, b.Name))
	} else if b.Base != engine.AlignUp(a.End, b.Align) {
		result = multierror.Append(result, badPlan("%s region %s at 0x%x is not contiguous with %s ending at 0x%x",
			what, b.Name, b.Base, a.Name, a.End))
	}
	if a.Align != b.Align {
		result = multierror.Append(result, badPlan("%s regions %s and %s declare different alignments 0x%x and 0x%x",
			what, a.Name, b.Name, a.Align, b.Align))
	}
	return result.ErrorOrNil()
}

func regionIndex(img *Image, r *PlacedRegion) int {
	for i := range img.Regions {
		if &img.Regions[i] == r {
			return i
		}
	}
	return -1
}
