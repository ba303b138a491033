// planner.go - The one-shot transform from (objects, plan) to an Image
package main

import (
	"fmt"

	"github.com/an-owl/Hootux/internal/engine"
)

// PlanImage maps the given objects into the image described by the plan.
// It is pure: no I/O, deterministic for identical inputs, and it either
// returns an Image satisfying every layout invariant or a *LayoutError
// with no Image at all. Non-fatal findings land in Image.Diagnostics.
func PlanImage(objects []*ObjectFile, plan LayoutPlan) (*Image, error) {
	if len(plan.Regions) == 0 {
		return nil, badPlan("no regions")
	}
	if plan.Entry == "" {
		return nil, badPlan("no entry symbol")
	}
	if err := checkRegionKinds(plan); err != nil {
		return nil, err
	}

	regions := make([]compiledRegion, 0, len(plan.Regions))
	for _, spec := range plan.Regions {
		if !engine.IsPowerOfTwo(spec.Align) {
			return nil, badPlan("region %s: alignment 0x%x is not a power of two", spec.Name, spec.Align)
		}
		cr, err := compileRegion(spec)
		if err != nil {
			return nil, badPlan("%v", err)
		}
		regions = append(regions, cr)
	}

	img := &Image{
		LoadBase:    plan.LoadBase,
		ScanLimit:   plan.ScanLimit,
		EntrySymbol: plan.Entry,
	}

	assigned, diags := assignSections(objects, regions)
	img.Diagnostics = diags

	// Placement proceeds strictly in plan order. Each Region's base is the
	// smallest aligned address at or past the previous Region's end; the
	// first Region is pinned to the load base itself.
	cursor := plan.LoadBase
	for i, cr := range regions {
		spec := cr.spec
		base := engine.AlignUp(cursor, spec.Align)
		switch {
		case i == 0:
			if plan.LoadBase%spec.Align != 0 {
				return nil, alignmentViolation(spec.Name, plan.LoadBase, spec.Align)
			}
			base = plan.LoadBase
		case spec.Base != 0:
			if spec.Base%spec.Align != 0 || spec.Base < cursor {
				return nil, alignmentViolation(spec.Name, spec.Base, engine.AlignUp(cursor, spec.Align))
			}
			base = spec.Base
		}

		placed := PlacedRegion{
			Name:  spec.Name,
			Kind:  spec.Kind,
			Base:  base,
			Align: spec.Align,
		}

		addr := base
		for _, sec := range assigned[i] {
			addr = engine.AlignUp(addr, sec.Align)
			placed.Sections = append(placed.Sections, PlacedSection{
				Object: sec.Object,
				Name:   sec.Name,
				Addr:   addr,
				Size:   sec.Size,
				Data:   sec.Data,
				NoBits: sec.NoBits,
			})
			addr += sec.Size
		}
		placed.End = addr
		cursor = addr

		img.Regions = append(img.Regions, placed)
		img.Markers = append(img.Markers,
			Marker{Name: fmt.Sprintf("__%s_start", spec.Name), Addr: placed.Base},
			Marker{Name: fmt.Sprintf("__%s_end", spec.Name), Addr: placed.End},
		)
	}

	header := img.regionOfKind(RegionHeader)
	if off := header.Base - img.LoadBase; off >= img.ScanLimit {
		return nil, headerOutOfRange(header.Name, off, img.ScanLimit)
	}

	if err := resolveEntry(img, objects, regions, assigned); err != nil {
		return nil, err
	}

	return img, nil
}

func checkRegionKinds(plan LayoutPlan) error {
	headers, code := 0, 0
	for _, r := range plan.Regions {
		switch r.Kind {
		case RegionHeader:
			headers++
		case RegionCode:
			code++
		}
	}
	if headers != 1 {
		return badPlan("want exactly one header region, have %d", headers)
	}
	if code != 1 {
		return badPlan("want exactly one code region, have %d", code)
	}
	return nil
}

// assignedSection is an input section bound to a Region, remembering
// which object it came from.
type assignedSection struct {
	Object string
	InputSection
}

// assignSections walks objects in presentation order and binds each
// section to the first Region whose patterns match it. A section matching
// a second Region too is deterministic (first wins) but usually means a
// stale duplicate rule, so it is reported, not swallowed. Sections the
// toolchain marked unreferenced are discarded unless a Keep rule matched:
// that is the only guarantee the entry stub survives.
func assignSections(objects []*ObjectFile, regions []compiledRegion) ([][]assignedSection, []Diagnostic) {
	assigned := make([][]assignedSection, len(regions))
	var diags []Diagnostic

	for _, obj := range objects {
		for _, sec := range obj.Sections {
			first := -1
			kept := false
			for ri := range regions {
				m, k := regions[ri].match(sec.Name)
				if !m {
					continue
				}
				if first < 0 {
					first, kept = ri, k
					continue
				}
				diags = append(diags, Diagnostic{
					Section:  fmt.Sprintf("%s(%s)", obj.Name, sec.Name),
					Chosen:   regions[first].spec.Name,
					Shadowed: regions[ri].spec.Name,
				})
			}
			if first < 0 {
				continue
			}
			if !sec.Referenced && !kept {
				// Modeled section garbage collection: matched only by a
				// generic pattern and nothing references it.
				continue
			}
			assigned[first] = append(assigned[first], assignedSection{Object: obj.Name, InputSection: sec})
		}
	}

	return assigned, diags
}

// resolveEntry locates the entry symbol among sections that made it into
// the image and checks it landed inside the code Region.
func resolveEntry(img *Image, objects []*ObjectFile, regions []compiledRegion, assigned [][]assignedSection) error {
	var defined []string // symbol names seen, for the suggestion in the failure message
	droppedDef := false

	for _, obj := range objects {
		for _, sym := range obj.Symbols {
			defined = append(defined, sym.Name)
			if sym.Name != img.EntrySymbol {
				continue
			}
			if addr, ok := placedAddr(img, regions, assigned, obj.Name, sym.Section); ok {
				entry := addr + sym.Value
				code := img.regionOfKind(RegionCode)
				if entry < code.Base || entry >= code.End {
					return unresolvedEntry(img.EntrySymbol,
						fmt.Sprintf("resolves to 0x%x, outside code region %s [0x%x,0x%x)",
							entry, code.Name, code.Base, code.End))
				}
				img.EntryAddr = entry
				return nil
			}
			droppedDef = true
		}
	}

	if droppedDef {
		return unresolvedEntry(img.EntrySymbol,
			"was defined in a section discarded as unreferenced; add a keep rule to the code region")
	}
	why := "is not defined by any input object"
	if s := engine.Suggest(img.EntrySymbol, defined, 1); len(s) > 0 {
		why += fmt.Sprintf(" (closest defined symbol: %s)", s[0])
	}
	return unresolvedEntry(img.EntrySymbol, why)
}

// placedAddr finds the assigned address of object/section, if it was
// placed at all.
func placedAddr(img *Image, regions []compiledRegion, assigned [][]assignedSection, object, section string) (uint64, bool) {
	for ri := range regions {
		for si := range assigned[ri] {
			if assigned[ri][si].Object == object && assigned[ri][si].Name == section {
				return img.Regions[ri].Sections[si].Addr, true
			}
		}
	}
	return 0, false
}
