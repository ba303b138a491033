// image.go - The immutable Image value a successful plan produces
package main

// PlacedSection is an input section with its final address assigned.
type PlacedSection struct {
	Object string
	Name   string
	Addr   uint64
	Size   uint64
	Data   []byte // nil for NOBITS sections
	NoBits bool
}

// PlacedRegion is one Region of the plan with every section it collected,
// in object order, and its final extent. End includes zero-init sections:
// they occupy address space even though they contribute no file bytes.
type PlacedRegion struct {
	Name     string
	Kind     RegionKind
	Base     uint64
	End      uint64
	Align    uint64
	Sections []PlacedSection
}

// Size is the virtual extent of the Region.
func (r *PlacedRegion) Size() uint64 {
	return r.End - r.Base
}

// FileBytes is how many initialized bytes the Region contributes to the
// image file: zero for zero-init Regions of any size.
func (r *PlacedRegion) FileBytes() uint64 {
	if r.Kind.Zeroed() {
		return 0
	}
	return r.Size()
}

// Marker is a layout symbol the build exposes so the kernel's startup
// code can locate Region boundaries at runtime (TLS block, unwind tables).
type Marker struct {
	Name string
	Addr uint64
}

// Image is the complete placement decision: produced once at link time,
// immutable thereafter. Only the content of writable Regions changes once
// the kernel runs; the layout never does.
type Image struct {
	LoadBase    uint64
	ScanLimit   uint64
	EntrySymbol string
	EntryAddr   uint64
	Regions     []PlacedRegion
	Markers     []Marker
	Diagnostics []Diagnostic
}

// Region returns the named placed Region, or nil.
func (img *Image) Region(name string) *PlacedRegion {
	for i := range img.Regions {
		if img.Regions[i].Name == name {
			return &img.Regions[i]
		}
	}
	return nil
}

// regionOfKind returns the first Region of the given kind, or nil.
func (img *Image) regionOfKind(k RegionKind) *PlacedRegion {
	for i := range img.Regions {
		if img.Regions[i].Kind == k {
			return &img.Regions[i]
		}
	}
	return nil
}

// MemSize is the full virtual extent of the image, zero-init included.
func (img *Image) MemSize() uint64 {
	if len(img.Regions) == 0 {
		return 0
	}
	return img.Regions[len(img.Regions)-1].End - img.LoadBase
}

// FileSize is the number of initialized bytes the Regions contribute to
// the image file, excluding format headers and padding.
func (img *Image) FileSize() uint64 {
	var n uint64
	for i := range img.Regions {
		n += img.Regions[i].FileBytes()
	}
	return n
}

// Marker returns the named layout symbol's address.
func (img *Image) Marker(name string) (uint64, bool) {
	for _, m := range img.Markers {
		if m.Name == name {
			return m.Addr, true
		}
	}
	return 0, false
}
