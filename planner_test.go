package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testSection builds a synthetic input section filled with a recognizable
// byte pattern.
func testSection(name string, size int, align uint64, nobits, referenced bool) InputSection {
	sec := InputSection{
		Name:       name,
		Size:       uint64(size),
		Align:      align,
		NoBits:     nobits,
		Referenced: referenced,
	}
	if !nobits {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(0xa0 + len(name) + i)
		}
		sec.Data = data
	}
	return sec
}

// testKernelObject is the end-to-end fixture: one object exposing every
// section kind the reference plan places. The entry stub section is
// marked unreferenced, as it is in a real build: nothing calls _start.
func testKernelObject() *ObjectFile {
	hdr := Multiboot2Header()
	mb2 := InputSection{
		Name:       ".multiboot2",
		Size:       uint64(len(hdr)),
		Align:      8,
		Data:       hdr,
		Referenced: true,
	}
	return &ObjectFile{
		Name: "kernel.o",
		Sections: []InputSection{
			mb2,
			testSection(".text._start", 16, 16, false, false),
			testSection(".text", 0x120, 16, false, true),
			testSection(".rodata", 0x40, 8, false, true),
			testSection(".eh_frame_hdr", 0x14, 4, false, true),
			testSection(".eh_frame", 0x60, 8, false, true),
			testSection(".tdata", 0x10, 8, false, true),
			testSection(".tbss", 0x20, 8, true, true),
			testSection(".data", 0x30, 8, false, true),
			testSection(".bss", 0x100, 16, true, true),
		},
		Symbols: []Symbol{
			{Name: "_start", Section: ".text._start", Value: 0},
			{Name: "kmain", Section: ".text", Value: 0x20},
		},
	}
}

// TestReferencePlan verifies the end-to-end scenario: the reference plan
// places the header at the load base, the code at its fixed address, and
// the TLS regions contiguously with shared alignment.
func TestReferencePlan(t *testing.T) {
	img, err := PlanImage([]*ObjectFile{testKernelObject()}, DefaultPlan())
	if err != nil {
		t.Fatalf("PlanImage failed: %v", err)
	}

	if got := img.Region("header").Base; got != 0x100000 {
		t.Errorf("header base = 0x%x, want 0x100000", got)
	}
	if got := img.Region("text").Base; got != 0x200000 {
		t.Errorf("text base = 0x%x, want 0x200000", got)
	}
	if img.EntryAddr != 0x200000 {
		t.Errorf("entry = 0x%x, want 0x200000 (start of the force-kept stub)", img.EntryAddr)
	}

	tdata, tbss := img.Region("tdata"), img.Region("tbss")
	if tbss.Base != tdata.End {
		t.Errorf("tbss base = 0x%x, not contiguous with tdata end 0x%x", tbss.Base, tdata.End)
	}
	if tdata.Align != tbss.Align {
		t.Errorf("tdata align 0x%x != tbss align 0x%x", tdata.Align, tbss.Align)
	}

	if err := Validate(img); err != nil {
		t.Errorf("Validate rejected a planned image: %v", err)
	}
}

// TestPlanDeterministic verifies identical inputs produce identical Images
func TestPlanDeterministic(t *testing.T) {
	a, err := PlanImage([]*ObjectFile{testKernelObject()}, DefaultPlan())
	if err != nil {
		t.Fatalf("PlanImage failed: %v", err)
	}
	b, err := PlanImage([]*ObjectFile{testKernelObject()}, DefaultPlan())
	if err != nil {
		t.Fatalf("PlanImage failed: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("two plans of identical inputs differ:\n%s", diff)
	}
}

// TestRegionOrderMatchesPlan verifies output Region order is plan order,
// regardless of the order sections appear in the inputs.
func TestRegionOrderMatchesPlan(t *testing.T) {
	obj := testKernelObject()
	// Reverse the section order: placement must not care.
	for i, j := 0, len(obj.Sections)-1; i < j; i, j = i+1, j-1 {
		obj.Sections[i], obj.Sections[j] = obj.Sections[j], obj.Sections[i]
	}

	plan := DefaultPlan()
	img, err := PlanImage([]*ObjectFile{obj}, plan)
	if err != nil {
		t.Fatalf("PlanImage failed: %v", err)
	}

	if len(img.Regions) != len(plan.Regions) {
		t.Fatalf("got %d regions, want %d", len(img.Regions), len(plan.Regions))
	}
	prevEnd := img.LoadBase
	for i := range img.Regions {
		if img.Regions[i].Name != plan.Regions[i].Name {
			t.Errorf("region %d is %s, want %s", i, img.Regions[i].Name, plan.Regions[i].Name)
		}
		if img.Regions[i].Base < prevEnd {
			t.Errorf("region %s at 0x%x emitted before previous end 0x%x",
				img.Regions[i].Name, img.Regions[i].Base, prevEnd)
		}
		prevEnd = img.Regions[i].End
	}
}

// TestRegionAlignment verifies every computed base is a multiple of the
// declared alignment.
func TestRegionAlignment(t *testing.T) {
	img, err := PlanImage([]*ObjectFile{testKernelObject()}, DefaultPlan())
	if err != nil {
		t.Fatalf("PlanImage failed: %v", err)
	}
	for i := range img.Regions {
		r := &img.Regions[i]
		if r.Base%r.Align != 0 {
			t.Errorf("region %s base 0x%x not aligned to 0x%x", r.Name, r.Base, r.Align)
		}
	}
}

// TestUnresolvedEntryMissingSymbol verifies a plan whose entry symbol no
// object defines fails with UnresolvedEntry and produces no Image.
func TestUnresolvedEntryMissingSymbol(t *testing.T) {
	obj := testKernelObject()
	obj.Symbols = []Symbol{{Name: "kmain", Section: ".text", Value: 0x20}}

	img, err := PlanImage([]*ObjectFile{obj}, DefaultPlan())
	if img != nil {
		t.Fatal("got an Image despite unresolved entry")
	}
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != ErrUnresolvedEntry {
		t.Fatalf("got %v, want UnresolvedEntry", err)
	}
}

// TestEntryStubNeedsKeepRule verifies the force-include contract: with the
// keep rule the unreferenced entry stub survives, without it the stub is
// garbage-collected and the plan fails with UnresolvedEntry.
func TestEntryStubNeedsKeepRule(t *testing.T) {
	withKeep := DefaultPlan()
	if _, err := PlanImage([]*ObjectFile{testKernelObject()}, withKeep); err != nil {
		t.Fatalf("plan with keep rule failed: %v", err)
	}

	withoutKeep := DefaultPlan()
	for i := range withoutKeep.Regions {
		if withoutKeep.Regions[i].Kind == RegionCode {
			withoutKeep.Regions[i].Keep = nil
		}
	}
	_, err := PlanImage([]*ObjectFile{testKernelObject()}, withoutKeep)
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != ErrUnresolvedEntry {
		t.Fatalf("got %v, want UnresolvedEntry after dropping the keep rule", err)
	}
}

// TestHeaderOutOfRange verifies that padding the header past the boot
// scan window is fatal, never a warning.
func TestHeaderOutOfRange(t *testing.T) {
	plan := DefaultPlan()
	pad := RegionSpec{Name: "pad", Kind: RegionData, Align: 8, Patterns: []string{".pad"}}
	plan.Regions = append([]RegionSpec{pad}, plan.Regions...)

	obj := testKernelObject()
	obj.Sections = append([]InputSection{testSection(".pad", 40*1024, 8, false, true)}, obj.Sections...)

	img, err := PlanImage([]*ObjectFile{obj}, plan)
	if img != nil {
		t.Fatal("got an Image despite header out of range")
	}
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != ErrHeaderOutOfRange {
		t.Fatalf("got %v, want HeaderOutOfRange", err)
	}
}

// TestFixedBaseBelowCursor verifies a fixed base colliding with earlier
// regions reports an alignment violation.
func TestFixedBaseBelowCursor(t *testing.T) {
	plan := DefaultPlan()
	for i := range plan.Regions {
		if plan.Regions[i].Name == "text" {
			plan.Regions[i].Base = 0x100008 // inside the header region
		}
	}
	_, err := PlanImage([]*ObjectFile{testKernelObject()}, plan)
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != ErrAlignmentViolation {
		t.Fatalf("got %v, want AlignmentViolation", err)
	}
}

// TestAmbiguousSectionMatch verifies duplicate rules resolve first-match-
// wins with a diagnostic, not an error and not silently.
func TestAmbiguousSectionMatch(t *testing.T) {
	plan := DefaultPlan()
	dup := RegionSpec{Name: "rodata2", Kind: RegionROData, Align: 8, Patterns: []string{".rodata", ".rodata.*"}}
	// Insert right after the original rodata region.
	for i := range plan.Regions {
		if plan.Regions[i].Name == "rodata" {
			rest := append([]RegionSpec{dup}, plan.Regions[i+1:]...)
			plan.Regions = append(plan.Regions[:i+1], rest...)
			break
		}
	}

	img, err := PlanImage([]*ObjectFile{testKernelObject()}, plan)
	if err != nil {
		t.Fatalf("duplicate rule must not be fatal: %v", err)
	}
	if len(img.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(img.Diagnostics))
	}
	if img.Diagnostics[0].Chosen != "rodata" || img.Diagnostics[0].Shadowed != "rodata2" {
		t.Errorf("diagnostic blames %s/%s, want rodata/rodata2",
			img.Diagnostics[0].Chosen, img.Diagnostics[0].Shadowed)
	}
	if len(img.Region("rodata").Sections) != 1 || len(img.Region("rodata2").Sections) != 0 {
		t.Error("first-match-wins not applied: section not in the first rodata region")
	}
}

// TestZeroInitRegionsReserveOnly verifies zero-init regions extend the
// memory image but contribute nothing to the file size.
func TestZeroInitRegionsReserveOnly(t *testing.T) {
	img, err := PlanImage([]*ObjectFile{testKernelObject()}, DefaultPlan())
	if err != nil {
		t.Fatalf("PlanImage failed: %v", err)
	}

	bss := img.Region("bss")
	if bss.Size() == 0 {
		t.Fatal("bss region has no extent")
	}
	if bss.FileBytes() != 0 {
		t.Errorf("bss contributes %d file bytes, want 0", bss.FileBytes())
	}
	if img.MemSize() <= img.FileSize() {
		t.Errorf("mem size 0x%x should exceed file size 0x%x", img.MemSize(), img.FileSize())
	}
	if end, _ := img.Marker("__bss_end"); end != bss.End {
		t.Errorf("__bss_end = 0x%x, want 0x%x", end, bss.End)
	}
}

// TestMarkers verifies every region exposes start/end layout symbols.
func TestMarkers(t *testing.T) {
	img, err := PlanImage([]*ObjectFile{testKernelObject()}, DefaultPlan())
	if err != nil {
		t.Fatalf("PlanImage failed: %v", err)
	}
	for i := range img.Regions {
		r := &img.Regions[i]
		start, ok := img.Marker("__" + r.Name + "_start")
		if !ok || start != r.Base {
			t.Errorf("__%s_start = 0x%x,%v, want 0x%x", r.Name, start, ok, r.Base)
		}
		end, ok := img.Marker("__" + r.Name + "_end")
		if !ok || end != r.End {
			t.Errorf("__%s_end = 0x%x,%v, want 0x%x", r.Name, end, ok, r.End)
		}
	}
}

// TestEntrySuggestion verifies the UnresolvedEntry message suggests the
// nearest defined symbol for typos.
func TestEntrySuggestion(t *testing.T) {
	plan := DefaultPlan()
	plan.Entry = "_strat"
	_, err := PlanImage([]*ObjectFile{testKernelObject()}, plan)
	if err == nil {
		t.Fatal("expected UnresolvedEntry")
	}
	if want := "_start"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not suggest %q", err, want)
	}
}
