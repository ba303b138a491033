// plan.go - The layout plan: reference values and the TOML/YAML plan loader
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/an-owl/Hootux/internal/engine"
)

// LayoutPlan is the declarative input to the planner: an ordered list of
// Region specs, the image load base, the boot-loader scan window, and the
// entry symbol. Evaluated by PlanImage as a pure function; the plan itself
// never mutates.
type LayoutPlan struct {
	LoadBase  uint64
	ScanLimit uint64
	Entry     string
	Regions   []RegionSpec
}

// Reference layout values for the Hootux kernel image. The load base sits
// at the 1 MiB mark (above the legacy low-memory hole), the code region at
// a fixed 0x200000 the early page tables assume, and the multiboot2 header
// must fall inside the loader's 32 KiB scan window.
const (
	defaultLoadBase  = 0x100000
	defaultCodeBase  = 0x200000
	defaultScanLimit = 0x8000
	defaultEntry     = "_start"
)

// DefaultPlan returns the reference Hootux kernel plan. The entry stub
// section is force-kept: nothing references _start, so without the keep
// rule section garbage collection would drop it and the image would have
// no discoverable entry point.
func DefaultPlan() LayoutPlan {
	return LayoutPlan{
		LoadBase:  defaultLoadBase,
		ScanLimit: defaultScanLimit,
		Entry:     defaultEntry,
		Regions: []RegionSpec{
			{Name: "header", Kind: RegionHeader, Align: 8,
				Patterns: []string{".multiboot2", ".multiboot2.*"}},
			{Name: "text", Kind: RegionCode, Base: defaultCodeBase, Align: pageSize,
				Keep:     []string{".text._start"},
				Patterns: []string{".text", ".text.*"}},
			{Name: "rodata", Kind: RegionROData, Align: pageSize,
				Patterns: []string{".rodata", ".rodata.*"}},
			{Name: "eh_frame_hdr", Kind: RegionUnwindHeader, Align: 8,
				Patterns: []string{".eh_frame_hdr"}},
			{Name: "eh_frame", Kind: RegionUnwindData, Align: 8,
				Patterns: []string{".eh_frame", ".eh_frame.*"}},
			{Name: "tdata", Kind: RegionTLSData, Align: 8,
				Patterns: []string{".tdata", ".tdata.*"}},
			{Name: "tbss", Kind: RegionTLSBSS, Align: 8,
				Patterns: []string{".tbss", ".tbss.*"}},
			{Name: "data", Kind: RegionData, Align: pageSize,
				Patterns: []string{".data", ".data.*", ".got", ".got.*"}},
			{Name: "bss", Kind: RegionBSS, Align: pageSize,
				Patterns: []string{".bss", ".bss.*", "COMMON"}},
		},
	}
}

// planFile is the on-disk plan shape. Addresses are strings so plans can
// write them the way linker scripts do ("1M", "0x200000", "32K").
type planFile struct {
	LoadBase  string           `toml:"load-base" yaml:"load-base"`
	ScanLimit string           `toml:"scan-limit" yaml:"scan-limit"`
	Entry     string           `toml:"entry" yaml:"entry"`
	Regions   []planFileRegion `toml:"region" yaml:"regions"`
}

type planFileRegion struct {
	Name     string   `toml:"name" yaml:"name"`
	Kind     string   `toml:"kind" yaml:"kind"`
	Base     string   `toml:"base" yaml:"base"`
	Align    string   `toml:"align" yaml:"align"`
	Keep     []string `toml:"keep" yaml:"keep"`
	Patterns []string `toml:"patterns" yaml:"patterns"`
}

// LoadPlan reads a plan from a TOML or YAML file, chosen by extension.
func LoadPlan(path string) (LayoutPlan, error) {
	var plan LayoutPlan

	raw, err := os.ReadFile(path)
	if err != nil {
		return plan, errors.Wrap(err, "read plan")
	}

	var pf planFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(raw, &pf); err != nil {
			return plan, errors.Wrapf(err, "parse plan %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &pf); err != nil {
			return plan, errors.Wrapf(err, "parse plan %s", path)
		}
	default:
		return plan, errors.Errorf("plan %s: unsupported format (want .toml, .yaml or .yml)", path)
	}

	return pf.toPlan()
}

func (pf *planFile) toPlan() (LayoutPlan, error) {
	var plan LayoutPlan
	var err error

	if plan.LoadBase, err = engine.ParseAddr(pf.LoadBase); err != nil {
		return plan, errors.Wrap(err, "load-base")
	}
	if pf.ScanLimit == "" {
		plan.ScanLimit = defaultScanLimit
	} else if plan.ScanLimit, err = engine.ParseAddr(pf.ScanLimit); err != nil {
		return plan, errors.Wrap(err, "scan-limit")
	}
	if pf.Entry == "" {
		return plan, errors.New("plan: missing entry symbol")
	}
	plan.Entry = pf.Entry

	for _, r := range pf.Regions {
		spec := RegionSpec{Name: r.Name, Keep: r.Keep, Patterns: r.Patterns}
		if spec.Name == "" {
			return plan, errors.New("plan: region with no name")
		}
		if spec.Kind, err = ParseRegionKind(r.Kind); err != nil {
			return plan, errors.Wrapf(err, "region %s", r.Name)
		}
		if r.Base != "" {
			if spec.Base, err = engine.ParseAddr(r.Base); err != nil {
				return plan, errors.Wrapf(err, "region %s: base", r.Name)
			}
		}
		if r.Align == "" {
			spec.Align = 1
		} else if spec.Align, err = engine.ParseAddr(r.Align); err != nil {
			return plan, errors.Wrapf(err, "region %s: align", r.Name)
		}
		if !engine.IsPowerOfTwo(spec.Align) {
			return plan, errors.Errorf("region %s: alignment 0x%x is not a power of two", r.Name, spec.Align)
		}
		plan.Regions = append(plan.Regions, spec)
	}

	return plan, nil
}
