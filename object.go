// object.go - Compiled input objects: sections, symbols, and the ELF loader
package main

import (
	"debug/elf"
	"fmt"

	"github.com/pkg/errors"
)

// InputSection is one named span of a compiled object, waiting to be
// assigned to a Region.
type InputSection struct {
	Name   string
	Size   uint64
	Align  uint64
	Data   []byte // nil when the section carries no file bytes
	NoBits bool   // reserves address space only (.bss style)

	// Referenced mirrors what the toolchain knows about reachability.
	// Unreferenced sections are discarded unless a Keep rule pins them,
	// which is how the entry stub survives despite having no callers.
	Referenced bool
}

// Symbol is a named offset into one of an object's sections.
type Symbol struct {
	Name    string
	Section string
	Value   uint64 // offset from the section start
}

// ObjectFile is one compiled unit. Section order is the order the
// compiler emitted them, which the planner preserves inside each Region.
type ObjectFile struct {
	Name     string
	Sections []InputSection
	Symbols  []Symbol
}

// Section returns the named section, or nil.
func (o *ObjectFile) Section(name string) *InputSection {
	for i := range o.Sections {
		if o.Sections[i].Name == name {
			return &o.Sections[i]
		}
	}
	return nil
}

// LoadObject reads an ELF relocatable object into the planner's model.
// Only allocatable sections are kept; the loader has no reachability
// information, so every loaded section is marked referenced and section
// discard only applies to objects whose producer cleared the flag.
func LoadObject(path string) (*ObjectFile, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open object %s", path)
	}
	defer f.Close()

	if f.Type != elf.ET_REL {
		return nil, errors.Errorf("object %s: not a relocatable object (type %v)", path, f.Type)
	}
	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_X86_64 {
		return nil, errors.Errorf("object %s: not an x86-64 ELF64 object", path)
	}

	obj := &ObjectFile{Name: path}
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		sec := InputSection{
			Name:       s.Name,
			Size:       s.Size,
			Align:      s.Addralign,
			NoBits:     s.Type == elf.SHT_NOBITS,
			Referenced: true,
		}
		if sec.Align == 0 {
			sec.Align = 1
		}
		if !sec.NoBits {
			data, err := s.Data()
			if err != nil {
				return nil, errors.Wrapf(err, "object %s: read section %s", path, s.Name)
			}
			sec.Data = data
		}
		obj.Sections = append(obj.Sections, sec)
	}

	syms, err := f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, errors.Wrapf(err, "object %s: read symbols", path)
	}
	for _, sym := range syms {
		if sym.Name == "" || sym.Section == elf.SHN_UNDEF || int(sym.Section) >= len(f.Sections) {
			continue
		}
		secName := f.Sections[sym.Section].Name
		if obj.Section(secName) == nil {
			continue
		}
		obj.Symbols = append(obj.Symbols, Symbol{
			Name:    sym.Name,
			Section: secName,
			Value:   sym.Value,
		})
	}

	return obj, nil
}

// LoadObjects loads each path in order. Order matters: it is the order
// sections are laid out inside each Region.
func LoadObjects(paths []string) ([]*ObjectFile, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input objects")
	}
	objs := make([]*ObjectFile, 0, len(paths))
	for _, p := range paths {
		o, err := LoadObject(p)
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	return objs, nil
}
