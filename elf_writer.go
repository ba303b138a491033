// elf_writer.go - Serializes a planned Image into an ELF64 boot executable
package main

import (
	"fmt"
	"os"
)

// WriteImage turns a planned Image into the bytes of an ELF64 ET_EXEC
// file the boot loader can map: one PT_LOAD per Region in plan order,
// one PT_TLS covering the thread-local block, and no file bytes at all
// for zero-init Regions. The entry point is the resolved entry symbol.
//
// File offsets are kept congruent with virtual addresses modulo the page
// size so loaders that map the file directly keep the planned alignment.
func WriteImage(img *Image) ([]byte, error) {
	if len(img.Regions) == 0 {
		return nil, badPlan("cannot serialize an empty image")
	}

	tdata := img.regionOfKind(RegionTLSData)
	tbss := img.regionOfKind(RegionTLSBSS)
	hasTLS := tdata != nil || tbss != nil

	phnum := len(img.Regions)
	if hasTLS {
		phnum++
	}
	headersSize := uint64(elfHeaderSize + phnum*progHeaderSize)

	fileOffs := imageFileOffsets(img, headersSize)

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "=== image layout (load base 0x%x) ===\n", img.LoadBase)
		for i := range img.Regions {
			r := &img.Regions[i]
			fmt.Fprintf(os.Stderr, "  %-14s base=0x%x size=0x%x fileoff=0x%x\n",
				r.Name, r.Base, r.Size(), fileOffs[i])
		}
	}

	w := NewSafeBuffer("image")

	// ELF header
	w.PutU8(0x7f)
	w.PutU8('E')
	w.PutU8('L')
	w.PutU8('F')
	w.PutU8(2) // 64-bit
	w.PutU8(1) // little endian
	w.PutU8(elfVersionCurr)
	w.PutU8(0) // System V ABI: the boot loader, not an OS, consumes this
	w.PadTo(16)
	w.PutU16(elfTypeExec)
	w.PutU16(elfMachineX64)
	w.PutU32(elfVersionCurr)
	w.PutU64(img.EntryAddr)
	w.PutU64(elfHeaderSize) // program headers follow immediately
	w.PutU64(0)             // no section header table
	w.PutU32(0)
	w.PutU16(elfHeaderSize)
	w.PutU16(progHeaderSize)
	w.PutU16(uint16(phnum))
	w.PutU16(0)
	w.PutU16(0)
	w.PutU16(0)

	// One PT_LOAD per Region, in plan order. Zero-init Regions load with
	// filesz 0: the loader reserves and clears the extent itself.
	for i := range img.Regions {
		r := &img.Regions[i]
		w.PutU32(ptLoad)
		w.PutU32(phdrFlags(r.Kind))
		w.PutU64(fileOffs[i])
		w.PutU64(r.Base)
		w.PutU64(r.Base)
		w.PutU64(r.FileBytes())
		w.PutU64(r.Size())
		w.PutU64(pageSize)
	}

	if hasTLS {
		first, last := tdata, tbss
		if first == nil {
			first = tbss
		}
		if last == nil {
			last = tdata
		}
		align := first.Align
		if last.Align > align {
			align = last.Align
		}
		w.PutU32(ptTLS)
		w.PutU32(pfR)
		w.PutU64(fileOffs[regionIndex(img, first)])
		w.PutU64(first.Base)
		w.PutU64(first.Base)
		w.PutU64(first.FileBytes())
		w.PutU64(last.End - first.Base)
		w.PutU64(align)
	}

	// Region contents, padded out to the planned offsets.
	for i := range img.Regions {
		r := &img.Regions[i]
		if r.Kind.Zeroed() {
			continue
		}
		w.PadTo(int(fileOffs[i]))
		for si := range r.Sections {
			s := &r.Sections[si]
			w.PadTo(int(fileOffs[i] + (s.Addr - r.Base)))
			if !s.NoBits {
				w.Write(s.Data)
			}
		}
		w.PadTo(int(fileOffs[i] + r.Size()))
	}
	w.Commit()

	out := w.Bytes()

	// A multiboot2 header past the scan window is a silent boot failure,
	// so re-verify discoverability on the final bytes. An image with no
	// multiboot2 header at all (EFI-only) is left alone.
	if _, ok := FindMultiboot2(out, int(img.ScanLimit)); !ok {
		if off, found := FindMultiboot2(out, len(out)); found {
			name := "header"
			if hdr := img.regionOfKind(RegionHeader); hdr != nil {
				name = hdr.Name
			}
			return nil, headerOutOfRange(name, uint64(off), img.ScanLimit)
		}
	}

	return out, nil
}

// imageFileOffsets assigns each Region its file offset: monotonic,
// starting past the ELF and program headers, congruent with the Region
// base modulo the page size. Zero-init Regions take no file space.
func imageFileOffsets(img *Image, headersSize uint64) []uint64 {
	offs := make([]uint64, len(img.Regions))
	cur := headersSize
	for i := range img.Regions {
		r := &img.Regions[i]
		off := cur - cur%pageSize + r.Base%pageSize
		if off < cur {
			off += pageSize
		}
		offs[i] = off
		if !r.Kind.Zeroed() {
			cur = off + r.Size()
		}
	}
	return offs
}

// WriteImageFile serializes the image and writes it to path, executable.
func WriteImageFile(img *Image, path string) error {
	out, err := WriteImage(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o755)
}
