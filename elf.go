// elf.go - ELF64 output constants
package main

const (
	// ELF structure sizes
	elfHeaderSize  = 64 // ELF64 header size
	progHeaderSize = 56 // Program header entry size (ELF64)

	pageSize = 0x1000 // 4KB page alignment

	// e_type / e_machine
	elfTypeExec    = 2  // ET_EXEC: the boot loader wants a fixed-address executable
	elfMachineX64  = 62 // EM_X86_64
	elfVersionCurr = 1

	// Program header types
	ptLoad = 1
	ptTLS  = 7

	// Program header flags
	pfX = 1
	pfW = 2
	pfR = 4
)

// phdrFlags maps a Region kind to the segment permissions the loader
// applies when mapping it.
func phdrFlags(k RegionKind) uint32 {
	flags := uint32(pfR)
	if k.Writable() {
		flags |= pfW
	}
	if k.Executable() {
		flags |= pfX
	}
	return flags
}
