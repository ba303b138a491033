// multiboot.go - Multiboot2 header construction and boot-scan discovery
package main

import "encoding/binary"

// Multiboot2 constants from the boot protocol. The loader scans the first
// mb2SearchLimit bytes of the file for the magic at 8-byte alignment; a
// header anywhere past that is invisible and the image silently fails to
// boot.
const (
	mb2Magic       = 0xe85250d6
	mb2ArchI386    = 0 // 32-bit protected mode entry state, also used by 64-bit kernels
	mb2SearchLimit = 0x8000
	mb2HeaderAlign = 8
)

// Multiboot2Header builds the minimal valid header: magic, architecture,
// total length, checksum, and the terminating end tag. The checksum is
// chosen so the first four fields sum to zero modulo 2^32.
func Multiboot2Header() []byte {
	const length = 24 // 16-byte fixed part + 8-byte end tag

	b := make([]byte, length)
	le := binary.LittleEndian
	le.PutUint32(b[0:], mb2Magic)
	le.PutUint32(b[4:], mb2ArchI386)
	le.PutUint32(b[8:], length)
	le.PutUint32(b[12:], uint32(1<<32-(mb2Magic+mb2ArchI386+length)))

	// End tag: type 0, flags 0, size 8.
	le.PutUint16(b[16:], 0)
	le.PutUint16(b[18:], 0)
	le.PutUint32(b[20:], 8)
	return b
}

// FindMultiboot2 scans the image prefix the way a boot loader does:
// 8-byte aligned magic with a valid checksum, within the first limit
// bytes. Returns the header's file offset.
func FindMultiboot2(image []byte, limit int) (int, bool) {
	if limit > len(image) {
		limit = len(image)
	}
	le := binary.LittleEndian
	for off := 0; off+16 <= limit; off += mb2HeaderAlign {
		if le.Uint32(image[off:]) != mb2Magic {
			continue
		}
		sum := le.Uint32(image[off:]) + le.Uint32(image[off+4:]) +
			le.Uint32(image[off+8:]) + le.Uint32(image[off+12:])
		if sum == 0 {
			return off, true
		}
	}
	return 0, false
}
