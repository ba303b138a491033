package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// SafeBuffer wraps bytes.Buffer with explicit lifecycle management. The
// image serializer commits the buffer once the last Region is written;
// any write after that is a bug in the writer, and panicking beats
// silently corrupting a boot image.
type SafeBuffer struct {
	buf       *bytes.Buffer
	committed bool
	name      string // for debugging
}

// NewSafeBuffer creates a new SafeBuffer with a name for debugging
func NewSafeBuffer(name string) *SafeBuffer {
	return &SafeBuffer{
		buf:  &bytes.Buffer{},
		name: name,
	}
}

// Write appends bytes to the buffer. Panics if buffer is committed.
func (sb *SafeBuffer) Write(p []byte) (n int, err error) {
	if sb.committed {
		panic(fmt.Sprintf("SafeBuffer(%s): Cannot write to committed buffer", sb.name))
	}
	return sb.buf.Write(p)
}

// PutU8 writes one byte.
func (sb *SafeBuffer) PutU8(v byte) {
	sb.Write([]byte{v})
}

// PutU16 writes v little-endian.
func (sb *SafeBuffer) PutU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	sb.Write(b[:])
}

// PutU32 writes v little-endian.
func (sb *SafeBuffer) PutU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	sb.Write(b[:])
}

// PutU64 writes v little-endian.
func (sb *SafeBuffer) PutU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	sb.Write(b[:])
}

// PadTo writes zero bytes until the buffer length reaches off.
func (sb *SafeBuffer) PadTo(off int) {
	for sb.buf.Len() < off {
		sb.PutU8(0)
	}
}

// Bytes returns the buffer contents. Safe to call after commit.
func (sb *SafeBuffer) Bytes() []byte {
	return sb.buf.Bytes()
}

// Len returns the buffer length
func (sb *SafeBuffer) Len() int {
	return sb.buf.Len()
}

// Commit marks the buffer as complete. After this, no more writes allowed.
func (sb *SafeBuffer) Commit() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "SafeBuffer(%s): Committed with %d bytes\n", sb.name, sb.buf.Len())
	}
	sb.committed = true
}

// IsCommitted returns true if the buffer has been committed
func (sb *SafeBuffer) IsCommitted() bool {
	return sb.committed
}
