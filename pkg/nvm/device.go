// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nvm

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// Device is the raw memory behind a Store. Erased memory reads as 0xFF.
type Device interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
}

// MemDevice is a RAM backed device
type MemDevice struct {
	mu   sync.Mutex
	data []byte
}

// NewMemDevice returns an erased device of size bytes
func NewMemDevice(size int) *MemDevice {
	return &MemDevice{data: bytes.Repeat([]byte{0xFF}, size)}
}

// Size implements Device
func (m *MemDevice) Size() int64 {
	return int64(len(m.data))
}

// ReadAt implements io.ReaderAt
func (m *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes past the end are refused whole.
func (m *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("write of %d bytes at %d beyond device end %d", len(p), off, len(m.data))
	}
	return copy(m.data[off:], p), nil
}

// Bytes returns the device contents
func (m *MemDevice) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.data)
}

// FileDevice keeps the memory image in a regular file of fixed size
type FileDevice struct {
	f    *os.File
	size int64
}

// OpenFileDevice opens or creates the image at path. A new or short file
// is extended to size with erased bytes.
func OpenFileDevice(path string, size int64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat image %s: %w", path, err)
	}
	if have := info.Size(); have < size {
		fill := bytes.Repeat([]byte{0xFF}, int(size-have))
		if _, err := f.WriteAt(fill, have); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to extend image %s: %w", path, err)
		}
	}
	return &FileDevice{f: f, size: size}, nil
}

// Size implements Device
func (d *FileDevice) Size() int64 {
	return d.size
}

// ReadAt implements io.ReaderAt
func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt
func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > d.size {
		return 0, fmt.Errorf("write of %d bytes at %d beyond image end %d", len(p), off, d.size)
	}
	return d.f.WriteAt(p, off)
}

// Sync flushes the image to stable storage
func (d *FileDevice) Sync() error {
	return d.f.Sync()
}

// Close releases the file
func (d *FileDevice) Close() error {
	return d.f.Close()
}
