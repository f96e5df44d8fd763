// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package nvm stores CRC protected data in non-volatile memory.
//
// Every write of n bytes at addr occupies n+2 bytes on the device: the data
// followed by its CRC-16/CCITT-FALSE, low byte first. Reads verify the CRC
// and erasing a region only invalidates its CRC.
package nvm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Thermoquad/kiln/pkg/crc"
	"github.com/fxamacker/cbor/v2"
)

// CRCSize is the number of bytes stored after each protected region
const CRCSize = 2

// Defaults for Config
const (
	DefaultChunkSize = 506
	DefaultMaxSize   = 4096
)

var (
	ErrInvalidSize = errors.New("nvm: invalid size")
	ErrOutOfRange  = errors.New("nvm: address out of range")
	ErrCRCMismatch = errors.New("nvm: crc mismatch")
	ErrDevice      = errors.New("nvm: device error")
)

// Config adjusts a Store. Zero fields take the defaults.
type Config struct {
	// ChunkSize limits a single device transfer
	ChunkSize int
	// MaxSize limits the data of one Write or Read
	MaxSize int
	// Checksum replaces the CRC-16 calculator. Only the low 16 bits are
	// stored.
	Checksum crc.Calculator
}

// Store reads and writes CRC protected regions of a Device
type Store struct {
	dev      Device
	chunk    int
	maxSize  int
	checksum crc.Calculator
}

// NewStore wraps dev
func NewStore(dev Device, cfg Config) *Store {
	s := &Store{
		dev:      dev,
		chunk:    cfg.ChunkSize,
		maxSize:  cfg.MaxSize,
		checksum: cfg.Checksum,
	}
	if s.chunk <= 0 {
		s.chunk = DefaultChunkSize
	}
	if s.maxSize <= 0 {
		s.maxSize = DefaultMaxSize
	}
	if s.checksum == nil {
		s.checksum = crc.MustTable(crc.CCITT16)
	}
	return s
}

// Device returns the underlying device
func (s *Store) Device() Device {
	return s.dev
}

func (s *Store) check(addr int64, n int) error {
	if n <= 0 || n > s.maxSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrInvalidSize, n, s.maxSize)
	}
	if addr < 0 || addr+int64(n)+CRCSize > s.dev.Size() {
		return fmt.Errorf("%w: %d bytes at 0x%X, device holds %d", ErrOutOfRange, n, addr, s.dev.Size())
	}
	return nil
}

func (s *Store) sum(data []byte) [CRCSize]byte {
	var b [CRCSize]byte
	binary.LittleEndian.PutUint16(b[:], uint16(s.checksum.Checksum(data)))
	return b
}

// Write stores data at addr followed by its CRC. The last chunk carries
// the CRC in the same transfer.
func (s *Store) Write(addr int64, data []byte) error {
	if err := s.check(addr, len(data)); err != nil {
		return err
	}
	sum := s.sum(data)

	buf := make([]byte, 0, s.chunk+CRCSize)
	for off := 0; off < len(data); {
		n := min(s.chunk, len(data)-off)
		buf = append(buf[:0], data[off:off+n]...)
		if off+n == len(data) {
			buf = append(buf, sum[:]...)
		}
		if _, err := s.dev.WriteAt(buf, addr+int64(off)); err != nil {
			return fmt.Errorf("%w: write at 0x%X: %v", ErrDevice, addr+int64(off), err)
		}
		off += n
	}
	return nil
}

// Read fills dst from addr and verifies the CRC. On a mismatch dst is left
// untouched.
func (s *Store) Read(addr int64, dst []byte) error {
	if err := s.check(addr, len(dst)); err != nil {
		return err
	}

	buf := make([]byte, len(dst)+CRCSize)
	for off := 0; off < len(buf); {
		n := min(s.chunk, len(buf)-off)
		if _, err := s.dev.ReadAt(buf[off:off+n], addr+int64(off)); err != nil {
			return fmt.Errorf("%w: read at 0x%X: %v", ErrDevice, addr+int64(off), err)
		}
		off += n
	}

	data, stored := buf[:len(dst)], buf[len(dst):]
	if sum := s.sum(data); sum[0] != stored[0] || sum[1] != stored[1] {
		return fmt.Errorf("%w: at 0x%X stored 0x%04X computed 0x%04X", ErrCRCMismatch, addr,
			binary.LittleEndian.Uint16(stored), binary.LittleEndian.Uint16(sum[:]))
	}
	copy(dst, data)
	return nil
}

// Erase invalidates the n byte region at addr by overwriting its CRC
func (s *Store) Erase(addr int64, n int) error {
	if err := s.check(addr, n); err != nil {
		return err
	}
	at := addr + int64(n)
	if _, err := s.dev.WriteAt([]byte{0xFF, 0xFF}, at); err != nil {
		return fmt.Errorf("%w: erase at 0x%X: %v", ErrDevice, at, err)
	}
	return nil
}

// Block describes Count regions of Size bytes laid out Stride bytes apart
// in Data. On the device the regions are packed, each followed by its CRC.
type Block struct {
	Data   []byte
	Stride int
	Size   int
	Count  int
}

func (b *Block) validate() error {
	if b.Size <= 0 || b.Count <= 0 || b.Stride < b.Size {
		return fmt.Errorf("%w: block of %d x %d bytes, stride %d", ErrInvalidSize, b.Count, b.Size, b.Stride)
	}
	if need := (b.Count-1)*b.Stride + b.Size; len(b.Data) < need {
		return fmt.Errorf("%w: block needs %d bytes of data, have %d", ErrInvalidSize, need, len(b.Data))
	}
	return nil
}

func (b *Block) region(i int) []byte {
	start := i * b.Stride
	return b.Data[start : start+b.Size]
}

// DeviceSize returns the bytes the block occupies on the device
func (b *Block) DeviceSize() int64 {
	return int64(b.Count) * int64(b.Size+CRCSize)
}

// WriteBlock writes every region of b starting at addr. It stops at the
// first failure.
func (s *Store) WriteBlock(addr int64, b Block) error {
	if err := b.validate(); err != nil {
		return err
	}
	for i := 0; i < b.Count; i++ {
		if err := s.Write(addr, b.region(i)); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		addr += int64(b.Size + CRCSize)
	}
	return nil
}

// ReadBlock reads every region of b starting at addr. It stops at the
// first failure.
func (s *Store) ReadBlock(addr int64, b Block) error {
	if err := b.validate(); err != nil {
		return err
	}
	for i := 0; i < b.Count; i++ {
		if err := s.Read(addr, b.region(i)); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		addr += int64(b.Size + CRCSize)
	}
	return nil
}

// EraseBlock invalidates every region of b starting at addr. Data is not
// used.
func (s *Store) EraseBlock(addr int64, b Block) error {
	if b.Size <= 0 || b.Count <= 0 {
		return fmt.Errorf("%w: block of %d x %d bytes", ErrInvalidSize, b.Count, b.Size)
	}
	for i := 0; i < b.Count; i++ {
		if err := s.Erase(addr, b.Size); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		addr += int64(b.Size + CRCSize)
	}
	return nil
}

// recordHeader holds the little-endian payload length
const recordHeader = 2

// WriteRecord stores v as CBOR behind a length header. Header and payload
// share one CRC.
func (s *Store) WriteRecord(addr int64, v any) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("nvm: encode record: %w", err)
	}
	if len(payload) > 0xFFFF {
		return fmt.Errorf("%w: record of %d bytes", ErrInvalidSize, len(payload))
	}
	buf := make([]byte, recordHeader, recordHeader+len(payload))
	binary.LittleEndian.PutUint16(buf, uint16(len(payload)))
	return s.Write(addr, append(buf, payload...))
}

// recordSize returns the header plus payload length of the record at addr
func (s *Store) recordSize(addr int64) (int, error) {
	var hdr [recordHeader]byte
	if addr < 0 || addr+recordHeader > s.dev.Size() {
		return 0, fmt.Errorf("%w: record at 0x%X", ErrOutOfRange, addr)
	}
	if _, err := s.dev.ReadAt(hdr[:], addr); err != nil {
		return 0, fmt.Errorf("%w: read header at 0x%X: %v", ErrDevice, addr, err)
	}

	// The header is only trusted once the CRC over it checks out. Blank
	// memory and lengths that cannot have been written mean no record.
	n := recordHeader + int(binary.LittleEndian.Uint16(hdr[:]))
	switch {
	case n == recordHeader, n == recordHeader+0xFFFF:
		return 0, fmt.Errorf("%w: no record at 0x%X", ErrCRCMismatch, addr)
	case n > s.maxSize, addr+int64(n)+CRCSize > s.dev.Size():
		return 0, fmt.Errorf("%w: corrupt record header at 0x%X", ErrCRCMismatch, addr)
	}
	return n, nil
}

// ReadRecord decodes the record at addr into v
func (s *Store) ReadRecord(addr int64, v any) error {
	n, err := s.recordSize(addr)
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	if err := s.Read(addr, buf); err != nil {
		return err
	}
	if err := cbor.Unmarshal(buf[recordHeader:], v); err != nil {
		return fmt.Errorf("nvm: decode record: %w", err)
	}
	return nil
}

// EraseRecord invalidates the record at addr. Erased memory reports
// ErrCRCMismatch.
func (s *Store) EraseRecord(addr int64) error {
	n, err := s.recordSize(addr)
	if err != nil {
		return err
	}
	return s.Erase(addr, n)
}
