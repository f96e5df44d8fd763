// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package crc computes cyclic redundancy checks described by the usual
// Rocksoft parameter model, from 8 to 32 bits wide.
package crc

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrInvalidParams is returned for a width outside 8..32 or a polynomial
// wider than the register
var ErrInvalidParams = errors.New("crc: invalid parameters")

// Params describes one CRC variant
type Params struct {
	Width  uint
	Poly   uint32
	Init   uint32
	RefIn  bool
	RefOut bool
	XorOut uint32
}

// Predefined variants with their check value over "123456789"
var (
	// CCITT16 is CRC-16/CCITT-FALSE, check 0x29B1. NVM records use it.
	CCITT16 = Params{Width: 16, Poly: 0x1021, Init: 0xFFFF}
	// SMBus8 is CRC-8/SMBUS, check 0xF4
	SMBus8 = Params{Width: 8, Poly: 0x07}
	// IEEE32 is CRC-32/ISO-HDLC as used by Ethernet and zip, check 0xCBF43926
	IEEE32 = Params{Width: 32, Poly: 0x04C11DB7, Init: 0xFFFFFFFF, RefIn: true, RefOut: true, XorOut: 0xFFFFFFFF}
)

// Calculator computes a checksum over a whole buffer
type Calculator interface {
	Checksum(data []byte) uint32
}

func (p Params) validate() error {
	if p.Width < 8 || p.Width > 32 {
		return fmt.Errorf("%w: width %d", ErrInvalidParams, p.Width)
	}
	if p.Poly&^p.mask() != 0 {
		return fmt.Errorf("%w: polynomial 0x%X wider than %d bits", ErrInvalidParams, p.Poly, p.Width)
	}
	return nil
}

func (p Params) mask() uint32 {
	return uint32(uint64(1)<<p.Width - 1)
}

func (p Params) topBit() uint32 {
	return 1 << (p.Width - 1)
}

// reflect reverses the low width bits of v
func reflect(v uint32, width uint) uint32 {
	return bits.Reverse32(v) >> (32 - width)
}

// start returns the initial register value. Reflected variants run the
// register mirrored so every shift goes right.
func (p Params) start() uint32 {
	if p.RefIn {
		return reflect(p.Init, p.Width)
	}
	return p.Init
}

// finish turns the register into the checksum
func (p Params) finish(reg uint32) uint32 {
	if p.RefIn != p.RefOut {
		reg = reflect(reg, p.Width)
	}
	return (reg ^ p.XorOut) & p.mask()
}

// step clocks eight bits into reg whose low or high byte already holds
// the input
func (p Params) step(reg uint32) uint32 {
	if p.RefIn {
		poly := reflect(p.Poly, p.Width)
		for i := 0; i < 8; i++ {
			if reg&1 != 0 {
				reg = reg>>1 ^ poly
			} else {
				reg >>= 1
			}
		}
		return reg
	}

	top := p.topBit()
	for i := 0; i < 8; i++ {
		if reg&top != 0 {
			reg = reg<<1 ^ p.Poly
		} else {
			reg <<= 1
		}
	}
	return reg & p.mask()
}

// Bitwise computes the checksum one bit at a time without a table
type Bitwise struct {
	p Params
}

// NewBitwise returns a table-free calculator for p
func NewBitwise(p Params) (*Bitwise, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Bitwise{p: p}, nil
}

// Checksum implements Calculator
func (b *Bitwise) Checksum(data []byte) uint32 {
	reg := b.p.start()
	for _, c := range data {
		if b.p.RefIn {
			reg = b.p.step(reg ^ uint32(c))
		} else {
			reg = b.p.step(reg ^ uint32(c)<<(b.p.Width-8))
		}
	}
	return b.p.finish(reg)
}

// Table computes the checksum a byte at a time through a 256 entry table
type Table struct {
	p     Params
	table [256]uint32
}

// NewTable builds the lookup table for p
func NewTable(p Params) (*Table, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	t := &Table{p: p}
	for i := range t.table {
		if p.RefIn {
			t.table[i] = p.step(uint32(i))
		} else {
			t.table[i] = p.step(uint32(i) << (p.Width - 8))
		}
	}
	return t, nil
}

// Checksum implements Calculator
func (t *Table) Checksum(data []byte) uint32 {
	p := &t.p
	reg := p.start()
	if p.RefIn {
		for _, c := range data {
			reg = reg>>8 ^ t.table[byte(reg)^c]
		}
	} else {
		shift := p.Width - 8
		for _, c := range data {
			reg = (reg<<8 ^ t.table[byte(reg>>shift)^c]) & p.mask()
		}
	}
	return p.finish(reg)
}

// MustTable is NewTable for parameter sets known to be valid
func MustTable(p Params) *Table {
	t, err := NewTable(p)
	if err != nil {
		panic(err)
	}
	return t
}

var ccitt16 = MustTable(CCITT16)

// Checksum16 returns the CRC-16/CCITT-FALSE of data
func Checksum16(data []byte) uint16 {
	return uint16(ccitt16.Checksum(data))
}
