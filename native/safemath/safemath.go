// Package safemath provides overflow-checked arithmetic over the ledger's
// native uint64 value units. Every amount or counter computation in the escrow
// module routes through these helpers so that overflow surfaces as an error
// instead of wrapping silently.
package safemath

import (
	"errors"
	"math/bits"
)

// ErrOverflow marks an addition or multiplication whose result does not fit
// in 64 bits.
var ErrOverflow = errors.New("safemath: integer overflow")

// ErrUnderflow marks a subtraction that would go below zero.
var ErrUnderflow = errors.New("safemath: integer underflow")

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// MulDiv returns floor(a*b/d) using a 128-bit intermediate, so a*b may exceed
// 64 bits as long as the quotient fits. d must be non-zero and the quotient
// must fit in 64 bits.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, errors.New("safemath: division by zero")
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, d)
	return quo, nil
}
