package escrow

import (
	"fmt"

	"github.com/vivianchibueze694-alt/bridegeescrow/native/safemath"
)

const bpsDenominator = 10_000

// FeeSchedule computes the protocol fee and its treasury/arbitrator split in
// fixed-point basis points. A schedule is frozen onto each escrow at creation
// so the split at release always uses the values the buyer funded against.
type FeeSchedule struct {
	TreasuryBps   uint32
	ArbitratorBps uint32
}

// FeeSplit is the outcome of dividing a frozen fee at release time. The
// remainder absorbs compounded floor-division rounding and is always routed
// to the treasury.
type FeeSplit struct {
	Treasury   uint64
	Arbitrator uint64
	Remainder  uint64
}

// TotalFee returns the protocol fee for the supplied amount:
// floor(amount*treasury/10000) + floor(amount*arbitrator/10000).
func (s FeeSchedule) TotalFee(amount uint64) (uint64, error) {
	treasury, err := safemath.MulDiv(amount, uint64(s.TreasuryBps), bpsDenominator)
	if err != nil {
		return 0, fmt.Errorf("%w: treasury fee: %v", ErrArithmetic, err)
	}
	arbitrator, err := safemath.MulDiv(amount, uint64(s.ArbitratorBps), bpsDenominator)
	if err != nil {
		return 0, fmt.Errorf("%w: arbitrator fee: %v", ErrArithmetic, err)
	}
	total, err := safemath.Add(treasury, arbitrator)
	if err != nil {
		return 0, fmt.Errorf("%w: total fee: %v", ErrArithmetic, err)
	}
	return total, nil
}

// Split divides an already-frozen fee into its treasury and arbitrator cuts.
// The remainder is clamped to zero if rounding would make the subtraction
// underflow.
func (s FeeSchedule) Split(fee uint64) (FeeSplit, error) {
	treasury, err := safemath.MulDiv(fee, uint64(s.TreasuryBps), bpsDenominator)
	if err != nil {
		return FeeSplit{}, fmt.Errorf("%w: treasury cut: %v", ErrArithmetic, err)
	}
	arbitrator, err := safemath.MulDiv(fee, uint64(s.ArbitratorBps), bpsDenominator)
	if err != nil {
		return FeeSplit{}, fmt.Errorf("%w: arbitrator cut: %v", ErrArithmetic, err)
	}
	cuts, err := safemath.Add(treasury, arbitrator)
	if err != nil {
		return FeeSplit{}, fmt.Errorf("%w: fee cuts: %v", ErrArithmetic, err)
	}
	remainder, err := safemath.Sub(fee, cuts)
	if err != nil {
		remainder = 0
	}
	return FeeSplit{Treasury: treasury, Arbitrator: arbitrator, Remainder: remainder}, nil
}
