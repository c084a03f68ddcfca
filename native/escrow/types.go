package escrow

import (
	"fmt"
	"strings"

	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
)

// Status represents the lifecycle states supported by the escrow engine.
type Status uint8

const (
	// StatusPending marks a created escrow awaiting the buyer's deposit.
	StatusPending Status = iota
	// StatusFunded marks an escrow whose amount plus fee sits in the vault.
	StatusFunded
	// StatusDelivered marks an escrow whose milestones are all complete.
	StatusDelivered
	// StatusCompleted marks a terminal escrow paid out to the seller.
	StatusCompleted
	// StatusDisputed marks an escrow under arbitration.
	StatusDisputed
	// StatusRefunded marks a terminal escrow resolved in the buyer's favour.
	StatusRefunded
	// StatusArbitrated marks a dispute resolved for the seller; funds move on
	// the subsequent release call.
	StatusArbitrated
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusArbitrated
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFunded:
		return "funded"
	case StatusDelivered:
		return "delivered"
	case StatusCompleted:
		return "completed"
	case StatusDisputed:
		return "disputed"
	case StatusRefunded:
		return "refunded"
	case StatusArbitrated:
		return "arbitrated"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether the status is a permanent archival state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRefunded
}

// MaxDisputeReasonLen bounds the free-text reason stored on a dispute.
const MaxDisputeReasonLen = 256

// Escrow captures a single buyer/seller/arbitrator agreement. Amount and fee
// are fixed at creation; the fee basis points are frozen alongside them so a
// later parameter change can never alter an already funded escrow's
// economics. Heights are block numbers from the ledger clock; a zero value in
// FundedAt, DeliveredAt or DisputedAt means the corresponding transition has
// not happened.
type Escrow struct {
	ID                  uint64
	Buyer               types.Address
	Seller              types.Address
	Arbitrator          types.Address
	Amount              uint64
	Fee                 uint64
	TreasuryBps         uint32
	ArbitratorBps       uint32
	State               Status
	CreatedAt           uint64
	FundedAt            uint64
	DeliveredAt         uint64
	DisputedAt          uint64
	TimeoutAt           uint64
	DisputeReason       string
	MilestonesCompleted uint32
	TotalMilestones     uint32
	// FundsDisbursed flips exactly once when the vault pays out for this
	// escrow, so neither the post-resolution refund path nor the owner
	// force-refund can double-pay.
	FundsDisbursed bool
}

// Clone returns a copy of the escrow so callers can safely mutate it without
// affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// Sanitize validates the stored representation of an escrow before it is
// persisted or emitted.
func Sanitize(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil escrow", ErrValidation)
	}
	clone := e.Clone()
	if clone.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !clone.State.Valid() {
		return nil, fmt.Errorf("%w: invalid status %d", ErrValidation, clone.State)
	}
	if clone.TotalMilestones == 0 {
		return nil, fmt.Errorf("%w: total milestones must be positive", ErrValidation)
	}
	if clone.MilestonesCompleted > clone.TotalMilestones {
		return nil, fmt.Errorf("%w: milestone counter exceeds total", ErrValidation)
	}
	if clone.TreasuryBps > 10_000 || clone.ArbitratorBps > 10_000 {
		return nil, fmt.Errorf("%w: fee bps out of range", ErrValidation)
	}
	if len(clone.DisputeReason) > MaxDisputeReasonLen {
		return nil, fmt.Errorf("%w: dispute reason too long", ErrValidation)
	}
	clone.DisputeReason = strings.TrimSpace(clone.DisputeReason)
	return clone, nil
}

// RateLimitRecord tracks guarded actions for one principal within the current
// window. LastActionHeight anchors the window; the record resets once the
// window has elapsed.
type RateLimitRecord struct {
	LastActionHeight uint64
	ActionCount      uint32
}

// ArbitratorReputation carries the counter-only adjudication record for an
// arbitrator. Stake forfeiture is out of scope; StakeMirror snapshots the
// collateral at the most recent resolution.
type ArbitratorReputation struct {
	TotalCases            uint64
	SuccessfulResolutions uint64
	StakeMirror           uint64
}

// UserStats aggregates per-principal lifecycle counters. All fields are
// monotonically incremented.
type UserStats struct {
	EscrowsCreated   uint64
	EscrowsCompleted uint64
	Disputes         uint64
}

// Params holds the protocol constants the engine evaluates transitions
// against. All windows and timeouts are block counts.
type Params struct {
	MaxMilestones      uint32
	MaxOpenEscrows     uint32
	DeliveryTimeout    uint64
	DisputeTimeout     uint64
	ChallengeWindow    uint64
	RateLimitWindow    uint64
	RateLimitMax       uint32
	MinArbitratorStake uint64
	TreasuryBps        uint32
	ArbitratorBps      uint32
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		MaxMilestones:      10,
		MaxOpenEscrows:     10,
		DeliveryTimeout:    2016,
		DisputeTimeout:     1008,
		ChallengeWindow:    1008,
		RateLimitWindow:    10,
		RateLimitMax:       3,
		MinArbitratorStake: 1_000_000,
		TreasuryBps:        250,
		ArbitratorBps:      100,
	}
}

// Validate ensures the parameter set is internally consistent.
func (p Params) Validate() error {
	if p.MaxMilestones == 0 {
		return fmt.Errorf("%w: max milestones must be positive", ErrValidation)
	}
	if p.MaxOpenEscrows == 0 {
		return fmt.Errorf("%w: max open escrows must be positive", ErrValidation)
	}
	if p.DeliveryTimeout == 0 {
		return fmt.Errorf("%w: delivery timeout must be positive", ErrValidation)
	}
	if p.RateLimitWindow == 0 || p.RateLimitMax == 0 {
		return fmt.Errorf("%w: rate limit window and capacity must be positive", ErrValidation)
	}
	if p.TreasuryBps > 10_000 || p.ArbitratorBps > 10_000 {
		return fmt.Errorf("%w: fee bps out of range", ErrValidation)
	}
	if p.TreasuryBps+p.ArbitratorBps > 10_000 {
		return fmt.Errorf("%w: combined fee bps exceed 10000", ErrValidation)
	}
	return nil
}
