package escrow

import (
	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
	"github.com/vivianchibueze694-alt/bridegeescrow/native/safemath"
)

// ContractInfo summarises the module's administrative state.
type ContractInfo struct {
	Owner     types.Address
	Treasury  types.Address
	Paused    bool
	MinAmount uint64
	MaxAmount uint64
	Params    Params
}

// GetEscrow returns a copy of the escrow with the supplied id.
func (e *Engine) GetEscrow(id uint64) (*Escrow, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, false
	}
	return esc.Clone(), true
}

// StateOf returns the lifecycle state of the escrow.
func (e *Engine) StateOf(id uint64) (Status, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return 0, err
	}
	return esc.State, nil
}

// MilestoneProgress returns the completed and total milestone counts.
func (e *Engine) MilestoneProgress(id uint64) (completed, total uint32, err error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return 0, 0, err
	}
	return esc.MilestonesCompleted, esc.TotalMilestones, nil
}

// UserStatsOf returns the lifecycle counters for a principal. Missing
// principals report zeroes.
func (e *Engine) UserStatsOf(addr types.Address) UserStats {
	if e == nil || e.state == nil {
		return UserStats{}
	}
	stats, _ := e.state.UserStatsGet(addr)
	return stats
}

// ArbitratorReputationOf returns the adjudication record for a principal.
func (e *Engine) ArbitratorReputationOf(addr types.Address) ArbitratorReputation {
	if e == nil || e.state == nil {
		return ArbitratorReputation{}
	}
	rep, _ := e.state.ReputationGet(addr)
	return rep
}

// ArbitratorStakeOf returns the current collateral held for a principal.
func (e *Engine) ArbitratorStakeOf(addr types.Address) uint64 {
	if e == nil || e.state == nil {
		return 0
	}
	return e.state.StakeGet(addr)
}

// IsBlacklisted reports whether the principal is flagged.
func (e *Engine) IsBlacklisted(addr types.Address) bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.Blacklisted(addr)
}

// UserEscrowCountOf returns the number of escrows the principal currently has
// open as buyer.
func (e *Engine) UserEscrowCountOf(addr types.Address) uint32 {
	if e == nil || e.state == nil {
		return 0
	}
	return e.state.OpenEscrowCount(addr)
}

// RateLimitInfoOf returns the principal's current window record.
func (e *Engine) RateLimitInfoOf(addr types.Address) RateLimitRecord {
	if e == nil || e.state == nil {
		return RateLimitRecord{}
	}
	record, _ := e.state.RateLimitGet(addr)
	return record
}

// Info returns the administrative configuration snapshot.
func (e *Engine) Info() ContractInfo {
	if e == nil || e.state == nil {
		return ContractInfo{}
	}
	min, max := e.state.EscrowLimits()
	return ContractInfo{
		Owner:     e.owner,
		Treasury:  e.state.TreasuryAddress(),
		Paused:    e.state.Paused(),
		MinAmount: min,
		MaxAmount: max,
		Params:    e.params,
	}
}

// CanRelease reports whether a release by caller would pass the state and
// actor preconditions at the current height.
func (e *Engine) CanRelease(id uint64, caller types.Address) bool {
	esc, err := e.loadEscrow(id)
	if err != nil || esc.FundsDisbursed {
		return false
	}
	switch esc.State {
	case StatusDelivered:
		return caller == esc.Buyer
	case StatusArbitrated:
		return caller == esc.Buyer || caller == esc.Arbitrator
	default:
		return false
	}
}

// CanDispute reports whether a dispute by caller would pass the state, actor
// and window preconditions at the current height.
func (e *Engine) CanDispute(id uint64, caller types.Address) bool {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return false
	}
	if esc.State != StatusFunded && esc.State != StatusDelivered {
		return false
	}
	if caller != esc.Buyer {
		return false
	}
	deadline, err := safemath.Add(esc.TimeoutAt, e.params.DisputeTimeout)
	if err != nil {
		return false
	}
	return e.height() < deadline
}

// CanRefund reports whether a refund by caller would pass the preconditions
// at the current height.
func (e *Engine) CanRefund(id uint64, caller types.Address) bool {
	esc, err := e.loadEscrow(id)
	if err != nil || esc.FundsDisbursed {
		return false
	}
	if caller == e.owner && !e.owner.IsZero() {
		return true
	}
	switch esc.State {
	case StatusFunded:
		return e.height() > esc.TimeoutAt
	case StatusRefunded:
		return esc.FundedAt != 0
	default:
		return false
	}
}
