package escrow

import (
	"fmt"

	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
)

// guardChecks selects the optional stages of the composite guard. The fixed
// order is reentrancy, rate limit, blacklist, amount bounds, open-escrow
// count, arbitrator stake; each stage short-circuits on first failure.
type guardChecks struct {
	// amount enables the bounds validation stage.
	amount *uint64
	// escrowCountFor enables the per-buyer open escrow cap stage.
	escrowCountFor *types.Address
	// arbitrator enables the minimum-stake stage.
	arbitrator *types.Address
	// participants are additional principals (seller, arbitrator) screened
	// against the blacklist alongside the actor.
	participants []types.Address
}

// guard runs the composite security check for a mutating operation and
// acquires the reentrancy lock. On success it returns a release closure the
// caller must defer; the closure runs on every exit path so the lock can
// never outlive its operation.
func (e *Engine) guard(actor types.Address, checks guardChecks) (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.state.ReentrancyLocked() {
		return nil, fmt.Errorf("%w: operation already in flight", ErrReentrancy)
	}
	e.state.SetReentrancyLock(true)
	release := func() { e.state.SetReentrancyLock(false) }

	if err := e.checkRateLimit(actor); err != nil {
		release()
		return nil, err
	}
	if err := e.checkBlacklist(actor, checks.participants); err != nil {
		release()
		return nil, err
	}
	if checks.amount != nil {
		if err := e.checkBounds(*checks.amount); err != nil {
			release()
			return nil, err
		}
	}
	if checks.escrowCountFor != nil {
		if err := e.checkEscrowCount(*checks.escrowCountFor); err != nil {
			release()
			return nil, err
		}
	}
	if checks.arbitrator != nil {
		if err := e.checkArbitratorStake(*checks.arbitrator); err != nil {
			release()
			return nil, err
		}
	}
	return release, nil
}

// checkRateLimit enforces the per-principal fixed window: once the window has
// elapsed since the anchored height the record resets to (now, 1); otherwise
// the counter increments until capacity, then rejects.
func (e *Engine) checkRateLimit(actor types.Address) error {
	now := e.height()
	record, ok := e.state.RateLimitGet(actor)
	if !ok || now-record.LastActionHeight > e.params.RateLimitWindow {
		return e.state.RateLimitPut(actor, RateLimitRecord{LastActionHeight: now, ActionCount: 1})
	}
	if record.ActionCount >= e.params.RateLimitMax {
		return fmt.Errorf("%w: %d actions since height %d", ErrRateLimited, record.ActionCount, record.LastActionHeight)
	}
	record.ActionCount++
	return e.state.RateLimitPut(actor, record)
}

func (e *Engine) checkBlacklist(actor types.Address, participants []types.Address) error {
	if e.state.Blacklisted(actor) {
		return fmt.Errorf("%w: %s", ErrBlacklisted, actor)
	}
	for _, p := range participants {
		if e.state.Blacklisted(p) {
			return fmt.Errorf("%w: %s", ErrBlacklisted, p)
		}
	}
	return nil
}

func (e *Engine) checkBounds(amount uint64) error {
	min, max := e.state.EscrowLimits()
	if amount < min || amount > max {
		return fmt.Errorf("%w: amount %d outside [%d, %d]", ErrValidation, amount, min, max)
	}
	return nil
}

func (e *Engine) checkEscrowCount(buyer types.Address) error {
	count := e.state.OpenEscrowCount(buyer)
	if count >= e.params.MaxOpenEscrows {
		return fmt.Errorf("%w: %d open escrows at cap %d", ErrValidation, count, e.params.MaxOpenEscrows)
	}
	return nil
}

func (e *Engine) checkArbitratorStake(arbitrator types.Address) error {
	staked := e.state.StakeGet(arbitrator)
	if staked < e.params.MinArbitratorStake {
		return fmt.Errorf("%w: %d staked, minimum %d", ErrStake, staked, e.params.MinArbitratorStake)
	}
	return nil
}

// requireActive rejects mutating calls while the emergency pause is engaged.
func (e *Engine) requireActive() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.state.Paused() {
		return fmt.Errorf("%w", ErrPaused)
	}
	return nil
}
