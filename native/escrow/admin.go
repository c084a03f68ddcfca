package escrow

import (
	"fmt"

	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
)

// Administrative operations are owner-only and bypass the composite guard;
// they still emit audit events and respect pause requirements where noted.

func (e *Engine) requireOwner(caller types.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.owner.IsZero() || caller != e.owner {
		return fmt.Errorf("%w: owner only", ErrUnauthorized)
	}
	return nil
}

// SetPaused toggles the emergency pause. While paused every guarded mutating
// operation is rejected.
func (e *Engine) SetPaused(caller types.Address, paused bool) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := e.state.SetPaused(paused); err != nil {
		return err
	}
	e.emit(NewPauseEvent(paused))
	return nil
}

// SetTreasuryAddress updates the account receiving the protocol fee.
func (e *Engine) SetTreasuryAddress(caller, treasury types.Address) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if treasury.IsZero() {
		return fmt.Errorf("%w: treasury address required", ErrValidation)
	}
	if err := e.state.SetTreasuryAddress(treasury); err != nil {
		return err
	}
	e.emit(NewTreasuryEvent(treasury))
	return nil
}

// SetBlacklisted flags or clears a principal. Blacklisted principals fail
// every guarded call they participate in.
func (e *Engine) SetBlacklisted(caller, target types.Address, flagged bool) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if target.IsZero() {
		return fmt.Errorf("%w: target address required", ErrValidation)
	}
	if err := e.state.SetBlacklisted(target, flagged); err != nil {
		return err
	}
	e.emit(NewBlacklistEvent(target, flagged))
	return nil
}

// SetEscrowLimits updates the amount bounds enforced at creation and staking.
func (e *Engine) SetEscrowLimits(caller types.Address, min, max uint64) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if min == 0 || min >= max {
		return fmt.Errorf("%w: limits require 0 < min < max", ErrValidation)
	}
	if err := e.state.SetEscrowLimits(min, max); err != nil {
		return err
	}
	e.emit(NewLimitsEvent(min, max))
	return nil
}

// EmergencyWithdraw moves funds from the vault to the owner. Only available
// while the system is paused.
func (e *Engine) EmergencyWithdraw(caller types.Address, amount uint64) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if !e.state.Paused() {
		return fmt.Errorf("%w: emergency withdrawal requires pause", ErrUnauthorized)
	}
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if err := e.transfer(e.state.VaultAddress(), caller, amount); err != nil {
		return err
	}
	e.emit(NewEmergencyWithdrawalEvent(caller, amount))
	return nil
}
