package escrow

import (
	"fmt"

	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
	"github.com/vivianchibueze694-alt/bridegeescrow/native/safemath"
)

// Stake transfers collateral from the caller into custody and adds it to the
// caller's running stake. The amount is subject to the same bounds validation
// as escrow amounts.
func (e *Engine) Stake(caller types.Address, amount uint64) error {
	if err := e.requireActive(); err != nil {
		return err
	}
	release, err := e.guard(caller, guardChecks{amount: &amount})
	if err != nil {
		return err
	}
	defer release()

	current := e.state.StakeGet(caller)
	updated, err := safemath.Add(current, amount)
	if err != nil {
		return fmt.Errorf("%w: stake balance: %v", ErrArithmetic, err)
	}
	if err := e.transfer(caller, e.state.VaultAddress(), amount); err != nil {
		return err
	}
	if err := e.state.StakePut(caller, updated); err != nil {
		return err
	}
	e.emit(NewStakeEvent(caller, amount, updated, true))
	return nil
}

// Unstake returns collateral to the caller. The remaining stake must be zero
// or stay at or above the configured minimum; a partial sub-minimum stake
// would look active to creation-time checks while being unable to back a
// case.
func (e *Engine) Unstake(caller types.Address, amount uint64) error {
	if err := e.requireActive(); err != nil {
		return err
	}
	release, err := e.guard(caller, guardChecks{})
	if err != nil {
		return err
	}
	defer release()

	current := e.state.StakeGet(caller)
	if current < amount {
		return fmt.Errorf("%w: %d staked, %d requested", ErrStake, current, amount)
	}
	remaining := current - amount
	if remaining != 0 && remaining < e.params.MinArbitratorStake {
		return fmt.Errorf("%w: remaining stake %d below minimum %d", ErrStake, remaining, e.params.MinArbitratorStake)
	}
	if err := e.transfer(e.state.VaultAddress(), caller, amount); err != nil {
		return err
	}
	if err := e.state.StakePut(caller, remaining); err != nil {
		return err
	}
	e.emit(NewStakeEvent(caller, amount, remaining, false))
	return nil
}
