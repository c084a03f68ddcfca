package escrow

import (
	"fmt"
	"strings"

	"github.com/vivianchibueze694-alt/bridegeescrow/core/events"
	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
	"github.com/vivianchibueze694-alt/bridegeescrow/native/safemath"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine wires the escrow lifecycle state machine with external state, the
// ledger clock and an event emitter. Every mutating operation runs the
// composite security guard first, then the transition, then any transfers,
// then the trackers, and finally emits exactly one audit event. The host is
// expected to run each call inside a transaction so that a failure anywhere
// discards all staged writes.
type Engine struct {
	state    EngineState
	emitter  events.Emitter
	owner    types.Address
	params   Params
	heightFn func() uint64
}

// NewEngine creates an escrow engine with default parameters and a no-op
// emitter. Callers configure state, owner and clock before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		params:   DefaultParams(),
		heightFn: func() uint64 { return 0 },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetOwner configures the administrative principal.
func (e *Engine) SetOwner(owner types.Address) { e.owner = owner }

// SetParams overrides the protocol constants. Intended to be called once at
// wiring time; existing escrows keep the fee schedule frozen at creation.
func (e *Engine) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.params = p
	return nil
}

// Params returns the active protocol constants.
func (e *Engine) Params() Params { return e.params }

// SetHeightFunc overrides the block height source. The ledger clock is
// injected so tests can drive deadline arithmetic deterministically.
func (e *Engine) SetHeightFunc(height func() uint64) {
	if height == nil {
		e.heightFn = func() uint64 { return 0 }
		return
	}
	e.heightFn = height
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) height() uint64 {
	if e == nil || e.heightFn == nil {
		return 0
	}
	return e.heightFn()
}

func (e *Engine) loadEscrow(id uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return esc, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	sanitized, err := Sanitize(esc)
	if err != nil {
		return err
	}
	return e.state.EscrowPut(sanitized)
}

// Create initialises and persists a new escrow in the pending state. The fee
// and its basis points are computed once here and frozen on the entity.
func (e *Engine) Create(caller, seller, arbitrator types.Address, amount uint64, totalMilestones uint32) (*Escrow, error) {
	if err := e.requireActive(); err != nil {
		return nil, err
	}
	release, err := e.guard(caller, guardChecks{
		amount:         &amount,
		escrowCountFor: &caller,
		arbitrator:     &arbitrator,
		participants:   []types.Address{seller, arbitrator},
	})
	if err != nil {
		return nil, err
	}
	defer release()

	if seller.IsZero() || arbitrator.IsZero() {
		return nil, fmt.Errorf("%w: seller and arbitrator required", ErrValidation)
	}
	if caller == seller || caller == arbitrator || seller == arbitrator {
		return nil, fmt.Errorf("%w: buyer, seller and arbitrator must be distinct", ErrValidation)
	}
	if totalMilestones == 0 || totalMilestones > e.params.MaxMilestones {
		return nil, fmt.Errorf("%w: milestones %d outside [1, %d]", ErrValidation, totalMilestones, e.params.MaxMilestones)
	}

	schedule := FeeSchedule{TreasuryBps: e.params.TreasuryBps, ArbitratorBps: e.params.ArbitratorBps}
	fee, err := schedule.TotalFee(amount)
	if err != nil {
		return nil, err
	}
	now := e.height()
	timeoutAt, err := safemath.Add(now, e.params.DeliveryTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: timeout height: %v", ErrArithmetic, err)
	}
	id, err := e.state.NextEscrowID()
	if err != nil {
		return nil, err
	}
	esc := &Escrow{
		ID:              id,
		Buyer:           caller,
		Seller:          seller,
		Arbitrator:      arbitrator,
		Amount:          amount,
		Fee:             fee,
		TreasuryBps:     e.params.TreasuryBps,
		ArbitratorBps:   e.params.ArbitratorBps,
		State:           StatusPending,
		CreatedAt:       now,
		TimeoutAt:       timeoutAt,
		TotalMilestones: totalMilestones,
	}
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	if err := e.state.SetOpenEscrowCount(caller, e.state.OpenEscrowCount(caller)+1); err != nil {
		return nil, err
	}
	if err := e.bumpUserStats(caller, func(s *UserStats) { s.EscrowsCreated++ }); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// Fund moves amount plus fee from the buyer into the vault and marks the
// escrow funded.
func (e *Engine) Fund(id uint64, caller types.Address) error {
	if err := e.requireActive(); err != nil {
		return err
	}
	release, err := e.guard(caller, guardChecks{})
	if err != nil {
		return err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.State != StatusPending {
		return fmt.Errorf("%w: cannot fund in state %s", ErrInvalidState, esc.State)
	}
	if caller != esc.Buyer {
		return fmt.Errorf("%w: only the buyer may fund", ErrUnauthorized)
	}
	total, err := safemath.Add(esc.Amount, esc.Fee)
	if err != nil {
		return fmt.Errorf("%w: funding total: %v", ErrArithmetic, err)
	}
	if err := e.state.Transfer(caller, e.state.VaultAddress(), total); err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	esc.State = StatusFunded
	esc.FundedAt = e.height()
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewFundedEvent(esc))
	return nil
}

// CompleteMilestone records one delivery increment by the seller. Completing
// the final milestone moves the escrow to the delivered state.
func (e *Engine) CompleteMilestone(id uint64, caller types.Address) error {
	if err := e.requireActive(); err != nil {
		return err
	}
	release, err := e.guard(caller, guardChecks{})
	if err != nil {
		return err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.State != StatusFunded {
		return fmt.Errorf("%w: cannot complete milestone in state %s", ErrInvalidState, esc.State)
	}
	if caller != esc.Seller {
		return fmt.Errorf("%w: only the seller may complete milestones", ErrUnauthorized)
	}
	if esc.MilestonesCompleted >= esc.TotalMilestones {
		return fmt.Errorf("%w: all milestones already complete", ErrInvalidState)
	}
	esc.MilestonesCompleted++
	if esc.MilestonesCompleted == esc.TotalMilestones {
		esc.State = StatusDelivered
		esc.DeliveredAt = e.height()
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewMilestoneEvent(esc))
	return nil
}

// Release settles the escrow in favour of the seller and distributes the
// frozen fee. After plain delivery the whole fee routes to the treasury;
// after arbitration the arbitrator cut pays the named arbitrator.
func (e *Engine) Release(id uint64, caller types.Address) error {
	if err := e.requireActive(); err != nil {
		return err
	}
	release, err := e.guard(caller, guardChecks{})
	if err != nil {
		return err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	arbitrated := esc.State == StatusArbitrated
	if esc.State != StatusDelivered && !arbitrated {
		return fmt.Errorf("%w: cannot release in state %s", ErrInvalidState, esc.State)
	}
	if caller != esc.Buyer && !(arbitrated && caller == esc.Arbitrator) {
		return fmt.Errorf("%w: release requires the buyer, or the arbitrator after arbitration", ErrUnauthorized)
	}
	if esc.FundsDisbursed {
		return fmt.Errorf("%w: funds already disbursed", ErrInvalidState)
	}
	treasury := e.state.TreasuryAddress()
	if treasury.IsZero() {
		return errNilTreasury
	}
	schedule := FeeSchedule{TreasuryBps: esc.TreasuryBps, ArbitratorBps: esc.ArbitratorBps}
	split, err := schedule.Split(esc.Fee)
	if err != nil {
		return err
	}
	vault := e.state.VaultAddress()
	if err := e.transfer(vault, esc.Seller, esc.Amount); err != nil {
		return err
	}
	treasuryTotal, err := safemath.Add(split.Treasury, split.Remainder)
	if err != nil {
		return fmt.Errorf("%w: treasury payout: %v", ErrArithmetic, err)
	}
	if arbitrated {
		if err := e.transfer(vault, esc.Arbitrator, split.Arbitrator); err != nil {
			return err
		}
	} else {
		treasuryTotal, err = safemath.Add(treasuryTotal, split.Arbitrator)
		if err != nil {
			return fmt.Errorf("%w: treasury payout: %v", ErrArithmetic, err)
		}
	}
	if err := e.transfer(vault, treasury, treasuryTotal); err != nil {
		return err
	}
	esc.State = StatusCompleted
	esc.FundsDisbursed = true
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	if err := e.closeOpenEscrow(esc.Buyer); err != nil {
		return err
	}
	if err := e.bumpUserStats(esc.Buyer, func(s *UserStats) { s.EscrowsCompleted++ }); err != nil {
		return err
	}
	e.emit(NewReleasedEvent(esc, split, arbitrated))
	return nil
}

// Dispute flags a funded or delivered escrow for arbitration. The dispute
// window is anchored to the original delivery timeout so a buyer cannot
// reopen long after the deadline has passed.
func (e *Engine) Dispute(id uint64, caller types.Address, reason string) error {
	if err := e.requireActive(); err != nil {
		return err
	}
	release, err := e.guard(caller, guardChecks{})
	if err != nil {
		return err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.State != StatusFunded && esc.State != StatusDelivered {
		return fmt.Errorf("%w: cannot dispute in state %s", ErrInvalidState, esc.State)
	}
	if caller != esc.Buyer {
		return fmt.Errorf("%w: only the buyer may dispute", ErrUnauthorized)
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > MaxDisputeReasonLen {
		return fmt.Errorf("%w: dispute reason exceeds %d characters", ErrValidation, MaxDisputeReasonLen)
	}
	now := e.height()
	deadline, err := safemath.Add(esc.TimeoutAt, e.params.DisputeTimeout)
	if err != nil {
		return fmt.Errorf("%w: dispute deadline: %v", ErrArithmetic, err)
	}
	if now >= deadline {
		return fmt.Errorf("%w: dispute window closed at height %d", ErrTimeout, deadline)
	}
	esc.State = StatusDisputed
	esc.DisputedAt = now
	esc.DisputeReason = reason
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	if err := e.bumpUserStats(caller, func(s *UserStats) { s.Disputes++ }); err != nil {
		return err
	}
	e.emit(NewDisputedEvent(esc))
	return nil
}

// Resolve records the arbitrator's decision within the challenge window.
// Ruling for the seller authorises a release; ruling for the buyer moves the
// escrow to refunded, with the payout claimed through Refund. Funds do not
// move here.
func (e *Engine) Resolve(id uint64, caller types.Address, releaseToSeller bool) error {
	if err := e.requireActive(); err != nil {
		return err
	}
	release, err := e.guard(caller, guardChecks{})
	if err != nil {
		return err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.State != StatusDisputed {
		return fmt.Errorf("%w: cannot resolve in state %s", ErrInvalidState, esc.State)
	}
	if caller != esc.Arbitrator {
		return fmt.Errorf("%w: only the named arbitrator may resolve", ErrUnauthorized)
	}
	deadline, err := safemath.Add(esc.DisputedAt, e.params.ChallengeWindow)
	if err != nil {
		return fmt.Errorf("%w: challenge deadline: %v", ErrArithmetic, err)
	}
	if e.height() >= deadline {
		return fmt.Errorf("%w: challenge window closed at height %d", ErrTimeout, deadline)
	}
	if releaseToSeller {
		esc.State = StatusArbitrated
	} else {
		esc.State = StatusRefunded
		if err := e.closeOpenEscrow(esc.Buyer); err != nil {
			return err
		}
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	rep, _ := e.state.ReputationGet(caller)
	rep.TotalCases++
	rep.SuccessfulResolutions++
	rep.StakeMirror = e.state.StakeGet(caller)
	if err := e.state.ReputationPut(caller, rep); err != nil {
		return err
	}
	e.emit(NewResolvedEvent(esc, releaseToSeller))
	return nil
}

// Refund returns amount plus fee to the buyer. It serves three paths: the
// timeout refund of a funded escrow, the claim after a dispute was resolved
// in the buyer's favour, and the owner's force refund.
func (e *Engine) Refund(id uint64, caller types.Address) error {
	if err := e.requireActive(); err != nil {
		return err
	}
	release, err := e.guard(caller, guardChecks{})
	if err != nil {
		return err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if caller != e.owner {
		switch esc.State {
		case StatusFunded:
			if e.height() <= esc.TimeoutAt {
				return fmt.Errorf("%w: delivery timeout not reached", ErrUnauthorized)
			}
		case StatusRefunded:
			// Claim path after a buyer-favouring resolution.
		default:
			return fmt.Errorf("%w: cannot refund in state %s", ErrInvalidState, esc.State)
		}
	}
	if esc.FundsDisbursed {
		return fmt.Errorf("%w: funds already disbursed", ErrInvalidState)
	}
	wasTerminal := esc.State == StatusRefunded
	if esc.FundedAt != 0 {
		total, err := safemath.Add(esc.Amount, esc.Fee)
		if err != nil {
			return fmt.Errorf("%w: refund total: %v", ErrArithmetic, err)
		}
		if err := e.transfer(e.state.VaultAddress(), esc.Buyer, total); err != nil {
			return err
		}
		esc.FundsDisbursed = true
	}
	esc.State = StatusRefunded
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	if !wasTerminal {
		if err := e.closeOpenEscrow(esc.Buyer); err != nil {
			return err
		}
	}
	e.emit(NewRefundedEvent(esc))
	return nil
}

func (e *Engine) transfer(from, to types.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := e.state.Transfer(from, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	return nil
}

func (e *Engine) closeOpenEscrow(buyer types.Address) error {
	count := e.state.OpenEscrowCount(buyer)
	if count == 0 {
		return nil
	}
	return e.state.SetOpenEscrowCount(buyer, count-1)
}

func (e *Engine) bumpUserStats(addr types.Address, bump func(*UserStats)) error {
	stats, _ := e.state.UserStatsGet(addr)
	bump(&stats)
	return e.state.UserStatsPut(addr, stats)
}
