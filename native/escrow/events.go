package escrow

import (
	"strconv"

	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
)

const (
	EventTypeCreated             = "escrow.created"
	EventTypeFunded              = "escrow.funded"
	EventTypeMilestone           = "escrow.milestone_completed"
	EventTypeReleased            = "escrow.released"
	EventTypeDisputed            = "escrow.disputed"
	EventTypeResolved            = "escrow.resolved"
	EventTypeRefunded            = "escrow.refunded"
	EventTypeStakeIncreased      = "escrow.stake.increased"
	EventTypeStakeDecreased      = "escrow.stake.decreased"
	EventTypePauseUpdated        = "escrow.pause_updated"
	EventTypeTreasuryUpdated     = "escrow.treasury_updated"
	EventTypeBlacklistUpdated    = "escrow.blacklist_updated"
	EventTypeLimitsUpdated       = "escrow.limits_updated"
	EventTypeEmergencyWithdrawal = "escrow.emergency_withdrawal"
)

// NewCreatedEvent returns the canonical payload for a newly created escrow.
func NewCreatedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeCreated, e) }

// NewFundedEvent returns the payload emitted when the buyer deposits.
func NewFundedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeFunded, e) }

// NewMilestoneEvent returns the payload emitted per completed milestone.
func NewMilestoneEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeMilestone, e) }

// NewReleasedEvent returns the payload for a settlement in the seller's
// favour, including the realised fee split.
func NewReleasedEvent(e *Escrow, split FeeSplit, arbitrated bool) *types.Event {
	evt := newEscrowEvent(EventTypeReleased, e)
	evt.Attributes["treasuryCut"] = strconv.FormatUint(split.Treasury, 10)
	evt.Attributes["arbitratorCut"] = strconv.FormatUint(split.Arbitrator, 10)
	evt.Attributes["remainder"] = strconv.FormatUint(split.Remainder, 10)
	evt.Attributes["arbitrated"] = strconv.FormatBool(arbitrated)
	return evt
}

// NewDisputedEvent returns the payload emitted when the buyer opens a dispute.
func NewDisputedEvent(e *Escrow) *types.Event {
	evt := newEscrowEvent(EventTypeDisputed, e)
	if e != nil && e.DisputeReason != "" {
		evt.Attributes["reason"] = e.DisputeReason
	}
	return evt
}

// NewResolvedEvent returns the payload emitted when the arbitrator rules.
func NewResolvedEvent(e *Escrow, releaseToSeller bool) *types.Event {
	evt := newEscrowEvent(EventTypeResolved, e)
	evt.Attributes["releaseToSeller"] = strconv.FormatBool(releaseToSeller)
	return evt
}

// NewRefundedEvent returns the payload emitted when funds return to the buyer.
func NewRefundedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeRefunded, e) }

// NewStakeEvent returns the payload for arbitrator collateral changes.
func NewStakeEvent(arbitrator types.Address, amount, balance uint64, increased bool) *types.Event {
	eventType := EventTypeStakeDecreased
	if increased {
		eventType = EventTypeStakeIncreased
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"arbitrator": arbitrator.Hex(),
		"amount":     strconv.FormatUint(amount, 10),
		"balance":    strconv.FormatUint(balance, 10),
	}}
}

// NewPauseEvent returns the payload for an emergency pause toggle.
func NewPauseEvent(paused bool) *types.Event {
	return &types.Event{Type: EventTypePauseUpdated, Attributes: map[string]string{
		"paused": strconv.FormatBool(paused),
	}}
}

// NewTreasuryEvent returns the payload for a treasury address change.
func NewTreasuryEvent(treasury types.Address) *types.Event {
	return &types.Event{Type: EventTypeTreasuryUpdated, Attributes: map[string]string{
		"treasury": treasury.Hex(),
	}}
}

// NewBlacklistEvent returns the payload for a blacklist change.
func NewBlacklistEvent(target types.Address, flagged bool) *types.Event {
	return &types.Event{Type: EventTypeBlacklistUpdated, Attributes: map[string]string{
		"target":  target.Hex(),
		"flagged": strconv.FormatBool(flagged),
	}}
}

// NewLimitsEvent returns the payload for an escrow amount bounds change.
func NewLimitsEvent(min, max uint64) *types.Event {
	return &types.Event{Type: EventTypeLimitsUpdated, Attributes: map[string]string{
		"min": strconv.FormatUint(min, 10),
		"max": strconv.FormatUint(max, 10),
	}}
}

// NewEmergencyWithdrawalEvent returns the payload for an owner withdrawal.
func NewEmergencyWithdrawalEvent(owner types.Address, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeEmergencyWithdrawal, Attributes: map[string]string{
		"owner":  owner.Hex(),
		"amount": strconv.FormatUint(amount, 10),
	}}
}

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(e.ID, 10)
	attrs["buyer"] = e.Buyer.Hex()
	attrs["seller"] = e.Seller.Hex()
	attrs["arbitrator"] = e.Arbitrator.Hex()
	attrs["amount"] = strconv.FormatUint(e.Amount, 10)
	attrs["fee"] = strconv.FormatUint(e.Fee, 10)
	attrs["state"] = e.State.String()
	attrs["milestonesCompleted"] = strconv.FormatUint(uint64(e.MilestonesCompleted), 10)
	attrs["totalMilestones"] = strconv.FormatUint(uint64(e.TotalMilestones), 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
