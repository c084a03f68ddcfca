package escrow

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/vivianchibueze694-alt/bridegeescrow/core/events"
	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
)

type mockState struct {
	escrows     map[uint64]*Escrow
	nextID      uint64
	balances    map[types.Address]uint64
	vault       types.Address
	reentrancy  bool
	rateLimits  map[types.Address]RateLimitRecord
	blacklist   map[types.Address]bool
	stakes      map[types.Address]uint64
	reputations map[types.Address]ArbitratorReputation
	userStats   map[types.Address]UserStats
	openCounts  map[types.Address]uint32
	minAmount   uint64
	maxAmount   uint64
	treasury    types.Address
	paused      bool
	// transferHook runs before balances move, simulating the external
	// transfer primitive calling back into the module.
	transferHook func(from, to types.Address, amount uint64)
}

func newMockState() *mockState {
	return &mockState{
		escrows:     make(map[uint64]*Escrow),
		balances:    make(map[types.Address]uint64),
		vault:       newTestAddress(0xEE),
		rateLimits:  make(map[types.Address]RateLimitRecord),
		blacklist:   make(map[types.Address]bool),
		stakes:      make(map[types.Address]uint64),
		reputations: make(map[types.Address]ArbitratorReputation),
		userStats:   make(map[types.Address]UserStats),
		openCounts:  make(map[types.Address]uint32),
		minAmount:   1,
		maxAmount:   1_000_000_000_000,
		treasury:    newTestAddress(0xCC),
	}
}

func newTestAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, len(addr)))
	return addr
}

func (m *mockState) EscrowPut(e *Escrow) error {
	sanitized, err := Sanitize(e)
	if err != nil {
		return err
	}
	m.escrows[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) EscrowGet(id uint64) (*Escrow, bool) {
	esc, ok := m.escrows[id]
	if !ok {
		return nil, false
	}
	return esc.Clone(), true
}

func (m *mockState) NextEscrowID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) Transfer(from, to types.Address, amount uint64) error {
	if m.transferHook != nil {
		m.transferHook(from, to, amount)
	}
	if m.balances[from] < amount {
		return fmt.Errorf("insufficient balance")
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

func (m *mockState) VaultAddress() types.Address { return m.vault }

func (m *mockState) ReentrancyLocked() bool        { return m.reentrancy }
func (m *mockState) SetReentrancyLock(locked bool) { m.reentrancy = locked }

func (m *mockState) RateLimitGet(addr types.Address) (RateLimitRecord, bool) {
	rec, ok := m.rateLimits[addr]
	return rec, ok
}

func (m *mockState) RateLimitPut(addr types.Address, rec RateLimitRecord) error {
	m.rateLimits[addr] = rec
	return nil
}

func (m *mockState) Blacklisted(addr types.Address) bool { return m.blacklist[addr] }

func (m *mockState) SetBlacklisted(addr types.Address, flagged bool) error {
	m.blacklist[addr] = flagged
	return nil
}

func (m *mockState) StakeGet(addr types.Address) uint64 { return m.stakes[addr] }

func (m *mockState) StakePut(addr types.Address, amount uint64) error {
	m.stakes[addr] = amount
	return nil
}

func (m *mockState) ReputationGet(addr types.Address) (ArbitratorReputation, bool) {
	rep, ok := m.reputations[addr]
	return rep, ok
}

func (m *mockState) ReputationPut(addr types.Address, rep ArbitratorReputation) error {
	m.reputations[addr] = rep
	return nil
}

func (m *mockState) UserStatsGet(addr types.Address) (UserStats, bool) {
	stats, ok := m.userStats[addr]
	return stats, ok
}

func (m *mockState) UserStatsPut(addr types.Address, stats UserStats) error {
	m.userStats[addr] = stats
	return nil
}

func (m *mockState) OpenEscrowCount(addr types.Address) uint32 { return m.openCounts[addr] }

func (m *mockState) SetOpenEscrowCount(addr types.Address, count uint32) error {
	m.openCounts[addr] = count
	return nil
}

func (m *mockState) EscrowLimits() (uint64, uint64) { return m.minAmount, m.maxAmount }

func (m *mockState) SetEscrowLimits(min, max uint64) error {
	m.minAmount = min
	m.maxAmount = max
	return nil
}

func (m *mockState) TreasuryAddress() types.Address { return m.treasury }

func (m *mockState) SetTreasuryAddress(addr types.Address) error {
	m.treasury = addr
	return nil
}

func (m *mockState) Paused() bool { return m.paused }

func (m *mockState) SetPaused(paused bool) error {
	m.paused = paused
	return nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

var (
	testOwner      = newTestAddress(0x01)
	testBuyer      = newTestAddress(0x10)
	testSeller     = newTestAddress(0x20)
	testArbitrator = newTestAddress(0x30)
)

type testEnv struct {
	engine  *Engine
	state   *mockState
	emitter *capturingEmitter
	height  uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{state: newMockState(), emitter: &capturingEmitter{}, height: 100}
	env.engine = NewEngine()
	env.engine.SetState(env.state)
	env.engine.SetOwner(testOwner)
	env.engine.SetEmitter(env.emitter)
	env.engine.SetHeightFunc(func() uint64 { return env.height })
	// A generous rate limit keeps multi-step scenarios out of the limiter's
	// way; TestRateLimitWindow pins the production defaults explicitly.
	params := DefaultParams()
	params.RateLimitMax = 1000
	if err := env.engine.SetParams(params); err != nil {
		t.Fatalf("set params: %v", err)
	}
	env.state.balances[testBuyer] = 10_000_000
	env.state.stakes[testArbitrator] = DefaultParams().MinArbitratorStake
	return env
}

func (env *testEnv) create(t *testing.T, amount uint64, milestones uint32) *Escrow {
	t.Helper()
	esc, err := env.engine.Create(testBuyer, testSeller, testArbitrator, amount, milestones)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return esc
}

func (env *testEnv) fund(t *testing.T, id uint64) {
	t.Helper()
	if err := env.engine.Fund(id, testBuyer); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func (env *testEnv) deliver(t *testing.T, esc *Escrow) {
	t.Helper()
	for i := uint32(0); i < esc.TotalMilestones; i++ {
		if err := env.engine.CompleteMilestone(esc.ID, testSeller); err != nil {
			t.Fatalf("milestone %d: %v", i+1, err)
		}
	}
}

func (env *testEnv) lastEventType(t *testing.T) string {
	t.Helper()
	if len(env.emitter.events) == 0 {
		t.Fatalf("no events emitted")
	}
	return env.emitter.events[len(env.emitter.events)-1].EventType()
}

func TestCreateComputesFrozenFee(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 3)
	if esc.Fee != 3500 {
		t.Fatalf("expected fee 3500, got %d", esc.Fee)
	}
	if esc.State != StatusPending {
		t.Fatalf("expected pending, got %s", esc.State)
	}
	if esc.TimeoutAt != 100+DefaultParams().DeliveryTimeout {
		t.Fatalf("unexpected timeout height %d", esc.TimeoutAt)
	}
	if got := env.state.openCounts[testBuyer]; got != 1 {
		t.Fatalf("expected open count 1, got %d", got)
	}
	if env.lastEventType(t) != EventTypeCreated {
		t.Fatalf("expected created event, got %s", env.lastEventType(t))
	}
	stats := env.engine.UserStatsOf(testBuyer)
	if stats.EscrowsCreated != 1 {
		t.Fatalf("expected 1 created, got %d", stats.EscrowsCreated)
	}
}

func TestCreateRejectsInvalidParticipants(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Create(testBuyer, testBuyer, testArbitrator, 100_000, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for buyer==seller, got %v", err)
	}
	if _, err := env.engine.Create(testBuyer, testSeller, testSeller, 100_000, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for seller==arbitrator, got %v", err)
	}
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 100_000, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero milestones, got %v", err)
	}
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 100_000, 11); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for too many milestones, got %v", err)
	}
}

func TestCreateEnforcesAmountBounds(t *testing.T) {
	env := newTestEnv(t)
	env.state.minAmount = 1000
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 999, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected bounds rejection, got %v", err)
	}
	env.height++
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 1000, 1); err != nil {
		t.Fatalf("expected boundary amount accepted, got %v", err)
	}
}

func TestCreateRequiresArbitratorStake(t *testing.T) {
	env := newTestEnv(t)
	env.state.stakes[testArbitrator] = DefaultParams().MinArbitratorStake - 1
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 100_000, 1); !errors.Is(err, ErrStake) {
		t.Fatalf("expected stake error at 999999, got %v", err)
	}
	env.state.balances[testArbitrator] = 1
	env.height++
	if err := env.engine.Stake(testArbitrator, 1); err != nil {
		t.Fatalf("top-up stake: %v", err)
	}
	env.height++
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 100_000, 1); err != nil {
		t.Fatalf("expected create after top-up, got %v", err)
	}
}

func TestCreateEnforcesOpenEscrowCap(t *testing.T) {
	env := newTestEnv(t)
	params := DefaultParams()
	params.MaxOpenEscrows = 2
	params.RateLimitMax = 100
	if err := env.engine.SetParams(params); err != nil {
		t.Fatalf("set params: %v", err)
	}
	env.create(t, 100_000, 1)
	env.create(t, 100_000, 1)
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 100_000, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected cap rejection, got %v", err)
	}
}

func TestFundMovesAmountPlusFee(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 2)
	env.fund(t, esc.ID)

	stored, _ := env.engine.GetEscrow(esc.ID)
	if stored.State != StatusFunded {
		t.Fatalf("expected funded, got %s", stored.State)
	}
	if stored.FundedAt != env.height {
		t.Fatalf("expected funded-at %d, got %d", env.height, stored.FundedAt)
	}
	if got := env.state.balances[env.state.vault]; got != 103_500 {
		t.Fatalf("expected vault 103500, got %d", got)
	}
	if got := env.state.balances[testBuyer]; got != 10_000_000-103_500 {
		t.Fatalf("unexpected buyer balance %d", got)
	}
}

func TestFundPreconditions(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	if err := env.engine.Fund(esc.ID, testSeller); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for non-buyer, got %v", err)
	}
	env.fund(t, esc.ID)
	if err := env.engine.Fund(esc.ID, testBuyer); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected state error on double fund, got %v", err)
	}
	if err := env.engine.Fund(999, testBuyer); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMilestoneProgression(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 3)
	env.fund(t, esc.ID)

	if err := env.engine.CompleteMilestone(esc.ID, testBuyer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for buyer, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := env.engine.CompleteMilestone(esc.ID, testSeller); err != nil {
			t.Fatalf("milestone: %v", err)
		}
		stored, _ := env.engine.GetEscrow(esc.ID)
		if stored.State != StatusFunded {
			t.Fatalf("expected funded after %d milestones, got %s", i+1, stored.State)
		}
	}
	env.height++
	if err := env.engine.CompleteMilestone(esc.ID, testSeller); err != nil {
		t.Fatalf("final milestone: %v", err)
	}
	stored, _ := env.engine.GetEscrow(esc.ID)
	if stored.State != StatusDelivered {
		t.Fatalf("expected delivered, got %s", stored.State)
	}
	if stored.DeliveredAt != env.height {
		t.Fatalf("expected delivered-at %d, got %d", env.height, stored.DeliveredAt)
	}
	if err := env.engine.CompleteMilestone(esc.ID, testSeller); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected state error past final milestone, got %v", err)
	}
}

func TestReleaseAfterDeliveryPaysWholeFeeToTreasury(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	env.fund(t, esc.ID)
	env.deliver(t, esc)

	if err := env.engine.Release(esc.ID, testSeller); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for seller, got %v", err)
	}
	if err := env.engine.Release(esc.ID, testBuyer); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := env.state.balances[testSeller]; got != 100_000 {
		t.Fatalf("expected seller 100000, got %d", got)
	}
	// Non-arbitrated: treasury receives 87 + 35 + 3378 = the whole fee.
	if got := env.state.balances[env.state.treasury]; got != 3500 {
		t.Fatalf("expected treasury 3500, got %d", got)
	}
	if got := env.state.balances[env.state.vault]; got != 0 {
		t.Fatalf("expected empty vault, got %d", got)
	}
	stored, _ := env.engine.GetEscrow(esc.ID)
	if stored.State != StatusCompleted {
		t.Fatalf("expected completed, got %s", stored.State)
	}
	if got := env.state.openCounts[testBuyer]; got != 0 {
		t.Fatalf("expected open count 0, got %d", got)
	}
	if stats := env.engine.UserStatsOf(testBuyer); stats.EscrowsCompleted != 1 {
		t.Fatalf("expected completed stat 1, got %d", stats.EscrowsCompleted)
	}
	if err := env.engine.Release(esc.ID, testBuyer); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected state error on double release, got %v", err)
	}
}

func TestArbitratedReleasePaysArbitratorCut(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	env.fund(t, esc.ID)
	if err := env.engine.Dispute(esc.ID, testBuyer, "undelivered"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if err := env.engine.Resolve(esc.ID, testArbitrator, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	stored, _ := env.engine.GetEscrow(esc.ID)
	if stored.State != StatusArbitrated {
		t.Fatalf("expected arbitrated, got %s", stored.State)
	}
	if err := env.engine.Release(esc.ID, testArbitrator); err != nil {
		t.Fatalf("arbitrator release: %v", err)
	}
	if got := env.state.balances[testSeller]; got != 100_000 {
		t.Fatalf("expected seller 100000, got %d", got)
	}
	if got := env.state.balances[testArbitrator]; got != 35 {
		t.Fatalf("expected arbitrator cut 35, got %d", got)
	}
	if got := env.state.balances[env.state.treasury]; got != 3465 {
		t.Fatalf("expected treasury 3465, got %d", got)
	}
	rep := env.engine.ArbitratorReputationOf(testArbitrator)
	if rep.TotalCases != 1 || rep.SuccessfulResolutions != 1 {
		t.Fatalf("unexpected reputation %+v", rep)
	}
	if rep.StakeMirror != DefaultParams().MinArbitratorStake {
		t.Fatalf("unexpected stake mirror %d", rep.StakeMirror)
	}
}

func TestResolveRefundThenClaim(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	env.fund(t, esc.ID)
	buyerAfterFund := env.state.balances[testBuyer]
	if err := env.engine.Dispute(esc.ID, testBuyer, "not as described"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if err := env.engine.Resolve(esc.ID, testArbitrator, false); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	stored, _ := env.engine.GetEscrow(esc.ID)
	if stored.State != StatusRefunded {
		t.Fatalf("expected refunded, got %s", stored.State)
	}
	// Funds stay in the vault until the buyer claims.
	if got := env.state.balances[env.state.vault]; got != 103_500 {
		t.Fatalf("expected vault still 103500, got %d", got)
	}
	if err := env.engine.Refund(esc.ID, testBuyer); err != nil {
		t.Fatalf("claim refund: %v", err)
	}
	if got := env.state.balances[testBuyer]; got != buyerAfterFund+103_500 {
		t.Fatalf("unexpected buyer balance %d", got)
	}
	if err := env.engine.Refund(esc.ID, testBuyer); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected state error on double claim, got %v", err)
	}
}

func TestDisputeRequiresBuyerAndWindow(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	env.fund(t, esc.ID)

	if err := env.engine.Dispute(esc.ID, testSeller, "x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for seller, got %v", err)
	}
	long := bytes.Repeat([]byte{'a'}, MaxDisputeReasonLen+1)
	if err := env.engine.Dispute(esc.ID, testBuyer, string(long)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation for long reason, got %v", err)
	}
	// timeout-at = 2116; dispute window ends at 2116+1008.
	env.height = esc.TimeoutAt + DefaultParams().DisputeTimeout + 1
	if err := env.engine.Dispute(esc.ID, testBuyer, "late"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	env.height = esc.TimeoutAt + DefaultParams().DisputeTimeout - 1
	if err := env.engine.Dispute(esc.ID, testBuyer, "just in time"); err != nil {
		t.Fatalf("dispute inside window: %v", err)
	}
	if stats := env.engine.UserStatsOf(testBuyer); stats.Disputes != 1 {
		t.Fatalf("expected 1 dispute, got %d", stats.Disputes)
	}
}

func TestResolveChallengeWindow(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	env.fund(t, esc.ID)
	if err := env.engine.Dispute(esc.ID, testBuyer, "stale"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if err := env.engine.Resolve(esc.ID, testBuyer, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for buyer, got %v", err)
	}
	stored, _ := env.engine.GetEscrow(esc.ID)
	env.height = stored.DisputedAt + DefaultParams().ChallengeWindow
	if err := env.engine.Resolve(esc.ID, testArbitrator, true); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout at window close, got %v", err)
	}
}

func TestRefundTimeoutPath(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	env.fund(t, esc.ID)
	buyerAfterFund := env.state.balances[testBuyer]

	// timeout-at is 2116; a refund at or before that height is premature.
	env.height = esc.TimeoutAt
	if err := env.engine.Refund(esc.ID, testBuyer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized before timeout, got %v", err)
	}
	env.height = esc.TimeoutAt + 1
	if err := env.engine.Refund(esc.ID, testBuyer); err != nil {
		t.Fatalf("refund after timeout: %v", err)
	}
	stored, _ := env.engine.GetEscrow(esc.ID)
	if stored.State != StatusRefunded {
		t.Fatalf("expected refunded, got %s", stored.State)
	}
	if got := env.state.balances[testBuyer]; got != buyerAfterFund+103_500 {
		t.Fatalf("unexpected buyer balance %d", got)
	}
	if got := env.state.openCounts[testBuyer]; got != 0 {
		t.Fatalf("expected open count 0, got %d", got)
	}
}

func TestOwnerForceRefundPendingEscrow(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	buyerBefore := env.state.balances[testBuyer]
	if err := env.engine.Refund(esc.ID, testOwner); err != nil {
		t.Fatalf("owner refund: %v", err)
	}
	stored, _ := env.engine.GetEscrow(esc.ID)
	if stored.State != StatusRefunded {
		t.Fatalf("expected refunded, got %s", stored.State)
	}
	// Never funded, so nothing moves.
	if got := env.state.balances[testBuyer]; got != buyerBefore {
		t.Fatalf("expected untouched balance, got %d", got)
	}
}

func TestRefundRejectsDeliveredForNonOwner(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	env.fund(t, esc.ID)
	env.deliver(t, esc)
	if err := env.engine.Refund(esc.ID, testBuyer); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected state error for delivered refund, got %v", err)
	}
}

func TestRateLimitWindow(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.SetParams(DefaultParams()); err != nil {
		t.Fatalf("set params: %v", err)
	}
	// window=10, capacity=3: three actions pass, the fourth inside the
	// window is rejected, and a call past the window resets to one.
	env.height = 100
	env.create(t, 100_000, 1)
	env.height = 102
	env.create(t, 100_000, 1)
	env.height = 105
	env.create(t, 100_000, 1)
	env.height = 109
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 100_000, 1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit on fourth call, got %v", err)
	}
	env.height = 111 // window anchored at 100; 11 blocks elapsed
	env.create(t, 100_000, 1)
	record := env.engine.RateLimitInfoOf(testBuyer)
	if record.ActionCount != 1 || record.LastActionHeight != 111 {
		t.Fatalf("expected reset record, got %+v", record)
	}
}

func TestBlacklistBlocksAllRoles(t *testing.T) {
	env := newTestEnv(t)
	env.state.blacklist[testSeller] = true
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 100_000, 1); !errors.Is(err, ErrBlacklisted) {
		t.Fatalf("expected blacklist rejection for seller, got %v", err)
	}
	env.state.blacklist[testSeller] = false
	env.state.blacklist[testBuyer] = true
	env.height++
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 100_000, 1); !errors.Is(err, ErrBlacklisted) {
		t.Fatalf("expected blacklist rejection for actor, got %v", err)
	}
}

func TestReentrancyGuardBlocksNestedCall(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)

	var nestedErr error
	env.state.transferHook = func(from, to types.Address, amount uint64) {
		// The transfer primitive re-enters the module mid-flight.
		nestedErr = env.engine.Refund(esc.ID, testOwner)
	}
	if err := env.engine.Fund(esc.ID, testBuyer); err != nil {
		t.Fatalf("outer fund: %v", err)
	}
	if !errors.Is(nestedErr, ErrReentrancy) {
		t.Fatalf("expected nested reentrancy error, got %v", nestedErr)
	}
	stored, _ := env.engine.GetEscrow(esc.ID)
	if stored.State != StatusFunded {
		t.Fatalf("outer call should have succeeded, state %s", stored.State)
	}
	if env.state.reentrancy {
		t.Fatalf("lock must be released after the operation")
	}
}

func TestPauseBlocksMutations(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	if err := env.engine.SetPaused(testBuyer, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized pause, got %v", err)
	}
	if err := env.engine.SetPaused(testOwner, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := env.engine.Fund(esc.ID, testBuyer); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if _, err := env.engine.Create(testBuyer, testSeller, testArbitrator, 100_000, 1); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := env.engine.SetPaused(testOwner, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	env.fund(t, esc.ID)
}

func TestEmergencyWithdrawRequiresPause(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	env.fund(t, esc.ID)
	if err := env.engine.EmergencyWithdraw(testOwner, 1000); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected refusal without pause, got %v", err)
	}
	if err := env.engine.SetPaused(testOwner, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := env.engine.EmergencyWithdraw(testOwner, 1000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := env.state.balances[testOwner]; got != 1000 {
		t.Fatalf("expected owner balance 1000, got %d", got)
	}
}

func TestAdminLimitsValidation(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.SetEscrowLimits(testOwner, 0, 100); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation for zero min, got %v", err)
	}
	if err := env.engine.SetEscrowLimits(testOwner, 100, 100); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation for min==max, got %v", err)
	}
	if err := env.engine.SetEscrowLimits(testOwner, 500, 5000); err != nil {
		t.Fatalf("set limits: %v", err)
	}
	min, max := env.state.EscrowLimits()
	if min != 500 || max != 5000 {
		t.Fatalf("unexpected limits %d/%d", min, max)
	}
}

func TestStakeAndUnstakeInvariants(t *testing.T) {
	env := newTestEnv(t)
	arb := newTestAddress(0x40)
	env.state.balances[arb] = 2_000_000

	if err := env.engine.Stake(arb, 1_500_000); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if got := env.engine.ArbitratorStakeOf(arb); got != 1_500_000 {
		t.Fatalf("expected stake 1500000, got %d", got)
	}
	env.height++
	if err := env.engine.Unstake(arb, 1_600_000); !errors.Is(err, ErrStake) {
		t.Fatalf("expected stake error for over-withdrawal, got %v", err)
	}
	// Remaining 600000 would be a live sub-minimum stake.
	if err := env.engine.Unstake(arb, 900_000); !errors.Is(err, ErrStake) {
		t.Fatalf("expected stake error for sub-minimum remainder, got %v", err)
	}
	if err := env.engine.Unstake(arb, 500_000); err != nil {
		t.Fatalf("partial unstake: %v", err)
	}
	env.height++
	if err := env.engine.Unstake(arb, 1_000_000); err != nil {
		t.Fatalf("full exit: %v", err)
	}
	if got := env.engine.ArbitratorStakeOf(arb); got != 0 {
		t.Fatalf("expected empty stake, got %d", got)
	}
	if got := env.state.balances[arb]; got != 2_000_000 {
		t.Fatalf("expected balance restored, got %d", got)
	}
}

func TestFeeFrozenAgainstParamChange(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 1)
	params := DefaultParams()
	params.TreasuryBps = 500
	params.ArbitratorBps = 500
	if err := env.engine.SetParams(params); err != nil {
		t.Fatalf("set params: %v", err)
	}
	env.fund(t, esc.ID)
	env.deliver(t, esc)
	if err := env.engine.Release(esc.ID, testBuyer); err != nil {
		t.Fatalf("release: %v", err)
	}
	stored, _ := env.engine.GetEscrow(esc.ID)
	if stored.Fee != 3500 {
		t.Fatalf("fee must stay frozen at 3500, got %d", stored.Fee)
	}
	// Split still uses the frozen 250/100 schedule, so the treasury
	// receives exactly the original fee.
	if got := env.state.balances[env.state.treasury]; got != 3500 {
		t.Fatalf("expected treasury 3500, got %d", got)
	}
}

func TestQueriesReflectWrites(t *testing.T) {
	env := newTestEnv(t)
	esc := env.create(t, 100_000, 4)
	env.fund(t, esc.ID)
	if err := env.engine.CompleteMilestone(esc.ID, testSeller); err != nil {
		t.Fatalf("milestone: %v", err)
	}
	completed, total, err := env.engine.MilestoneProgress(esc.ID)
	if err != nil || completed != 1 || total != 4 {
		t.Fatalf("progress = %d/%d, %v", completed, total, err)
	}
	status, err := env.engine.StateOf(esc.ID)
	if err != nil || status != StatusFunded {
		t.Fatalf("state = %s, %v", status, err)
	}
	if env.engine.CanRelease(esc.ID, testBuyer) {
		t.Fatalf("release must not be possible before delivery")
	}
	if !env.engine.CanDispute(esc.ID, testBuyer) {
		t.Fatalf("dispute should be possible while funded")
	}
	if env.engine.CanRefund(esc.ID, testBuyer) {
		t.Fatalf("refund must not be possible before timeout")
	}
	env.height = esc.TimeoutAt + 1
	if !env.engine.CanRefund(esc.ID, testBuyer) {
		t.Fatalf("refund should be possible after timeout")
	}
}
