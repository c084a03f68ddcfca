// Package state provides an in-memory stand-in for the replicated ledger the
// escrow module executes on. It supplies the four host properties the module
// relies on: the native value-transfer primitive, the monotonically
// increasing block height, per-call atomicity via snapshot rollback, and a
// single custodial vault account for the module itself.
package state

import (
	"fmt"
	"sync"

	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
	"github.com/vivianchibueze694-alt/bridegeescrow/native/escrow"
	"github.com/vivianchibueze694-alt/bridegeescrow/native/safemath"
)

var _ escrow.EngineState = (*Ledger)(nil)

// Ledger implements escrow.EngineState over plain maps. All access must go
// through Call or View, which serialise calls the way the ledger's admission
// order would; the EngineState methods themselves do not lock.
type Ledger struct {
	mu     sync.Mutex
	height uint64
	vault  types.Address

	accounts     map[types.Address]*types.Account
	escrows      map[uint64]*escrow.Escrow
	nextEscrowID uint64
	rateLimits   map[types.Address]escrow.RateLimitRecord
	blacklist    map[types.Address]bool
	stakes       map[types.Address]uint64
	reputations  map[types.Address]escrow.ArbitratorReputation
	userStats    map[types.Address]escrow.UserStats
	openCounts   map[types.Address]uint32

	minAmount  uint64
	maxAmount  uint64
	treasury   types.Address
	paused     bool
	reentrancy bool
}

// NewLedger constructs an empty ledger with the supplied vault address and
// initial escrow amount bounds.
func NewLedger(vault types.Address, minAmount, maxAmount uint64) *Ledger {
	return &Ledger{
		vault:       vault,
		accounts:    make(map[types.Address]*types.Account),
		escrows:     make(map[uint64]*escrow.Escrow),
		rateLimits:  make(map[types.Address]escrow.RateLimitRecord),
		blacklist:   make(map[types.Address]bool),
		stakes:      make(map[types.Address]uint64),
		reputations: make(map[types.Address]escrow.ArbitratorReputation),
		userStats:   make(map[types.Address]escrow.UserStats),
		openCounts:  make(map[types.Address]uint32),
		minAmount:   minAmount,
		maxAmount:   maxAmount,
	}
}

// Call admits one mutating call. The height advances for every admitted call;
// all state writes performed by fn are discarded if it returns an error,
// mirroring the ledger's whole-call atomicity.
func (l *Ledger) Call(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height++
	snap := l.snapshot()
	if err := fn(); err != nil {
		l.restore(snap)
		return err
	}
	return nil
}

// View runs a read-only function under the same serialisation as Call.
func (l *Ledger) View(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Height returns the current block height.
func (l *Ledger) Height() uint64 { return l.height }

// AdvanceHeight moves the clock forward without admitting a call, used to
// model empty blocks.
func (l *Ledger) AdvanceHeight(blocks uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height += blocks
}

// Mint credits an account outside any escrow flow, for genesis allocation.
func (l *Ledger) Mint(addr types.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(addr)
	updated, err := safemath.Add(acc.Balance, amount)
	if err != nil {
		return err
	}
	acc.Balance = updated
	return nil
}

// BalanceOf returns the current account balance.
func (l *Ledger) BalanceOf(addr types.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[addr]; ok {
		return acc.Balance
	}
	return 0
}

type snapshot struct {
	accounts     map[types.Address]*types.Account
	escrows      map[uint64]*escrow.Escrow
	nextEscrowID uint64
	rateLimits   map[types.Address]escrow.RateLimitRecord
	blacklist    map[types.Address]bool
	stakes       map[types.Address]uint64
	reputations  map[types.Address]escrow.ArbitratorReputation
	userStats    map[types.Address]escrow.UserStats
	openCounts   map[types.Address]uint32
	minAmount    uint64
	maxAmount    uint64
	treasury     types.Address
	paused       bool
	reentrancy   bool
}

func (l *Ledger) snapshot() snapshot {
	snap := snapshot{
		accounts:     make(map[types.Address]*types.Account, len(l.accounts)),
		escrows:      make(map[uint64]*escrow.Escrow, len(l.escrows)),
		nextEscrowID: l.nextEscrowID,
		rateLimits:   make(map[types.Address]escrow.RateLimitRecord, len(l.rateLimits)),
		blacklist:    make(map[types.Address]bool, len(l.blacklist)),
		stakes:       make(map[types.Address]uint64, len(l.stakes)),
		reputations:  make(map[types.Address]escrow.ArbitratorReputation, len(l.reputations)),
		userStats:    make(map[types.Address]escrow.UserStats, len(l.userStats)),
		openCounts:   make(map[types.Address]uint32, len(l.openCounts)),
		minAmount:    l.minAmount,
		maxAmount:    l.maxAmount,
		treasury:     l.treasury,
		paused:       l.paused,
		reentrancy:   l.reentrancy,
	}
	for addr, acc := range l.accounts {
		copied := *acc
		snap.accounts[addr] = &copied
	}
	for id, esc := range l.escrows {
		snap.escrows[id] = esc.Clone()
	}
	for addr, rec := range l.rateLimits {
		snap.rateLimits[addr] = rec
	}
	for addr, flagged := range l.blacklist {
		snap.blacklist[addr] = flagged
	}
	for addr, amount := range l.stakes {
		snap.stakes[addr] = amount
	}
	for addr, rep := range l.reputations {
		snap.reputations[addr] = rep
	}
	for addr, stats := range l.userStats {
		snap.userStats[addr] = stats
	}
	for addr, count := range l.openCounts {
		snap.openCounts[addr] = count
	}
	return snap
}

func (l *Ledger) restore(snap snapshot) {
	l.accounts = snap.accounts
	l.escrows = snap.escrows
	l.nextEscrowID = snap.nextEscrowID
	l.rateLimits = snap.rateLimits
	l.blacklist = snap.blacklist
	l.stakes = snap.stakes
	l.reputations = snap.reputations
	l.userStats = snap.userStats
	l.openCounts = snap.openCounts
	l.minAmount = snap.minAmount
	l.maxAmount = snap.maxAmount
	l.treasury = snap.treasury
	l.paused = snap.paused
	l.reentrancy = snap.reentrancy
}

func (l *Ledger) account(addr types.Address) *types.Account {
	acc, ok := l.accounts[addr]
	if !ok {
		acc = &types.Account{}
		l.accounts[addr] = acc
	}
	return acc
}

// EscrowPut stores a sanitised copy of the escrow.
func (l *Ledger) EscrowPut(esc *escrow.Escrow) error {
	sanitized, err := escrow.Sanitize(esc)
	if err != nil {
		return err
	}
	l.escrows[sanitized.ID] = sanitized
	return nil
}

// EscrowGet returns a copy of the stored escrow.
func (l *Ledger) EscrowGet(id uint64) (*escrow.Escrow, bool) {
	esc, ok := l.escrows[id]
	if !ok {
		return nil, false
	}
	return esc.Clone(), true
}

// NextEscrowID returns the next value of the monotonic id counter.
func (l *Ledger) NextEscrowID() (uint64, error) {
	next, err := safemath.Add(l.nextEscrowID, 1)
	if err != nil {
		return 0, err
	}
	l.nextEscrowID = next
	return next, nil
}

// Transfer is the native value-transfer primitive.
func (l *Ledger) Transfer(from, to types.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromAcc := l.account(from)
	if fromAcc.Balance < amount {
		return fmt.Errorf("insufficient balance: %d < %d", fromAcc.Balance, amount)
	}
	toAcc := l.account(to)
	credited, err := safemath.Add(toAcc.Balance, amount)
	if err != nil {
		return err
	}
	fromAcc.Balance -= amount
	toAcc.Balance = credited
	fromAcc.Nonce++
	return nil
}

// VaultAddress returns the module's custodial account.
func (l *Ledger) VaultAddress() types.Address { return l.vault }

func (l *Ledger) ReentrancyLocked() bool        { return l.reentrancy }
func (l *Ledger) SetReentrancyLock(locked bool) { l.reentrancy = locked }

func (l *Ledger) RateLimitGet(addr types.Address) (escrow.RateLimitRecord, bool) {
	rec, ok := l.rateLimits[addr]
	return rec, ok
}

func (l *Ledger) RateLimitPut(addr types.Address, rec escrow.RateLimitRecord) error {
	l.rateLimits[addr] = rec
	return nil
}

func (l *Ledger) Blacklisted(addr types.Address) bool { return l.blacklist[addr] }

func (l *Ledger) SetBlacklisted(addr types.Address, flagged bool) error {
	if flagged {
		l.blacklist[addr] = true
	} else {
		delete(l.blacklist, addr)
	}
	return nil
}

func (l *Ledger) StakeGet(addr types.Address) uint64 { return l.stakes[addr] }

func (l *Ledger) StakePut(addr types.Address, amount uint64) error {
	l.stakes[addr] = amount
	return nil
}

func (l *Ledger) ReputationGet(addr types.Address) (escrow.ArbitratorReputation, bool) {
	rep, ok := l.reputations[addr]
	return rep, ok
}

func (l *Ledger) ReputationPut(addr types.Address, rep escrow.ArbitratorReputation) error {
	l.reputations[addr] = rep
	return nil
}

func (l *Ledger) UserStatsGet(addr types.Address) (escrow.UserStats, bool) {
	stats, ok := l.userStats[addr]
	return stats, ok
}

func (l *Ledger) UserStatsPut(addr types.Address, stats escrow.UserStats) error {
	l.userStats[addr] = stats
	return nil
}

func (l *Ledger) OpenEscrowCount(addr types.Address) uint32 { return l.openCounts[addr] }

func (l *Ledger) SetOpenEscrowCount(addr types.Address, count uint32) error {
	if count == 0 {
		delete(l.openCounts, addr)
	} else {
		l.openCounts[addr] = count
	}
	return nil
}

func (l *Ledger) EscrowLimits() (uint64, uint64) { return l.minAmount, l.maxAmount }

func (l *Ledger) SetEscrowLimits(min, max uint64) error {
	l.minAmount = min
	l.maxAmount = max
	return nil
}

func (l *Ledger) TreasuryAddress() types.Address { return l.treasury }

func (l *Ledger) SetTreasuryAddress(addr types.Address) error {
	l.treasury = addr
	return nil
}

func (l *Ledger) Paused() bool { return l.paused }

func (l *Ledger) SetPaused(paused bool) error {
	l.paused = paused
	return nil
}
