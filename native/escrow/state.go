package escrow

import "github.com/vivianchibueze694-alt/bridegeescrow/core/types"

// EngineState abstracts the ledger-backed storage the engine mutates. One
// guarded call operates against a single EngineState; the host is expected to
// discard every write of a failed call (core/state.Ledger.Call does this via
// snapshot rollback, mirroring the whole-call atomicity of the replicated
// ledger).
type EngineState interface {
	// Escrow table, keyed by the monotonic id counter.
	EscrowPut(*Escrow) error
	EscrowGet(id uint64) (*Escrow, bool)
	NextEscrowID() (uint64, error)

	// Native value-transfer primitive and the module's custodial account.
	Transfer(from, to types.Address, amount uint64) error
	VaultAddress() types.Address

	// Reentrancy lock, a single process-wide scalar.
	ReentrancyLocked() bool
	SetReentrancyLock(bool)

	// Sliding-window rate limiting per principal.
	RateLimitGet(types.Address) (RateLimitRecord, bool)
	RateLimitPut(types.Address, RateLimitRecord) error

	// Owner-maintained blacklist.
	Blacklisted(types.Address) bool
	SetBlacklisted(types.Address, bool) error

	// Arbitrator collateral.
	StakeGet(types.Address) uint64
	StakePut(types.Address, uint64) error

	// Append-only trackers.
	ReputationGet(types.Address) (ArbitratorReputation, bool)
	ReputationPut(types.Address, ArbitratorReputation) error
	UserStatsGet(types.Address) (UserStats, bool)
	UserStatsPut(types.Address, UserStats) error

	// Live open-escrow counter per buyer.
	OpenEscrowCount(types.Address) uint32
	SetOpenEscrowCount(types.Address, uint32) error

	// Administrative scalars.
	EscrowLimits() (min, max uint64)
	SetEscrowLimits(min, max uint64) error
	TreasuryAddress() types.Address
	SetTreasuryAddress(types.Address) error
	Paused() bool
	SetPaused(bool) error
}
