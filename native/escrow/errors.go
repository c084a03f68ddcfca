package escrow

import "errors"

// The engine reports every precondition violation with one of the sentinel
// errors below, wrapped with context via fmt.Errorf("%w: ..."). Callers
// branch with errors.Is or map to a coarse class through Classify.
var (
	// ErrUnauthorized marks a call from the wrong actor, an owner-only
	// violation, or a call rejected because the system pause state does not
	// permit it.
	ErrUnauthorized = errors.New("escrow: unauthorized")
	// ErrPaused marks a mutating call while the emergency pause is engaged.
	ErrPaused = errors.New("escrow: system paused")
	// ErrNotFound marks an unknown escrow id.
	ErrNotFound = errors.New("escrow: not found")
	// ErrInvalidState marks an operation that is not legal in the escrow's
	// current lifecycle state.
	ErrInvalidState = errors.New("escrow: invalid state for operation")
	// ErrValidation marks malformed input or out-of-bounds amounts.
	ErrValidation = errors.New("escrow: validation failed")
	// ErrArithmetic marks overflow or underflow in fee or counter math.
	ErrArithmetic = errors.New("escrow: arithmetic overflow")
	// ErrRateLimited marks a principal that exhausted its action window.
	ErrRateLimited = errors.New("escrow: rate limit exceeded")
	// ErrReentrancy marks a nested guarded call while one is in flight.
	ErrReentrancy = errors.New("escrow: reentrant call")
	// ErrBlacklisted marks participation of a blacklisted principal.
	ErrBlacklisted = errors.New("escrow: principal blacklisted")
	// ErrStake marks insufficient or sub-minimum arbitrator collateral.
	ErrStake = errors.New("escrow: insufficient arbitrator stake")
	// ErrTimeout marks a window that is already closed or not yet open.
	ErrTimeout = errors.New("escrow: window closed")
	// ErrTransfer marks a refusal by the underlying value-transfer primitive.
	ErrTransfer = errors.New("escrow: transfer failed")

	errNilState    = errors.New("escrow engine: state not configured")
	errNilTreasury = errors.New("escrow engine: fee treasury not configured")
)

// ErrorKind is the coarse taxonomy exposed to callers so UIs can distinguish
// "try later" from "never" from "fix your input".
type ErrorKind string

const (
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindState         ErrorKind = "state"
	KindValidation    ErrorKind = "validation"
	KindArithmetic    ErrorKind = "arithmetic"
	KindRateLimit     ErrorKind = "rate_limit"
	KindReentrancy    ErrorKind = "reentrancy"
	KindBlacklist     ErrorKind = "blacklist"
	KindStake         ErrorKind = "stake"
	KindTimeout       ErrorKind = "timeout"
	KindTransfer      ErrorKind = "transfer"
	KindInternal      ErrorKind = "internal"
)

// Classify maps an engine error onto its taxonomy kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrPaused):
		return KindAuthorization
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindState
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrArithmetic):
		return KindArithmetic
	case errors.Is(err, ErrRateLimited):
		return KindRateLimit
	case errors.Is(err, ErrReentrancy):
		return KindReentrancy
	case errors.Is(err, ErrBlacklisted):
		return KindBlacklist
	case errors.Is(err, ErrStake):
		return KindStake
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrTransfer):
		return KindTransfer
	default:
		return KindInternal
	}
}
