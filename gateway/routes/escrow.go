package routes

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vivianchibueze694-alt/bridegeescrow/audit"
	"github.com/vivianchibueze694-alt/bridegeescrow/core/state"
	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
	"github.com/vivianchibueze694-alt/bridegeescrow/gateway/middleware"
	"github.com/vivianchibueze694-alt/bridegeescrow/native/escrow"
	"github.com/vivianchibueze694-alt/bridegeescrow/observability/metrics"
)

const maxRequestBody = 1 << 20 // 1 MiB

// EscrowRoutes exposes the escrow engine over HTTP. Authentication of the
// submitted "from" principal is out of scope here; an upstream gateway is
// expected to have verified the caller's signature.
type EscrowRoutes struct {
	engine   *escrow.Engine
	ledger   *state.Ledger
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.EscrowMetrics
}

func NewEscrowRoutes(engine *escrow.Engine, ledger *state.Ledger, recorder *audit.Recorder, logger *slog.Logger, m *metrics.EscrowMetrics) *EscrowRoutes {
	if logger == nil {
		logger = slog.Default()
	}
	return &EscrowRoutes{engine: engine, ledger: ledger, recorder: recorder, logger: logger, metrics: m}
}

// Mount attaches all escrow endpoints to the router.
func (er *EscrowRoutes) Mount(r chi.Router) {
	r.Post("/escrows", er.handleCreate)
	r.Post("/escrows/{id}/fund", er.handleFund)
	r.Post("/escrows/{id}/milestones", er.handleMilestone)
	r.Post("/escrows/{id}/release", er.handleRelease)
	r.Post("/escrows/{id}/dispute", er.handleDispute)
	r.Post("/escrows/{id}/resolve", er.handleResolve)
	r.Post("/escrows/{id}/refund", er.handleRefund)
	r.Post("/arbitrators/stake", er.handleStake)
	r.Post("/arbitrators/unstake", er.handleUnstake)

	r.Post("/admin/pause", er.handleAdminPause)
	r.Post("/admin/treasury", er.handleAdminTreasury)
	r.Post("/admin/blacklist", er.handleAdminBlacklist)
	r.Post("/admin/limits", er.handleAdminLimits)
	r.Post("/admin/withdraw", er.handleAdminWithdraw)

	r.Get("/escrows/{id}", er.handleGet)
	r.Get("/escrows/{id}/progress", er.handleProgress)
	r.Get("/escrows/{id}/permissions", er.handlePermissions)
	r.Get("/users/{addr}/stats", er.handleUserStats)
	r.Get("/users/{addr}/escrow-count", er.handleUserEscrowCount)
	r.Get("/users/{addr}/blacklisted", er.handleUserBlacklisted)
	r.Get("/users/{addr}/rate-limit", er.handleUserRateLimit)
	r.Get("/arbitrators/{addr}", er.handleArbitrator)
	r.Get("/info", er.handleInfo)
	r.Get("/audit/events", er.handleAuditEvents)
}

type createRequest struct {
	From            string `json:"from"`
	Seller          string `json:"seller"`
	Arbitrator      string `json:"arbitrator"`
	Amount          uint64 `json:"amount"`
	TotalMilestones uint32 `json:"totalMilestones"`
}

type actorRequest struct {
	From string `json:"from"`
}

type disputeRequest struct {
	From   string `json:"from"`
	Reason string `json:"reason"`
}

type resolveRequest struct {
	From            string `json:"from"`
	ReleaseToSeller bool   `json:"releaseToSeller"`
}

type amountRequest struct {
	From   string `json:"from"`
	Amount uint64 `json:"amount"`
}

type pauseRequest struct {
	From   string `json:"from"`
	Paused bool   `json:"paused"`
}

type treasuryRequest struct {
	From     string `json:"from"`
	Treasury string `json:"treasury"`
}

type blacklistRequest struct {
	From    string `json:"from"`
	Target  string `json:"target"`
	Flagged bool   `json:"flagged"`
}

type limitsRequest struct {
	From string `json:"from"`
	Min  uint64 `json:"min"`
	Max  uint64 `json:"max"`
}

type escrowResponse struct {
	ID                  uint64 `json:"id"`
	Buyer               string `json:"buyer"`
	Seller              string `json:"seller"`
	Arbitrator          string `json:"arbitrator"`
	Amount              uint64 `json:"amount"`
	Fee                 uint64 `json:"fee"`
	State               string `json:"state"`
	CreatedAt           uint64 `json:"createdAt"`
	FundedAt            uint64 `json:"fundedAt,omitempty"`
	DeliveredAt         uint64 `json:"deliveredAt,omitempty"`
	DisputedAt          uint64 `json:"disputedAt,omitempty"`
	TimeoutAt           uint64 `json:"timeoutAt"`
	DisputeReason       string `json:"disputeReason,omitempty"`
	MilestonesCompleted uint32 `json:"milestonesCompleted"`
	TotalMilestones     uint32 `json:"totalMilestones"`
}

func escrowToResponse(e *escrow.Escrow) escrowResponse {
	return escrowResponse{
		ID:                  e.ID,
		Buyer:               e.Buyer.Hex(),
		Seller:              e.Seller.Hex(),
		Arbitrator:          e.Arbitrator.Hex(),
		Amount:              e.Amount,
		Fee:                 e.Fee,
		State:               e.State.String(),
		CreatedAt:           e.CreatedAt,
		FundedAt:            e.FundedAt,
		DeliveredAt:         e.DeliveredAt,
		DisputedAt:          e.DisputedAt,
		TimeoutAt:           e.TimeoutAt,
		DisputeReason:       e.DisputeReason,
		MilestonesCompleted: e.MilestonesCompleted,
		TotalMilestones:     e.TotalMilestones,
	}
}

func (er *EscrowRoutes) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !er.decode(w, r, &req) {
		return
	}
	from, ok := er.parseAddr(w, req.From)
	if !ok {
		return
	}
	seller, ok := er.parseAddr(w, req.Seller)
	if !ok {
		return
	}
	arbitrator, ok := er.parseAddr(w, req.Arbitrator)
	if !ok {
		return
	}
	var created *escrow.Escrow
	err := er.mutate(r, "create", func() error {
		var opErr error
		created, opErr = er.engine.Create(from, seller, arbitrator, req.Amount, req.TotalMilestones)
		return opErr
	})
	if err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.writeJSON(w, http.StatusCreated, escrowToResponse(created))
}

func (er *EscrowRoutes) handleFund(w http.ResponseWriter, r *http.Request) {
	er.escrowAction(w, r, "fund", er.engine.Fund)
}

func (er *EscrowRoutes) handleMilestone(w http.ResponseWriter, r *http.Request) {
	er.escrowAction(w, r, "complete_milestone", er.engine.CompleteMilestone)
}

func (er *EscrowRoutes) handleRelease(w http.ResponseWriter, r *http.Request) {
	er.escrowAction(w, r, "release", er.engine.Release)
}

func (er *EscrowRoutes) handleRefund(w http.ResponseWriter, r *http.Request) {
	er.escrowAction(w, r, "refund", er.engine.Refund)
}

// escrowAction factors the shared id+actor pattern of fund, milestone,
// release and refund.
func (er *EscrowRoutes) escrowAction(w http.ResponseWriter, r *http.Request, op string, action func(uint64, types.Address) error) {
	id, ok := er.parseID(w, r)
	if !ok {
		return
	}
	var req actorRequest
	if !er.decode(w, r, &req) {
		return
	}
	from, ok := er.parseAddr(w, req.From)
	if !ok {
		return
	}
	if err := er.mutate(r, op, func() error { return action(id, from) }); err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.writeOK(w)
}

func (er *EscrowRoutes) handleDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := er.parseID(w, r)
	if !ok {
		return
	}
	var req disputeRequest
	if !er.decode(w, r, &req) {
		return
	}
	from, ok := er.parseAddr(w, req.From)
	if !ok {
		return
	}
	if err := er.mutate(r, "dispute", func() error { return er.engine.Dispute(id, from, req.Reason) }); err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.metrics.DisputeOpened()
	er.writeOK(w)
}

func (er *EscrowRoutes) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := er.parseID(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !er.decode(w, r, &req) {
		return
	}
	from, ok := er.parseAddr(w, req.From)
	if !ok {
		return
	}
	if err := er.mutate(r, "resolve", func() error { return er.engine.Resolve(id, from, req.ReleaseToSeller) }); err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.writeOK(w)
}

func (er *EscrowRoutes) handleStake(w http.ResponseWriter, r *http.Request) {
	er.stakeAction(w, r, "stake", er.engine.Stake)
}

func (er *EscrowRoutes) handleUnstake(w http.ResponseWriter, r *http.Request) {
	er.stakeAction(w, r, "unstake", er.engine.Unstake)
}

func (er *EscrowRoutes) stakeAction(w http.ResponseWriter, r *http.Request, op string, action func(types.Address, uint64) error) {
	var req amountRequest
	if !er.decode(w, r, &req) {
		return
	}
	from, ok := er.parseAddr(w, req.From)
	if !ok {
		return
	}
	if err := er.mutate(r, op, func() error { return action(from, req.Amount) }); err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.writeOK(w)
}

func (er *EscrowRoutes) handleAdminPause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !er.decode(w, r, &req) {
		return
	}
	from, ok := er.parseAddr(w, req.From)
	if !ok {
		return
	}
	if err := er.mutate(r, "set_pause", func() error { return er.engine.SetPaused(from, req.Paused) }); err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.writeOK(w)
}

func (er *EscrowRoutes) handleAdminTreasury(w http.ResponseWriter, r *http.Request) {
	var req treasuryRequest
	if !er.decode(w, r, &req) {
		return
	}
	from, ok := er.parseAddr(w, req.From)
	if !ok {
		return
	}
	treasury, ok := er.parseAddr(w, req.Treasury)
	if !ok {
		return
	}
	if err := er.mutate(r, "set_treasury", func() error { return er.engine.SetTreasuryAddress(from, treasury) }); err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.writeOK(w)
}

func (er *EscrowRoutes) handleAdminBlacklist(w http.ResponseWriter, r *http.Request) {
	var req blacklistRequest
	if !er.decode(w, r, &req) {
		return
	}
	from, ok := er.parseAddr(w, req.From)
	if !ok {
		return
	}
	target, ok := er.parseAddr(w, req.Target)
	if !ok {
		return
	}
	if err := er.mutate(r, "set_blacklist", func() error { return er.engine.SetBlacklisted(from, target, req.Flagged) }); err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.writeOK(w)
}

func (er *EscrowRoutes) handleAdminLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	if !er.decode(w, r, &req) {
		return
	}
	from, ok := er.parseAddr(w, req.From)
	if !ok {
		return
	}
	if err := er.mutate(r, "set_limits", func() error { return er.engine.SetEscrowLimits(from, req.Min, req.Max) }); err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.writeOK(w)
}

func (er *EscrowRoutes) handleAdminWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !er.decode(w, r, &req) {
		return
	}
	from, ok := er.parseAddr(w, req.From)
	if !ok {
		return
	}
	if err := er.mutate(r, "emergency_withdraw", func() error { return er.engine.EmergencyWithdraw(from, req.Amount) }); err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.writeOK(w)
}

func (er *EscrowRoutes) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := er.parseID(w, r)
	if !ok {
		return
	}
	var esc *escrow.Escrow
	var found bool
	er.ledger.View(func() { esc, found = er.engine.GetEscrow(id) })
	if !found {
		er.writeError(w, http.StatusNotFound, "escrow not found", escrow.KindNotFound)
		return
	}
	er.writeJSON(w, http.StatusOK, escrowToResponse(esc))
}

func (er *EscrowRoutes) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := er.parseID(w, r)
	if !ok {
		return
	}
	var completed, total uint32
	var err error
	er.ledger.View(func() { completed, total, err = er.engine.MilestoneProgress(id) })
	if err != nil {
		er.writeEngineError(w, err)
		return
	}
	er.writeJSON(w, http.StatusOK, map[string]uint32{"completed": completed, "total": total})
}

func (er *EscrowRoutes) handlePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := er.parseID(w, r)
	if !ok {
		return
	}
	actor, ok := er.parseAddr(w, r.URL.Query().Get("actor"))
	if !ok {
		return
	}
	var canRelease, canDispute, canRefund bool
	er.ledger.View(func() {
		canRelease = er.engine.CanRelease(id, actor)
		canDispute = er.engine.CanDispute(id, actor)
		canRefund = er.engine.CanRefund(id, actor)
	})
	er.writeJSON(w, http.StatusOK, map[string]bool{
		"canRelease": canRelease,
		"canDispute": canDispute,
		"canRefund":  canRefund,
	})
}

func (er *EscrowRoutes) handleUserStats(w http.ResponseWriter, r *http.Request) {
	addr, ok := er.parseAddr(w, chi.URLParam(r, "addr"))
	if !ok {
		return
	}
	var stats escrow.UserStats
	er.ledger.View(func() { stats = er.engine.UserStatsOf(addr) })
	er.writeJSON(w, http.StatusOK, map[string]uint64{
		"escrowsCreated":   stats.EscrowsCreated,
		"escrowsCompleted": stats.EscrowsCompleted,
		"disputes":         stats.Disputes,
	})
}

func (er *EscrowRoutes) handleUserEscrowCount(w http.ResponseWriter, r *http.Request) {
	addr, ok := er.parseAddr(w, chi.URLParam(r, "addr"))
	if !ok {
		return
	}
	var count uint32
	er.ledger.View(func() { count = er.engine.UserEscrowCountOf(addr) })
	er.writeJSON(w, http.StatusOK, map[string]uint32{"openEscrows": count})
}

func (er *EscrowRoutes) handleUserBlacklisted(w http.ResponseWriter, r *http.Request) {
	addr, ok := er.parseAddr(w, chi.URLParam(r, "addr"))
	if !ok {
		return
	}
	var flagged bool
	er.ledger.View(func() { flagged = er.engine.IsBlacklisted(addr) })
	er.writeJSON(w, http.StatusOK, map[string]bool{"blacklisted": flagged})
}

func (er *EscrowRoutes) handleUserRateLimit(w http.ResponseWriter, r *http.Request) {
	addr, ok := er.parseAddr(w, chi.URLParam(r, "addr"))
	if !ok {
		return
	}
	var record escrow.RateLimitRecord
	er.ledger.View(func() { record = er.engine.RateLimitInfoOf(addr) })
	er.writeJSON(w, http.StatusOK, map[string]uint64{
		"lastActionHeight": record.LastActionHeight,
		"actionCount":      uint64(record.ActionCount),
	})
}

func (er *EscrowRoutes) handleArbitrator(w http.ResponseWriter, r *http.Request) {
	addr, ok := er.parseAddr(w, chi.URLParam(r, "addr"))
	if !ok {
		return
	}
	var rep escrow.ArbitratorReputation
	var staked uint64
	er.ledger.View(func() {
		rep = er.engine.ArbitratorReputationOf(addr)
		staked = er.engine.ArbitratorStakeOf(addr)
	})
	er.writeJSON(w, http.StatusOK, map[string]uint64{
		"totalCases":            rep.TotalCases,
		"successfulResolutions": rep.SuccessfulResolutions,
		"stakeMirror":           rep.StakeMirror,
		"staked":                staked,
	})
}

func (er *EscrowRoutes) handleInfo(w http.ResponseWriter, r *http.Request) {
	var info escrow.ContractInfo
	var height uint64
	er.ledger.View(func() {
		info = er.engine.Info()
		height = er.ledger.Height()
	})
	er.writeJSON(w, http.StatusOK, map[string]any{
		"owner":     info.Owner.Hex(),
		"treasury":  info.Treasury.Hex(),
		"paused":    info.Paused,
		"minAmount": info.MinAmount,
		"maxAmount": info.MaxAmount,
		"height":    height,
	})
}

func (er *EscrowRoutes) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			er.writeError(w, http.StatusBadRequest, "invalid limit", escrow.KindValidation)
			return
		}
		limit = parsed
	}
	records, err := er.recorder.List(limit)
	if err != nil {
		er.writeError(w, http.StatusInternalServerError, err.Error(), escrow.KindInternal)
		return
	}
	er.writeJSON(w, http.StatusOK, map[string]any{"events": records})
}

// mutate admits one mutating call against the ledger, recording metrics and
// refreshing the vault gauge on success.
func (er *EscrowRoutes) mutate(r *http.Request, op string, fn func() error) error {
	err := er.ledger.Call(fn)
	er.metrics.ObserveOp(op, err, string(escrow.Classify(err)))
	if err != nil {
		er.logger.Info("operation rejected",
			"op", op,
			"kind", string(escrow.Classify(err)),
			"requestId", middleware.RequestIDFromContext(r.Context()),
			"error", err)
		return err
	}
	er.metrics.SetVaultBalance(float64(er.ledger.BalanceOf(er.ledger.VaultAddress())))
	return nil
}

func (er *EscrowRoutes) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		er.writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error(), escrow.KindValidation)
		return false
	}
	return true
}

func (er *EscrowRoutes) parseID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		er.writeError(w, http.StatusBadRequest, "invalid escrow id", escrow.KindValidation)
		return 0, false
	}
	return id, true
}

func (er *EscrowRoutes) parseAddr(w http.ResponseWriter, raw string) (types.Address, bool) {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		er.writeError(w, http.StatusBadRequest, err.Error(), escrow.KindValidation)
		return types.Address{}, false
	}
	return addr, true
}

func (er *EscrowRoutes) writeEngineError(w http.ResponseWriter, err error) {
	kind := escrow.Classify(err)
	status := http.StatusInternalServerError
	switch kind {
	case escrow.KindAuthorization, escrow.KindBlacklist:
		status = http.StatusForbidden
	case escrow.KindNotFound:
		status = http.StatusNotFound
	case escrow.KindState, escrow.KindTimeout, escrow.KindReentrancy, escrow.KindTransfer:
		status = http.StatusConflict
	case escrow.KindValidation, escrow.KindArithmetic, escrow.KindStake:
		status = http.StatusBadRequest
	case escrow.KindRateLimit:
		status = http.StatusTooManyRequests
	}
	er.writeError(w, status, err.Error(), kind)
}

func (er *EscrowRoutes) writeError(w http.ResponseWriter, status int, message string, kind escrow.ErrorKind) {
	er.writeJSON(w, status, map[string]string{"error": message, "kind": string(kind)})
}

func (er *EscrowRoutes) writeOK(w http.ResponseWriter) {
	er.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (er *EscrowRoutes) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		er.logger.Error("write response", "error", err)
	}
}
