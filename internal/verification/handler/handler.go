package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"civitas/internal/verification/freshness"
	"civitas/internal/verification/models"
	"civitas/internal/verification/privacy"
	"civitas/internal/verification/service"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/httputil"
	"civitas/pkg/requestcontext"
)

// Service defines the verification operations exposed over HTTP.
type Service interface {
	Verify(ctx context.Context, accountID id.AccountID, providerType models.ProviderType, proof json.RawMessage) (*service.Result, error)
	BeginMobileCredentialSession(ctx context.Context, accountID id.AccountID) (*service.MobileSession, error)
	CompleteMobileCredentialSession(ctx context.Context, accountID id.AccountID, sessionID id.SessionID, response []byte) (*service.Result, error)
	CompleteAddressVerification(ctx context.Context, accountID id.AccountID, raw *privacy.AddressFields) (*service.Result, error)
	CheckFreshness(ctx context.Context, accountID id.AccountID, category freshness.Category) (freshness.Decision, error)
	RequireFresh(ctx context.Context, accountID id.AccountID, category freshness.Category) (freshness.Decision, error)
	Profile(ctx context.Context, accountID id.AccountID) (*models.TrustProfile, error)
}

// Handler wires verification endpoints to the verification service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts verification endpoints on the router. Authentication and
// merged-account rejection are applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verification/verify", h.HandleVerify)
	r.Post("/verification/mobile/sessions", h.HandleBeginSession)
	r.Post("/verification/mobile/sessions/{sessionID}/complete", h.HandleCompleteSession)
	r.Post("/verification/address", h.HandleAddress)
	r.Get("/verification/freshness", h.HandleFreshness)
	r.Get("/verification/profile", h.HandleProfile)
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) (id.AccountID, bool) {
	accountID := requestcontext.AccountID(r.Context())
	if accountID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.AccountID{}, false
	}
	return accountID, true
}

// fail logs at a level matching the error class and writes the response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, accountID id.AccountID, err error) {
	level := slog.LevelInfo
	if status := dErrors.ToHTTPStatus(dErrors.CodeOf(err)); status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"account_id", accountID.String(),
		"code", string(dErrors.CodeOf(err)),
	)
	httputil.WriteError(w, err)
}

// HandleVerify handles POST /verification/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.service.Verify(ctx, accountID, req.ParsedProviderType(), req.Proof)
	clear(req.Proof)
	if err != nil {
		h.fail(ctx, w, "verification failed", accountID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResult(res))
}

// HandleBeginSession handles POST /verification/mobile/sessions.
func (h *Handler) HandleBeginSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	sess, err := h.service.BeginMobileCredentialSession(ctx, accountID)
	if err != nil {
		h.fail(ctx, w, "mobile session start failed", accountID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromSession(sess))
}

// HandleCompleteSession handles POST /verification/mobile/sessions/{sessionID}/complete.
func (h *Handler) HandleCompleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CompleteSessionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.service.CompleteMobileCredentialSession(ctx, accountID, sessionID, req.Response())
	req.Wipe()
	if err != nil {
		h.fail(ctx, w, "mobile credential rejected", accountID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResult(res))
}

// HandleAddress handles POST /verification/address.
func (h *Handler) HandleAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddressRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	fields := req.Fields()
	req.Wipe()
	res, err := h.service.CompleteAddressVerification(ctx, accountID, &fields)
	if err != nil {
		h.fail(ctx, w, "address verification failed", accountID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResult(res))
}

// HandleFreshness handles GET /verification/freshness?action=<category>.
// With enforce=true a stale verification is an error instead of valid=false.
func (h *Handler) HandleFreshness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	action := q.Get("action")
	if action == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "action is required"))
		return
	}
	enforce := false
	if raw := q.Get("enforce"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "enforce must be a boolean"))
			return
		}
		enforce = parsed
	}

	check := h.service.CheckFreshness
	if enforce {
		check = h.service.RequireFresh
	}
	decision, err := check(ctx, accountID, freshness.Category(action))
	if err != nil {
		h.fail(ctx, w, "freshness check failed", accountID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDecision(decision))
}

// HandleProfile handles GET /verification/profile.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Profile(ctx, accountID)
	if err != nil {
		h.fail(ctx, w, "profile lookup failed", accountID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProfile(profile))
}
