package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"propshare/internal/access"
	"propshare/internal/ledger"
	"propshare/internal/registry/service"
	"propshare/pkg/domain"
	dErrors "propshare/pkg/domain-errors"
	"propshare/pkg/platform/httputil"
	"propshare/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	CreateProperty(ctx context.Context, caller domain.Address, req service.CreatePropertyRequest) (ledger.Property, error)
	Mint(ctx context.Context, caller, to domain.Address, propertyID domain.PropertyID, shares uint64, metadataRef string) (ledger.ShareToken, error)
	Transfer(ctx context.Context, caller, from, to domain.Address, tokenID domain.TokenID) error
	SetKYCStatus(ctx context.Context, caller, wallet domain.Address, verified bool) error
	SetPropertyActive(ctx context.Context, caller domain.Address, propertyID domain.PropertyID, active bool) error
	Pause(ctx context.Context, caller domain.Address) error
	Unpause(ctx context.Context, caller domain.Address) error
	GrantRole(ctx context.Context, caller domain.Address, role access.Role, account domain.Address) error
	RevokeRole(ctx context.Context, caller domain.Address, role access.Role, account domain.Address) error

	Property(id domain.PropertyID) (service.PropertyView, error)
	Properties() []service.PropertyView
	GetToken(id domain.TokenID) (ledger.ShareToken, error)
	TokensOf(wallet domain.Address) []ledger.ShareToken
	IsVerified(wallet domain.Address) bool
	Paused() bool
	VotingPowerBreakdown(wallet domain.Address) service.VotingPowerView
	PropertyVotingPower(wallet domain.Address, id domain.PropertyID) uint64
	RoleMembers(role access.Role) ([]domain.Address, error)
}

// Handler wires registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts registry endpoints on the router. Reads are public;
// mutations go through requireCaller, which authenticates the bearer token.
// Mutation handlers reject malformed input with 400 before the service checks
// the caller's role, so an unauthorized caller learns only that the request
// shape was wrong.
func (h *Handler) Register(r chi.Router, requireCaller func(http.Handler) http.Handler) {
	r.Get("/properties", h.HandleListProperties)
	r.Get("/properties/{propertyID}", h.HandleGetProperty)
	r.Get("/tokens/{tokenID}", h.HandleGetToken)
	r.Get("/kyc/{wallet}", h.HandleGetKYC)
	r.Get("/wallets/{wallet}/tokens", h.HandleTokensOf)
	r.Get("/wallets/{wallet}/voting-power", h.HandleVotingPower)
	r.Get("/wallets/{wallet}/voting-power/{propertyID}", h.HandlePropertyVotingPower)
	r.Get("/admin/pause", h.HandleGetPause)
	r.Get("/roles/{role}", h.HandleRoleMembers)

	r.Group(func(r chi.Router) {
		r.Use(requireCaller)
		r.Post("/properties", h.HandleCreateProperty)
		r.Put("/properties/{propertyID}/status", h.HandleSetPropertyStatus)
		r.Post("/properties/{propertyID}/mint", h.HandleMint)
		r.Post("/tokens/{tokenID}/transfer", h.HandleTransfer)
		r.Put("/kyc/{wallet}", h.HandleSetKYC)
		r.Post("/admin/pause", h.HandlePause)
		r.Post("/admin/unpause", h.HandleUnpause)
		r.Put("/roles/{role}/{wallet}", h.HandleGrantRole)
		r.Delete("/roles/{role}/{wallet}", h.HandleRevokeRole)
	})
}

// HandleCreateProperty handles POST /properties.
func (h *Handler) HandleCreateProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreatePropertyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.CreateProperty(ctx, caller, service.CreatePropertyRequest{
		Name:         req.Name,
		Location:     req.Location,
		TotalValue:   req.TotalValue,
		TotalShares:  req.TotalShares,
		DocumentHash: req.DocumentHash,
	})
	if err != nil {
		h.fail(w, r, "create property failed", err)
		return
	}
	view, err := h.service.Property(p.ID)
	if err != nil {
		h.fail(w, r, "created property not readable", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromPropertyView(view))
}

// HandleListProperties handles GET /properties.
func (h *Handler) HandleListProperties(w http.ResponseWriter, r *http.Request) {
	views := h.service.Properties()
	resp := PropertyListResponse{Properties: make([]PropertyResponse, 0, len(views))}
	for _, v := range views {
		resp.Properties = append(resp.Properties, fromPropertyView(v))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGetProperty handles GET /properties/{propertyID}.
func (h *Handler) HandleGetProperty(w http.ResponseWriter, r *http.Request) {
	propertyID, err := domain.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.Property(propertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromPropertyView(view))
}

// HandleSetPropertyStatus handles PUT /properties/{propertyID}/status.
func (h *Handler) HandleSetPropertyStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	propertyID, err := domain.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[PropertyStatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if err := h.service.SetPropertyActive(ctx, caller, propertyID, *req.Active); err != nil {
		h.fail(w, r, "set property status failed", err)
		return
	}
	view, err := h.service.Property(propertyID)
	if err != nil {
		h.fail(w, r, "property not readable", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromPropertyView(view))
}

// HandleMint handles POST /properties/{propertyID}/mint.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	propertyID, err := domain.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tok, err := h.service.Mint(ctx, caller, req.parsedTo, propertyID, req.Shares, req.MetadataRef)
	if err != nil {
		h.fail(w, r, "mint failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromToken(tok))
}

// HandleGetToken handles GET /tokens/{tokenID}.
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := domain.ParseTokenID(chi.URLParam(r, "tokenID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tok, err := h.service.GetToken(tokenID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromToken(tok))
}

// HandleTransfer handles POST /tokens/{tokenID}/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	tokenID, err := domain.ParseTokenID(chi.URLParam(r, "tokenID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if err := h.service.Transfer(ctx, caller, caller, req.parsedTo, tokenID); err != nil {
		h.fail(w, r, "transfer failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetKYC handles PUT /kyc/{wallet}.
func (h *Handler) HandleSetKYC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	wallet, err := domain.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[KYCRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if err := h.service.SetKYCStatus(ctx, caller, wallet, *req.Verified); err != nil {
		h.fail(w, r, "set kyc status failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, KYCResponse{Wallet: wallet, Verified: *req.Verified})
}

// HandleGetKYC handles GET /kyc/{wallet}.
func (h *Handler) HandleGetKYC(w http.ResponseWriter, r *http.Request) {
	wallet, err := domain.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, KYCResponse{Wallet: wallet, Verified: h.service.IsVerified(wallet)})
}

// HandleTokensOf handles GET /wallets/{wallet}/tokens.
func (h *Handler) HandleTokensOf(w http.ResponseWriter, r *http.Request) {
	wallet, err := domain.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tokens := h.service.TokensOf(wallet)
	resp := TokenListResponse{Wallet: wallet, Tokens: make([]TokenResponse, 0, len(tokens))}
	for _, t := range tokens {
		resp.Tokens = append(resp.Tokens, fromToken(t))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleVotingPower handles GET /wallets/{wallet}/voting-power.
func (h *Handler) HandleVotingPower(w http.ResponseWriter, r *http.Request) {
	wallet, err := domain.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view := h.service.VotingPowerBreakdown(wallet)
	resp := VotingPowerResponse{
		Wallet:      wallet,
		VotingPower: view.Total,
		PerProperty: make(map[string]uint64, len(view.PerProperty)),
	}
	for id, shares := range view.PerProperty {
		resp.PerProperty[id.String()] = shares
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandlePropertyVotingPower handles GET /wallets/{wallet}/voting-power/{propertyID}.
func (h *Handler) HandlePropertyVotingPower(w http.ResponseWriter, r *http.Request) {
	wallet, err := domain.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	propertyID, err := domain.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PropertyVotingPowerResponse{
		Wallet:      wallet,
		PropertyID:  propertyID,
		VotingPower: h.service.PropertyVotingPower(wallet, propertyID),
	})
}

// HandleGetPause handles GET /admin/pause.
func (h *Handler) HandleGetPause(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, PauseResponse{Paused: h.service.Paused()})
}

// HandlePause handles POST /admin/pause.
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// HandleUnpause handles POST /admin/unpause.
func (h *Handler) HandleUnpause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *Handler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	op := h.service.Unpause
	if paused {
		op = h.service.Pause
	}
	if err := op(r.Context(), caller); err != nil {
		h.fail(w, r, "pause toggle failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PauseResponse{Paused: paused})
}

// HandleRoleMembers handles GET /roles/{role}.
func (h *Handler) HandleRoleMembers(w http.ResponseWriter, r *http.Request) {
	role := access.Role(chi.URLParam(r, "role"))
	members, err := h.service.RoleMembers(role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RoleMembersResponse{Role: string(role), Members: members})
}

// HandleGrantRole handles PUT /roles/{role}/{wallet}.
func (h *Handler) HandleGrantRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, h.service.GrantRole)
}

// HandleRevokeRole handles DELETE /roles/{role}/{wallet}.
func (h *Handler) HandleRevokeRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, h.service.RevokeRole)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request, op func(context.Context, domain.Address, access.Role, domain.Address) error) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	role, err := access.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown role"))
		return
	}
	account, err := domain.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := op(r.Context(), caller, role, account); err != nil {
		h.fail(w, r, "role change failed", err)
		return
	}
	members, err := h.service.RoleMembers(role)
	if err != nil {
		h.fail(w, r, "role members not readable", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RoleMembersResponse{Role: string(role), Members: members})
}

// requireCaller reads the authenticated caller. The auth middleware already
// rejected anonymous requests; this guards handlers mounted without it.
func (h *Handler) requireCaller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsZero() {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
			Error:            string(dErrors.CodeUnauthorized),
			ErrorDescription: "authentication required",
		})
		return domain.Address{}, false
	}
	return caller, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeInvariantViolation {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"caller", requestcontext.Caller(ctx).String(),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
