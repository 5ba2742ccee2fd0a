package payment

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dzpay/chargily-bridge/internal/common"
	"github.com/dzpay/chargily-bridge/internal/ledger"
)

// Handler exposes the host-side checkout initiation endpoint.
type Handler struct {
	Gateway Provider
	Ledger  ledger.Store
	// PublicBaseURL overrides the request host when building the success and
	// failure return URLs. When empty the request's scheme and host are used.
	PublicBaseURL string
	Log           zerolog.Logger
}

type payResp struct {
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// Pay initiates a hosted checkout session for the pending transaction named in
// the URL. A gateway failure still answers 200 with an empty redirectUrl so the
// checkout page can render without one.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Gateway == nil || h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	if reference == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "reference is required", nil)
		return
	}
	tx, err := h.Ledger.FindByReference(r.Context(), reference)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "TRANSACTION_NOT_FOUND", "transaction not found", nil)
			return
		}
		h.Log.Error().Err(err).Str("reference", reference).Msg("ledger lookup failed")
		common.JSONError(w, http.StatusInternalServerError, "LEDGER_ERROR", "unable to load transaction", nil)
		return
	}
	if tx.Status != ledger.StatusPending {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "transaction is not pending", nil)
		return
	}
	url, err := h.Gateway.InitiateCheckout(r.Context(), tx, h.baseURL(r))
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
			return
		}
		if errors.Is(err, ErrProviderNotConfigured) {
			common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "gateway not configured", nil)
			return
		}
		h.Log.Error().Err(err).Str("reference", reference).Msg("initiate checkout")
		common.JSONError(w, http.StatusInternalServerError, "CHECKOUT_FAILED", "unable to initiate checkout", nil)
		return
	}
	common.JSON(w, http.StatusOK, payResp{RedirectURL: url})
}

func (h *Handler) baseURL(r *http.Request) string {
	if base := strings.TrimSpace(h.PublicBaseURL); base != "" {
		return base
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}
