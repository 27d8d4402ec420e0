package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fenceline/botgate/internal/chain"
	"github.com/fenceline/botgate/internal/grants"
	"github.com/fenceline/botgate/internal/metrics"
	"github.com/fenceline/botgate/internal/payment"
)

// accessRequest is the public pay-to-access request.
// client_ip is optional; when absent the connection's remote address is
// granted access.
type accessRequest struct {
	TransactionRef string `json:"transaction_ref"`
	ClientIP       string `json:"client_ip,omitempty"`
}

// accessResponse is returned on a successful grant.
type accessResponse struct {
	GrantID     string    `json:"grant_id"`
	IP          string    `json:"ip"`
	ExpiresAt   time.Time `json:"expires_at"`
	RemainingMS int64     `json:"remaining_ms"`
}

// HandleCreateAccess verifies a payment proof and grants access
// POST /api/access
//
// 200: grant issued. 403: the proof was judged invalid or already used
// (definitive; do not retry with the same proof). 500/502: verification
// could not be completed or the grant partially failed.
func (h *Handler) HandleCreateAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	// Validation failures never reach a collaborator.
	if !chain.IsTxRef(req.TransactionRef) {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"transaction_ref must be a 0x-prefixed 32-byte hash")
		return
	}

	ip := req.ClientIP
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}
	if net.ParseIP(ip) == nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "client_ip is not a valid IP address")
		return
	}

	expected := payment.Expected{
		Recipient: h.cfg.PaymentRecipient,
		MinAmount: h.cfg.PaymentMinWei,
	}

	grant, err := h.grants.Grant(r.Context(), ip, req.TransactionRef, expected)
	if err != nil {
		h.writeGrantError(w, err)
		return
	}

	metrics.RecordGrantIssued()
	writeJSON(w, http.StatusOK, accessResponse{
		GrantID:     grant.ID,
		IP:          grant.IP,
		ExpiresAt:   grant.ExpiresAt,
		RemainingMS: time.Until(grant.ExpiresAt).Milliseconds(),
	})
}

// writeGrantError maps grant-manager errors onto the response taxonomy.
func (h *Handler) writeGrantError(w http.ResponseWriter, err error) {
	var policyErr *grants.PolicyError
	switch {
	case errors.As(err, &policyErr):
		metrics.RecordGrantDenied(string(policyErr.Reason))
		WriteError(w, http.StatusForbidden, ErrCodeProofRejected, policyErr.Detail)

	case errors.Is(err, grants.ErrProofAlreadyUsed):
		metrics.RecordGrantDenied("already_used")
		WriteError(w, http.StatusForbidden, ErrCodeProofRejected, "payment proof already used")

	case errors.Is(err, grants.ErrGrantDeployFailed):
		metrics.RecordGrantDenied("deploy_failed")
		WriteErrorWithHint(w, http.StatusInternalServerError, ErrCodeGrantDeployFailed,
			"payment verified, access grant failed",
			"retry shortly with a new payment proof; the submitted proof is spent")

	case errors.Is(err, grants.ErrVerifierUnavailable):
		metrics.RecordGrantDenied("network_error")
		WriteError(w, http.StatusInternalServerError, ErrCodeCollaboratorError,
			"payment verification could not be completed, retry later")

	default:
		h.logger.Error("access grant failed", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}

// HandleAccessStatus reports the remaining TTL of a grant
// GET /api/access/{ip}
func (h *Handler) HandleAccessStatus(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if net.ParseIP(ip) == nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "not a valid IP address")
		return
	}

	remaining, active, err := h.grants.TimeRemaining(r.Context(), ip)
	if err != nil {
		h.logger.Error("grant status lookup failed", "ip", ip, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "could not load grant status")
		return
	}

	if !active {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":       true,
		"remaining_ms": remaining.Milliseconds(),
	})
}
