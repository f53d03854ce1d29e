// Package handlers implements the HTTP handlers for the gencore tier
// endpoints and the operational read-outs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vortexartec/gencore/internal/admission"
	"github.com/vortexartec/gencore/internal/ledger"
	"github.com/vortexartec/gencore/internal/pipeline"
	pkgmw "github.com/vortexartec/gencore/pkg/middleware"
	"github.com/vortexartec/gencore/pkg/models"
)

// maxBodyBytes bounds generate request bodies.
const maxBodyBytes = 1 << 20

// Admitter gates requests on quota and credentials.
type Admitter interface {
	Admit(ctx context.Context, userID, tier string, action models.Action, params models.Params) (*admission.Admission, error)
	Status(ctx context.Context, userID, tier string) (*models.Usage, error)
}

// Orchestrator runs admitted requests.
type Orchestrator interface {
	Orchestrate(ctx context.Context, req models.OrchestrationRequest) (*models.PipelineResponse, error)
}

// LedgerReader exposes the cost ledger state.
type LedgerReader interface {
	Snapshot() ledger.Snapshot
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Admission Admitter
	Pipeline  Orchestrator
	Ledger    LedgerReader
	Now       func() time.Time
}

// New creates a new Handlers instance with all dependencies.
func New(a Admitter, p Orchestrator, l LedgerReader) *Handlers {
	return &Handlers{Admission: a, Pipeline: p, Ledger: l, Now: time.Now}
}

// ── Generate ─────────────────────────────────────────────────

type generateRequest struct {
	Action models.Action   `json:"action"`
	Params json.RawMessage `json:"params"`
	Agents []string        `json:"agents,omitempty"`
}

// generateResponse adds the API key to the pipeline response the one time a
// credential is issued.
type generateResponse struct {
	*models.PipelineResponse
	APIKey string `json:"api_key,omitempty"`
}

func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	tier := chi.URLParam(r, "tier")
	userID := pkgmw.GetUserID(r.Context())

	var body generateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	action, err := models.ParseAction(string(body.Action))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	params, err := models.DecodeParams(action, body.Params)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	adm, err := h.Admission.Admit(r.Context(), userID, tier, action, params)
	if err != nil {
		h.respondAdmissionError(w, err)
		return
	}

	req := models.OrchestrationRequest{
		RequestID: uuid.New().String(),
		Action:    action,
		UserID:    userID,
		Tier:      tier,
		Params:    params,
		Agents:    body.Agents,
		StartedAt: h.Now().UTC(),
	}
	resp, err := h.Pipeline.Orchestrate(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("Orchestration double fault")
		respondError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	remaining := adm.Remaining
	resp.RemainingQuota = &remaining
	out := generateResponse{PipelineResponse: resp}
	if adm.CredentialIssued {
		out.APIKey = adm.APIKey
	}
	respondJSON(w, http.StatusOK, out)
}

// ── Status ───────────────────────────────────────────────────

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	usage, err := h.Admission.Status(r.Context(), pkgmw.GetUserID(r.Context()), chi.URLParam(r, "tier"))
	if err != nil {
		h.respondAdmissionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, usage)
}

// ── Ledger ───────────────────────────────────────────────────

func (h *Handlers) LedgerSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Ledger.Snapshot())
}

// ── Helpers ──────────────────────────────────────────────────

func (h *Handlers) respondAdmissionError(w http.ResponseWriter, err error) {
	var qe *admission.QuotaExceededError
	switch {
	case errors.As(err, &qe):
		if retry := int(qe.ResetsAt.Sub(h.Now()).Seconds()); retry > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
		respondJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":     "quota_exceeded",
			"message":   qe.Error(),
			"limit":     qe.Limit,
			"used":      qe.Used,
			"resets_at": qe.ResetsAt,
		})
	case errors.Is(err, admission.ErrInvalidTier):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, admission.ErrMissingUser):
		respondError(w, http.StatusUnauthorized, err.Error())
	default:
		log.Error().Err(err).Msg("Admission failed")
		respondError(w, http.StatusInternalServerError, "admission unavailable")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

var _ Orchestrator = (*pipeline.Pipeline)(nil)
