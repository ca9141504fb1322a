// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bossnet/party-signup/internal/model"
	"github.com/bossnet/party-signup/internal/repository"
	"github.com/bossnet/party-signup/internal/requestmeta"
	"github.com/bossnet/party-signup/internal/service"
	"github.com/bossnet/party-signup/internal/validation"
)

// Client-facing messages.
const (
	MsgSaved            = "Anmeldung erfolgreich gespeichert."
	MsgInputErrors      = "Eingabefehler gefunden."
	MsgMalformedBody    = "Ungültige Anfrage."
	MsgSuspicious       = "Verdächtige Aktivität erkannt."
	MsgEmailTaken       = "E-Mail bereits registriert."
	MsgInvalidData      = "Ungültige Eingabedaten."
	MsgRegisterFailed   = "Ein Fehler ist aufgetreten. Bitte versuche es später erneut."
	MsgListFailed       = "Serverfehler beim Laden der Teilnehmer."
	MsgUnauthorized     = "Unauthorized"
	MsgDatabaseDown     = "Database connection failed"
	MsgNotFound         = "Endpoint nicht gefunden."
	MsgUnexpected       = "Ein unerwarteter Fehler ist aufgetreten."
	MsgOriginNotAllowed = "Origin nicht erlaubt."
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 3 * time.Second
)

// RegistrationHandler holds all HTTP handlers for the signup API.
type RegistrationHandler struct {
	svc        *service.RegistrationService
	adminToken string
	logger     *slog.Logger
	now        func() time.Time
}

// NewRegistrationHandler constructs a RegistrationHandler. An empty
// adminToken leaves the participant listing open.
func NewRegistrationHandler(svc *service.RegistrationService, adminToken string, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		svc:        svc,
		adminToken: adminToken,
		logger:     logger,
		now:        time.Now,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// decodeSubmission reads the body as a raw JSON object. Numbers stay
// json.Number so the validator sees exactly what the client sent.
func decodeSubmission(w http.ResponseWriter, r *http.Request) (model.Submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var sub model.Submission
	if err := dec.Decode(&sub); err != nil {
		return nil, err
	}
	if sub == nil {
		sub = model.Submission{}
	}
	return sub, nil
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Register handles POST /api/register
// Runs the submission through bot defense, validation and the upsert.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	sub, err := decodeSubmission(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ValidationErrorResponse{
			Error:   MsgInputErrors,
			Details: []string{MsgMalformedBody},
			Fields:  []model.FieldProblem{},
		})
		return
	}

	prov := requestmeta.FromContext(r.Context())
	result, err := h.svc.Register(r.Context(), sub, prov)
	if err != nil {
		h.writeRegisterError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.RegisterResponse{
		OK:      true,
		ID:      result.ID,
		Message: MsgSaved,
	})
}

func (h *RegistrationHandler) writeRegisterError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.Is(err, service.ErrBotDetected):
		writeError(w, http.StatusTooManyRequests, MsgSuspicious)
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, model.ValidationErrorResponse{
			Error:           MsgInputErrors,
			Details:         verr.Messages(),
			Fields:          verr.Problems,
			ConsentRequired: verr.ConsentMissing,
		})
	case errors.Is(err, repository.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, MsgEmailTaken)
	case errors.Is(err, repository.ErrInvalidInput):
		h.logger.WarnContext(r.Context(), "registration hit a table constraint",
			"error", err,
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
		writeError(w, http.StatusBadRequest, MsgInvalidData)
	default:
		h.logger.ErrorContext(r.Context(), "registration failed",
			"error", err,
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, MsgRegisterFailed)
	}
}

// ListRegistrations handles GET /api/registrations
// Returns the consenting participants; guarded by the admin token when one
// is configured.
func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	if h.adminToken != "" && !bearerMatches(r.Header.Get("Authorization"), h.adminToken) {
		writeError(w, http.StatusUnauthorized, MsgUnauthorized)
		return
	}

	regs, err := h.svc.ListPublic(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list participants failed",
			"error", err,
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, MsgListFailed)
		return
	}

	writeJSON(w, http.StatusOK, regs)
}

func bearerMatches(header, token string) bool {
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}

// ─── Health check ─────────────────────────────────────────────────────────────

// Health handles GET /api/health
func (h *RegistrationHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.svc.Health(ctx); err != nil {
		h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, model.HealthResponse{OK: false, Error: MsgDatabaseDown})
		return
	}
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true, Timestamp: h.now().UTC()})
}

// NotFound answers unknown endpoints.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, MsgNotFound)
}
