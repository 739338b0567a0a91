package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/okitshop/paycore/internal/models"
	"github.com/okitshop/paycore/internal/service"
	"github.com/okitshop/paycore/internal/signature"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	webhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paycore_webhooks_total",
		Help: "Inbound webhook deliveries by final outcome",
	}, []string{"provider", "outcome"})

	webhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paycore_webhook_processing_seconds",
		Help:    "Webhook processing latency",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"provider"})

	statusRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paycore_status_requests_total",
		Help: "Status query requests by status code",
	}, []string{"status"})
)

const maxWebhookBody = 1 << 20 // 1 MiB

// Reconciler applies one parsed webhook to stored state.
type Reconciler interface {
	Process(ctx context.Context, n *models.CinetPayNotification) (*models.ReconcileResult, error)
}

// StatusProvider serves the read-only polling projection.
type StatusProvider interface {
	Get(ctx context.Context, transactionID string) (*models.StatusResponse, error)
}

// PaymentInitiator starts a checkout: order, pending transaction, hosted URL.
type PaymentInitiator interface {
	Initiate(ctx context.Context, req service.InitiateRequest) (*service.InitiateResult, error)
}

// AuditLog records every inbound webhook regardless of processing outcome.
type AuditLog interface {
	RecordReceived(ctx context.Context, provider, transactionID, payload, headers, clientIP string) (uuid.UUID, error)
	RecordOutcome(ctx context.Context, auditID uuid.UUID, outcome models.WebhookOutcome) error
}

// Verifier checks the aggregator signature on a payload.
type Verifier interface {
	Verify(f signature.Fields, supplied string) bool
}

type Handler struct {
	reconciler Reconciler
	status     StatusProvider
	payments   PaymentInitiator
	audit      AuditLog
	verifier   Verifier
	logger     *zap.Logger
}

func NewHandler(reconciler Reconciler, status StatusProvider, payments PaymentInitiator, audit AuditLog, verifier Verifier, logger *zap.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		status:     status,
		payments:   payments,
		audit:      audit,
		verifier:   verifier,
		logger:     logger,
	}
}

// HandleWebhook is the aggregator callback entry point. The audit row is
// written before any processing; rejected-but-received payloads answer 200 so
// the aggregator does not retry conditions that can never succeed. Only an
// unexpected internal failure answers 500, which is the retry signal.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	start := time.Now()
	timer := prometheus.NewTimer(webhookDuration.WithLabelValues(provider))
	defer timer.ObserveDuration()

	body, readErr := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if readErr != nil {
		// Whatever partial body arrived still gets its audit row.
		auditID := h.recordReceived(r, provider, "", body)
		h.recordOutcome(auditID, start, models.WebhookOutcome{
			Processed: false, ErrorMessage: "body read failed: " + readErr.Error(),
		})
		webhooksTotal.WithLabelValues(provider, "read_error").Inc()
		respondWithJSON(w, http.StatusOK, errorBody("Corps de requête illisible", "MALFORMED_PAYLOAD"))
		return
	}

	notification, parseErr := parseNotification(r.Header.Get("Content-Type"), body)

	transactionID := ""
	if notification != nil {
		transactionID = notification.TransactionID
	}
	auditID := h.recordReceived(r, provider, transactionID, body)

	// Everything below runs with the audit row already persisted; a crash
	// from here on still leaves a trace. Unexpected panics become the one
	// intentional 500.
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("webhook processing panic",
				zap.String("provider", provider),
				zap.String("transaction_id", transactionID),
				zap.Any("panic", rec))
			h.recordOutcome(auditID, start, models.WebhookOutcome{
				Processed:    false,
				ErrorMessage: "internal panic",
			})
			webhooksTotal.WithLabelValues(provider, "panic").Inc()
			respondWithJSON(w, http.StatusInternalServerError, errorBody("Erreur interne", "INTERNAL_ERROR"))
		}
	}()

	if parseErr != nil {
		// Never reached the reconciler: the audit row stays failed.
		h.recordOutcome(auditID, start, models.WebhookOutcome{
			Processed: false, ErrorMessage: "malformed payload: " + parseErr.Error(),
		})
		webhooksTotal.WithLabelValues(provider, "malformed").Inc()
		respondWithJSON(w, http.StatusOK, errorBody("Données de notification invalides", "MALFORMED_PAYLOAD"))
		return
	}
	if err := notification.Validate(); err != nil {
		h.recordOutcome(auditID, start, models.WebhookOutcome{
			Processed: false, ErrorMessage: err.Error(),
		})
		webhooksTotal.WithLabelValues(provider, "malformed").Inc()
		respondWithJSON(w, http.StatusOK, errorBody("Champs obligatoires manquants", "MISSING_FIELDS"))
		return
	}

	fields := signature.Fields{
		SiteID:          notification.SiteID,
		TransactionID:   notification.TransactionID,
		TransactionDate: notification.TransactionDate,
		Amount:          notification.Amount,
		Currency:        notification.Currency,
	}
	if !h.verifier.Verify(fields, notification.Signature) {
		// Audit keeps the attempt for attack-pattern detection; nothing is
		// mutated and no hint about the mismatch leaks.
		h.recordOutcome(auditID, start, models.WebhookOutcome{
			Processed: false, ErrorMessage: "signature verification failed",
		})
		webhooksTotal.WithLabelValues(provider, "bad_signature").Inc()
		h.logger.Warn("webhook signature rejected",
			zap.String("provider", provider),
			zap.String("transaction_id", notification.TransactionID),
			zap.String("client_ip", clientIP(r)))
		respondWithJSON(w, http.StatusOK, errorBody("Signature invalide", "INVALID_SIGNATURE"))
		return
	}

	result, err := h.reconciler.Process(r.Context(), notification)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTransactionNotFound):
			h.recordOutcome(auditID, start, models.WebhookOutcome{
				Processed: true, ErrorMessage: "transaction not found: " + notification.TransactionID,
			})
			webhooksTotal.WithLabelValues(provider, "not_found").Inc()
			respondWithJSON(w, http.StatusNotFound, errorBody("Transaction non trouvée", "TRANSACTION_NOT_FOUND"))
		case errors.Is(err, service.ErrUnknownStatus):
			h.recordOutcome(auditID, start, models.WebhookOutcome{
				Processed: true, Notes: "unrecognized status skipped",
			})
			webhooksTotal.WithLabelValues(provider, "unknown_status").Inc()
			respondWithJSON(w, http.StatusOK, errorBody("Statut non reconnu", "UNKNOWN_STATUS"))
		default:
			h.logger.Error("webhook reconciliation failed",
				zap.String("provider", provider),
				zap.String("transaction_id", notification.TransactionID),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			h.recordOutcome(auditID, start, models.WebhookOutcome{
				Processed: false, ErrorMessage: err.Error(),
			})
			webhooksTotal.WithLabelValues(provider, "error").Inc()
			respondWithJSON(w, http.StatusInternalServerError, errorBody("Erreur interne", "INTERNAL_ERROR"))
		}
		return
	}

	outcome := models.WebhookOutcome{Processed: true, Notes: "status " + string(result.Status)}
	resp := webhookResponse{
		Success:       true,
		TransactionID: result.TransactionID,
		Status:        result.Status,
		OrderNumber:   result.OrderNumber,
		ProcessedAt:   result.ProcessedAt,
	}
	if result.Duplicate {
		outcome.Notes = "duplicate, already processed"
		resp.Message = "already processed"
		webhooksTotal.WithLabelValues(provider, "duplicate").Inc()
	} else if result.Stale {
		outcome.Notes = "stale non-terminal status ignored"
		resp.Message = "stale status ignored"
		webhooksTotal.WithLabelValues(provider, "stale").Inc()
	} else {
		if result.Overrode != "" {
			outcome.Notes = fmt.Sprintf("terminal override: %s -> %s", result.Overrode, result.Status)
		}
		webhooksTotal.WithLabelValues(provider, "processed").Inc()
	}
	h.recordOutcome(auditID, start, outcome)
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleWebhookHealth answers the aggregator's reachability probe.
func (h *Handler) HandleWebhookHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "status": "operational"})
}

// HandleStatus serves the polling endpoint. Read-only; safe to hit
// repeatedly and concurrently.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	transactionID := r.URL.Query().Get("transactionId")
	if transactionID == "" {
		statusRequestsTotal.WithLabelValues("400").Inc()
		respondWithJSON(w, http.StatusBadRequest, errorBody("Paramètre transactionId requis", "MISSING_TRANSACTION_ID"))
		return
	}

	resp, err := h.status.Get(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			statusRequestsTotal.WithLabelValues("404").Inc()
			respondWithJSON(w, http.StatusNotFound, errorBody("Transaction non trouvée", "TRANSACTION_NOT_FOUND"))
			return
		}
		h.logger.Error("status query failed",
			zap.String("transaction_id", transactionID), zap.Error(err))
		statusRequestsTotal.WithLabelValues("500").Inc()
		respondWithJSON(w, http.StatusInternalServerError, errorBody("Erreur interne", "INTERNAL_ERROR"))
		return
	}

	statusRequestsTotal.WithLabelValues("200").Inc()
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleInitiate starts a checkout and returns the hosted payment URL.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	var req service.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorBody("Corps de requête invalide", "MALFORMED_BODY"))
		return
	}

	result, err := h.payments.Initiate(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyOrder) {
			respondWithJSON(w, http.StatusUnprocessableEntity, errorBody("La commande ne contient aucun article", "EMPTY_ORDER"))
			return
		}
		if errors.Is(err, service.ErrInvalidItem) {
			respondWithJSON(w, http.StatusUnprocessableEntity, errorBody("Article de commande invalide", "INVALID_ITEM"))
			return
		}
		h.logger.Error("payment initiation failed", zap.Error(err))
		respondWithJSON(w, http.StatusInternalServerError, errorBody("Erreur interne", "INTERNAL_ERROR"))
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]any{"success": true, "payment": result})
}

func parseNotification(contentType string, body []byte) (*models.CinetPayNotification, error) {
	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		return models.ParseNotificationForm(body)
	}
	return models.ParseNotificationJSON(body)
}

func (h *Handler) recordReceived(r *http.Request, provider, transactionID string, body []byte) uuid.UUID {
	headers, _ := json.Marshal(r.Header)
	auditID, err := h.audit.RecordReceived(r.Context(), provider, transactionID, string(body), string(headers), clientIP(r))
	if err != nil {
		// Degraded mode: processing continues, the gap is logged loudly.
		h.logger.Error("webhook audit write failed, continuing without audit row",
			zap.String("provider", provider),
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return uuid.Nil
	}
	return auditID
}

func (h *Handler) recordOutcome(auditID uuid.UUID, start time.Time, outcome models.WebhookOutcome) {
	if auditID == uuid.Nil {
		return
	}
	outcome.ProcessingTimeMs = time.Since(start).Milliseconds()
	// The response must not depend on the audit update; give it its own
	// deadline instead of the (possibly cancelled) request context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.audit.RecordOutcome(ctx, auditID, outcome); err != nil {
		h.logger.Error("webhook audit outcome write failed",
			zap.String("audit_id", auditID.String()), zap.Error(err))
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}

type webhookResponse struct {
	Success       bool                     `json:"success"`
	TransactionID string                   `json:"transactionId"`
	Status        models.TransactionStatus `json:"status"`
	OrderNumber   string                   `json:"orderNumber,omitempty"`
	ProcessedAt   time.Time                `json:"processedAt"`
	Message       string                   `json:"message,omitempty"`
}

func errorBody(message, code string) map[string]any {
	return map[string]any{"success": false, "error": message, "code": code}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
