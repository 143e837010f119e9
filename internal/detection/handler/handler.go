// Package handler exposes the fraud check endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"fraudwatch/internal/detection/service"
	"fraudwatch/internal/platform/middleware"
	"fraudwatch/internal/transaction/models"
	dErrors "fraudwatch/pkg/domain-errors"
	"fraudwatch/pkg/platform/executor"
	"fraudwatch/pkg/platform/httputil"
)

// Service defines the detection operations the handler needs.
type Service interface {
	CheckTransaction(ctx context.Context, txn models.Transaction) (models.FraudDetectionResult, error)
	CheckTransactionAsync(ctx context.Context, pool *executor.Pool, txn models.Transaction) <-chan service.CheckOutcome
}

// Handler handles fraud check endpoints.
type Handler struct {
	detection Service
	asyncPool *executor.Pool
	logger    *slog.Logger
}

// New creates a detection Handler. asyncPool backs the fire-and-forget
// endpoint; nil disables it.
func New(detection Service, asyncPool *executor.Pool, logger *slog.Logger) *Handler {
	return &Handler{
		detection: detection,
		asyncPool: asyncPool,
		logger:    logger,
	}
}

// Register mounts the fraud check routes. The endpoint is called by payment
// flows, not operators, so it carries no auth middleware here; the deployment
// perimeter owns that.
func (h *Handler) Register(r chi.Router) {
	checkRouter := chi.NewRouter()
	checkRouter.Use(middleware.Timeout(15 * time.Second))
	checkRouter.Use(middleware.ContentTypeJSON)
	checkRouter.Post("/fraud-check", h.handleCheck)
	if h.asyncPool != nil {
		checkRouter.Post("/fraud-check/async", h.handleCheckAsync)
	}

	r.Mount("/v1", checkRouter)
}

// CheckRequest is the inbound transaction to screen.
type CheckRequest struct {
	TransactionID     string            `json:"transaction_id"`
	Amount            *string           `json:"amount,omitempty"`
	IPAddress         *string           `json:"ip_address,omitempty"`
	OriginatorDetails map[string]string `json:"originator_details,omitempty"`
	TransferDetails   map[string]string `json:"transfer_details,omitempty"`
}

// Validate requires an id and a parseable amount when one is present.
// Missing amount or IP is legal; rules needing them simply do not match.
func (c *CheckRequest) Validate() error {
	if c.TransactionID == "" {
		return dErrors.New(dErrors.CodeValidation, "transaction_id is required")
	}
	if c.Amount != nil {
		if _, err := decimal.NewFromString(*c.Amount); err != nil {
			return dErrors.New(dErrors.CodeValidation, "amount is not a valid decimal")
		}
	}
	return nil
}

func (c *CheckRequest) toModel() models.Transaction {
	txn := models.Transaction{
		TransactionID:     c.TransactionID,
		IPAddress:         c.IPAddress,
		OriginatorDetails: c.OriginatorDetails,
		TransferDetails:   c.TransferDetails,
	}
	if c.Amount != nil {
		v, _ := decimal.NewFromString(*c.Amount)
		txn.Amount = &v
	}
	return txn
}

// CheckResponse is the decision returned to the caller.
type CheckResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.detection.CheckTransaction(r.Context(), req.toModel())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "fraud check failed",
			"transaction_id", req.TransactionID,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CheckResponse{
		TransactionID: result.TransactionID,
		Status:        string(result.Status),
		Reason:        result.Reason,
	})
}

// handleCheckAsync accepts the transaction and screens it in the background.
// The decision is observable through the event stream and the durable store.
func (h *Handler) handleCheckAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger)
	if !ok {
		return
	}

	// Detach from the request context; the check outlives the response.
	outcome := h.detection.CheckTransactionAsync(context.WithoutCancel(r.Context()), h.asyncPool, req.toModel())
	go func() {
		o := <-outcome
		if o.Err != nil {
			h.logger.Error("async fraud check failed",
				"transaction_id", req.TransactionID,
				"error", o.Err,
			)
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, CheckResponse{
		TransactionID: req.TransactionID,
		Status:        string(models.StatusPending),
	})
}
