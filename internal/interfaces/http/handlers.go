package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/application/service"
	"github.com/veridoc/signflow/internal/domain/flow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	flowService  service.FlowService
	auditService service.AuditService
	logger       Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(flowService service.FlowService, auditService service.AuditService, logger Logger) *Handlers {
	return &Handlers{
		flowService:  flowService,
		auditService: auditService,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SignerRequest is one requested signer with its rank
type SignerRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Order  int    `json:"order"`
}

// CreateFlowRequest creates a new signature flow
type CreateFlowRequest struct {
	DocumentID string          `json:"document_id" binding:"required"`
	Name       string          `json:"name" binding:"required"`
	Signers    []SignerRequest `json:"signers" binding:"required"`
	CreatedBy  string          `json:"created_by" binding:"required"`
}

// AdvanceFlowRequest submits a signature for the current turn. Artifact is
// base64; it is forwarded opaquely to the signing backend.
type AdvanceFlowRequest struct {
	SignerID  string `json:"signer_id" binding:"required"`
	Artifact  string `json:"artifact" binding:"required"`
	Extension string `json:"extension"`
}

// RecordSignedRequest records a turn whose signature was produced out-of-band
type RecordSignedRequest struct {
	SignerID string `json:"signer_id" binding:"required"`
}

// CancelFlowRequest cancels a flow
type CancelFlowRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

// ListFlowsRequest represents query parameters for listing flows
type ListFlowsRequest struct {
	DocumentID     string `form:"document_id"`
	DocumentTypeID string `form:"document_type_id"`
	Status         string `form:"status"`
	SignerID       string `form:"signer_id"`
	CreatedBy      string `form:"created_by"`
	From           string `form:"from"`
	To             string `form:"to"`
	Page           int    `form:"page"`
	Limit          int    `form:"limit"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// CreateFlow handles POST /api/v1/flows
func (h *Handlers) CreateFlow(c *gin.Context) {
	var req CreateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	input := service.CreateFlowInput{
		DocumentID: req.DocumentID,
		Name:       req.Name,
		CreatedBy:  req.CreatedBy,
	}
	for _, s := range req.Signers {
		input.Signers = append(input.Signers, service.SignerInput{UserID: s.UserID, Order: s.Order})
	}

	created, err := h.flowService.Create(c.Request.Context(), input)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// GetFlow handles GET /api/v1/flows/:id
func (h *Handlers) GetFlow(c *gin.Context) {
	f, err := h.flowService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: f})
}

// ListFlows handles GET /api/v1/flows
func (h *Handlers) ListFlows(c *gin.Context) {
	var req ListFlowsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	filter := port.FlowFilter{
		DocumentID:     req.DocumentID,
		DocumentTypeID: req.DocumentTypeID,
		Status:         req.Status,
		SignerID:       req.SignerID,
		CreatedBy:      req.CreatedBy,
		Page:           req.Page,
		Limit:          req.Limit,
	}
	if req.From != "" {
		t, err := time.Parse(time.RFC3339, req.From)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		filter.From = &t
	}
	if req.To != "" {
		t, err := time.Parse(time.RFC3339, req.To)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		filter.To = &t
	}

	page, err := h.flowService.List(c.Request.Context(), filter)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"flows":         page.Flows,
		"total":         page.Total,
		"status_counts": page.StatusCounts,
	}})
}

// AdvanceFlow handles POST /api/v1/flows/:id/advance
func (h *Handlers) AdvanceFlow(c *gin.Context) {
	var req AdvanceFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	artifact, err := base64.StdEncoding.DecodeString(req.Artifact)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	f, err := h.flowService.Advance(c.Request.Context(), c.Param("id"), req.SignerID, artifact, req.Extension)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: f})
}

// RecordSigned handles POST /api/v1/flows/:id/record-signed
func (h *Handlers) RecordSigned(c *gin.Context) {
	var req RecordSignedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	f, err := h.flowService.RecordSigned(c.Request.Context(), c.Param("id"), req.SignerID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: f})
}

// CancelFlow handles POST /api/v1/flows/:id/cancel
func (h *Handlers) CancelFlow(c *gin.Context) {
	var req CancelFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	f, err := h.flowService.Cancel(c.Request.Context(), c.Param("id"), req.ActorID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: f})
}

// GetPendingFlows handles GET /api/v1/users/:id/pending-flows
func (h *Handlers) GetPendingFlows(c *gin.Context) {
	flows, err := h.flowService.GetPendingForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: flows})
}

// GetAuditTrail handles GET /api/v1/flows/:id/audit
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	events, err := h.auditService.GetTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: events})
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Error("Invalid request", "error", err, "path", c.FullPath())
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
}

// renderError maps the engine's error taxonomy to HTTP status codes. 503
// is the only status that invites retrying the same request unchanged.
func (h *Handlers) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, flow.ErrFlowNotFound), errors.Is(err, flow.ErrDocumentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, flow.ErrUnknownSigners), errors.Is(err, flow.ErrNoSigners):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, flow.ErrWrongTurn),
		errors.Is(err, flow.ErrAlreadyCompleted),
		errors.Is(err, flow.ErrAlreadyCancelled):
		status = http.StatusConflict
	case errors.Is(err, flow.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, flow.ErrSigningFailed):
		status = http.StatusBadGateway
	case errors.Is(err, flow.ErrSigningUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.FullPath())
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
