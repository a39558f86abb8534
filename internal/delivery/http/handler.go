package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/draftlens/backend/internal/domain"
	"github.com/draftlens/backend/internal/usecase"
)

// DraftService is the use case surface the handlers drive
type DraftService interface {
	Analyze(ctx context.Context, req *usecase.AnalyzeRequest) (*domain.DraftSession, error)
	GetDraft(ctx context.Context, id string) (*domain.DraftSession, error)
	UpdateText(ctx context.Context, id, text string) (*domain.DraftSession, error)
	Enrich(ctx context.Context, id, provider string) (*domain.DraftSession, error)
	GenerateVariants(ctx context.Context, req *domain.VariantRequest) ([]domain.VariantRecord, error)
	PersistVariants(ctx context.Context, productID string, records []domain.VariantRecord) ([]domain.VariantRecord, error)
	ListVariants(ctx context.Context, productID string) ([]domain.VariantRecord, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service DraftService
	logger  zerolog.Logger
}

// NewHandler creates a new HTTP handler. A nil service makes every draft
// endpoint answer 501.
func NewHandler(service DraftService, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type updateTextRequest struct {
	Text string `json:"text" binding:"required"`
}

type enrichRequest struct {
	Provider string `json:"provider"`
}

type persistVariantsRequest struct {
	Variants []domain.VariantRecord `json:"variants"`
}

type variantsResponse struct {
	Count    int                    `json:"count"`
	Variants []domain.VariantRecord `json:"variants"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "draftlens-backend",
		"version": "1.0.0",
	})
}

// AnalyzeDraft runs the extraction pipeline on pasted text and photos
func (h *Handler) AnalyzeDraft(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req usecase.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	session, err := h.service.Analyze(c.Request.Context(), &req)
	if errors.Is(err, domain.ErrNothingExtracted) && session != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"session": session,
		})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GetDraft returns a draft session
func (h *Handler) GetDraft(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	session, err := h.service.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// UpdateDraftText replaces the draft's input text and re-runs the rules
func (h *Handler) UpdateDraftText(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req updateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	session, err := h.service.UpdateText(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// EnrichDraft runs an external provider against the draft's current text
func (h *Handler) EnrichDraft(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req enrichRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	session, err := h.service.Enrich(c.Request.Context(), c.Param("id"), req.Provider)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SuggestVariants seeds a variant request from the draft's merged fields
func (h *Handler) SuggestVariants(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	session, err := h.service.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usecase.SuggestVariantRequest(session.Draft))
}

// GenerateVariants expands size and colour selections into variants
func (h *Handler) GenerateVariants(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req domain.VariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	variants, err := h.service.GenerateVariants(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variantsResponse{Count: len(variants), Variants: variants})
}

// PersistVariants replaces the stored variant set of a product
func (h *Handler) PersistVariants(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req persistVariantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	variants, err := h.service.PersistVariants(c.Request.Context(), c.Param("productId"), req.Variants)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variantsResponse{Count: len(variants), Variants: variants})
}

// ListVariants returns the stored variant set of a product
func (h *Handler) ListVariants(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	variants, err := h.service.ListVariants(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variantsResponse{Count: len(variants), Variants: variants})
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.service == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "draft service not configured"})
		return false
	}
	return true
}

// respondError maps domain errors onto HTTP statuses
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrTooManyDimensions),
		errors.Is(err, domain.ErrProviderNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDraftNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStaleResult):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNothingExtracted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoSourceAvailable),
		errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
