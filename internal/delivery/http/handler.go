package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/logging"
	"github.com/realitycheck/backend/internal/usecase"
	"github.com/sirupsen/logrus"
)

const (
	serviceName    = "realitycheck-backend"
	serviceVersion = "1.0.0"
)

// Error bodies of the analysis routes
const (
	msgInvalidBody        = "Invalid request body"
	msgMissingProductInfo = "Missing required product information"
	msgMissingImageInfo   = "Missing image URL or product name"
	msgNotConfigured      = "AI provider is not configured"
	msgAnalysisFailed     = "Failed to analyze product"
	msgImageFailed        = "Failed to analyze product image"
)

// Dependencies are the services the HTTP layer is built on
type Dependencies struct {
	Analysis *usecase.AnalysisService
	Products *usecase.ProductService
	Sessions *usecase.SessionService
	Accounts domain.BackendAccounts

	// AllowedOrigins also gates WebSocket upgrades
	AllowedOrigins []string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	analysis *usecase.AnalysisService
	products *usecase.ProductService
	sessions *usecase.SessionService
	accounts domain.BackendAccounts
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies, log logrus.FieldLogger) *Handler {
	origins := deps.AllowedOrigins
	return &Handler{
		analysis: deps.Analysis,
		products: deps.Products,
		sessions: deps.Sessions,
		accounts: deps.Accounts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || isAllowedOrigin(origin, origins)
			},
		},
		log: logging.Component(log, "http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// AnalyzeProduct handles POST /api/analyze
func (h *Handler) AnalyzeProduct(c *gin.Context) {
	var req domain.ProductAnalysisRequest
	if !bindAnalysisBody(c, &req) {
		return
	}
	if strings.TrimSpace(req.ProductName) == "" || strings.TrimSpace(req.Ingredients) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingProductInfo})
		return
	}

	if !h.analysis.Configured() {
		h.log.Error("analyze called without an AI provider credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgNotConfigured})
		return
	}

	resp, err := h.analysis.Analyze(c.Request.Context(), &req)
	if err != nil {
		h.log.WithError(err).WithField("product", req.ProductName).Error("product analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgAnalysisFailed})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// AnalyzeImage handles POST /api/analyze-image
func (h *Handler) AnalyzeImage(c *gin.Context) {
	var req domain.ImageAnalysisRequest
	if !bindAnalysisBody(c, &req) {
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" || strings.TrimSpace(req.ProductName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingImageInfo})
		return
	}

	resp, err := h.analysis.AnalyzeImage(c.Request.Context(), &req)
	if err != nil {
		h.log.WithError(err).WithField("product", req.ProductName).Error("image analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgImageFailed})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// bindAnalysisBody decodes the JSON body. An empty body falls through to the
// required-field checks; a body that does not decode is rejected here.
func bindAnalysisBody(c *gin.Context, v interface{}) bool {
	err := c.ShouldBindJSON(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
	return false
}

// respondError maps domain errors of the product and account routes to HTTP statuses
func (h *Handler) respondError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, domain.ErrInvalidEAN):
		status, msg = http.StatusBadRequest, "Invalid EAN barcode"
	case errors.Is(err, domain.ErrInvalidRequest):
		status, msg = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, domain.ErrProductNotFound):
		status, msg = http.StatusNotFound, "Product not found"
	case errors.Is(err, domain.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrMissingCredential):
		msg = msgNotConfigured
	case errors.Is(err, domain.ErrAnalysisFailed):
		msg = msgAnalysisFailed
	case errors.Is(err, domain.ErrBackendFailure):
		status, msg = http.StatusBadGateway, "Product service unavailable"
	}

	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}
