package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/realitycheck/backend/internal/domain"
)

type analyzeProductRequest struct {
	EAN  string `json:"ean" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// SearchProducts handles GET /api/products?search=&page=
func (h *Handler) SearchProducts(c *gin.Context) {
	var query domain.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil || query.Page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid search parameters"})
		return
	}

	products, err := h.products.Search(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}

	c.JSON(http.StatusOK, products)
}

// GetProduct handles GET /api/products/:ean
func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.products.GetByEAN(c.Request.Context(), c.Param("ean"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ScanProduct handles GET /api/products/scan/:code, the barcode scanner's lookup
func (h *Handler) ScanProduct(c *gin.Context) {
	product, err := h.products.Scan(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// BackendAnalysis handles POST /api/products/analyze
func (h *Handler) BackendAnalysis(c *gin.Context) {
	var req analyzeProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "EAN and name are required"})
		return
	}

	analysis, err := h.products.Analyze(c.Request.Context(), req.EAN, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// ProductAIAnalysis handles POST /api/products/:ean/ai-analysis
func (h *Handler) ProductAIAnalysis(c *gin.Context) {
	resp, err := h.products.AnalyzeWithAI(c.Request.Context(), c.Param("ean"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
