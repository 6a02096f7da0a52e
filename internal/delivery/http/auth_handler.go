package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/infrastructure/backend"
	"github.com/realitycheck/backend/internal/usecase"
)

const sessionContextKey = "session"

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /api/auth/signup
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	session, err := h.sessions.CreateAccount(c.Request.Context(), req.Name, req.Email, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, session)
	case errors.Is(err, domain.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, a valid email and a password are required"})
	default:
		h.log.WithError(err).Error("signup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
	}
}

// Login handles POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	session, ok := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	c.JSON(http.StatusOK, session)
}

// Logout handles POST /api/auth/logout. Revoking an already dead token still succeeds.
func (h *Handler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
		return
	}

	h.sessions.Logout(c.Request.Context(), token)
	c.Status(http.StatusNoContent)
}

// CurrentSession handles GET /api/auth/me. Callers without a valid token get
// an anonymous session rather than an error.
func (h *Handler) CurrentSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Restore(c.Request.Context(), bearerToken(c)))
}

// UpdatePreferences handles PUT /api/users/me/preferences
func (h *Handler) UpdatePreferences(c *gin.Context) {
	var prefs domain.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid preferences"})
		return
	}

	if err := h.accounts.UpdatePreferences(backendContext(c), prefs); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// AddFavorite handles POST /api/users/me/favorites/:ean
func (h *Handler) AddFavorite(c *gin.Context) {
	ean := domain.NormalizeEAN(c.Param("ean"))
	if !domain.ValidEAN(ean) {
		h.respondError(c, domain.ErrInvalidEAN)
		return
	}

	if err := h.accounts.AddFavorite(backendContext(c), ean); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Favorites handles GET /api/users/me/favorites
func (h *Handler) Favorites(c *gin.Context) {
	products, err := h.accounts.Favorites(backendContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, products)
}

// RequireSession rejects requests without an authenticated session and
// stores the session on the gin context.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		session := h.sessions.Restore(c.Request.Context(), token)
		if !session.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func sessionFrom(c *gin.Context) *domain.Session {
	if v, ok := c.Get(sessionContextKey); ok {
		if session, ok := v.(*domain.Session); ok {
			return session
		}
	}
	return usecase.AnonymousSession()
}

// backendContext carries the session's product backend token on the request context
func backendContext(c *gin.Context) context.Context {
	return backend.WithBearer(c.Request.Context(), sessionFrom(c).BackendToken)
}
