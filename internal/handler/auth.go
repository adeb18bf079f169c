package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ngdi-portal/internal/config"
	"ngdi-portal/internal/middleware"
	"ngdi-portal/internal/models"
	"ngdi-portal/internal/service"
)

const csrfCookieName = "ngdi_csrf"

type AuthHandler interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Session(c *gin.Context)
	Sync(c *gin.Context)
	Logout(c *gin.Context)
}

type authHandler struct {
	authService service.AuthService
	cfg         *config.Config
	log         *logrus.Logger
}

func NewAuthHandler(authService service.AuthService, cfg *config.Config, log *logrus.Logger) AuthHandler {
	return &authHandler{authService: authService, cfg: cfg, log: log}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type SyncRequest struct {
	ID          string  `json:"id" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	Name        string  `json:"name"`
	Image       *string `json:"image"`
	AccessToken string  `json:"accessToken" binding:"required"`
	Provider    string  `json:"provider"`
}

func (h *authHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, password and name are required"})
		return
	}

	user, err := h.authService.Register(req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
			return
		}
		h.log.Errorf("Failed to register user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful",
		"user":    user,
	})
}

func (h *authHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	tokenString, claims, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), req.RememberMe)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTooManyAttempts):
			retryAfter := h.authService.RetryAfter(c.Request.Context(), req.Email)
			if retryAfter <= 0 {
				retryAfter = h.cfg.RateLimit.Window
			}
			c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts"})
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		default:
			h.log.Errorf("Login failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		}
		return
	}

	h.setSessionCookies(c, tokenString, req.RememberMe)

	c.JSON(http.StatusOK, gin.H{
		"token":   tokenString,
		"expires": claims.ExpiresAt.Time,
		"user": gin.H{
			"id":    claims.Subject,
			"email": claims.Email,
			"name":  claims.Name,
			"role":  claims.Role,
		},
	})
}

// Session implements the session read endpoint. It never propagates an error
// to the caller: failures collapse into a 500 JSON body, everything else is
// either the session or the anonymous shape.
func (h *authHandler) Session(c *gin.Context) {
	tokenString := middleware.SessionToken(c, h.cfg.Auth.SessionCookie)

	session, err := h.authService.Session(c.Request.Context(), tokenString)
	if err != nil {
		h.log.Errorf("Session read failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read session"})
		return
	}

	if session.User == nil {
		c.JSON(http.StatusOK, gin.H{"user": nil, "expires": nil})
		return
	}

	c.JSON(http.StatusOK, session)
}

// Sync accepts an externally-authenticated identity and links it to a portal
// user. Idempotent: an already-valid session short-circuits.
func (h *authHandler) Sync(c *gin.Context) {
	existing := middleware.SessionToken(c, h.cfg.Auth.SessionCookie)
	if existing != "" {
		if session, err := h.authService.Session(c.Request.Context(), existing); err == nil && session.User != nil {
			c.JSON(http.StatusOK, gin.H{"message": "Session already established"})
			return
		}
	}

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid identity payload"})
		return
	}

	provider := req.Provider
	if provider == "" {
		provider = "google"
	}

	tokenString, user, err := h.authService.SyncExternalIdentity(c.Request.Context(), models.ExternalIdentity{
		Provider:          provider,
		ProviderAccountID: req.ID,
		Email:             req.Email,
		Name:              req.Name,
		Image:             req.Image,
		AccessToken:       req.AccessToken,
		EmailVerified:     true,
	})
	if err != nil {
		h.log.Errorf("Identity sync failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync identity"})
		return
	}

	h.setSessionCookies(c, tokenString, false)

	c.JSON(http.StatusOK, gin.H{
		"token": tokenString,
		"user":  user,
	})
}

// Logout always succeeds from the caller's perspective.
func (h *authHandler) Logout(c *gin.Context) {
	h.authService.SignOut(c.Request.Context(), middleware.CurrentClaims(c), c.ClientIP())

	h.clearSessionCookies(c)

	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h *authHandler) setSessionCookies(c *gin.Context, tokenString string, rememberMe bool) {
	maxAge := 0 // Session-scoped cookie unless the user opted to be remembered.
	if rememberMe {
		maxAge = int(h.cfg.Auth.RememberMeTTL.Seconds())
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Auth.SessionCookie, tokenString, maxAge, "/", "", h.cfg.IsProduction(), true)

	if csrf, err := generateToken(); err == nil {
		c.SetCookie(csrfCookieName, csrf, maxAge, "/", "", h.cfg.IsProduction(), true)
	} else {
		h.log.Warnf("Failed to generate CSRF token: %v", err)
	}
}

func (h *authHandler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Auth.SessionCookie, "", -1, "/", "", h.cfg.IsProduction(), true)
	c.SetCookie(csrfCookieName, "", -1, "/", "", h.cfg.IsProduction(), true)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
