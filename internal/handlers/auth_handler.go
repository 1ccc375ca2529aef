package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resume-builder/internal/dtos"
	"github.com/justsurfingit/resume-builder/internal/services"
	"go.uber.org/zap"
)

type AuthHandler struct {
	AuthService *services.AuthService
	// SecureCookies marks cookies Secure, set when the app is served over https.
	SecureCookies bool
	Log           *zap.Logger
}

func NewAuthHandler(a *services.AuthService, secureCookies bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{AuthService: a, SecureCookies: secureCookies, Log: log}
}

func sessionMeta(c *gin.Context) services.SessionMeta {
	return services.SessionMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, s *dtos.SessionResponse) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, s.Token, int(time.Until(s.ExpiresAt).Seconds()), "/", "", h.SecureCookies, true)
}

// Providers is the GET /auth/providers endpoint
func (h *AuthHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.AuthService.ProviderNames()})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dtos.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, session, err := h.AuthService.Register(c.Request.Context(), &req, sessionMeta(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.setSessionCookie(c, session)
	c.JSON(http.StatusCreated, gin.H{"user": user, "session": session})
}

// Login answers 200 with a session, or 200 with a pending token when the
// user still has to enter a two-factor code.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dtos.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session, pending, err := h.AuthService.Login(c.Request.Context(), req.Identifier, req.Password, sessionMeta(c))
	if errors.Is(err, services.ErrTwoFactorRequired) {
		c.JSON(http.StatusOK, gin.H{"two_factor_required": true, "pending_token": pending})
		return
	}
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.setSessionCookie(c, session)
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *AuthHandler) TwoFactorLogin(c *gin.Context) {
	var req dtos.TwoFactorLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session, err := h.AuthService.VerifyTwoFactorLogin(c.Request.Context(), req.PendingToken, req.Code, sessionMeta(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.setSessionCookie(c, session)
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if token := c.GetString(tokenKey); token != "" {
		if err := h.AuthService.Logout(c.Request.Context(), token); err != nil {
			respondError(c, h.Log, err)
			return
		}
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", h.SecureCookies, true)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
}

func (h *AuthHandler) EnableTwoFactor(c *gin.Context) {
	var req dtos.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	setup, err := h.AuthService.EnableTwoFactor(c.Request.Context(), currentUserID(c), req.Password)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, setup)
}

func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req dtos.CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.AuthService.VerifyTwoFactor(c.Request.Context(), currentUserID(c), req.Code); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) DisableTwoFactor(c *gin.Context) {
	var req dtos.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.AuthService.DisableTwoFactor(c.Request.Context(), currentUserID(c), req.Password); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ForgotPassword always answers 200 so it cannot be used to look up
// registered addresses.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dtos.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.AuthService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dtos.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.AuthService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) ListAPIKeys(c *gin.Context) {
	keys, err := h.AuthService.ListAPIKeys(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

func (h *AuthHandler) CreateAPIKey(c *gin.Context) {
	var req dtos.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	key, err := h.AuthService.CreateAPIKey(c.Request.Context(), currentUserID(c), req.Name, req.ExpiresInDays)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, key)
}

func (h *AuthHandler) DeleteAPIKey(c *gin.Context) {
	if err := h.AuthService.DeleteAPIKey(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	if err := h.AuthService.DeleteAccount(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", h.SecureCookies, true)
	c.Status(http.StatusNoContent)
}

// ResumePassword is the JSON variant of the resume password form. On
// success the access grant is stored in a cookie scoped to the resume.
func (h *AuthHandler) ResumePassword(c *gin.Context) {
	var req dtos.ResumePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	grant, err := h.AuthService.VerifyResumePassword(c.Request.Context(), req.Username, req.Slug, req.Password)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	setGrantCookie(c, h.SecureCookies, req.Username, req.Slug, grant)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

const (
	oauthStateCookie = "oauth_state"
	oauthStatePath   = "/api/v1/auth/oauth"
	oauthStateMaxAge = 10 * time.Minute
)

// OAuthStart redirects to the provider's consent screen. The state is
// also kept in a cookie so only this browser can finish the flow.
func (h *AuthHandler) OAuthStart(c *gin.Context) {
	url, state, err := h.AuthService.OAuthStart(c.Request.Context(), c.Param("provider"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	// Lax, since the provider sends the browser back with a top-level GET
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, int(oauthStateMaxAge.Seconds()), oauthStatePath, "", h.SecureCookies, true)
	c.Redirect(http.StatusFound, url)
}

// OAuthCallback finishes a social login and sends the browser to the
// dashboard with the session cookie set.
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	if msg := c.Query("error"); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimSpace(msg), "code": "OAUTH_DENIED"})
		return
	}
	browserState, _ := c.Cookie(oauthStateCookie)
	c.SetCookie(oauthStateCookie, "", -1, oauthStatePath, "", h.SecureCookies, true)

	session, err := h.AuthService.OAuthCallback(c.Request.Context(), c.Param("provider"), c.Query("state"), browserState, c.Query("code"), sessionMeta(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.setSessionCookie(c, session)
	c.Redirect(http.StatusFound, "/dashboard")
}
