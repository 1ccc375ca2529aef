package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resume-builder/internal/metrics"
	"github.com/justsurfingit/resume-builder/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps carries everything the router wires into its handlers.
type Deps struct {
	DB       *gorm.DB
	AppURL   string
	Resumes  *services.ResumeService
	Auth     *services.AuthService
	Storage  *services.StorageService
	Render   *services.RenderService
	Printer  *services.PrinterService
	LLM      *services.LLMService
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	// RateLimitPerMinute bounds resume password attempts per client.
	RateLimitPerMinute int
	// TrustedProxies may set the client IP through X-Forwarded-For.
	TrustedProxies []string
	// Middleware runs before every route, e.g. CORS.
	Middleware []gin.HandlerFunc
}

func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New()
	// nil trusts no proxy, so rate limits key on the peer address
	var proxies []string
	if len(d.TrustedProxies) > 0 {
		proxies = d.TrustedProxies
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		return nil, fmt.Errorf("setting trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), RequestLogger(d.Log), Metrics(d.Metrics))
	r.Use(d.Middleware...)
	r.SetHTMLTemplate(pageTemplates)

	secure := strings.HasPrefix(d.AppURL, "https://")
	authn := &Authenticator{Auth: d.Auth, Log: d.Log}
	limiter := NewRateLimiter(d.RateLimitPerMinute)

	authHandler := NewAuthHandler(d.Auth, secure, d.Log)
	resumeHandler := NewResumeHandler(d.Resumes, d.Render, d.Printer, d.Log)
	storageHandler := NewStorageHandler(d.Storage, d.AppURL, d.Log)
	aiHandler := NewAIHandler(d.LLM, d.Log)
	healthHandler := &HealthHandler{DB: d.DB, StorageService: d.Storage, Log: d.Log}
	publicHandler := &PublicHandler{
		ResumeService:  d.Resumes,
		AuthService:    d.Auth,
		RenderService:  d.Render,
		PrinterService: d.Printer,
		Metrics:        d.Metrics,
		SecureCookies:  secure,
		Log:            d.Log,
	}

	r.GET("/api/health", healthHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	r.GET("/uploads/:userId/:fileId", storageHandler.Serve)

	viewer := r.Group("/", authn.Optional())
	{
		viewer.GET("/r/:username/:slug", publicHandler.View)
		viewer.GET("/r/:username/:slug/pdf", publicHandler.PDF)
		viewer.GET(resumePasswordPath, publicHandler.PasswordForm)
		viewer.POST(resumePasswordPath, limiter.Handler(), publicHandler.SubmitPassword)
	}

	api := r.Group("/api/v1")
	{
		// Auth routes
		api.GET("/auth/providers", authHandler.Providers)
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/two-factor/login", authHandler.TwoFactorLogin)
		api.POST("/auth/password/forgot", authHandler.ForgotPassword)
		api.POST("/auth/password/reset", authHandler.ResetPassword)
		api.POST("/auth/resume-password", limiter.Handler(), authHandler.ResumePassword)
		api.GET("/auth/oauth/:provider", authHandler.OAuthStart)
		api.GET("/auth/oauth/:provider/callback", authHandler.OAuthCallback)

		// Public routes
		public := api.Group("/public", authn.Optional())
		public.GET("/:username/:slug", publicHandler.Resume)
		public.POST("/resumes/:id/statistics", publicHandler.Statistics)

		private := api.Group("", authn.Required())
		private.POST("/auth/logout", authHandler.Logout)
		private.GET("/auth/session", authHandler.Session)
		private.POST("/auth/two-factor/enable", authHandler.EnableTwoFactor)
		private.POST("/auth/two-factor/verify", authHandler.VerifyTwoFactor)
		private.POST("/auth/two-factor/disable", authHandler.DisableTwoFactor)
		private.GET("/auth/api-keys", authHandler.ListAPIKeys)
		private.POST("/auth/api-keys", authHandler.CreateAPIKey)
		private.DELETE("/auth/api-keys/:id", authHandler.DeleteAPIKey)
		private.DELETE("/auth/account", authHandler.DeleteAccount)

		// Resume routes
		private.GET("/resumes", resumeHandler.List)
		private.POST("/resumes", resumeHandler.Create)
		private.GET("/resumes/:id", resumeHandler.Get)
		private.PATCH("/resumes/:id", resumeHandler.Update)
		private.DELETE("/resumes/:id", resumeHandler.Delete)
		private.PUT("/resumes/:id/data", resumeHandler.UpdateData)
		private.POST("/resumes/:id/lock", resumeHandler.SetLocked)
		private.POST("/resumes/:id/duplicate", resumeHandler.Duplicate)
		private.GET("/resumes/:id/statistics", resumeHandler.Statistics)
		private.POST("/resumes/:id/layout/move", resumeHandler.MoveSection)
		private.POST("/resumes/:id/layout/pages", resumeHandler.AddPage)
		private.DELETE("/resumes/:id/layout/pages/:index", resumeHandler.RemovePage)
		private.GET("/resumes/:id/preview", resumeHandler.Preview)
		private.POST("/resumes/:id/preview", resumeHandler.Preview)
		private.GET("/resumes/:id/pdf", resumeHandler.PDF)
		private.GET("/tags", resumeHandler.Tags)
		private.GET("/templates", resumeHandler.Templates)
		private.POST("/imports", resumeHandler.Import)

		// Storage and AI routes
		private.POST("/storage/images", storageHandler.UploadImage)
		private.DELETE("/storage/files/:filename", storageHandler.DeleteFile)
		private.POST("/ai/improve", aiHandler.Improve)
	}
	return r, nil
}
