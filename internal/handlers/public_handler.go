package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resume-builder/internal/auth"
	"github.com/justsurfingit/resume-builder/internal/dtos"
	"github.com/justsurfingit/resume-builder/internal/metrics"
	"github.com/justsurfingit/resume-builder/internal/models"
	"github.com/justsurfingit/resume-builder/internal/services"
	"github.com/justsurfingit/resume-builder/pkg/resume"
	"go.uber.org/zap"
)

const (
	resumePasswordPath = "/auth/resume-password"
	resumeGrantMaxAge  = 24 * time.Hour
)

var viewerPath = regexp.MustCompile(`^/r/([^/]+)/([^/]+)$`)

// grantCookieName scopes the access grant cookie to one public resume.
func grantCookieName(username, slug string) string {
	return "resume_access_" + auth.HashToken(resume.ToUsername(username) + "/" + slug)[:12]
}

func setGrantCookie(c *gin.Context, secure bool, username, slug, grant string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(grantCookieName(username, slug), grant, int(resumeGrantMaxAge.Seconds()), "/", "", secure, true)
}

var pageTemplates = template.Must(template.New("resume-password.html").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex">
<title>Password required</title>
<style>
body { font-family: system-ui, sans-serif; display: grid; place-items: center; min-height: 100vh; margin: 0; background: #fafafa; }
form { display: grid; gap: 12px; width: 320px; padding: 24px; border: 1px solid #e5e5e5; border-radius: 8px; background: #fff; }
.error { color: #dc2626; }
</style>
</head>
<body>
<form method="post" action="/auth/resume-password">
<h1>Password required</h1>
<p>The resume at {{.Redirect}} is protected. Enter its password to continue.</p>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<input type="hidden" name="redirect" value="{{.Redirect}}">
<input type="password" name="password" placeholder="Password" required autofocus>
<button type="submit">Unlock</button>
</form>
</body>
</html>
`))

type passwordPage struct {
	Redirect string
	Error    string
}

// PublicHandler serves shared resumes: the JSON endpoints used by the
// frontend and the server-rendered viewer under /r/.
type PublicHandler struct {
	ResumeService  *services.ResumeService
	AuthService    *services.AuthService
	RenderService  *services.RenderService
	PrinterService *services.PrinterService
	Metrics        *metrics.Metrics
	SecureCookies  bool
	Log            *zap.Logger
}

func (h *PublicHandler) lookup(c *gin.Context, username, slug string) (*models.Resume, error) {
	grant, _ := c.Cookie(grantCookieName(username, slug))
	return h.ResumeService.GetBySlug(c.Request.Context(), username, slug, currentUserID(c), grant)
}

// count records views and downloads made by anyone but the owner.
func (h *PublicHandler) count(c *gin.Context, r *models.Resume, views, downloads bool) {
	if r.UserID == currentUserID(c) {
		return
	}
	if err := h.ResumeService.IncrementStatistics(c.Request.Context(), r.ID, views, downloads); err != nil {
		h.Log.Warn("failed to update statistics", zap.String("resume_id", r.ID), zap.Error(err))
		return
	}
	if views {
		h.Metrics.ResumeViewed()
	}
	if downloads {
		h.Metrics.ResumeDownloaded()
	}
}

// Resume is GET /api/v1/public/:username/:slug
func (h *PublicHandler) Resume(c *gin.Context) {
	r, err := h.lookup(c, c.Param("username"), c.Param("slug"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// Statistics is POST /api/v1/public/resumes/:id/statistics
func (h *PublicHandler) Statistics(c *gin.Context) {
	var req dtos.StatisticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.ResumeService.IncrementStatistics(c.Request.Context(), c.Param("id"), req.Views, req.Downloads); err != nil {
		respondError(c, h.Log, err)
		return
	}
	if req.Views {
		h.Metrics.ResumeViewed()
	}
	if req.Downloads {
		h.Metrics.ResumeDownloaded()
	}
	c.Status(http.StatusNoContent)
}

// viewerError answers viewer requests: protected resumes redirect to the
// password form, everything else becomes a plain status page.
func (h *PublicHandler) viewerError(c *gin.Context, err error) {
	var need *services.NeedPasswordError
	if errors.As(err, &need) {
		target := "/r/" + url.PathEscape(need.Username) + "/" + url.PathEscape(need.Slug)
		c.Redirect(http.StatusFound, resumePasswordPath+"?redirect="+url.QueryEscape(target))
		return
	}
	if errors.Is(err, services.ErrNotFound) {
		c.String(http.StatusNotFound, "Resume not found")
		return
	}
	if errors.Is(err, services.ErrDisabled) {
		c.String(http.StatusNotImplemented, "PDF export is not available")
		return
	}
	h.Log.Error("viewer request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.String(http.StatusInternalServerError, "Something went wrong")
}

// View is GET /r/:username/:slug
func (h *PublicHandler) View(c *gin.Context) {
	r, err := h.lookup(c, c.Param("username"), c.Param("slug"))
	if err != nil {
		h.viewerError(c, err)
		return
	}
	page, err := h.RenderService.Render(r.Data)
	if err != nil {
		h.viewerError(c, err)
		return
	}
	h.count(c, r, true, false)

	c.Header("Cache-Control", "private, no-cache")
	c.Header("X-Robots-Tag", "noindex")
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// PDF is GET /r/:username/:slug/pdf
func (h *PublicHandler) PDF(c *gin.Context) {
	r, err := h.lookup(c, c.Param("username"), c.Param("slug"))
	if err != nil {
		h.viewerError(c, err)
		return
	}
	page, err := h.RenderService.Render(r.Data)
	if err != nil {
		h.viewerError(c, err)
		return
	}
	pdf, err := h.PrinterService.PrintPDF(c.Request.Context(), page, r.Data.Metadata.Page.Format)
	if err != nil {
		h.viewerError(c, err)
		return
	}
	h.count(c, r, false, true)

	c.Header("Content-Disposition", `attachment; filename="`+r.Slug+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// parseRedirect accepts only viewer paths so the form cannot be used as
// an open redirect.
func parseRedirect(redirect string) (username, slug string, ok bool) {
	m := viewerPath.FindStringSubmatch(redirect)
	if m == nil {
		return "", "", false
	}
	username, err1 := url.PathUnescape(m[1])
	slug, err2 := url.PathUnescape(m[2])
	if err1 != nil || err2 != nil {
		return "", "", false
	}
	return username, slug, true
}

// PasswordForm is GET /auth/resume-password
func (h *PublicHandler) PasswordForm(c *gin.Context) {
	redirect := c.Query("redirect")
	if _, _, ok := parseRedirect(redirect); !ok {
		c.String(http.StatusBadRequest, "Invalid redirect")
		return
	}
	c.HTML(http.StatusOK, "resume-password.html", passwordPage{Redirect: redirect})
}

// SubmitPassword is POST /auth/resume-password
func (h *PublicHandler) SubmitPassword(c *gin.Context) {
	redirect := c.PostForm("redirect")
	username, slug, ok := parseRedirect(redirect)
	if !ok {
		c.String(http.StatusBadRequest, "Invalid redirect")
		return
	}

	grant, err := h.AuthService.VerifyResumePassword(c.Request.Context(), username, slug, c.PostForm("password"))
	switch {
	case errors.Is(err, services.ErrInvalidPassword):
		c.HTML(http.StatusUnauthorized, "resume-password.html", passwordPage{Redirect: redirect, Error: "Incorrect password."})
		return
	case err != nil:
		h.viewerError(c, err)
		return
	}

	setGrantCookie(c, h.SecureCookies, username, slug, grant)
	c.Redirect(http.StatusSeeOther, redirect)
}
