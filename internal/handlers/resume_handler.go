package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resume-builder/internal/dtos"
	"github.com/justsurfingit/resume-builder/internal/models"
	"github.com/justsurfingit/resume-builder/internal/services"
	"github.com/justsurfingit/resume-builder/pkg/resume"
	"go.uber.org/zap"
)

type ResumeHandler struct {
	ResumeService  *services.ResumeService
	RenderService  *services.RenderService
	PrinterService *services.PrinterService
	Log            *zap.Logger
}

func NewResumeHandler(r *services.ResumeService, render *services.RenderService, printer *services.PrinterService, log *zap.Logger) *ResumeHandler {
	return &ResumeHandler{
		ResumeService:  r,
		RenderService:  render,
		PrinterService: printer,
		Log:            log,
	}
}

// List is GET /resumes?tags=a,b&sort=name
func (h *ResumeHandler) List(c *gin.Context) {
	var tags []string
	for _, t := range strings.Split(c.Query("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	resumes, err := h.ResumeService.List(c.Request.Context(), currentUserID(c), tags, c.Query("sort"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, resumes)
}

func (h *ResumeHandler) Tags(c *gin.Context) {
	tags, err := h.ResumeService.Tags(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (h *ResumeHandler) Templates(c *gin.Context) {
	out := []gin.H{}
	for _, t := range resume.Templates() {
		out = append(out, gin.H{
			"id":               t.ID,
			"name":             t.Name,
			"sidebar_position": t.SidebarPosition,
			"supports_sidebar": t.SupportsSidebar(),
			"tags":             t.Tags,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *ResumeHandler) Get(c *gin.Context) {
	r, err := h.ResumeService.GetByID(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ResumeHandler) Create(c *gin.Context) {
	var req dtos.CreateResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.ResumeService.Create(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// Import is POST /imports
func (h *ResumeHandler) Import(c *gin.Context) {
	var req dtos.ImportResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.ResumeService.Import(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *ResumeHandler) Update(c *gin.Context) {
	var req dtos.UpdateResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Password.Set && !req.Password.Null {
		if n := len(req.Password.Value); n < 6 || n > 64 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "password must be 6 to 64 characters", "code": "BAD_REQUEST"})
			return
		}
	}
	r, err := h.ResumeService.Update(c.Request.Context(), c.Param("id"), currentUserID(c), &req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// UpdateData is PUT /resumes/:id/data with the whole document as body.
func (h *ResumeHandler) UpdateData(c *gin.Context) {
	data, ok := h.bindData(c)
	if !ok {
		return
	}
	r, err := h.ResumeService.UpdateData(c.Request.Context(), c.Param("id"), currentUserID(c), data)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ResumeHandler) bindData(c *gin.Context) (*resume.ResumeData, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return nil, false
	}
	data, err := resume.Unmarshal(raw)
	if err != nil {
		badRequest(c, err)
		return nil, false
	}
	return data, true
}

func (h *ResumeHandler) SetLocked(c *gin.Context) {
	var req dtos.LockResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.ResumeService.SetLocked(c.Request.Context(), c.Param("id"), currentUserID(c), req.IsLocked)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ResumeHandler) Duplicate(c *gin.Context) {
	var req dtos.DuplicateResumeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	r, err := h.ResumeService.Duplicate(c.Request.Context(), c.Param("id"), currentUserID(c), &req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *ResumeHandler) Delete(c *gin.Context) {
	if err := h.ResumeService.Delete(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ResumeHandler) Statistics(c *gin.Context) {
	stats, err := h.ResumeService.GetStatistics(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ResumeHandler) MoveSection(c *gin.Context) {
	var req dtos.MoveSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.ResumeService.MoveSection(c.Request.Context(), c.Param("id"), currentUserID(c), &req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ResumeHandler) AddPage(c *gin.Context) {
	r, err := h.ResumeService.AddPage(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ResumeHandler) RemovePage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "page index must be a number", "code": "BAD_REQUEST"})
		return
	}
	r, err := h.ResumeService.RemovePage(c.Request.Context(), c.Param("id"), currentUserID(c), index)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// Preview renders the stored document (GET) or an unsaved draft posted by
// the builder (POST).
func (h *ResumeHandler) Preview(c *gin.Context) {
	r, err := h.ResumeService.GetByID(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	data := r.Data
	if c.Request.Method == http.MethodPost {
		var ok bool
		if data, ok = h.bindData(c); !ok {
			return
		}
		if err := resume.Validate(data); err != nil {
			respondError(c, h.Log, err)
			return
		}
	}
	page, err := h.RenderService.Render(data)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// PDF is the owner's download; it does not count as a public download.
func (h *ResumeHandler) PDF(c *gin.Context) {
	r, err := h.ResumeService.GetByID(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	writePDF(c, h.RenderService, h.PrinterService, h.Log, r)
}

func writePDF(c *gin.Context, render *services.RenderService, printer *services.PrinterService, log *zap.Logger, r *models.Resume) {
	page, err := render.Render(r.Data)
	if err != nil {
		respondError(c, log, err)
		return
	}
	pdf, err := printer.PrintPDF(c.Request.Context(), page, r.Data.Metadata.Page.Format)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", r.Slug+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
