package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resume-builder/internal/services"
	"go.uber.org/zap"
)

// Extensions served as attachments so a browser never renders them inline.
var forcedDownload = []string{".html", ".htm", ".svg", ".xml", ".js", ".mjs"}

type StorageHandler struct {
	StorageService *services.StorageService
	AppURL         string
	Log            *zap.Logger
}

func NewStorageHandler(s *services.StorageService, appURL string, log *zap.Logger) *StorageHandler {
	return &StorageHandler{StorageService: s, AppURL: appURL, Log: log}
}

// UploadImage is POST /storage/images with a multipart "file" field.
func (h *StorageHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxUploadSize+1<<20)
	file, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file is required: " + err.Error(), "code": "BAD_REQUEST"})
		return
	}
	f, err := file.Open()
	if err != nil {
		respondError(c, h.Log, fmt.Errorf("opening upload: %w", err))
		return
	}
	defer f.Close()

	url, err := h.StorageService.UploadImage(c.Request.Context(), currentUserID(c), f)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (h *StorageHandler) DeleteFile(c *gin.Context) {
	if err := h.StorageService.DeleteFile(c.Request.Context(), currentUserID(c), c.Param("filename")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Serve is GET /uploads/:userId/:fileId
func (h *StorageHandler) Serve(c *gin.Context) {
	ctx := c.Request.Context()
	userID, filename := c.Param("userId"), c.Param("fileId")

	info, err := h.StorageService.Stat(ctx, userID, filename)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	etag := fmt.Sprintf(`"%d-%d"`, info.Size, info.ModTime.UnixMilli())
	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", "default-src 'none'; img-src 'self'; style-src 'none'; script-src 'none'; sandbox")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Cross-Origin-Resource-Policy", "same-site")
	c.Header("X-Robots-Tag", "noindex")
	c.Header("Access-Control-Allow-Origin", h.AppURL)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	ext := strings.ToLower(path.Ext(filename))
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = info.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if slices.Contains(forcedDownload, ext) {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}

	rc, info, err := h.StorageService.Open(ctx, userID, filename)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, info.Size, contentType, rc, nil)
}
