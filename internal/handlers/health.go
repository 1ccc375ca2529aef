package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resume-builder/internal/database"
	"github.com/justsurfingit/resume-builder/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type HealthHandler struct {
	DB             *gorm.DB
	StorageService *services.StorageService
	Log            *zap.Logger
}

// HealthCheck checks the database and the storage backend in parallel and
// answers 500 when either fails.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbStatus, storageStatus := "healthy", "healthy"
	// a plain group, so one failing check does not cancel the other
	var g errgroup.Group
	g.Go(func() error {
		if err := database.Ping(ctx, h.DB); err != nil {
			dbStatus = "unhealthy"
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := h.StorageService.HealthCheck(ctx); err != nil {
			storageStatus = "unhealthy"
			return err
		}
		return nil
	})

	err := g.Wait()
	checks := gin.H{"database": dbStatus, "storage": storageStatus}
	if err != nil {
		h.Log.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "unhealthy", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "checks": checks})
}
