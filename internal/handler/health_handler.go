package handler

import (
	"net/http"

	"github.com/campusride/campus/internal/store"
	"github.com/gin-gonic/gin"
)

type ModeReporter interface {
	Mode() store.Mode
}

type HealthHandler struct {
	backend ModeReporter
}

func NewHealthHandler(backend ModeReporter) *HealthHandler {
	return &HealthHandler{backend: backend}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": h.backend.Mode()})
}
