package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	auditDB     *sqlx.DB
	warehouseDB *sqlx.DB
}

func NewHandler(auditDB, warehouseDB *sqlx.DB) *Handler {
	return &Handler{
		auditDB:     auditDB,
		warehouseDB: warehouseDB,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// ReadinessCheck fails if either store is unreachable. The service cannot
// run without its audit sink.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if err := h.auditDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "audit store connection failed",
		})
		return
	}
	if err := h.warehouseDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "warehouse connection failed",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
