package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/securequery/agent-api/internal/handler"
	"github.com/securequery/agent-api/internal/service/audit"
)

const defaultListLimit = 100

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/audit")
	{
		group.GET("/events", h.ListEvents)
	}
}

// ListEvents returns audit events matching the query filters. Events are
// append-only; this endpoint is the only way out of the store.
func (h *Handler) ListEvents(c *gin.Context) {
	filters := map[string]interface{}{
		"limit": defaultListLimit,
	}

	if userID := c.Query("user_id"); userID != "" {
		filters["user_id"] = userID
	}
	if action := c.Query("action"); action != "" {
		filters["action"] = action
	}
	if outcome := c.Query("outcome"); outcome != "" {
		filters["outcome"] = outcome
	}
	if phi := c.Query("phi_accessed"); phi != "" {
		value, err := strconv.ParseBool(phi)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid phi_accessed"))
			return
		}
		filters["phi_accessed"] = value
	}
	if start := c.Query("start_date"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid start_date"))
			return
		}
		filters["start_date"] = t
	}
	if end := c.Query("end_date"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid end_date"))
			return
		}
		filters["end_date"] = t
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid limit"))
			return
		}
		filters["limit"] = n
	}

	events, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"events": events,
		"count":  len(events),
	}))
}
