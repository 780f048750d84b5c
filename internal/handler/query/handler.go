package query

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/securequery/agent-api/internal/handler"
	"github.com/securequery/agent-api/internal/middleware"
	"github.com/securequery/agent-api/internal/model"
	"github.com/securequery/agent-api/internal/service/agent"
)

type Handler struct {
	service *agent.Service
}

func NewHandler(service *agent.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/query", h.Ask)
	r.POST("/sql", h.ExecuteSQL)

	schema := r.Group("/schema")
	{
		schema.GET("", h.ListTables)
		schema.GET("/:table", h.DescribeTable)
	}
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

type sqlRequest struct {
	SQL string `json:"sql" binding:"required"`
}

// Ask answers a natural-language question over the warehouse.
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("question is required"))
		return
	}

	resp, err := h.service.Query(c.Request.Context(), &model.QueryRequest{
		UserID:   middleware.UserIDFromContext(c),
		Role:     middleware.RoleFromContext(c),
		Question: req.Question,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

// ExecuteSQL runs caller-supplied SQL through the same pipeline as
// translated queries.
func (h *Handler) ExecuteSQL(c *gin.Context) {
	var req sqlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("sql is required"))
		return
	}

	resp, err := h.service.ExecuteSQL(c.Request.Context(), &model.QueryRequest{
		UserID: middleware.UserIDFromContext(c),
		Role:   middleware.RoleFromContext(c),
		SQL:    req.SQL,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) ListTables(c *gin.Context) {
	tables, err := h.service.ListTables(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"tables": tables}))
}

func (h *Handler) DescribeTable(c *gin.Context) {
	table := c.Param("table")
	columns, err := h.service.DescribeTable(c.Request.Context(), middleware.UserIDFromContext(c), table)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"table": table, "columns": columns}))
}
