package management

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"relay/internal/logger"
	"relay/pkg/errors"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type Handler struct {
	Service Service
	Logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		configs := v1.Group("/configs")
		{
			configs.GET("", h.ListConfigs)
			configs.POST("", h.CreateConfig)
			configs.GET("/:id", h.GetConfig)
			configs.PUT("/:id", h.UpdateConfig)
			configs.DELETE("/:id", h.DeleteConfig)
			configs.POST("/:id/activate", h.ActivateConfig)
			configs.GET("/:id/audit", h.GetConfigAuditLogs)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/logs", h.GetAuditLogs)
		}
	}
}

// ListConfigs godoc
// @Summary      List all webhook configurations
// @Description  Get all tenant webhook configurations, secrets masked
// @Tags         configs
// @Accept       json
// @Produce      json
// @Success      200  {array}   ConfigResponse
// @Failure      500  {object}  map[string]interface{}
// @Router       /configs [get]
func (h *Handler) ListConfigs(c *gin.Context) {
	configs, err := h.Service.ListConfigs(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, configs)
}

// CreateConfig godoc
// @Summary      Create a webhook configuration
// @Description  Create a new tenant webhook configuration
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        config  body      CreateConfigRequest  true  "Configuration data"
// @Success      201     {object}  ConfigResponse
// @Failure      400     {object}  map[string]interface{}
// @Failure      409     {object}  map[string]interface{}
// @Failure      500     {object}  map[string]interface{}
// @Router       /configs [post]
func (h *Handler) CreateConfig(c *gin.Context) {
	var req CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	config, err := h.Service.CreateConfig(c.Request.Context(), req, actor(c), c.ClientIP())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, config)
}

// GetConfig godoc
// @Summary      Get a webhook configuration
// @Description  Get a webhook configuration by ID, secrets masked
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Config ID"
// @Success      200  {object}  ConfigResponse
// @Failure      404  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]interface{}
// @Router       /configs/{id} [get]
func (h *Handler) GetConfig(c *gin.Context) {
	config, err := h.Service.GetConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

// UpdateConfig godoc
// @Summary      Update a webhook configuration
// @Description  Update a webhook configuration; the cached token is invalidated
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        id      path      string               true  "Config ID"
// @Param        config  body      UpdateConfigRequest  true  "Updated configuration"
// @Success      200     {object}  ConfigResponse
// @Failure      400     {object}  map[string]interface{}
// @Failure      404     {object}  map[string]interface{}
// @Failure      500     {object}  map[string]interface{}
// @Router       /configs/{id} [put]
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	config, err := h.Service.UpdateConfig(c.Request.Context(), c.Param("id"), req, actor(c), c.ClientIP())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, config)
}

// DeleteConfig godoc
// @Summary      Delete a webhook configuration
// @Description  Delete a webhook configuration by ID
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        id   path  string  true  "Config ID"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]interface{}
// @Router       /configs/{id} [delete]
func (h *Handler) DeleteConfig(c *gin.Context) {
	if err := h.Service.DeleteConfig(c.Request.Context(), c.Param("id"), actor(c), c.ClientIP()); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateConfig godoc
// @Summary      Activate a webhook configuration
// @Description  Mark one configuration active and deactivate all others
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Config ID"
// @Success      200  {object}  ConfigResponse
// @Failure      404  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]interface{}
// @Router       /configs/{id}/activate [post]
func (h *Handler) ActivateConfig(c *gin.Context) {
	config, err := h.Service.ActivateConfig(c.Request.Context(), c.Param("id"), actor(c), c.ClientIP())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

// GetConfigAuditLogs godoc
// @Summary      Get audit logs for a configuration
// @Description  Get the change history of one configuration
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        id     path   string  true   "Config ID"
// @Param        limit  query  int     false  "Maximum number of logs to return (1-1000)"  default(100)
// @Success      200  {array}   AuditLog
// @Failure      500  {object}  map[string]interface{}
// @Router       /configs/{id}/audit [get]
func (h *Handler) GetConfigAuditLogs(c *gin.Context) {
	id := c.Param("id")
	logs, err := h.Service.GetAuditLogs(c.Request.Context(), &id, parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetAuditLogs godoc
// @Summary      Get audit logs
// @Description  Get configuration audit logs, optionally filtered by config ID
// @Tags         audit
// @Accept       json
// @Produce      json
// @Param        config_id  query  string  false  "Filter by config ID"
// @Param        limit      query  int     false  "Maximum number of logs to return (1-1000)"  default(100)
// @Success      200  {array}   AuditLog
// @Failure      500  {object}  map[string]interface{}
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	var configID *string
	if id := c.Query("config_id"); id != "" {
		configID = &id
	}

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), configID, parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func actor(c *gin.Context) string {
	if user := c.GetHeader("X-User"); user != "" {
		return user
	}
	return "unknown"
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return defaultAuditLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > maxAuditLimit {
		return defaultAuditLimit
	}
	return parsed
}
