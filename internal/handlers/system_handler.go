package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"feedbackapp/internal/config"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	"feedbackapp/internal/version"

	"github.com/gin-gonic/gin"
)

// Dashboard pages served from the static directory
const (
	UserDashboardPage  = "user_dashboard.html"
	AdminDashboardPage = "admin_dashboard.html"
)

// BackendReporter names the storage backend in use
type BackendReporter interface {
	Backend() string
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Backend   string `json:"backend"`
	AIEnabled bool   `json:"ai_enabled"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
}

// SystemHandler serves health checks and the dashboard pages
type SystemHandler struct {
	serviceName string
	staticDir   string
	storage     BackendReporter
	aiService   services.AIServiceInterface
	logger      *observability.Logger
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(cfg *config.Config, storage BackendReporter, aiService services.AIServiceInterface, logger *observability.Logger) *SystemHandler {
	return &SystemHandler{
		serviceName: cfg.OpenTelemetry.ServiceName,
		staticDir:   cfg.Server.StaticDir,
		storage:     storage,
		aiService:   aiService,
		logger:      logger,
	}
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:  "ok",
		Service: h.serviceName,
		Version: version.Version,
		Commit:  version.Commit,
	}
	if h.storage != nil {
		resp.Backend = h.storage.Backend()
	}
	if h.aiService != nil {
		resp.AIEnabled = h.aiService.Enabled()
	}
	c.JSON(http.StatusOK, resp)
}

// UserDashboard handles GET /
func (h *SystemHandler) UserDashboard(c *gin.Context) {
	h.servePage(c, UserDashboardPage)
}

// AdminDashboard handles GET /admin
func (h *SystemHandler) AdminDashboard(c *gin.Context) {
	h.servePage(c, AdminDashboardPage)
}

func (h *SystemHandler) servePage(c *gin.Context, page string) {
	path := filepath.Join(h.staticDir, page)
	if _, err := os.Stat(path); err != nil {
		h.logger.Warn(c.Request.Context(), "Dashboard page not found", map[string]interface{}{
			"path": path,
		})
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.File(path)
}
