package handler

import (
	"garmentflow/internal/middleware"
	"garmentflow/internal/service"
	"garmentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
}

func NewDashboardHandler(dashboardService service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard/stats", middleware.RequirePermission(service.PermDashboardRead), h.GetStats)
}

// @Summary      Get dashboard statistics
// @Description  Order counts by phase, state and process, open WIP, average production days of delivered orders, reject rate and low-stock counts
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  response.Response{data=model.DashboardStats}
// @Failure      401  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Security     BearerAuth
// @Router       /dashboard/stats [get]
func (h *DashboardHandler) GetStats(c *gin.Context) {
	stats, err := h.dashboardService.GetStats(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, stats)
}
