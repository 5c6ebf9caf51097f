package handlers

import (
	"github.com/gin-gonic/gin"

	"logitrack/internal/services"
	"logitrack/pkg/utils"
)

type DashboardHandler struct {
	svc *services.Service
}

func NewDashboardHandler(svc *services.Service) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// GetKPIs returns the fleet KPI cards. A stale result is still a 200; the
// envelope's stale flag tells the client a refresh is on its way.
func (h *DashboardHandler) GetKPIs(c *gin.Context) {
	utils.QueryResponse(c, "Dashboard KPIs", h.svc.DashboardKPIs(c.Request.Context()))
}

func (h *DashboardHandler) GetRecentActivity(c *gin.Context) {
	utils.QueryResponse(c, "Recent activity", h.svc.RecentActivity(c.Request.Context()))
}
