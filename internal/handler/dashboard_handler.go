package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/attendance-insights-api/internal/middleware"
	"github.com/noah-isme/attendance-insights-api/internal/models"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
	"github.com/noah-isme/attendance-insights-api/pkg/response"
)

type dashboardService interface {
	Overview(ctx context.Context, filters models.DashboardFilters) (*models.DashboardOverview, bool, error)
	KPIs(ctx context.Context, filters models.DashboardFilters) (models.KPISummary, bool, error)
	Schools(ctx context.Context, filters models.DashboardFilters) ([]models.SchoolAttendance, bool, error)
	Programmes(ctx context.Context, filters models.DashboardFilters) ([]models.ProgrammeAttendance, bool, error)
	Weekly(ctx context.Context, filters models.DashboardFilters) ([]models.WeeklyTrend, bool, error)
	Yearly(ctx context.Context, filters models.DashboardFilters) ([]models.YearlyTrend, bool, error)
	DeliveryModes(ctx context.Context, filters models.DashboardFilters) ([]models.DeliveryModeAttendance, bool, error)
	Hotspots(ctx context.Context, filters models.DashboardFilters) ([]models.ModuleHotspot, bool, error)
	AtRisk(ctx context.Context, filters models.DashboardFilters) ([]models.AtRiskStudent, bool, error)
	Insights(ctx context.Context, filters models.DashboardFilters) ([]models.Insight, bool, error)
	Count(ctx context.Context, filters models.DashboardFilters) (int, bool, error)
	Invalidate(ctx context.Context) (int, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service   dashboardService
	validator *validator.Validate
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, validate *validator.Validate) *DashboardHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &DashboardHandler{service: service, validator: validate}
}

func serveDataset[T any](h *DashboardHandler, c *gin.Context, fetch func(dashboardService, context.Context, models.DashboardFilters) (T, bool, error)) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	filters, err := bindFilters(c, h.validator)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	data, cacheHit, err := fetch(h.service, c.Request.Context(), filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetFilterKey(c, filters.CacheKey())
	respondWithMeta(c, data, cacheHit, start)
}

// Overview godoc
// @Summary Dashboard overview
// @Description Every dashboard dataset plus insights computed from a single fetch.
// @Tags Dashboard
// @Produce json
// @Param dateFrom query string false "Start date (YYYY-MM-DD)"
// @Param dateTo query string false "End date (YYYY-MM-DD)"
// @Param school query string false "School"
// @Param programmeName query string false "Programme"
// @Param status query string false "Attendance status"
// @Param deliveryMode query string false "Delivery mode"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	serveDataset(h, c, dashboardService.Overview)
}

// KPIs godoc
// @Summary KPI tiles
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/kpis [get]
func (h *DashboardHandler) KPIs(c *gin.Context) {
	serveDataset(h, c, dashboardService.KPIs)
}

// Schools godoc
// @Summary Status counts per school
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/schools [get]
func (h *DashboardHandler) Schools(c *gin.Context) {
	serveDataset(h, c, dashboardService.Schools)
}

// Programmes godoc
// @Summary Attendance rate per programme
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/programmes [get]
func (h *DashboardHandler) Programmes(c *gin.Context) {
	serveDataset(h, c, dashboardService.Programmes)
}

// Weekly godoc
// @Summary Weekly attendance trend
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/weekly [get]
func (h *DashboardHandler) Weekly(c *gin.Context) {
	serveDataset(h, c, dashboardService.Weekly)
}

// Yearly godoc
// @Summary Attendance per academic year
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/yearly [get]
func (h *DashboardHandler) Yearly(c *gin.Context) {
	serveDataset(h, c, dashboardService.Yearly)
}

// DeliveryModes godoc
// @Summary Online versus in-person attendance
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/delivery-modes [get]
func (h *DashboardHandler) DeliveryModes(c *gin.Context) {
	serveDataset(h, c, dashboardService.DeliveryModes)
}

// Hotspots godoc
// @Summary Courses with the highest absence rate
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/hotspots [get]
func (h *DashboardHandler) Hotspots(c *gin.Context) {
	serveDataset(h, c, dashboardService.Hotspots)
}

// AtRisk godoc
// @Summary Students below the attendance threshold
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/at-risk [get]
func (h *DashboardHandler) AtRisk(c *gin.Context) {
	serveDataset(h, c, dashboardService.AtRisk)
}

// Insights godoc
// @Summary Heuristic insights
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/insights [get]
func (h *DashboardHandler) Insights(c *gin.Context) {
	serveDataset(h, c, dashboardService.Insights)
}

// Count godoc
// @Summary Number of matching attendance rows
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/count [get]
func (h *DashboardHandler) Count(c *gin.Context) {
	serveDataset(h, c, func(svc dashboardService, ctx context.Context, filters models.DashboardFilters) (gin.H, bool, error) {
		total, hit, err := svc.Count(ctx, filters)
		return gin.H{"total": total}, hit, err
	})
}

// InvalidateCache godoc
// @Summary Drop every cached dashboard dataset
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard/cache [delete]
func (h *DashboardHandler) InvalidateCache(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	removed, err := h.service.Invalidate(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Within(appErrors.ErrInternal, err, "failed to invalidate dashboard cache"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}
