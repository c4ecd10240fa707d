package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-insights-api/internal/models"
	"github.com/noah-isme/attendance-insights-api/internal/service"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
	"github.com/noah-isme/attendance-insights-api/pkg/response"
)

type filterOptionsService interface {
	Options(ctx context.Context, dimension string, scope service.FilterScope) ([]models.FilterOption, bool, error)
}

// FilterHandler serves the values available to each dashboard filter.
type FilterHandler struct {
	service filterOptionsService
}

// NewFilterHandler constructs the handler.
func NewFilterHandler(service filterOptionsService) *FilterHandler {
	return &FilterHandler{service: service}
}

// Options godoc
// @Summary Filter options
// @Description Distinct values for one filter dimension. Programmes and courses can be scoped.
// @Tags Filters
// @Produce json
// @Param dimension path string true "schools, academic-years, programme-levels, programmes, courses or cohort-years"
// @Param school query string false "Scope to a school"
// @Param programmeName query string false "Scope courses to a programme"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /filters/{dimension} [get]
func (h *FilterHandler) Options(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	scope := service.FilterScope{
		School:        optionalQuery(c, "school"),
		ProgrammeName: optionalQuery(c, "programmeName"),
	}
	start := time.Now()
	options, cacheHit, err := h.service.Options(c.Request.Context(), c.Param("dimension"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, options, cacheHit, start)
}

func optionalQuery(c *gin.Context, key string) *string {
	value := strings.TrimSpace(c.Query(key))
	if value == "" || strings.EqualFold(value, "all") {
		return nil
	}
	return &value
}
