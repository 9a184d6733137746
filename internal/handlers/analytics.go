package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"windfault/internal/repository"
	"windfault/internal/service"
)

const errAnalytics = "failed to compute analytics"

// @Summary      Fleet summary
// @Description  State distribution plus the loudest fault codes and turbines of the trailing 24 hours.
// @Tags         analytics
// @Produce      json
// @Success      200  {object}  service.FleetSummary
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/analytics/summary [get]
func (h *Handler) analyticsSummary(c *gin.Context) {
	summary, err := h.services.Analytics.Summary(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errAnalytics, "analytics_summary_failed", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary      Top fault codes
// @Tags         analytics
// @Produce      json
// @Param        window  query  string  false  "Trailing window, e.g. 24h or 168h"  default(24h)
// @Param        limit   query  int     false  "Max rows"  default(5)
// @Success      200  {object}  map[string]interface{}  "codes"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/analytics/top-codes [get]
func (h *Handler) analyticsTopCodes(c *gin.Context) {
	window, limit, ok := h.parseWindowAndLimit(c)
	if !ok {
		return
	}
	codes, err := h.services.Analytics.TopCodes(c.Request.Context(), window, limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errAnalytics, "analytics_top_codes_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes})
}

// @Summary      Turbines with most faults
// @Tags         analytics
// @Produce      json
// @Param        window  query  string  false  "Trailing window, e.g. 24h"  default(24h)
// @Param        limit   query  int     false  "Max rows"  default(5)
// @Success      200  {object}  map[string]interface{}  "turbines"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/analytics/troubled-turbines [get]
func (h *Handler) analyticsTroubledTurbines(c *gin.Context) {
	window, limit, ok := h.parseWindowAndLimit(c)
	if !ok {
		return
	}
	turbines, err := h.services.Analytics.TroubledTurbines(c.Request.Context(), window, limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errAnalytics, "analytics_troubled_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"turbines": turbines})
}

// @Summary      Fault code frequency
// @Description  Occurrence count and per-day rate for one fault code in the trailing window.
// @Tags         analytics
// @Produce      json
// @Param        code        query  string  true   "Fault code"
// @Param        turbine_id  query  string  false  "Narrow to one turbine"
// @Param        window      query  string  false  "Trailing window"  default(168h)
// @Success      200  {object}  service.CodeFrequency
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/analytics/fault-frequency [get]
func (h *Handler) analyticsFaultFrequency(c *gin.Context) {
	window, ok := h.parseWindow(c)
	if !ok {
		return
	}
	freq, err := h.services.Analytics.FaultFrequency(c.Request.Context(), c.Query("code"), c.Query("turbine_id"), window)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errAnalytics, "analytics_frequency_failed", err)
		return
	}
	c.JSON(http.StatusOK, freq)
}

// @Summary      Temperature trend
// @Description  Temperature readings logged for a turbine in the trailing window, oldest first.
// @Tags         analytics
// @Produce      json
// @Param        id      path   string  true   "Turbine identifier"
// @Param        code    query  string  false  "Narrow to one fault code"
// @Param        window  query  string  false  "Trailing window"  default(168h)
// @Success      200  {object}  map[string]interface{}  "points"
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/analytics/temp-trends/{id} [get]
func (h *Handler) analyticsTempTrend(c *gin.Context) {
	window, ok := h.parseWindow(c)
	if !ok {
		return
	}
	points, err := h.services.Analytics.TemperatureTrend(c.Request.Context(), c.Param("id"), c.Query("code"), window)
	if err != nil {
		if errors.Is(err, repository.ErrTurbineNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "turbine not found"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errAnalytics, "analytics_temp_trend_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

// @Summary      Recommendation action distribution
// @Tags         analytics
// @Produce      json
// @Param        window  query  string  false  "Trailing window; omit for all time"
// @Success      200  {object}  service.ActionBreakdown
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/analytics/action-distribution [get]
func (h *Handler) analyticsActionDistribution(c *gin.Context) {
	window, ok := h.parseWindow(c)
	if !ok {
		return
	}
	dist, err := h.services.Analytics.ActionDistribution(c.Request.Context(), window)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errAnalytics, "analytics_distribution_failed", err)
		return
	}
	c.JSON(http.StatusOK, dist)
}

// @Summary      Escalation rate
// @Description  Share of recommendations that escalated in the trailing window.
// @Tags         analytics
// @Produce      json
// @Param        window  query  string  false  "Trailing window"  default(720h)
// @Success      200  {object}  service.EscalationStats
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/analytics/escalation-rate [get]
func (h *Handler) analyticsEscalationRate(c *gin.Context) {
	window, ok := h.parseWindow(c)
	if !ok {
		return
	}
	stats, err := h.services.Analytics.EscalationRate(c.Request.Context(), window)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errAnalytics, "analytics_escalation_failed", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) parseWindow(c *gin.Context) (time.Duration, bool) {
	qs := c.Query("window")
	if qs == "" {
		return 0, true
	}
	d, err := time.ParseDuration(qs)
	if err != nil || d <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'window'; use a positive duration like 24h"})
		return 0, false
	}
	return d, true
}

func (h *Handler) parseWindowAndLimit(c *gin.Context) (time.Duration, int, bool) {
	window, ok := h.parseWindow(c)
	if !ok {
		return 0, 0, false
	}
	limit := 0
	if qs := c.Query("limit"); qs != "" {
		v, err := strconv.Atoi(qs)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit'; use a positive integer"})
			return 0, 0, false
		}
		limit = v
	}
	return window, limit, true
}
