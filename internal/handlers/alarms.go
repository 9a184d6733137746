package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"windfault"
	"windfault/internal/repository"
	"windfault/internal/service"
)

const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
	errListAlarms      = "failed to load alarms"
)

// alarmRequest is the ingestion payload sent by the turbine edge gateway.
type alarmRequest struct {
	TurbineID    string     `json:"turbine_id" binding:"required"`
	Code         string     `json:"code" binding:"required"`
	Description  string     `json:"description,omitempty"`
	Severity     string     `json:"severity,omitempty"` // low | medium | high | critical
	Resettable   *bool      `json:"resettable,omitempty"`
	TemperatureC *float64   `json:"temperature_c,omitempty"`
	OccurredAt   *time.Time `json:"occurred_at,omitempty"`
}

type snoozeRequest struct {
	// Duration like "30m"; empty uses the configured default deferral.
	Duration string `json:"duration,omitempty"`
}

type manualRecommendationRequest struct {
	Action string `json:"action" binding:"required"`
	Note   string `json:"note,omitempty"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Ingest a fault event
// @Description  Classifies the event against the turbine's recent history and applies the resulting state transition.
// @Tags         alarms
// @Accept       json
// @Produce      json
// @Param        body  body   alarmRequest  true  "Fault event"
// @Success      201   {object}  map[string]interface{}  "event, recommendation"
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/alarms [post]
func (h *Handler) ingestAlarm(c *gin.Context) {
	var req alarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	ev := windfault.FaultEvent{
		TurbineID:    req.TurbineID,
		Code:         req.Code,
		Description:  req.Description,
		Severity:     windfault.Severity(req.Severity),
		Resettable:   true,
		TemperatureC: req.TemperatureC,
	}
	if req.Resettable != nil {
		ev.Resettable = *req.Resettable
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = *req.OccurredAt
	}

	rec, err := h.services.Orchestrator.Classify(c.Request.Context(), ev)
	if err != nil {
		h.respondClassifyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event_id": rec.EventID, "recommendation": rec})
}

// @Summary      List fault events
// @Tags         alarms
// @Produce      json
// @Param        turbine_id  query  string  false  "Filter by turbine"
// @Param        code        query  string  false  "Filter by fault code"
// @Param        from        query  string  false  "Start of range (RFC3339)"
// @Param        to          query  string  false  "End of range (RFC3339)"
// @Success      200  {object}  map[string]interface{}  "count, events"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/alarms [get]
func (h *Handler) listAlarms(c *gin.Context) {
	q := service.EventQuery{
		TurbineID: c.Query("turbine_id"),
		Code:      c.Query("code"),
	}
	var ok bool
	if q.From, ok = h.parseTimeQuery(c, "from"); !ok {
		return
	}
	if q.To, ok = h.parseTimeQuery(c, "to"); !ok {
		return
	}

	events, err := h.services.EventLog.ListEvents(c.Request.Context(), q)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListAlarms, "alarms_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}

// @Summary      Get a fault event
// @Tags         alarms
// @Produce      json
// @Param        id  path  string  true  "Event ID"
// @Success      200  {object}  windfault.FaultEvent
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/alarms/{id} [get]
func (h *Handler) getAlarm(c *gin.Context) {
	ev, err := h.services.EventLog.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLookupError(c, err, "alarm_get_failed")
		return
	}
	c.JSON(http.StatusOK, ev)
}

// @Summary      Decision history for a fault event
// @Description  Every recommendation ever produced for the event, oldest first.
// @Tags         alarms
// @Produce      json
// @Param        id  path  string  true  "Event ID"
// @Success      200  {object}  map[string]interface{}  "count, recommendations"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/alarms/{id}/recommendations [get]
func (h *Handler) alarmDecisionHistory(c *gin.Context) {
	recs, err := h.services.EventLog.DecisionHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLookupError(c, err, "alarm_history_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "recommendations": recs})
}

// @Summary      Defer the decision on a fault event
// @Tags         alarms
// @Accept       json
// @Produce      json
// @Param        id    path  string         true   "Event ID"
// @Param        body  body  snoozeRequest  false  "Optional custom duration"
// @Success      200   {object}  windfault.Recommendation
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/alarms/{id}/snooze [post]
func (h *Handler) snoozeAlarm(c *gin.Context) {
	// Body is optional; a present but malformed one is rejected.
	var req snoozeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
			return
		}
	}

	var d time.Duration
	if req.Duration != "" {
		parsed, err := time.ParseDuration(req.Duration)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration; use e.g. \"30m\""})
			return
		}
		d = parsed
	}

	rec, err := h.services.Orchestrator.Snooze(c.Request.Context(), c.Param("id"), d)
	if err != nil {
		h.respondClassifyError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary      Record an operator recommendation
// @Description  Applies the given action to the turbine without running the cascade.
// @Tags         alarms
// @Accept       json
// @Produce      json
// @Param        id    path  string                       true  "Event ID"
// @Param        body  body  manualRecommendationRequest  true  "Action payload"
// @Success      201   {object}  windfault.Recommendation
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/alarms/{id}/recommendations [post]
func (h *Handler) applyManualRecommendation(c *gin.Context) {
	var req manualRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	rec, err := h.services.Orchestrator.Apply(c.Request.Context(), c.Param("id"), windfault.Action(req.Action), req.Note)
	if err != nil {
		h.respondClassifyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// respondClassifyError maps orchestrator errors onto HTTP statuses.
func (h *Handler) respondClassifyError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "field": vErr.Field})
	case errors.Is(err, repository.ErrTurbineNotFound),
		errors.Is(err, repository.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		h.logAndJSONError(c, http.StatusServiceUnavailable, "temporarily unable to classify; retry", "classify_conflict", err)
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to classify event", "classify_failed", err)
	}
}

// respondLookupError maps read-path errors onto HTTP statuses.
func (h *Handler) respondLookupError(c *gin.Context, err error, logKey string) {
	switch {
	case errors.Is(err, repository.ErrTurbineNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrRecommendationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "lookup failed", logKey, err)
	}
}

// logAndJSONError centralizes error logging plus the JSON error response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// parseTimeQuery reads an optional RFC3339 or date query value. The bool is
// false when the value was present but malformed (the response is written).
func (h *Handler) parseTimeQuery(c *gin.Context, name string) (time.Time, bool) {
	qs := c.Query(name)
	if qs == "" {
		return time.Time{}, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, qs); err == nil {
			return t.UTC(), true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid '" + name + "' time; use RFC3339 or YYYY-MM-DD"})
	return time.Time{}, false
}
