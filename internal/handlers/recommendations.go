package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"windfault"
	"windfault/internal/service"
)

const errListRecommendations = "failed to load recommendations"

// @Summary      List recommendations
// @Tags         recommendations
// @Produce      json
// @Param        turbine_id  query  string  false  "Filter by turbine"
// @Param        event_id    query  string  false  "Filter by triggering event"
// @Param        action      query  string  false  "Filter by action"  Enums(RESET,ESCALATE,WAIT_COOL_DOWN,SNOOZE,MANUAL_INSPECTION)
// @Success      200  {object}  map[string]interface{}  "count, recommendations"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/recommendations [get]
func (h *Handler) listRecommendations(c *gin.Context) {
	recs, err := h.services.EventLog.ListRecommendations(c.Request.Context(), service.RecommendationQuery{
		TurbineID: c.Query("turbine_id"),
		EventID:   c.Query("event_id"),
		Action:    windfault.Action(c.Query("action")),
	})
	if err != nil {
		h.respondClassifyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "recommendations": recs})
}

// @Summary      Get a recommendation
// @Tags         recommendations
// @Produce      json
// @Param        id  path  string  true  "Recommendation ID"
// @Success      200  {object}  windfault.Recommendation
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/recommendations/{id} [get]
func (h *Handler) getRecommendation(c *gin.Context) {
	rec, err := h.services.EventLog.GetRecommendation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLookupError(c, err, "recommendation_get_failed")
		return
	}
	c.JSON(http.StatusOK, rec)
}
