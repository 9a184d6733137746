package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"windfault"
	"windfault/internal/service"
)

const errListTurbines = "failed to load turbines"

type registerTurbineRequest struct {
	TurbineID  string  `json:"turbine_id" binding:"required"`
	Name       string  `json:"name" binding:"required"`
	Location   string  `json:"location,omitempty"`
	Model      string  `json:"model,omitempty"`
	CapacityKW float64 `json:"capacity_kw,omitempty"`
}

type overrideStateRequest struct {
	// State to set. Allowed: Online, Impacted, Available, Stopped, Repair, Netcom
	State string `json:"state" binding:"required"`
}

// @Summary      Register a turbine
// @Tags         turbines
// @Accept       json
// @Produce      json
// @Param        body  body  registerTurbineRequest  true  "Turbine attributes"
// @Success      201   {object}  windfault.Turbine
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/turbines [post]
func (h *Handler) registerTurbine(c *gin.Context) {
	var req registerTurbineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	t, err := h.services.Registry.Register(c.Request.Context(), service.RegisterParams{
		TurbineID:  req.TurbineID,
		Name:       req.Name,
		Location:   req.Location,
		Model:      req.Model,
		CapacityKW: req.CapacityKW,
	})
	if err != nil {
		h.respondClassifyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// @Summary      List turbines
// @Tags         turbines
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, turbines"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/turbines [get]
func (h *Handler) listTurbines(c *gin.Context) {
	turbines, err := h.services.Registry.List(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListTurbines, "turbines_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(turbines), "turbines": turbines})
}

// @Summary      Get a turbine
// @Tags         turbines
// @Produce      json
// @Param        id  path  string  true  "Turbine ID"
// @Success      200  {object}  windfault.Turbine
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/turbines/{id} [get]
func (h *Handler) getTurbine(c *gin.Context) {
	t, err := h.services.Registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLookupError(c, err, "turbine_get_failed")
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Override turbine state
// @Description  Manual state write; bypasses the action mapping but still moves last_state_change when the value changes.
// @Tags         turbines
// @Accept       json
// @Produce      json
// @Param        id    path  string                true  "Turbine ID"
// @Param        body  body  overrideStateRequest  true  "Target state"
// @Success      200   {object}  windfault.Turbine
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/turbines/{id}/state [put]
func (h *Handler) overrideTurbineState(c *gin.Context) {
	var req overrideStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	t, err := h.services.Registry.OverrideState(c.Request.Context(), c.Param("id"), windfault.TurbineState(req.State))
	if err != nil {
		h.respondClassifyError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Mark communication loss
// @Description  Moves the turbine to Netcom, retaining its held state for later restore.
// @Tags         turbines
// @Produce      json
// @Param        id  path  string  true  "Turbine ID"
// @Success      200  {object}  windfault.Turbine
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/turbines/{id}/comm-loss [post]
func (h *Handler) markCommLoss(c *gin.Context) {
	t, err := h.services.Registry.MarkCommLoss(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondClassifyError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Restore communication
// @Description  Leaves Netcom and reinstates the held state.
// @Tags         turbines
// @Produce      json
// @Param        id  path  string  true  "Turbine ID"
// @Success      200  {object}  windfault.Turbine
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/turbines/{id}/comm-restore [post]
func (h *Handler) restoreComm(c *gin.Context) {
	t, err := h.services.Registry.RestoreComm(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotInNetcom) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.respondClassifyError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
