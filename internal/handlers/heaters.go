package handlers

import (
	"net/http"

	"heater_host/internal/heater"
	"heater_host/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusTargetSet = "target_set"
	statusOff       = "off"

	errGetState        = "failed to load heater state"
	errListStates      = "failed to load heater states"
	errCalibrate       = "calibration failed"
	errListRuns        = "failed to load calibration runs"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// statusForHeaterErr maps domain error kinds to HTTP status codes.
func statusForHeaterErr(err error) int {
	switch {
	case heater.IsKind(err, heater.ErrUnknownHeater):
		return http.StatusNotFound
	case heater.IsKind(err, heater.ErrTargetOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Respond with a status and include the heater's current state (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, name, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx, name)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// Request DTO for setting a target temperature.
type targetRequest struct {
	TargetC float64 `json:"target_c"`
}

// SetTargetRequest is an exported model for Swagger docs of the setTarget payload.
type SetTargetRequest struct {
	// Target temperature in Celsius. Zero turns the heater off.
	TargetC float64 `json:"target_c" example:"210"`
}

// Request DTO for calibration.
type calibrateRequest struct {
	TargetC float64 `json:"target_c" binding:"required"`
}

// CalibrateRequest is an exported model for Swagger docs of the calibrate payload.
type CalibrateRequest struct {
	// Bump-test peak target in Celsius.
	TargetC float64 `json:"target_c" example:"200"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List heaters
// @Tags         heaters
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, heaters"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/heaters [get]
// @Security     BearerAuth
func (h *Handler) listHeaters(c *gin.Context) {
	ctx := c.Request.Context()
	states, err := h.services.Monitoring.GetStates(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListStates, "heaters_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(states),
		"heaters": states,
	})
}

// @Summary      Get heater state
// @Tags         heaters
// @Produce      json
// @Param        name  path  string  true  "Heater name"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/heaters/{name} [get]
// @Security     BearerAuth
func (h *Handler) getHeater(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")
	st, err := h.services.Monitoring.GetState(ctx, name)
	if err != nil {
		h.logAndJSONError(c, statusForHeaterErr(err), errGetState, "heater_get_state_failed", err, "heater", name)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Set target temperature
// @Description  Zero target turns the heater off
// @Tags         heaters
// @Accept       json
// @Produce      json
// @Param        name  path  string            true  "Heater name"
// @Param        body  body  SetTargetRequest  true  "Target payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/heaters/{name}/target [post]
// @Security     BearerAuth
func (h *Handler) setTarget(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	ctx := c.Request.Context()
	name := c.Param("name")
	if err := h.services.HeaterControl.SetTarget(ctx, name, req.TargetC); err != nil {
		if h.log != nil {
			h.log.Errorw("heater_set_target_failed", "err", err, "heater", name, "target_c", req.TargetC)
		}
		c.JSON(statusForHeaterErr(err), gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatusAndState(c, name, statusTargetSet, gin.H{"target_c": req.TargetC})
}

// @Summary      Turn heater off
// @Tags         heaters
// @Produce      json
// @Param        name  path  string  true  "Heater name"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/heaters/{name}/off [post]
// @Security     BearerAuth
func (h *Handler) turnOff(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")
	if err := h.services.HeaterControl.Off(ctx, name); err != nil {
		if h.log != nil {
			h.log.Errorw("heater_off_failed", "err", err, "heater", name)
		}
		c.JSON(statusForHeaterErr(err), gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatusAndState(c, name, statusOff, gin.H{})
}

// @Summary      Run thermal calibration
// @Description  Runs a bump test against the heater and fits the thermal model. Blocks until the test finishes or the request is canceled.
// @Tags         calibration
// @Accept       json
// @Produce      json
// @Param        name  path  string            true  "Heater name"
// @Param        body  body  CalibrateRequest  true  "Calibration payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/heaters/{name}/calibrate [post]
// @Security     BearerAuth
func (h *Handler) calibrate(c *gin.Context) {
	var req calibrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	ctx := c.Request.Context()
	name := c.Param("name")
	run, err := h.services.Calibration.Calibrate(ctx, service.CalibrateParams{
		Heater:  name,
		TargetC: req.TargetC,
	})
	if err != nil {
		h.logAndJSONError(c, statusForHeaterErr(err), errCalibrate, "heater_calibrate_failed", err,
			"heater", name, "target_c", req.TargetC)
		return
	}
	c.JSON(http.StatusOK, run)
}

// @Summary      List calibration runs
// @Tags         calibration
// @Produce      json
// @Param        heater  query  string  false  "Filter by heater name"
// @Success      200  {object}  map[string]interface{}  "count, runs"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/calibrations [get]
// @Security     BearerAuth
func (h *Handler) listCalibrations(c *gin.Context) {
	ctx := c.Request.Context()
	runs, err := h.services.Calibration.List(ctx, c.Query("heater"))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListRuns, "calibrations_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(runs),
		"runs":  runs,
	})
}
