package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// maxRangeDays bounds range queries.
const maxRangeDays = 366

// dateRange reads the required start and end query params (YYYY-MM-DD) in the
// configured zone.
func (h *Handler) dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	startStr, endStr := c.Query("start"), c.Query("end")
	if startStr == "" || endStr == "" {
		apiError(c, http.StatusBadRequest, "start and end query params are required")
		return time.Time{}, time.Time{}, false
	}
	loc := h.now().Location()
	start, err := time.ParseInLocation(dateLayout, startStr, loc)
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid start, expected YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	end, err := time.ParseInLocation(dateLayout, endStr, loc)
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid end, expected YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	if start.After(end) {
		apiError(c, http.StatusBadRequest, "start must not be after end")
		return time.Time{}, time.Time{}, false
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		apiError(c, http.StatusBadRequest, "range must not exceed 366 days")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

type waterBody struct {
	AmountML *int `json:"amount_ml"`
}

// getWater returns today's water record.
// GET /api/water.
func (h *Handler) getWater(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Water())
}

// addWater adds to today's intake.
// POST /api/water. Body: { "amount_ml": 250 }.
func (h *Handler) addWater(c *gin.Context) {
	var body waterBody
	if err := c.ShouldBindJSON(&body); err != nil || body.AmountML == nil {
		apiError(c, http.StatusBadRequest, "amount_ml is required")
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	w, err := sess.AddWater(*body.AmountML)
	if err != nil {
		writeError(c, "add water", err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// setWater overwrites today's intake.
// PUT /api/water. Body: { "amount_ml": 1500 }.
func (h *Handler) setWater(c *gin.Context) {
	var body waterBody
	if err := c.ShouldBindJSON(&body); err != nil || body.AmountML == nil {
		apiError(c, http.StatusBadRequest, "amount_ml is required")
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	w, err := sess.SetWater(*body.AmountML)
	if err != nil {
		writeError(c, "set water", err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// getWaterHistory returns stored water records within [start, end].
// GET /api/water/history?start=YYYY-MM-DD&end=YYYY-MM-DD. Both params required.
// Returns an empty array (not null) if no records exist in the range.
func (h *Handler) getWaterHistory(c *gin.Context) {
	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}
	records := []WaterRecord{}
	if h.store != nil {
		stored, err := h.store.ListWater(c.Request.Context(), c.GetString("user_id"),
			start.Format(dateLayout), end.Format(dateLayout))
		if err != nil {
			writeError(c, "fetch water history", err)
			return
		}
		records = append(records, stored...)
	}
	c.JSON(http.StatusOK, records)
}
