package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getTodaySummary returns today's totals, goals and adherence.
// GET /api/summary/today. Answers 409 before a profile exists.
func (h *Handler) getTodaySummary(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	s, err := sess.Summary()
	if err != nil {
		writeError(c, "build summary", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// getWeekSummary returns seven days (Mon-Sun) for the week containing date.
// Days with no logged meals are included with has_data=false.
// GET /api/summary/week?date=YYYY-MM-DD (defaults to the current week).
func (h *Handler) getWeekSummary(c *gin.Context) {
	ref, err := parseDay(c.Query("date"), h.now())
	if err != nil {
		writeError(c, "build week summary", err)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	resp, err := sess.Week(c.Request.Context(), ref)
	if err != nil {
		writeError(c, "build week summary", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getProgress returns one entry per day and aggregate stats for a date range.
// GET /api/summary/progress?start=YYYY-MM-DD&end=YYYY-MM-DD. Both params required.
func (h *Handler) getProgress(c *gin.Context) {
	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	resp, err := sess.Range(c.Request.Context(), start, end)
	if err != nil {
		writeError(c, "build progress", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
