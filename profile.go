package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// getProfile returns the profile with its metrics, goals and body-type advice.
// GET /api/profile. All fields are null before onboarding.
func (h *Handler) getProfile(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Profile())
}

// putProfile sets the whole profile and recomputes metrics and goals.
// PUT /api/profile.
func (h *Handler) putProfile(c *gin.Context) {
	var body UserProfile
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	resp, err := sess.SetProfile(body)
	if err != nil {
		writeError(c, "save profile", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// patchProfile merges only the provided fields into the profile.
// PATCH /api/profile. Uses pointer fields in the request body to distinguish
// "not provided" from zero. Answers 409 before a profile exists.
func (h *Handler) patchProfile(c *gin.Context) {
	var body profilePatch
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	resp, err := sess.UpdateProfile(body)
	if err != nil {
		writeError(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// deleteProfile clears the profile together with metrics, goals and meals.
// DELETE /api/profile.
func (h *Handler) deleteProfile(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.ClearProfile()
	c.Status(http.StatusNoContent)
}

// patchPreferences updates the onboarding flag and/or theme.
// PATCH /api/preferences. Onboarding can only be marked complete, not undone.
func (h *Handler) patchPreferences(c *gin.Context) {
	var body struct {
		HasCompletedOnboarding *bool  `json:"has_completed_onboarding"`
		Theme                  *Theme `json:"theme"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.HasCompletedOnboarding == nil && body.Theme == nil {
		apiError(c, http.StatusBadRequest, "no fields to update")
		return
	}
	if body.HasCompletedOnboarding != nil && !*body.HasCompletedOnboarding {
		apiError(c, http.StatusBadRequest, "has_completed_onboarding can only be set to true")
		return
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}
	if body.Theme != nil {
		if _, err := sess.SetTheme(*body.Theme); err != nil {
			writeError(c, "update preferences", err)
			return
		}
	}
	if body.HasCompletedOnboarding != nil {
		sess.CompleteOnboarding()
	}
	c.JSON(http.StatusOK, sess.Preferences())
}

// getBodyMetricsHistory returns recorded metrics, newest first.
// GET /api/body-metrics?limit=N (default 30, max 365).
func (h *Handler) getBodyMetricsHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "30"))
	if err != nil || limit <= 0 || limit > 365 {
		apiError(c, http.StatusBadRequest, "limit must be between 1 and 365")
		return
	}
	if h.store == nil {
		c.JSON(http.StatusOK, []BodyMetricsRecord{})
		return
	}
	records, err := h.store.ListBodyMetrics(c.Request.Context(), c.GetString("user_id"), limit)
	if err != nil {
		writeError(c, "fetch body metrics", err)
		return
	}
	if records == nil {
		records = []BodyMetricsRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// exportSession returns the serializable part of the session.
// GET /api/export.
func (h *Handler) exportSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// importSession replaces the session with an exported snapshot and returns
// the recomputed profile view.
// POST /api/import.
func (h *Handler) importSession(c *gin.Context) {
	var body sessionSnapshot
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.Restore(body); err != nil {
		writeError(c, "import session", err)
		return
	}
	c.JSON(http.StatusOK, sess.Profile())
}
