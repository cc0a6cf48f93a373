package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// foodSearcher finds foods by name.
type foodSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]FoodItem, error)
}

// photoStorer turns an uploaded photo into a URL.
type photoStorer interface {
	Upload(ctx context.Context, userID, photo string) (string, error)
}

// Handler holds shared dependencies for all route handlers. Optional
// collaborators (analyzer, foods, photos, users) may be nil; their routes
// then answer 503 or skip the feature.
type Handler struct {
	sessions  *sessionRegistry
	store     store
	users     userStore
	analyzer  foodAnalyzer
	foods     foodSearcher
	photos    photoStorer
	hub       *summaryHub
	jwtSecret []byte
	now       func() time.Time
}

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// writeError maps domain errors to HTTP statuses. Anything unrecognized is
// logged and reported as a 500 with a generic message.
func writeError(c *gin.Context, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		apiError(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, errNoProfile):
		apiError(c, http.StatusConflict, "profile not set")
	case errors.Is(err, errMealNotFound):
		apiError(c, http.StatusNotFound, "meal not found")
	default:
		log.Error().Err(err).Str("op", op).Str("user_id", c.GetString("user_id")).Msg("request failed")
		apiError(c, http.StatusInternalServerError, "failed to "+op)
	}
}

// session returns the caller's session, answering the request itself on
// failure.
func (h *Handler) session(c *gin.Context) (*session, bool) {
	sess, err := h.sessions.get(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		writeError(c, "load session", err)
		return nil, false
	}
	return sess, true
}

// parseDay parses a YYYY-MM-DD query value as local midnight in now's zone.
// An empty value means today.
func parseDay(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return startOfDay(now), nil
	}
	t, err := time.ParseInLocation(dateLayout, value, now.Location())
	if err != nil {
		return time.Time{}, invalid("date", "expected YYYY-MM-DD")
	}
	return t, nil
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.GET("/healthz", h.healthz)
	router.POST("/api/login", h.login)

	// Authenticated routes
	api := router.Group("/api", h.authMiddleware())
	api.GET("/profile", h.getProfile)
	api.PUT("/profile", h.putProfile)
	api.PATCH("/profile", h.patchProfile)
	api.DELETE("/profile", h.deleteProfile)
	api.PATCH("/preferences", h.patchPreferences)
	api.GET("/body-metrics", h.getBodyMetricsHistory)

	api.GET("/meals", h.getMeals)
	api.POST("/meals", h.createMeal)
	api.PUT("/meals/:id", h.updateMeal)
	api.DELETE("/meals/:id", h.deleteMeal)
	api.POST("/meals/analyze", h.analyzeMeal)
	api.GET("/foods/search", h.searchFoods)

	api.GET("/summary/today", h.getTodaySummary)
	api.GET("/summary/week", h.getWeekSummary)
	api.GET("/summary/progress", h.getProgress)
	api.GET("/summary/ws", h.streamSummary)

	api.GET("/water", h.getWater)
	api.POST("/water", h.addWater)
	api.PUT("/water", h.setWater)
	api.GET("/water/history", h.getWaterHistory)

	api.GET("/export", h.exportSession)
	api.POST("/import", h.importSession)
}
