package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// getMeals returns the meal log, optionally limited to one day.
// GET /api/meals?date=YYYY-MM-DD. Without date, the whole recent log.
func (h *Handler) getMeals(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if d := c.Query("date"); d != "" {
		day, err := parseDay(d, h.now())
		if err != nil {
			writeError(c, "fetch meals", err)
			return
		}
		c.JSON(http.StatusOK, sess.Meals(&day))
		return
	}
	c.JSON(http.StatusOK, sess.Meals(nil))
}

// storePhoto uploads a data-URI photo and returns the URL to keep on the meal.
// A failed or unconfigured upload keeps the meal without a photo.
func (h *Handler) storePhoto(c *gin.Context, photo *string) *string {
	if photo == nil || *photo == "" {
		return photo
	}
	if strings.HasPrefix(*photo, "http://") || strings.HasPrefix(*photo, "https://") {
		return photo
	}
	if h.photos == nil {
		log.Warn().Str("user_id", c.GetString("user_id")).Msg("[meals] photo storage not configured, dropping photo")
		return nil
	}
	url, err := h.photos.Upload(c.Request.Context(), c.GetString("user_id"), *photo)
	if err != nil {
		log.Warn().Err(err).Str("user_id", c.GetString("user_id")).Msg("[meals] photo upload failed, dropping photo")
		return nil
	}
	return &url
}

// createMeal logs a meal and returns it with computed totals.
// POST /api/meals. Answers 409 before a profile exists.
func (h *Handler) createMeal(c *gin.Context) {
	var body mealInput
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := validateMealType(body.Type); err != nil {
		writeError(c, "create meal", err)
		return
	}
	if err := validateFoods(body.Foods); err != nil {
		writeError(c, "create meal", err)
		return
	}
	body.Photo = h.storePhoto(c, body.Photo)

	m, err := sess.AddMeal(body)
	if err != nil {
		writeError(c, "create meal", err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// updateMeal patches a meal. Only provided fields change; an empty photo or
// notes string clears it.
// PUT /api/meals/:id.
func (h *Handler) updateMeal(c *gin.Context) {
	var body mealPatch
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Type == nil && body.Foods == nil && body.Timestamp == nil && body.Photo == nil && body.Notes == nil {
		apiError(c, http.StatusBadRequest, "no fields to update")
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	// A photo that fails to upload leaves the meal's current photo alone.
	if body.Photo != nil && *body.Photo != "" {
		body.Photo = h.storePhoto(c, body.Photo)
	}

	m, err := sess.UpdateMeal(c.Param("id"), body)
	if err != nil {
		writeError(c, "update meal", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// deleteMeal removes a meal.
// DELETE /api/meals/:id.
func (h *Handler) deleteMeal(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.DeleteMeal(c.Param("id")); err != nil {
		writeError(c, "delete meal", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// analyzeMeal runs the food analyzer on text, a photo or a barcode.
// POST /api/meals/analyze. Nothing is logged; the client creates the meal
// from the returned foods. Failures return an empty foods list so the client
// can show zero results and retry.
func (h *Handler) analyzeMeal(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if h.analyzer == nil {
		apiError(c, http.StatusServiceUnavailable, "food analysis is not configured")
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if view := sess.Profile(); view.Profile != nil {
		req.Profile = view.Profile
		req.BodyType = &view.Metrics.BodyType
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), req)
	var verr *ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.As(err, &verr):
		apiError(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, errNoFoodsRecognized):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no foods recognized", "foods": []FoodItem{}})
	case errors.Is(err, errAnalyzerUnavailable):
		apiError(c, http.StatusServiceUnavailable, err.Error())
	default:
		log.Warn().Err(err).Str("user_id", c.GetString("user_id")).Str("input_type", string(req.InputType)).
			Msg("[analyze] analyzer failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "food analysis failed", "foods": []FoodItem{}})
	}
}

// searchFoods looks foods up by name.
// GET /api/foods/search?q=...&limit=N (default 10, max 50).
func (h *Handler) searchFoods(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		apiError(c, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 || limit > 50 {
		apiError(c, http.StatusBadRequest, "limit must be between 1 and 50")
		return
	}
	if h.foods == nil {
		apiError(c, http.StatusServiceUnavailable, "food search is not configured")
		return
	}
	foods, err := h.foods.Search(c.Request.Context(), q, limit)
	if errors.Is(err, errNotFound) {
		c.JSON(http.StatusOK, []FoodItem{})
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("query", q).Msg("[foods] search failed")
		apiError(c, http.StatusBadGateway, "food search failed")
		return
	}
	c.JSON(http.StatusOK, foods)
}
