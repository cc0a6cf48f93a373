package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// Row structs mirror the table columns one-to-one (db tags) so they can be
// scanned with pgx.RowToStructByName. Every conversion below is total: each
// record field maps to exactly one column and back.

/* ─── profiles ───────────────────────────────────────────────────────── */

type profileRow struct {
	UserID            string    `db:"user_id"`
	Name              string    `db:"name"`
	Email             *string   `db:"email"`
	Age               int       `db:"age"`
	WeightKG          float64   `db:"weight_kg"`
	HeightCM          float64   `db:"height_cm"`
	WaistCM           float64   `db:"waist_cm"`
	HipCM             float64   `db:"hip_cm"`
	Gender            string    `db:"gender"`
	ActivityLevel     string    `db:"activity_level"`
	ReproductivePhase *string   `db:"reproductive_phase"`
	Goal              string    `db:"goal"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func profileToRow(p UserProfile) profileRow {
	r := profileRow{
		UserID:        p.ID,
		Name:          p.Name,
		Email:         p.Email,
		Age:           p.Age,
		WeightKG:      p.WeightKG,
		HeightCM:      p.HeightCM,
		WaistCM:       p.WaistCM,
		HipCM:         p.HipCM,
		Gender:        string(p.Gender),
		ActivityLevel: string(p.ActivityLevel),
		Goal:          string(p.Goal),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.ReproductivePhase != nil {
		s := string(*p.ReproductivePhase)
		r.ReproductivePhase = &s
	}
	return r
}

func rowToProfile(r profileRow) UserProfile {
	p := UserProfile{
		ID:            r.UserID,
		Name:          r.Name,
		Email:         r.Email,
		Age:           r.Age,
		WeightKG:      r.WeightKG,
		HeightCM:      r.HeightCM,
		WaistCM:       r.WaistCM,
		HipCM:         r.HipCM,
		Gender:        Gender(r.Gender),
		ActivityLevel: ActivityLevel(r.ActivityLevel),
		Goal:          Goal(r.Goal),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.ReproductivePhase != nil {
		phase := ReproductivePhase(*r.ReproductivePhase)
		p.ReproductivePhase = &phase
	}
	return p
}

/* ─── meals ──────────────────────────────────────────────────────────── */

// mealRow stores foods as a jsonb document; pgx hands it back as text.
type mealRow struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	Type             string    `db:"type"`
	Foods            string    `db:"foods"`
	TotalCalories    float64   `db:"total_calories"`
	TotalProteinG    float64   `db:"total_protein_g"`
	TotalCarbsG      float64   `db:"total_carbs_g"`
	TotalFatG        float64   `db:"total_fat_g"`
	TotalFiberG      float64   `db:"total_fiber_g"`
	AvgGlycemicIndex *float64  `db:"avg_glycemic_index"`
	EatenAt          time.Time `db:"eaten_at"`
	Photo            *string   `db:"photo"`
	Notes            *string   `db:"notes"`
}

func mealToRow(m Meal) (mealRow, error) {
	foods := m.Foods
	if foods == nil {
		foods = []FoodItem{}
	}
	b, err := json.Marshal(foods)
	if err != nil {
		return mealRow{}, fmt.Errorf("encode foods: %w", err)
	}
	return mealRow{
		ID:               m.ID,
		UserID:           m.UserID,
		Type:             string(m.Type),
		Foods:            string(b),
		TotalCalories:    m.TotalCalories,
		TotalProteinG:    m.TotalProteinG,
		TotalCarbsG:      m.TotalCarbsG,
		TotalFatG:        m.TotalFatG,
		TotalFiberG:      m.TotalFiberG,
		AvgGlycemicIndex: m.AvgGlycemicIndex,
		EatenAt:          m.Timestamp,
		Photo:            m.Photo,
		Notes:            m.Notes,
	}, nil
}

func rowToMeal(r mealRow) (Meal, error) {
	var foods []FoodItem
	if err := json.Unmarshal([]byte(r.Foods), &foods); err != nil {
		return Meal{}, fmt.Errorf("decode foods for meal %s: %w", r.ID, err)
	}
	if foods == nil {
		foods = []FoodItem{}
	}
	return Meal{
		ID:               r.ID,
		UserID:           r.UserID,
		Type:             MealType(r.Type),
		Foods:            foods,
		TotalCalories:    r.TotalCalories,
		TotalProteinG:    r.TotalProteinG,
		TotalCarbsG:      r.TotalCarbsG,
		TotalFatG:        r.TotalFatG,
		TotalFiberG:      r.TotalFiberG,
		AvgGlycemicIndex: r.AvgGlycemicIndex,
		Timestamp:        r.EatenAt,
		Photo:            r.Photo,
		Notes:            r.Notes,
	}, nil
}

/* ─── body_metrics ───────────────────────────────────────────────────── */

// bodyMetricsRow holds the measured body weight in weight_kg, never the BMI.
type bodyMetricsRow struct {
	UserID            string    `db:"user_id"`
	WeightKG          float64   `db:"weight_kg"`
	WaistCM           *float64  `db:"waist_cm"`
	HipCM             *float64  `db:"hip_cm"`
	BMI               float64   `db:"bmi"`
	BMICategory       string    `db:"bmi_category"`
	BodyFatPercentage float64   `db:"body_fat_percentage"`
	WaistHipRatio     float64   `db:"waist_hip_ratio"`
	BodyType          string    `db:"body_type"`
	BMR               float64   `db:"bmr"`
	TDEE              float64   `db:"tdee"`
	RecordedAt        time.Time `db:"recorded_at"`
}

func bodyMetricsToRow(r BodyMetricsRecord) bodyMetricsRow {
	return bodyMetricsRow{
		UserID:            r.UserID,
		WeightKG:          r.WeightKG,
		WaistCM:           r.WaistCM,
		HipCM:             r.HipCM,
		BMI:               r.Metrics.BMI,
		BMICategory:       string(r.Metrics.BMICategory),
		BodyFatPercentage: r.Metrics.BodyFatPercentage,
		WaistHipRatio:     r.Metrics.WaistHipRatio,
		BodyType:          string(r.Metrics.BodyType),
		BMR:               r.Metrics.BMR,
		TDEE:              r.Metrics.TDEE,
		RecordedAt:        r.Metrics.CalculatedAt,
	}
}

func rowToBodyMetrics(r bodyMetricsRow) BodyMetricsRecord {
	return BodyMetricsRecord{
		UserID:   r.UserID,
		WeightKG: r.WeightKG,
		WaistCM:  r.WaistCM,
		HipCM:    r.HipCM,
		Metrics: BodyMetrics{
			BMI:               r.BMI,
			BMICategory:       BMICategory(r.BMICategory),
			BodyFatPercentage: r.BodyFatPercentage,
			WaistHipRatio:     r.WaistHipRatio,
			BodyType:          BodyType(r.BodyType),
			BMR:               r.BMR,
			TDEE:              r.TDEE,
			CalculatedAt:      r.RecordedAt,
		},
	}
}

// bodyMetricsRecordFor snapshots the measurements behind m.
func bodyMetricsRecordFor(p UserProfile, m BodyMetrics) BodyMetricsRecord {
	waist, hip := p.WaistCM, p.HipCM
	return BodyMetricsRecord{
		UserID:   p.ID,
		WeightKG: p.WeightKG,
		WaistCM:  &waist,
		HipCM:    &hip,
		Metrics:  m,
	}
}

/* ─── daily_water ────────────────────────────────────────────────────── */

type waterRow struct {
	UserID    string    `db:"user_id"`
	Date      DateOnly  `db:"date"`
	AmountML  int       `db:"amount_ml"`
	GoalML    int       `db:"goal_ml"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func waterToRow(w WaterRecord) waterRow {
	r := waterRow{
		UserID:   w.UserID,
		Date:     w.Date,
		AmountML: w.AmountML,
		GoalML:   w.GoalML,
	}
	if w.CreatedAt != nil {
		r.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		r.UpdatedAt = *w.UpdatedAt
	}
	return r
}

func rowToWater(r waterRow) WaterRecord {
	w := WaterRecord{
		UserID:   r.UserID,
		Date:     r.Date,
		AmountML: r.AmountML,
		GoalML:   r.GoalML,
	}
	if !r.CreatedAt.IsZero() {
		t := r.CreatedAt
		w.CreatedAt = &t
	}
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		w.UpdatedAt = &t
	}
	return w
}

/* ─── user_preferences ───────────────────────────────────────────────── */

type preferencesRow struct {
	UserID                 string `db:"user_id"`
	HasCompletedOnboarding bool   `db:"has_completed_onboarding"`
	Theme                  string `db:"theme"`
}

func preferencesToRow(userID string, p Preferences) preferencesRow {
	return preferencesRow{
		UserID:                 userID,
		HasCompletedOnboarding: p.HasCompletedOnboarding,
		Theme:                  string(p.Theme),
	}
}

// rowToPreferences defaults an empty theme to system.
func rowToPreferences(r preferencesRow) Preferences {
	theme := Theme(r.Theme)
	if theme == "" {
		theme = ThemeSystem
	}
	return Preferences{HasCompletedOnboarding: r.HasCompletedOnboarding, Theme: theme}
}

/* ─── users ──────────────────────────────────────────────────────────── */

// user is a login account for the development token issuer.
type user struct {
	ID       string `db:"id"`
	Username string `db:"username"`
	Password string `db:"password"`
}
