package main

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// dateLayout is the calendar-day format used for water records and day queries.
const dateLayout = "2006-01-02"

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format(dateLayout) + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"`+dateLayout+`"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ScanDate implements pgtype.DateScanner so pgx can scan PostgreSQL date
// columns (OID 1082) into DateOnly. NULL values zero the time and return nil
// so that *DateOnly pointer fields can be set to nil by pgx's NULL handling.
func (d *DateOnly) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		d.Time = time.Time{}
		return nil
	}
	d.Time = v.Time
	return nil
}

/* ─── Enumerations ───────────────────────────────────────────────────── */

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
	GenderOther  Gender = "other"
)

type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very-active"
)

// ReproductivePhase is only meaningful when the profile's gender is female.
type ReproductivePhase string

const (
	PhaseRegularCycle   ReproductivePhase = "regular-cycle"
	PhaseIrregularCycle ReproductivePhase = "irregular-cycle"
	PhasePerimenopause  ReproductivePhase = "perimenopause"
	PhaseMenopause      ReproductivePhase = "menopause"
	PhasePostmenopause  ReproductivePhase = "postmenopause"
	PhasePregnant       ReproductivePhase = "pregnant"
	PhaseBreastfeeding  ReproductivePhase = "breastfeeding"
	PhaseNotApplicable  ReproductivePhase = "not-applicable"
)

var validReproductivePhases = map[ReproductivePhase]bool{
	PhaseRegularCycle: true, PhaseIrregularCycle: true, PhasePerimenopause: true,
	PhaseMenopause: true, PhasePostmenopause: true, PhasePregnant: true,
	PhaseBreastfeeding: true, PhaseNotApplicable: true,
}

type Goal string

const (
	GoalWeightLoss      Goal = "weight-loss"
	GoalMaintenance     Goal = "maintenance"
	GoalMuscleGain      Goal = "muscle-gain"
	GoalHormonalBalance Goal = "hormonal-balance"
)

type BMICategory string

const (
	BMIUnderweight BMICategory = "underweight"
	BMINormal      BMICategory = "normal"
	BMIOverweight  BMICategory = "overweight"
	BMIObeseClass1 BMICategory = "obese-class-1"
	BMIObeseClass2 BMICategory = "obese-class-2"
	BMIObeseClass3 BMICategory = "obese-class-3"
)

type BodyType string

const (
	BodyTypeApple BodyType = "apple"
	BodyTypePear  BodyType = "pear"
	BodyTypeMixed BodyType = "mixed"
)

type MealType string

const (
	MealBreakfast      MealType = "breakfast"
	MealMorningSnack   MealType = "morning-snack"
	MealLunch          MealType = "lunch"
	MealAfternoonSnack MealType = "afternoon-snack"
	MealDinner         MealType = "dinner"
	MealEveningSnack   MealType = "evening-snack"
)

// validMealTypes mirrors the meals.type check constraint. Reject unknown values
// with 400 rather than letting the DB return a cryptic 500.
var validMealTypes = map[MealType]bool{
	MealBreakfast: true, MealMorningSnack: true, MealLunch: true,
	MealAfternoonSnack: true, MealDinner: true, MealEveningSnack: true,
}

type FoodCategory string

var validFoodCategories = map[FoodCategory]bool{
	"protein": true, "carbs": true, "vegetables": true, "fruits": true, "dairy": true,
	"fats": true, "beverages": true, "snacks": true, "processed": true,
}

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

/* ─── Domain structs ─────────────────────────────────────────────────── */

// UserProfile is the identity and anthropometric record a session is built
// around. Every mutation invalidates the derived BodyMetrics and NutritionGoals.
type UserProfile struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Email             *string            `json:"email,omitempty"`
	Age               int                `json:"age"`
	WeightKG          float64            `json:"weight_kg"`
	HeightCM          float64            `json:"height_cm"`
	WaistCM           float64            `json:"waist_cm"`
	HipCM             float64            `json:"hip_cm"`
	Gender            Gender             `json:"gender"`
	ActivityLevel     ActivityLevel      `json:"activity_level"`
	ReproductivePhase *ReproductivePhase `json:"reproductive_phase,omitempty"`
	Goal              Goal               `json:"goal"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// BodyMetrics is derived from a UserProfile and never edited directly.
type BodyMetrics struct {
	BMI               float64     `json:"bmi"`
	BMICategory       BMICategory `json:"bmi_category"`
	BodyFatPercentage float64     `json:"body_fat_percentage"`
	WaistHipRatio     float64     `json:"waist_hip_ratio"`
	BodyType          BodyType    `json:"body_type"`
	BMR               float64     `json:"bmr"`
	TDEE              float64     `json:"tdee"`
	CalculatedAt      time.Time   `json:"calculated_at"`
}

// NutritionGoals are the daily targets. The three percentages always sum to 100.
type NutritionGoals struct {
	DailyCalories     int `json:"daily_calories"`
	ProteinG          int `json:"protein_g"`
	CarbsG            int `json:"carbs_g"`
	FatG              int `json:"fat_g"`
	FiberG            int `json:"fiber_g"`
	WaterML           int `json:"water_ml"`
	ProteinPercentage int `json:"protein_percentage"`
	CarbsPercentage   int `json:"carbs_percentage"`
	FatPercentage     int `json:"fat_percentage"`
}

// FoodItem is one recognized or entered food. Nullable nutrients use pointers
// so "not reported" stays distinct from zero.
type FoodItem struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Calories      float64       `json:"calories"`
	ProteinG      float64       `json:"protein_g"`
	CarbsG        float64       `json:"carbs_g"`
	FatG          float64       `json:"fat_g"`
	FiberG        *float64      `json:"fiber_g,omitempty"`
	SodiumMG      *float64      `json:"sodium_mg,omitempty"`
	GlycemicIndex *float64      `json:"glycemic_index,omitempty"`
	Portion       string        `json:"portion"`
	PortionWeight *float64      `json:"portion_weight_g,omitempty"`
	Category      *FoodCategory `json:"category,omitempty"`
}

// Meal is a typed, timestamped group of foods with totals computed at
// creation (see newMeal).
type Meal struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Type             MealType   `json:"type"`
	Foods            []FoodItem `json:"foods"`
	TotalCalories    float64    `json:"total_calories"`
	TotalProteinG    float64    `json:"total_protein_g"`
	TotalCarbsG      float64    `json:"total_carbs_g"`
	TotalFatG        float64    `json:"total_fat_g"`
	TotalFiberG      float64    `json:"total_fiber_g"`
	AvgGlycemicIndex *float64   `json:"avg_glycemic_index,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
	Photo            *string    `json:"photo,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
}

// DailySummary is always rebuilt from the meal log, water, and current goals.
type DailySummary struct {
	Date             DateOnly       `json:"date"`
	Meals            []Meal         `json:"meals"`
	TotalCalories    float64        `json:"total_calories"`
	TotalProteinG    float64        `json:"total_protein_g"`
	TotalCarbsG      float64        `json:"total_carbs_g"`
	TotalFatG        float64        `json:"total_fat_g"`
	TotalFiberG      float64        `json:"total_fiber_g"`
	WaterIntakeML    int            `json:"water_intake_ml"`
	AvgGlycemicIndex *float64       `json:"avg_glycemic_index,omitempty"`
	CaloriesGoal     int            `json:"calories_goal"`
	ProteinGoalG     int            `json:"protein_goal_g"`
	CarbsGoalG       int            `json:"carbs_goal_g"`
	FatGoalG         int            `json:"fat_goal_g"`
	Goals            NutritionGoals `json:"goals"`
	Adherence        int            `json:"adherence"`
}

// WaterRecord is the per-day water intake, keyed by user and calendar date.
type WaterRecord struct {
	UserID    string     `json:"user_id"`
	Date      DateOnly   `json:"date"`
	AmountML  int        `json:"amount_ml"`
	GoalML    int        `json:"goal_ml"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// BodyMetricsRecord is one entry of the metrics history written on each
// recompute, together with the measurements that produced it.
type BodyMetricsRecord struct {
	UserID   string      `json:"user_id"`
	WeightKG float64     `json:"weight_kg"`
	WaistCM  *float64    `json:"waist_cm,omitempty"`
	HipCM    *float64    `json:"hip_cm,omitempty"`
	Metrics  BodyMetrics `json:"metrics"`
}

// Preferences are per-user app settings that survive profile clears.
type Preferences struct {
	HasCompletedOnboarding bool  `json:"has_completed_onboarding"`
	Theme                  Theme `json:"theme"`
}

/* ─── Request / response shapes ──────────────────────────────────────── */

// profilePatch is the body of PATCH /api/profile. All fields are pointers so
// "not provided" is distinct from zero; only non-nil fields are merged. An
// empty reproductive_phase clears it.
type profilePatch struct {
	Name              *string  `json:"name"`
	Email             *string  `json:"email"`
	Age               *int     `json:"age"`
	WeightKG          *float64 `json:"weight_kg"`
	HeightCM          *float64 `json:"height_cm"`
	WaistCM           *float64 `json:"waist_cm"`
	HipCM             *float64 `json:"hip_cm"`
	Gender            *string  `json:"gender"`
	ActivityLevel     *string  `json:"activity_level"`
	ReproductivePhase *string  `json:"reproductive_phase"`
	Goal              *string  `json:"goal"`
}

// mealInput is the body of POST /api/meals. Photo may be a data URI, which is
// uploaded before the meal is stored.
type mealInput struct {
	Type      MealType   `json:"type"`
	Foods     []FoodItem `json:"foods"`
	Timestamp *time.Time `json:"timestamp"`
	Photo     *string    `json:"photo"`
	Notes     *string    `json:"notes"`
}

// mealPatch is the body of PUT /api/meals/:id. Totals are never patched
// directly; replacing foods recomputes them.
type mealPatch struct {
	Type      *MealType   `json:"type"`
	Foods     *[]FoodItem `json:"foods"`
	Timestamp *time.Time  `json:"timestamp"`
	Photo     *string     `json:"photo"`
	Notes     *string     `json:"notes"`
}

// profileResponse is the response shape for GET/PUT/PATCH /api/profile.
type profileResponse struct {
	Profile *UserProfile    `json:"profile"`
	Metrics *BodyMetrics    `json:"metrics"`
	Goals   *NutritionGoals `json:"goals"`
	Advice  *bodyTypeAdvice `json:"advice,omitempty"`
	Deficit *deficitPlan    `json:"deficit,omitempty"`
}
