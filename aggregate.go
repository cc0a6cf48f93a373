package main

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// errGoalsNotComputed is a contract violation: the aggregator must never run
// before goals exist. The session computes goals first by construction.
var errGoalsNotComputed = errors.New("nutrition goals have not been computed")

/* ─── Meal totals ────────────────────────────────────────────────────── */

// newMeal builds a meal from foods, assigning ids where missing and computing
// totals. The average glycemic index only counts foods that report one.
func newMeal(userID string, mealType MealType, foods []FoodItem, ts time.Time) Meal {
	m := Meal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      mealType,
		Timestamp: ts,
	}
	m.setFoods(foods)
	return m
}

// setFoods replaces the foods and recomputes every derived total.
func (m *Meal) setFoods(foods []FoodItem) {
	m.Foods = make([]FoodItem, len(foods))
	copy(m.Foods, foods)
	m.TotalCalories, m.TotalProteinG, m.TotalCarbsG, m.TotalFatG, m.TotalFiberG = 0, 0, 0, 0, 0

	var giSum float64
	var giCount int
	for i := range m.Foods {
		f := &m.Foods[i]
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		m.TotalCalories += f.Calories
		m.TotalProteinG += f.ProteinG
		m.TotalCarbsG += f.CarbsG
		m.TotalFatG += f.FatG
		if f.FiberG != nil {
			m.TotalFiberG += *f.FiberG
		}
		if f.GlycemicIndex != nil {
			giSum += *f.GlycemicIndex
			giCount++
		}
	}
	m.AvgGlycemicIndex = nil
	if giCount > 0 {
		avg := giSum / float64(giCount)
		m.AvgGlycemicIndex = &avg
	}
}

/* ─── Daily summary ──────────────────────────────────────────────────── */

// sameDay reports whether t falls on the calendar day of ref, judged in ref's
// location. This is a midnight-to-midnight match, not a rolling 24h window.
func sameDay(t, ref time.Time) bool {
	t = t.In(ref.Location())
	return t.Year() == ref.Year() && t.Month() == ref.Month() && t.Day() == ref.Day()
}

// startOfDay returns local midnight of t's day.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// buildDailySummary rolls up the meals that fall on day. Water intake is passed
// through untouched; it is tracked separately from meals.
func buildDailySummary(meals []Meal, goals *NutritionGoals, waterML int, day time.Time) (DailySummary, error) {
	if goals == nil {
		return DailySummary{}, errGoalsNotComputed
	}

	s := DailySummary{
		Date:          DateOnly{startOfDay(day)},
		Meals:         []Meal{},
		WaterIntakeML: waterML,
		CaloriesGoal:  goals.DailyCalories,
		ProteinGoalG:  goals.ProteinG,
		CarbsGoalG:    goals.CarbsG,
		FatGoalG:      goals.FatG,
		Goals:         *goals,
	}

	var giSum float64
	var giCount int
	for _, m := range meals {
		if !sameDay(m.Timestamp, day) {
			continue
		}
		s.Meals = append(s.Meals, m)
		s.TotalCalories += m.TotalCalories
		s.TotalProteinG += m.TotalProteinG
		s.TotalCarbsG += m.TotalCarbsG
		s.TotalFatG += m.TotalFatG
		s.TotalFiberG += m.TotalFiberG
		if m.AvgGlycemicIndex != nil {
			giSum += *m.AvgGlycemicIndex
			giCount++
		}
	}
	if giCount > 0 {
		avg := giSum / float64(giCount)
		s.AvgGlycemicIndex = &avg
	}

	s.Adherence = adherenceScore(s, *goals)
	return s, nil
}

// cappedPercent is actual/goal as a percentage, capped at 100 so overeating
// one macro cannot make up for missing another.
func cappedPercent(actual float64, goal int) float64 {
	return math.Min(actual/float64(goal)*100, 100)
}

// adherenceScore averages the capped calorie, protein, carbs and fat
// percentages and rounds to the nearest integer.
func adherenceScore(s DailySummary, g NutritionGoals) int {
	sum := cappedPercent(s.TotalCalories, g.DailyCalories) +
		cappedPercent(s.TotalProteinG, g.ProteinG) +
		cappedPercent(s.TotalCarbsG, g.CarbsG) +
		cappedPercent(s.TotalFatG, g.FatG)
	return int(math.Round(sum / 4))
}

/* ─── Multi-day roll-ups ─────────────────────────────────────────────── */

// daySummary is one day's entry in the week and progress responses.
// Days with no logged meals have HasData=false and zero totals.
type daySummary struct {
	Date          DateOnly `json:"date"`
	CaloriesGoal  int      `json:"calories_goal"`
	TotalCalories float64  `json:"total_calories"`
	TotalProteinG float64  `json:"total_protein_g"`
	TotalCarbsG   float64  `json:"total_carbs_g"`
	TotalFatG     float64  `json:"total_fat_g"`
	TotalFiberG   float64  `json:"total_fiber_g"`
	WaterIntakeML int      `json:"water_intake_ml"`
	Adherence     int      `json:"adherence"`
	HasData       bool     `json:"has_data"`
}

// progressStats aggregates a date range. Averages cover tracked days only.
type progressStats struct {
	DaysTracked  int     `json:"days_tracked"`
	DaysOnBudget int     `json:"days_on_budget"`
	AvgCalories  float64 `json:"avg_calories"`
	AvgAdherence float64 `json:"avg_adherence"`
	TotalWaterML int     `json:"total_water_ml"`
}

type progressResponse struct {
	Days  []daySummary  `json:"days"`
	Stats progressStats `json:"stats"`
}

// summarizeRange builds one daySummary per calendar day in [start, end],
// using the current goals for every day. water maps YYYY-MM-DD to mL.
func summarizeRange(meals []Meal, goals *NutritionGoals, water map[string]int, start, end time.Time) ([]daySummary, progressStats, error) {
	if goals == nil {
		return nil, progressStats{}, errGoalsNotComputed
	}
	start, end = startOfDay(start), startOfDay(end)

	var days []daySummary
	var stats progressStats
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		s, err := buildDailySummary(meals, goals, water[key], d)
		if err != nil {
			return nil, progressStats{}, err
		}
		day := daySummary{
			Date:          s.Date,
			CaloriesGoal:  s.CaloriesGoal,
			TotalCalories: s.TotalCalories,
			TotalProteinG: s.TotalProteinG,
			TotalCarbsG:   s.TotalCarbsG,
			TotalFatG:     s.TotalFatG,
			TotalFiberG:   s.TotalFiberG,
			WaterIntakeML: s.WaterIntakeML,
			Adherence:     s.Adherence,
			HasData:       len(s.Meals) > 0,
		}
		days = append(days, day)
		stats.TotalWaterML += day.WaterIntakeML
		if !day.HasData {
			continue
		}
		stats.DaysTracked++
		if day.TotalCalories <= float64(day.CaloriesGoal) {
			stats.DaysOnBudget++
		}
		stats.AvgCalories += day.TotalCalories
		stats.AvgAdherence += float64(day.Adherence)
	}

	// Convert totals to averages.
	if stats.DaysTracked > 0 {
		stats.AvgCalories /= float64(stats.DaysTracked)
		stats.AvgAdherence /= float64(stats.DaysTracked)
	}
	return days, stats, nil
}

// weekStart returns local midnight of the Monday of t's week.
// Uses AddDate to safely handle month/year boundaries.
func weekStart(t time.Time) time.Time {
	weekday := int(t.Weekday()) // 0=Sun
	if weekday == 0 {
		weekday = 7 // treat Sunday as day 7 so Mon=1..Sun=7
	}
	return startOfDay(t).AddDate(0, 0, -(weekday - 1))
}
