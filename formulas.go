package main

import (
	"math"
	"time"
)

// activityMultipliers maps activity levels to their TDEE multiplier.
// This is the single source of truth for valid activity levels; validateProfile
// checks membership here.
var activityMultipliers = map[ActivityLevel]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.55,
	ActivityActive:     1.725,
	ActivityVeryActive: 1.9,
}

// goalCalorieFactors scales TDEE into the daily calorie target per goal.
var goalCalorieFactors = map[Goal]float64{
	GoalWeightLoss:      0.80,
	GoalMaintenance:     1.00,
	GoalMuscleGain:      1.10,
	GoalHormonalBalance: 0.85,
}

// macroSplit is a protein/carbs/fat percentage triple summing to 100.
type macroSplit struct{ protein, carbs, fat int }

// macroSplits selects the macro split by body type. Apple bodies get fewer
// carbs; pear and mixed share the balanced split.
var macroSplits = map[BodyType]macroSplit{
	BodyTypeApple: {protein: 35, carbs: 30, fat: 35},
	BodyTypePear:  {protein: 30, carbs: 40, fat: 30},
	BodyTypeMixed: {protein: 30, carbs: 40, fat: 30},
}

const (
	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9

	// defaultNeckCM stands in for the neck circumference the Navy body-fat
	// formula needs. It is never collected from the user.
	defaultNeckCM = 35.0

	waterMLPerKG = 35
)

/* ─── Body composition ───────────────────────────────────────────────── */

// calculateBMI returns weight / height² with height converted to meters.
func calculateBMI(weightKG, heightCM float64) float64 {
	h := heightCM / 100
	return weightKG / (h * h)
}

// bmiCategoryFor buckets a BMI. Bounds are inclusive below, exclusive above.
func bmiCategoryFor(bmi float64) BMICategory {
	switch {
	case bmi < 18.5:
		return BMIUnderweight
	case bmi < 25:
		return BMINormal
	case bmi < 30:
		return BMIOverweight
	case bmi < 35:
		return BMIObeseClass1
	case bmi < 40:
		return BMIObeseClass2
	default:
		return BMIObeseClass3
	}
}

// calculateBMR computes BMR via Mifflin-St Jeor. Only "male" gets the +5
// constant; "female" and "other" both get -161.
func calculateBMR(weightKG, heightCM float64, age int, gender Gender) float64 {
	bmr := 10*weightKG + 6.25*heightCM - 5*float64(age)
	if gender == GenderMale {
		return bmr + 5
	}
	return bmr - 161
}

// calculateTDEE scales BMR by the activity multiplier. Unknown levels yield
// NaN; validateProfile rejects them before this is reached.
func calculateTDEE(bmr float64, level ActivityLevel) float64 {
	mult, ok := activityMultipliers[level]
	if !ok {
		return math.NaN()
	}
	return bmr * mult
}

// calculateBodyFat estimates body fat % with the U.S. Navy circumference
// method, using defaultNeckCM for the neck.
func calculateBodyFat(gender Gender, waistCM, hipCM, heightCM float64) float64 {
	if gender == GenderFemale {
		return 495/(1.29579-0.35004*math.Log10(waistCM+hipCM-defaultNeckCM)+0.22100*math.Log10(heightCM)) - 450
	}
	return 495/(1.0324-0.19077*math.Log10(waistCM-defaultNeckCM)+0.15456*math.Log10(heightCM)) - 450
}

func calculateWaistHipRatio(waistCM, hipCM float64) float64 {
	return waistCM / hipCM
}

// determineBodyType classifies fat distribution from the waist-hip ratio.
// Female thresholds are 0.85/0.75; everyone else uses 0.90/0.85.
func determineBodyType(ratio float64, gender Gender) BodyType {
	apple, pear := 0.90, 0.85
	if gender == GenderFemale {
		apple, pear = 0.85, 0.75
	}
	switch {
	case ratio > apple:
		return BodyTypeApple
	case ratio < pear:
		return BodyTypePear
	default:
		return BodyTypeMixed
	}
}

// calculateBodyMetrics derives every body metric from p. The only input that
// is not part of the profile is the calculated-at stamp, which the caller
// supplies so results stay reproducible.
func calculateBodyMetrics(p UserProfile, now time.Time) BodyMetrics {
	bmi := calculateBMI(p.WeightKG, p.HeightCM)
	bmr := calculateBMR(p.WeightKG, p.HeightCM, p.Age, p.Gender)
	ratio := calculateWaistHipRatio(p.WaistCM, p.HipCM)
	return BodyMetrics{
		BMI:               bmi,
		BMICategory:       bmiCategoryFor(bmi),
		BodyFatPercentage: calculateBodyFat(p.Gender, p.WaistCM, p.HipCM, p.HeightCM),
		WaistHipRatio:     ratio,
		BodyType:          determineBodyType(ratio, p.Gender),
		BMR:               bmr,
		TDEE:              calculateTDEE(bmr, p.ActivityLevel),
		CalculatedAt:      now,
	}
}

/* ─── Nutrition goals ────────────────────────────────────────────────── */

// calculateNutritionGoals turns TDEE into daily targets: goal factor for
// calories, body-type split for macros, 4/4/9 kcal per gram. Calories and
// grams are each rounded from the unrounded daily figure.
func calculateNutritionGoals(p UserProfile, m BodyMetrics) NutritionGoals {
	factor, ok := goalCalorieFactors[p.Goal]
	if !ok {
		factor = 1
	}
	daily := m.TDEE * factor

	split, ok := macroSplits[m.BodyType]
	if !ok {
		split = macroSplits[BodyTypeMixed]
	}

	protein := daily * float64(split.protein) / 100 / kcalPerGramProtein
	carbs := daily * float64(split.carbs) / 100 / kcalPerGramCarbs
	fat := daily * float64(split.fat) / 100 / kcalPerGramFat

	fiber := 35
	if p.Gender == GenderFemale {
		fiber = 30
	}

	return NutritionGoals{
		DailyCalories:     int(math.Round(daily)),
		ProteinG:          int(math.Round(protein)),
		CarbsG:            int(math.Round(carbs)),
		FatG:              int(math.Round(fat)),
		FiberG:            fiber,
		WaterML:           int(math.Round(p.WeightKG * waterMLPerKG)),
		ProteinPercentage: split.protein,
		CarbsPercentage:   split.carbs,
		FatPercentage:     split.fat,
	}
}

// macroCalories converts gram targets back to kcal with 4/4/9.
func macroCalories(g NutritionGoals) int {
	return g.ProteinG*kcalPerGramProtein + g.CarbsG*kcalPerGramCarbs + g.FatG*kcalPerGramFat
}

// deficitPlan is the pair of weight-loss budgets shown alongside the goals.
type deficitPlan struct {
	Moderate            int     `json:"moderate"`
	Aggressive          int     `json:"aggressive"`
	ModerateKGPerWeek   float64 `json:"moderate_kg_per_week"`
	AggressiveKGPerWeek float64 `json:"aggressive_kg_per_week"`
}

// calculateWeightLossDeficit returns a 15% (≈0.5 kg/week) and a 25%
// (≈1 kg/week) deficit below TDEE.
func calculateWeightLossDeficit(tdee float64) deficitPlan {
	return deficitPlan{
		Moderate:            int(math.Round(tdee * 0.85)),
		Aggressive:          int(math.Round(tdee * 0.75)),
		ModerateKGPerWeek:   0.5,
		AggressiveKGPerWeek: 1.0,
	}
}
