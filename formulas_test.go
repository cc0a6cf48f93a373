package main

import (
	"math"
	"testing"
	"time"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

/* ─── BMI ────────────────────────────────────────────────────────────── */

// TestBMICategory_Boundaries checks that each bucket is inclusive below and
// exclusive above. Height 200 cm makes BMI = weight / 4.
func TestBMICategory_Boundaries(t *testing.T) {
	cases := []struct {
		weight float64
		want   BMICategory
	}{
		{73.996, BMIUnderweight},
		{74, BMINormal},
		{99.996, BMINormal},
		{100, BMIOverweight},
		{119.996, BMIOverweight},
		{120, BMIObeseClass1},
		{140, BMIObeseClass2},
		{159.996, BMIObeseClass2},
		{160, BMIObeseClass3},
	}
	for _, tc := range cases {
		bmi := calculateBMI(tc.weight, 200)
		if got := bmiCategoryFor(bmi); got != tc.want {
			t.Errorf("weight %.3f (BMI %.4f): expected %s, got %s", tc.weight, bmi, tc.want, got)
		}
	}
}

func TestCalculateBMI(t *testing.T) {
	if got := calculateBMI(100, 200); got != 25 {
		t.Errorf("expected 25, got %f", got)
	}
	if got := calculateBMI(70, 165); !approx(got, 25.71, 0.005) {
		t.Errorf("expected ~25.71, got %f", got)
	}
}

/* ─── BMR / TDEE ─────────────────────────────────────────────────────── */

func TestCalculateBMR(t *testing.T) {
	cases := []struct {
		gender Gender
		want   float64
	}{
		{GenderMale, 1780},
		{GenderFemale, 1614},
		{GenderOther, 1614},
	}
	for _, tc := range cases {
		if got := calculateBMR(80, 180, 30, tc.gender); got != tc.want {
			t.Errorf("%s: expected %.2f, got %.2f", tc.gender, tc.want, got)
		}
	}
}

func TestCalculateTDEE_Multipliers(t *testing.T) {
	cases := map[ActivityLevel]float64{
		ActivitySedentary:  1200,
		ActivityLight:      1375,
		ActivityModerate:   1550,
		ActivityActive:     1725,
		ActivityVeryActive: 1900,
	}
	for level, want := range cases {
		if got := calculateTDEE(1000, level); !approx(got, want, 1e-9) {
			t.Errorf("%s: expected %.2f, got %.2f", level, want, got)
		}
	}
	if got := calculateTDEE(1000, "couch"); !math.IsNaN(got) {
		t.Errorf("expected NaN for unknown level, got %f", got)
	}
}

/* ─── Body composition ───────────────────────────────────────────────── */

func TestDetermineBodyType_Thresholds(t *testing.T) {
	cases := []struct {
		ratio  float64
		gender Gender
		want   BodyType
	}{
		{0.86, GenderFemale, BodyTypeApple},
		{0.85, GenderFemale, BodyTypeMixed},
		{0.75, GenderFemale, BodyTypeMixed},
		{0.74, GenderFemale, BodyTypePear},
		{0.91, GenderMale, BodyTypeApple},
		{0.90, GenderMale, BodyTypeMixed},
		{0.85, GenderMale, BodyTypeMixed},
		{0.84, GenderMale, BodyTypePear},
		{0.84, GenderOther, BodyTypePear},
	}
	for _, tc := range cases {
		if got := determineBodyType(tc.ratio, tc.gender); got != tc.want {
			t.Errorf("%s %.2f: expected %s, got %s", tc.gender, tc.ratio, tc.want, got)
		}
	}
}

func TestCalculateBodyFat_Plausible(t *testing.T) {
	female := calculateBodyFat(GenderFemale, 80, 100, 165)
	if female < 20 || female > 40 {
		t.Errorf("female body fat out of range: %f", female)
	}
	male := calculateBodyFat(GenderMale, 90, 100, 180)
	if male < 10 || male > 30 {
		t.Errorf("male body fat out of range: %f", male)
	}
	if math.IsNaN(female) || math.IsNaN(male) {
		t.Error("body fat is NaN")
	}
}

/* ─── Full chain ─────────────────────────────────────────────────────── */

// TestReferenceProfile walks the worked example end to end.
func TestReferenceProfile(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	p := referenceProfile()
	m := calculateBodyMetrics(p, now)

	if !approx(m.BMI, 25.71, 0.005) {
		t.Errorf("BMI: expected ~25.71, got %f", m.BMI)
	}
	if m.BMICategory != BMIOverweight {
		t.Errorf("BMI category: expected overweight, got %s", m.BMICategory)
	}
	if m.BMR != 1420.25 {
		t.Errorf("BMR: expected 1420.25, got %f", m.BMR)
	}
	if !approx(m.TDEE, 2201.3875, 1e-9) {
		t.Errorf("TDEE: expected 2201.3875, got %f", m.TDEE)
	}
	if !approx(m.WaistHipRatio, 0.8, 1e-9) {
		t.Errorf("WHR: expected 0.8, got %f", m.WaistHipRatio)
	}
	if m.BodyType != BodyTypeMixed {
		t.Errorf("body type: expected mixed, got %s", m.BodyType)
	}
	if !m.CalculatedAt.Equal(now) {
		t.Errorf("calculated_at: expected %v, got %v", now, m.CalculatedAt)
	}

	g := calculateNutritionGoals(p, m)
	want := NutritionGoals{
		DailyCalories:     1761,
		ProteinG:          132,
		CarbsG:            176,
		FatG:              59,
		FiberG:            30,
		WaterML:           2450,
		ProteinPercentage: 30,
		CarbsPercentage:   40,
		FatPercentage:     30,
	}
	if g != want {
		t.Errorf("goals:\nexpected %+v\n     got %+v", want, g)
	}
}

func TestCalculateNutritionGoals_AppleSplit(t *testing.T) {
	p := referenceProfile()
	p.WaistCM, p.HipCM = 95, 100 // 0.95 > 0.85
	m := calculateBodyMetrics(p, time.Time{})
	if m.BodyType != BodyTypeApple {
		t.Fatalf("expected apple, got %s", m.BodyType)
	}
	g := calculateNutritionGoals(p, m)
	if g.ProteinPercentage != 35 || g.CarbsPercentage != 30 || g.FatPercentage != 35 {
		t.Errorf("expected 35/30/35, got %d/%d/%d", g.ProteinPercentage, g.CarbsPercentage, g.FatPercentage)
	}
}

func TestCalculateNutritionGoals_FiberByGender(t *testing.T) {
	p := referenceProfile()
	p.Gender = GenderMale
	p.WaistCM = 90
	g := calculateNutritionGoals(p, calculateBodyMetrics(p, time.Time{}))
	if g.FiberG != 35 {
		t.Errorf("male fiber: expected 35, got %d", g.FiberG)
	}
	p.Gender = GenderOther
	g = calculateNutritionGoals(p, calculateBodyMetrics(p, time.Time{}))
	if g.FiberG != 35 {
		t.Errorf("other fiber: expected 35, got %d", g.FiberG)
	}
}

// TestNutritionGoals_MacroCaloriesWithinOnePercent sweeps a grid of profiles
// and checks that 4/4/9 kcal from the gram targets lands within 1% of the
// daily calorie target, and that the percentages sum to 100.
func TestNutritionGoals_MacroCaloriesWithinOnePercent(t *testing.T) {
	for _, gender := range []Gender{GenderFemale, GenderMale, GenderOther} {
		for _, weight := range []float64{60, 75, 90, 120} {
			for _, height := range []float64{155, 170, 195} {
				for _, age := range []int{20, 40, 60} {
					for level := range activityMultipliers {
						for goal := range goalCalorieFactors {
							for _, waist := range []float64{70, 85, 100} {
								p := UserProfile{
									Name: "grid", Age: age, WeightKG: weight, HeightCM: height,
									WaistCM: waist, HipCM: 100, Gender: gender,
									ActivityLevel: level, Goal: goal,
								}
								if validateProfile(p) != nil {
									continue
								}
								g := calculateNutritionGoals(p, calculateBodyMetrics(p, time.Time{}))
								if sum := g.ProteinPercentage + g.CarbsPercentage + g.FatPercentage; sum != 100 {
									t.Fatalf("%+v: percentages sum to %d", p, sum)
								}
								diff := math.Abs(float64(macroCalories(g) - g.DailyCalories))
								if diff > 0.01*float64(g.DailyCalories) {
									t.Fatalf("%+v: macro kcal %d vs daily %d", p, macroCalories(g), g.DailyCalories)
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestCalculateBodyMetrics_Deterministic(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	p := referenceProfile()
	a := calculateBodyMetrics(p, now)
	b := calculateBodyMetrics(p, now)
	if a != b {
		t.Errorf("expected identical metrics, got %+v and %+v", a, b)
	}
	if calculateNutritionGoals(p, a) != calculateNutritionGoals(p, b) {
		t.Error("expected identical goals")
	}
}

func TestCalculateWeightLossDeficit(t *testing.T) {
	d := calculateWeightLossDeficit(2000)
	if d.Moderate != 1700 || d.Aggressive != 1500 {
		t.Errorf("expected 1700/1500, got %d/%d", d.Moderate, d.Aggressive)
	}
	if d.ModerateKGPerWeek != 0.5 || d.AggressiveKGPerWeek != 1.0 {
		t.Errorf("unexpected kg/week: %+v", d)
	}
}

func TestAdviceFor(t *testing.T) {
	for _, bt := range []BodyType{BodyTypeApple, BodyTypePear, BodyTypeMixed} {
		a := adviceFor(bt)
		if a == nil || a.Title == "" || len(a.Tips) == 0 {
			t.Errorf("%s: expected advice with tips, got %+v", bt, a)
		}
	}
	if adviceFor("banana") != nil {
		t.Error("expected nil advice for unknown body type")
	}
}
