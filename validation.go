package main

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	errNoProfile         = errors.New("no profile set")
	errMealNotFound      = errors.New("meal not found")
	errNoFoodsRecognized = errors.New("no foods recognized")
	errNotFound          = errors.New("not found")
)

// ValidationError rejects a profile or meal mutation and names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// positive rejects zero, negative, NaN and infinite measurements.
func positive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return invalid(field, "must be a positive number")
	}
	return nil
}

// validateProfile checks everything the formula library assumes about its
// input. Nothing downstream validates again.
func validateProfile(p UserProfile) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", "is required")
	}
	if p.Age <= 0 {
		return invalid("age", "must be a positive integer")
	}
	for _, m := range []struct {
		field string
		v     float64
	}{
		{"weight_kg", p.WeightKG},
		{"height_cm", p.HeightCM},
		{"waist_cm", p.WaistCM},
		{"hip_cm", p.HipCM},
	} {
		if err := positive(m.field, m.v); err != nil {
			return err
		}
	}

	switch p.Gender {
	case GenderFemale, GenderMale, GenderOther:
	default:
		return invalid("gender", fmt.Sprintf("unknown value %q", p.Gender))
	}
	if _, ok := activityMultipliers[p.ActivityLevel]; !ok {
		return invalid("activity_level", fmt.Sprintf("unknown value %q", p.ActivityLevel))
	}
	if _, ok := goalCalorieFactors[p.Goal]; !ok {
		return invalid("goal", fmt.Sprintf("unknown value %q", p.Goal))
	}
	if p.ReproductivePhase != nil && !validReproductivePhases[*p.ReproductivePhase] {
		return invalid("reproductive_phase", fmt.Sprintf("unknown value %q", *p.ReproductivePhase))
	}

	// The male/other Navy formula takes log10(waist - neck).
	if p.Gender != GenderFemale && p.WaistCM <= defaultNeckCM {
		return invalid("waist_cm", fmt.Sprintf("must be greater than %.0f", defaultNeckCM))
	}
	return nil
}

// applyProfilePatch merges the non-nil fields of patch into p. Enum strings
// are copied as-is; validateProfile rejects unknown values afterwards.
func applyProfilePatch(p UserProfile, patch profilePatch) UserProfile {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Email != nil {
		if *patch.Email == "" {
			p.Email = nil
		} else {
			email := *patch.Email
			p.Email = &email
		}
	}
	if patch.Age != nil {
		p.Age = *patch.Age
	}
	if patch.WeightKG != nil {
		p.WeightKG = *patch.WeightKG
	}
	if patch.HeightCM != nil {
		p.HeightCM = *patch.HeightCM
	}
	if patch.WaistCM != nil {
		p.WaistCM = *patch.WaistCM
	}
	if patch.HipCM != nil {
		p.HipCM = *patch.HipCM
	}
	if patch.Gender != nil {
		p.Gender = Gender(*patch.Gender)
	}
	if patch.ActivityLevel != nil {
		p.ActivityLevel = ActivityLevel(*patch.ActivityLevel)
	}
	if patch.ReproductivePhase != nil {
		if *patch.ReproductivePhase == "" {
			p.ReproductivePhase = nil
		} else {
			phase := ReproductivePhase(*patch.ReproductivePhase)
			p.ReproductivePhase = &phase
		}
	}
	if patch.Goal != nil {
		p.Goal = Goal(*patch.Goal)
	}
	return p
}

// validateFoods rejects negative nutrients and unknown categories. Absent
// optional values are fine.
func validateFoods(foods []FoodItem) error {
	if len(foods) == 0 {
		return invalid("foods", "at least one food is required")
	}
	for i, f := range foods {
		field := fmt.Sprintf("foods[%d]", i)
		if strings.TrimSpace(f.Name) == "" {
			return invalid(field+".name", "is required")
		}
		for _, n := range []struct {
			name string
			v    *float64
		}{
			{"calories", &f.Calories},
			{"protein_g", &f.ProteinG},
			{"carbs_g", &f.CarbsG},
			{"fat_g", &f.FatG},
			{"fiber_g", f.FiberG},
			{"sodium_mg", f.SodiumMG},
			{"glycemic_index", f.GlycemicIndex},
			{"portion_weight_g", f.PortionWeight},
		} {
			if n.v == nil {
				continue
			}
			if math.IsNaN(*n.v) || math.IsInf(*n.v, 0) || *n.v < 0 {
				return invalid(field+"."+n.name, "must be a non-negative number")
			}
		}
		if f.Category != nil && !validFoodCategories[*f.Category] {
			return invalid(field+".category", fmt.Sprintf("unknown value %q", *f.Category))
		}
	}
	return nil
}

func validateMealType(t MealType) error {
	if !validMealTypes[t] {
		return invalid("type", fmt.Sprintf("unknown value %q", t))
	}
	return nil
}
