package main

import (
	"errors"
	"math"
	"testing"
)

func TestValidateProfile_Valid(t *testing.T) {
	if err := validateProfile(referenceProfile()); err != nil {
		t.Fatalf("expected valid profile, got %v", err)
	}
	p := referenceProfile()
	phase := PhasePerimenopause
	p.ReproductivePhase = &phase
	if err := validateProfile(p); err != nil {
		t.Fatalf("expected valid profile with phase, got %v", err)
	}
}

// TestValidateProfile_Rejects mutates one field of a valid profile per case
// and checks the error names that field.
func TestValidateProfile_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		field string
		mut   func(p *UserProfile)
	}{
		{"blank name", "name", func(p *UserProfile) { p.Name = "  " }},
		{"zero age", "age", func(p *UserProfile) { p.Age = 0 }},
		{"negative weight", "weight_kg", func(p *UserProfile) { p.WeightKG = -70 }},
		{"NaN weight", "weight_kg", func(p *UserProfile) { p.WeightKG = math.NaN() }},
		{"zero height", "height_cm", func(p *UserProfile) { p.HeightCM = 0 }},
		{"infinite waist", "waist_cm", func(p *UserProfile) { p.WaistCM = math.Inf(1) }},
		{"zero hip", "hip_cm", func(p *UserProfile) { p.HipCM = 0 }},
		{"unknown gender", "gender", func(p *UserProfile) { p.Gender = "robot" }},
		{"unknown activity", "activity_level", func(p *UserProfile) { p.ActivityLevel = "extreme" }},
		{"unknown goal", "goal", func(p *UserProfile) { p.Goal = "bulk" }},
		{"unknown phase", "reproductive_phase", func(p *UserProfile) { p.ReproductivePhase = ptr(ReproductivePhase("molting")) }},
		{"male waist at neck size", "waist_cm", func(p *UserProfile) { p.Gender = GenderMale; p.WaistCM = 35 }},
		{"other waist below neck size", "waist_cm", func(p *UserProfile) { p.Gender = GenderOther; p.WaistCM = 30 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := referenceProfile()
			tc.mut(&p)
			err := validateProfile(p)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, verr.Field)
			}
		})
	}
}

func TestValidateProfile_FemaleSmallWaistAllowed(t *testing.T) {
	p := referenceProfile()
	p.WaistCM = 30
	if err := validateProfile(p); err != nil {
		t.Errorf("expected female waist 30 to be valid, got %v", err)
	}
}

func TestApplyProfilePatch(t *testing.T) {
	p := referenceProfile()
	p.Email = ptr("ana@example.com")
	p.ReproductivePhase = ptr(PhaseRegularCycle)

	got := applyProfilePatch(p, profilePatch{
		WeightKG:          ptr(68.5),
		Goal:              ptr(string(GoalMaintenance)),
		Email:             ptr(""),
		ReproductivePhase: ptr(""),
	})
	if got.WeightKG != 68.5 || got.Goal != GoalMaintenance {
		t.Errorf("patched fields not applied: %+v", got)
	}
	if got.Email != nil || got.ReproductivePhase != nil {
		t.Errorf("empty strings should clear email and phase, got %v / %v", got.Email, got.ReproductivePhase)
	}
	if got.Name != p.Name || got.HeightCM != p.HeightCM || got.ActivityLevel != p.ActivityLevel {
		t.Errorf("unpatched fields changed: %+v", got)
	}
	if p.WeightKG != 70 {
		t.Error("patch mutated the original profile")
	}
}

func TestValidateFoods(t *testing.T) {
	bad := FoodCategory("minerals")
	cases := []struct {
		name  string
		foods []FoodItem
		field string
	}{
		{"empty", nil, "foods"},
		{"blank name", []FoodItem{food("", 10, 0, 0, 0)}, "foods[0].name"},
		{"negative calories", []FoodItem{food("Egg", -1, 0, 0, 0)}, "foods[0].calories"},
		{"negative fiber", []FoodItem{{Name: "Bran", FiberG: ptr(-2.0)}}, "foods[0].fiber_g"},
		{"NaN glycemic index", []FoodItem{{Name: "Rice", GlycemicIndex: ptr(math.NaN())}}, "foods[0].glycemic_index"},
		{"unknown category", []FoodItem{food("Egg", 70, 6, 0, 5), {Name: "Salt", Category: &bad}}, "foods[1].category"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var verr *ValidationError
			if err := validateFoods(tc.foods); !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, verr.Field)
			}
		})
	}

	ok := []FoodItem{food("Egg", 70, 6, 0, 5), {Name: "Water", Category: ptr(FoodCategory("beverages"))}}
	if err := validateFoods(ok); err != nil {
		t.Errorf("expected valid foods, got %v", err)
	}
}

func TestValidateMealType(t *testing.T) {
	for mt := range validMealTypes {
		if err := validateMealType(mt); err != nil {
			t.Errorf("%s: unexpected error %v", mt, err)
		}
	}
	if err := validateMealType("brunch"); err == nil {
		t.Error("expected error for unknown meal type")
	}
}
