package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory store for session and handler tests. Setting fail
// makes every write return errStoreDown.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]UserProfile
	meals    map[string]Meal
	water    map[string]WaterRecord // user_id|date
	metrics  []BodyMetricsRecord
	prefs    map[string]Preferences
	users    map[string]user
	ops      []string
	fail     bool
}

var errStoreDown = errors.New("store unavailable")

func newMemStore() *memStore {
	return &memStore{
		profiles: map[string]UserProfile{},
		meals:    map[string]Meal{},
		water:    map[string]WaterRecord{},
		prefs:    map[string]Preferences{},
		users:    map[string]user{},
	}
}

func (s *memStore) write(op string) error {
	s.ops = append(s.ops, op)
	if s.fail {
		return errStoreDown
	}
	return nil
}

func (s *memStore) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *memStore) opsSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func (s *memStore) LoadProfile(_ context.Context, userID string) (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return UserProfile{}, errNotFound
	}
	return p, nil
}

func (s *memStore) SaveProfile(_ context.Context, p UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("save_profile"); err != nil {
		return err
	}
	s.profiles[p.ID] = p
	return nil
}

func (s *memStore) DeleteProfile(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("delete_profile"); err != nil {
		return err
	}
	delete(s.profiles, userID)
	for id, m := range s.meals {
		if m.UserID == userID {
			delete(s.meals, id)
		}
	}
	kept := s.metrics[:0]
	for _, r := range s.metrics {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	s.metrics = kept
	return nil
}

func (s *memStore) ListMeals(_ context.Context, userID string, since time.Time) ([]Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Meal{}
	for _, m := range s.meals {
		if m.UserID == userID && !m.Timestamp.Before(since) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *memStore) SaveMeal(_ context.Context, m Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("save_meal"); err != nil {
		return err
	}
	if _, ok := s.meals[m.ID]; !ok {
		s.meals[m.ID] = m
	}
	return nil
}

func (s *memStore) UpdateMeal(_ context.Context, m Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("update_meal"); err != nil {
		return err
	}
	if _, ok := s.meals[m.ID]; !ok {
		return errNotFound
	}
	s.meals[m.ID] = m
	return nil
}

func (s *memStore) DeleteMeal(_ context.Context, userID, mealID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("delete_meal"); err != nil {
		return err
	}
	if m, ok := s.meals[mealID]; ok && m.UserID == userID {
		delete(s.meals, mealID)
	}
	return nil
}

func (s *memStore) LoadWater(_ context.Context, userID, date string) (WaterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.water[userID+"|"+date]
	if !ok {
		return WaterRecord{}, errNotFound
	}
	return w, nil
}

func (s *memStore) SaveWater(_ context.Context, w WaterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("save_water"); err != nil {
		return err
	}
	s.water[w.UserID+"|"+w.Date.Format(dateLayout)] = w
	return nil
}

func (s *memStore) ListWater(_ context.Context, userID, from, to string) ([]WaterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []WaterRecord{}
	for _, w := range s.water {
		d := w.Date.Format(dateLayout)
		if w.UserID == userID && d >= from && d <= to {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *memStore) SaveBodyMetrics(_ context.Context, r BodyMetricsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("save_body_metrics"); err != nil {
		return err
	}
	s.metrics = append(s.metrics, r)
	return nil
}

func (s *memStore) ListBodyMetrics(_ context.Context, userID string, limit int) ([]BodyMetricsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []BodyMetricsRecord{}
	for i := len(s.metrics) - 1; i >= 0 && len(out) < limit; i-- {
		if s.metrics[i].UserID == userID {
			out = append(out, s.metrics[i])
		}
	}
	return out, nil
}

func (s *memStore) LoadPreferences(_ context.Context, userID string) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		return Preferences{}, errNotFound
	}
	return p, nil
}

func (s *memStore) SavePreferences(_ context.Context, userID string, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("save_preferences"); err != nil {
		return err
	}
	s.prefs[userID] = p
	return nil
}

func (s *memStore) FindUser(_ context.Context, username string) (user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return user{}, errNotFound
	}
	return u, nil
}

/* ─── Shared fixtures ────────────────────────────────────────────────── */

// testClock is a settable clock for sessions.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// testZone is a fixed non-UTC zone so day-boundary bugs show up.
var testZone = time.FixedZone("BRT", -3*60*60)

// referenceProfile is the worked example: BMI 25.71, BMR 1420.25,
// TDEE 2201.3875, mixed body type, 1761 kcal.
func referenceProfile() UserProfile {
	return UserProfile{
		Name:          "Ana",
		Age:           30,
		WeightKG:      70,
		HeightCM:      165,
		WaistCM:       80,
		HipCM:         100,
		Gender:        GenderFemale,
		ActivityLevel: ActivityModerate,
		Goal:          GoalWeightLoss,
	}
}

func ptr[T any](v T) *T { return &v }

func food(name string, kcal, protein, carbs, fat float64) FoodItem {
	return FoodItem{Name: name, Calories: kcal, ProteinG: protein, CarbsG: carbs, FatG: fat, Portion: "1 serving"}
}
