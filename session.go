package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// sessionDeps are shared by every session of one registry.
type sessionDeps struct {
	store store
	sync  *syncQueue
	// now returns the current time in the configured local zone. Calendar-day
	// boundaries are judged in that zone.
	now func() time.Time
	// onSummary is called with every rebuilt summary and onCleared when the
	// profile goes away. Both run after the session lock is released, in
	// commit order; a push overtaken by a newer one is skipped.
	onSummary   func(userID string, s DailySummary)
	onCleared   func(userID string)
	historyDays int
}

// session is one user's application state: profile, derived metrics and
// goals, the recent meal log, today's water and the daily summary.
//
// Every exported method takes the lock for its whole duration, so a profile
// mutation's metrics -> goals -> summary chain is never observed half done.
// Store writes are enqueued after the local commit and never undo it.
type session struct {
	mu     sync.Mutex
	userID string
	deps   *sessionDeps

	profile *UserProfile
	metrics *BodyMetrics
	goals   *NutritionGoals
	summary *DailySummary
	meals   []Meal
	water   WaterRecord
	prefs   Preferences

	// loadedSince is the start of the window the meal log was hydrated for.
	// Older meals live only in the store.
	loadedSince time.Time

	// pending is the push queued by the current lock holder. pushMu orders
	// deliveries; pushed is the seq of the last one delivered.
	pending *summaryPush
	seq     uint64
	pushMu  sync.Mutex
	pushed  uint64
}

// summaryPush is one queued notification. A nil summary means the profile
// was cleared.
type summaryPush struct {
	seq     uint64
	summary *DailySummary
}

func newSession(userID string, deps *sessionDeps) *session {
	now := deps.now()
	return &session{
		userID:      userID,
		deps:        deps,
		water:       WaterRecord{UserID: userID, Date: DateOnly{startOfDay(now)}},
		prefs:       Preferences{Theme: ThemeSystem},
		loadedSince: startOfDay(now).AddDate(0, 0, -deps.historyDays),
	}
}

/* ─── Recompute chain (lock held) ────────────────────────────────────── */

// recompute runs metrics -> goals -> summary from the current profile.
func (s *session) recompute() {
	now := s.deps.now()
	m := calculateBodyMetrics(*s.profile, now)
	g := calculateNutritionGoals(*s.profile, m)
	s.metrics = &m
	s.goals = &g
	s.refreshSummary()
}

// refreshSummary rebuilds the summary from the meal log, today's water and
// the current goals. Metrics and goals are left alone.
func (s *session) refreshSummary() {
	now := s.deps.now()
	s.rollWater(now)
	if s.goals == nil {
		s.summary = nil
		return
	}
	s.water.GoalML = s.goals.WaterML

	summary, err := buildDailySummary(s.meals, s.goals, s.water.AmountML, now)
	if err != nil {
		// Unreachable: goals were checked above.
		log.Error().Err(err).Str("user_id", s.userID).Msg("[session] build summary")
		return
	}
	s.summary = &summary
	s.queuePush(&summary)
}

// queuePush replaces any push queued under the current lock hold.
func (s *session) queuePush(summary *DailySummary) {
	s.seq++
	s.pending = &summaryPush{seq: s.seq, summary: summary}
}

// unlock releases mu and then delivers the queued push, so a slow listener
// never holds up other callers of this session.
func (s *session) unlock() {
	p := s.pending
	s.pending = nil
	s.mu.Unlock()
	if p == nil {
		return
	}

	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	if p.seq <= s.pushed {
		return
	}
	s.pushed = p.seq
	switch {
	case p.summary == nil && s.deps.onCleared != nil:
		s.deps.onCleared(s.userID)
	case p.summary != nil && s.deps.onSummary != nil:
		s.deps.onSummary(s.userID, *p.summary)
	}
}

// rollWater starts a fresh water record when the local day has changed.
// Dates are compared as YYYY-MM-DD because stored dates come back as UTC
// midnight.
func (s *session) rollWater(now time.Time) {
	if s.water.Date.Format(dateLayout) == now.Format(dateLayout) {
		return
	}
	s.water = WaterRecord{UserID: s.userID, Date: DateOnly{startOfDay(now)}}
	if s.goals != nil {
		s.water.GoalML = s.goals.WaterML
	}
}

// enqueue schedules a store write when a sync queue is configured.
func (s *session) enqueue(op string, run func(ctx context.Context, st store) error) {
	if s.deps.sync == nil || s.deps.store == nil {
		return
	}
	st := s.deps.store
	s.deps.sync.enqueue(syncJob{
		op:     op,
		userID: s.userID,
		run:    func(ctx context.Context) error { return run(ctx, st) },
	})
}

// view copies the profile-side state for a response.
func (s *session) view() profileResponse {
	var resp profileResponse
	if s.profile == nil {
		return resp
	}
	p, m, g := *s.profile, *s.metrics, *s.goals
	resp.Profile, resp.Metrics, resp.Goals = &p, &m, &g
	resp.Advice = adviceFor(m.BodyType)
	if p.Goal == GoalWeightLoss {
		d := calculateWeightLossDeficit(m.TDEE)
		resp.Deficit = &d
	}
	return resp
}

/* ─── Profile transitions ────────────────────────────────────────────── */

// Profile returns the profile with its metrics, goals and advice. All fields
// are nil when no profile is set.
func (s *session) Profile() profileResponse {
	s.mu.Lock()
	defer s.unlock()
	return s.view()
}

// SetProfile replaces the profile (NoProfile or ProfileSet -> ProfileSet) and
// runs the full recompute chain. created_at survives a replacement.
func (s *session) SetProfile(p UserProfile) (profileResponse, error) {
	p.ID = s.userID
	if err := validateProfile(p); err != nil {
		return profileResponse{}, err
	}

	s.mu.Lock()
	defer s.unlock()

	now := s.deps.now()
	p.CreatedAt = now
	if s.profile != nil {
		p.CreatedAt = s.profile.CreatedAt
	}
	p.UpdatedAt = now
	s.commitProfile(p)
	return s.view(), nil
}

// UpdateProfile merges patch into the current profile. It is only valid once
// a profile is set.
func (s *session) UpdateProfile(patch profilePatch) (profileResponse, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.profile == nil {
		return profileResponse{}, errNoProfile
	}
	merged := applyProfilePatch(*s.profile, patch)
	if err := validateProfile(merged); err != nil {
		return profileResponse{}, err
	}
	merged.UpdatedAt = s.deps.now()
	s.commitProfile(merged)
	return s.view(), nil
}

// commitProfile installs p, recomputes and queues the profile and metrics
// history writes.
func (s *session) commitProfile(p UserProfile) {
	s.profile = &p
	s.recompute()

	rec := bodyMetricsRecordFor(p, *s.metrics)
	s.enqueue("save_profile", func(ctx context.Context, st store) error {
		return st.SaveProfile(ctx, p)
	})
	s.enqueue("save_body_metrics", func(ctx context.Context, st store) error {
		return st.SaveBodyMetrics(ctx, rec)
	})
}

// ClearProfile discards the profile, metrics, goals, meal log and summary
// together. Preferences are kept.
func (s *session) ClearProfile() {
	s.mu.Lock()
	defer s.unlock()

	s.profile, s.metrics, s.goals, s.summary = nil, nil, nil, nil
	s.meals = nil
	s.queuePush(nil)
	s.enqueue("delete_profile", func(ctx context.Context, st store) error {
		return st.DeleteProfile(ctx, s.userID)
	})
}

/* ─── Meals ──────────────────────────────────────────────────────────── */

// AddMeal logs a meal and rebuilds the summary. The timestamp defaults to now.
func (s *session) AddMeal(in mealInput) (Meal, error) {
	if err := validateMealType(in.Type); err != nil {
		return Meal{}, err
	}
	if err := validateFoods(in.Foods); err != nil {
		return Meal{}, err
	}

	s.mu.Lock()
	defer s.unlock()

	if s.profile == nil {
		return Meal{}, errNoProfile
	}
	ts := s.deps.now()
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}
	m := newMeal(s.userID, in.Type, in.Foods, ts)
	m.Photo = in.Photo
	m.Notes = in.Notes

	s.meals = append(s.meals, m)
	s.refreshSummary()

	saved := m
	s.enqueue("save_meal", func(ctx context.Context, st store) error {
		return st.SaveMeal(ctx, saved)
	})
	return m, nil
}

// UpdateMeal applies patch to a logged meal. Replacing foods recomputes the
// meal totals; the summary is rebuilt either way.
func (s *session) UpdateMeal(id string, patch mealPatch) (Meal, error) {
	if patch.Type != nil {
		if err := validateMealType(*patch.Type); err != nil {
			return Meal{}, err
		}
	}
	if patch.Foods != nil {
		if err := validateFoods(*patch.Foods); err != nil {
			return Meal{}, err
		}
	}

	s.mu.Lock()
	defer s.unlock()

	i := s.mealIndex(id)
	if i < 0 {
		return Meal{}, errMealNotFound
	}
	m := s.meals[i]
	if patch.Type != nil {
		m.Type = *patch.Type
	}
	if patch.Foods != nil {
		m.setFoods(*patch.Foods)
	}
	if patch.Timestamp != nil {
		m.Timestamp = *patch.Timestamp
	}
	if patch.Photo != nil {
		m.Photo = emptyToNil(*patch.Photo)
	}
	if patch.Notes != nil {
		m.Notes = emptyToNil(*patch.Notes)
	}

	s.meals[i] = m
	s.refreshSummary()

	saved := m
	s.enqueue("update_meal", func(ctx context.Context, st store) error {
		return st.UpdateMeal(ctx, saved)
	})
	return m, nil
}

// DeleteMeal removes a meal from the log and rebuilds the summary.
func (s *session) DeleteMeal(id string) error {
	s.mu.Lock()
	defer s.unlock()

	i := s.mealIndex(id)
	if i < 0 {
		return errMealNotFound
	}
	s.meals = append(s.meals[:i], s.meals[i+1:]...)
	s.refreshSummary()

	s.enqueue("delete_meal", func(ctx context.Context, st store) error {
		return st.DeleteMeal(ctx, s.userID, id)
	})
	return nil
}

// Meals returns a copy of the meal log ordered by timestamp, limited to the
// calendar day of day when it is non-nil.
func (s *session) Meals(day *time.Time) []Meal {
	s.mu.Lock()
	defer s.unlock()

	out := []Meal{}
	for _, m := range s.meals {
		if day != nil && !sameDay(m.Timestamp, *day) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (s *session) mealIndex(id string) int {
	for i := range s.meals {
		if s.meals[i].ID == id {
			return i
		}
	}
	return -1
}

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

/* ─── Water ──────────────────────────────────────────────────────────── */

// Water returns today's water record.
func (s *session) Water() WaterRecord {
	s.mu.Lock()
	defer s.unlock()
	s.rollWater(s.deps.now())
	return s.water
}

// AddWater adds ml to today's intake.
func (s *session) AddWater(ml int) (WaterRecord, error) {
	if ml <= 0 {
		return WaterRecord{}, invalid("amount_ml", "must be a positive integer")
	}
	return s.changeWater(func(cur int) int { return cur + ml })
}

// SetWater overwrites today's intake.
func (s *session) SetWater(ml int) (WaterRecord, error) {
	if ml < 0 {
		return WaterRecord{}, invalid("amount_ml", "must not be negative")
	}
	return s.changeWater(func(int) int { return ml })
}

func (s *session) changeWater(apply func(cur int) int) (WaterRecord, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.profile == nil {
		return WaterRecord{}, errNoProfile
	}
	s.rollWater(s.deps.now())
	s.water.AmountML = apply(s.water.AmountML)
	s.refreshSummary()

	w := s.water
	s.enqueue("save_water", func(ctx context.Context, st store) error {
		return st.SaveWater(ctx, w)
	})
	return w, nil
}

/* ─── Summaries ──────────────────────────────────────────────────────── */

// Summary returns today's summary, rebuilding it first if the local day has
// rolled over since it was built.
func (s *session) Summary() (DailySummary, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.profile == nil {
		return DailySummary{}, errNoProfile
	}
	if s.summary == nil || s.summary.Date.Format(dateLayout) != s.deps.now().Format(dateLayout) {
		s.refreshSummary()
	}
	if s.summary == nil {
		return DailySummary{}, errGoalsNotComputed
	}
	return *s.summary, nil
}

// Range rolls up every calendar day in [start, end] against the current
// goals. Days older than the hydrated meal window are read from the store.
func (s *session) Range(ctx context.Context, start, end time.Time) (progressResponse, error) {
	if end.Before(start) {
		return progressResponse{}, invalid("end", "must not be before start")
	}

	s.mu.Lock()
	if s.profile == nil {
		s.mu.Unlock()
		return progressResponse{}, errNoProfile
	}
	s.rollWater(s.deps.now())
	goals := *s.goals
	meals := append([]Meal(nil), s.meals...)
	today := s.water
	loadedSince := s.loadedSince
	st := s.deps.store
	s.mu.Unlock()

	water := map[string]int{}
	if st != nil {
		from, to := start.Format(dateLayout), end.Format(dateLayout)
		records, err := st.ListWater(ctx, s.userID, from, to)
		if err != nil {
			return progressResponse{}, fmt.Errorf("load water history: %w", err)
		}
		for _, w := range records {
			water[w.Date.Format(dateLayout)] = w.AmountML
		}
		if startOfDay(start).Before(loadedSince) {
			older, err := st.ListMeals(ctx, s.userID, startOfDay(start))
			if err != nil {
				return progressResponse{}, fmt.Errorf("load meal history: %w", err)
			}
			for _, m := range older {
				if m.Timestamp.Before(loadedSince) {
					meals = append(meals, m)
				}
			}
		}
	}
	// The session's record for today is newer than anything the store holds.
	water[today.Date.Format(dateLayout)] = today.AmountML

	days, stats, err := summarizeRange(meals, &goals, water, start, end)
	if err != nil {
		return progressResponse{}, err
	}
	return progressResponse{Days: days, Stats: stats}, nil
}

// Week rolls up the Monday-to-Sunday week containing ref.
func (s *session) Week(ctx context.Context, ref time.Time) (progressResponse, error) {
	start := weekStart(ref)
	return s.Range(ctx, start, start.AddDate(0, 0, 6))
}

/* ─── Preferences ────────────────────────────────────────────────────── */

func (s *session) Preferences() Preferences {
	s.mu.Lock()
	defer s.unlock()
	return s.prefs
}

// CompleteOnboarding marks onboarding done. It does not require a profile.
func (s *session) CompleteOnboarding() Preferences {
	s.mu.Lock()
	defer s.unlock()
	s.prefs.HasCompletedOnboarding = true
	s.savePreferences()
	return s.prefs
}

func (s *session) SetTheme(t Theme) (Preferences, error) {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return Preferences{}, invalid("theme", fmt.Sprintf("unknown value %q", t))
	}
	s.mu.Lock()
	defer s.unlock()
	s.prefs.Theme = t
	s.savePreferences()
	return s.prefs, nil
}

func (s *session) savePreferences() {
	p := s.prefs
	s.enqueue("save_preferences", func(ctx context.Context, st store) error {
		return st.SavePreferences(ctx, s.userID, p)
	})
}

/* ─── Snapshot ───────────────────────────────────────────────────────── */

// sessionSnapshot is the serialized subset of a session. Metrics, goals and
// the summary are left out; restoring recomputes them.
type sessionSnapshot struct {
	Profile                *UserProfile `json:"profile"`
	HasCompletedOnboarding bool         `json:"has_completed_onboarding"`
	Theme                  Theme        `json:"theme"`
	Meals                  []Meal       `json:"meals"`
}

func (s *session) Snapshot() sessionSnapshot {
	s.mu.Lock()
	defer s.unlock()

	snap := sessionSnapshot{
		HasCompletedOnboarding: s.prefs.HasCompletedOnboarding,
		Theme:                  s.prefs.Theme,
		Meals:                  append([]Meal{}, s.meals...),
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

// Restore replaces the session state with snap and recomputes everything
// derived from it. The store is rewritten to match in a single sync job.
func (s *session) Restore(snap sessionSnapshot) error {
	if snap.Profile == nil && len(snap.Meals) > 0 {
		return invalid("profile", "is required when meals are present")
	}
	theme := snap.Theme
	if theme == "" {
		theme = ThemeSystem
	}
	switch theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return invalid("theme", fmt.Sprintf("unknown value %q", theme))
	}

	var profile *UserProfile
	if snap.Profile != nil {
		p := *snap.Profile
		p.ID = s.userID
		if err := validateProfile(p); err != nil {
			return err
		}
		profile = &p
	}

	meals := make([]Meal, 0, len(snap.Meals))
	for i, in := range snap.Meals {
		if err := validateMealType(in.Type); err != nil {
			return fmt.Errorf("meals[%d]: %w", i, err)
		}
		if err := validateFoods(in.Foods); err != nil {
			return fmt.Errorf("meals[%d]: %w", i, err)
		}
		if in.Timestamp.IsZero() {
			return fmt.Errorf("meals[%d]: %w", i, invalid("timestamp", "is required"))
		}
		// Imported ids are not trusted: meal ids are unique across users.
		m := newMeal(s.userID, in.Type, in.Foods, in.Timestamp)
		m.Photo, m.Notes = in.Photo, in.Notes
		meals = append(meals, m)
	}

	s.mu.Lock()
	defer s.unlock()

	now := s.deps.now()
	if profile != nil {
		if profile.CreatedAt.IsZero() {
			profile.CreatedAt = now
		}
		if profile.UpdatedAt.IsZero() {
			profile.UpdatedAt = now
		}
	}
	s.profile = profile
	s.meals = meals
	s.prefs = Preferences{HasCompletedOnboarding: snap.HasCompletedOnboarding, Theme: theme}
	if profile != nil {
		s.recompute()
	} else {
		s.metrics, s.goals, s.summary = nil, nil, nil
		s.queuePush(nil)
	}

	prefs := s.prefs
	var rec *BodyMetricsRecord
	if profile != nil {
		r := bodyMetricsRecordFor(*profile, *s.metrics)
		rec = &r
	}
	s.enqueue("restore", func(ctx context.Context, st store) error {
		if err := st.DeleteProfile(ctx, s.userID); err != nil {
			return err
		}
		if profile != nil {
			if err := st.SaveProfile(ctx, *profile); err != nil {
				return err
			}
			if err := st.SaveBodyMetrics(ctx, *rec); err != nil {
				return err
			}
		}
		for _, m := range meals {
			if err := st.SaveMeal(ctx, m); err != nil {
				return err
			}
		}
		return st.SavePreferences(ctx, s.userID, prefs)
	})
	return nil
}

/* ─── Registry ───────────────────────────────────────────────────────── */

// sessionRegistry hands out one session per user, hydrating it from the
// store on first access.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
	deps     *sessionDeps
}

func newSessionRegistry(deps *sessionDeps) *sessionRegistry {
	return &sessionRegistry{sessions: map[string]*session{}, deps: deps}
}

// get returns the user's session. Hydration runs outside the registry lock;
// if two requests race, the first session stored wins.
func (r *sessionRegistry) get(ctx context.Context, userID string) (*session, error) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err := r.hydrate(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[userID]; ok {
		return existing, nil
	}
	r.sessions[userID] = s
	return s, nil
}

// hydrate builds a session from the store. Missing records are normal for a
// new user; any other read error fails the request.
func (r *sessionRegistry) hydrate(ctx context.Context, userID string) (*session, error) {
	s := newSession(userID, r.deps)
	st := r.deps.store
	if st == nil {
		return s, nil
	}

	profile, err := st.LoadProfile(ctx, userID)
	switch {
	case err == nil:
		s.profile = &profile
	case !errors.Is(err, errNotFound):
		return nil, fmt.Errorf("hydrate session: %w", err)
	}

	prefs, err := st.LoadPreferences(ctx, userID)
	switch {
	case err == nil:
		s.prefs = prefs
	case !errors.Is(err, errNotFound):
		return nil, fmt.Errorf("hydrate session: %w", err)
	}

	meals, err := st.ListMeals(ctx, userID, s.loadedSince)
	if err != nil {
		return nil, fmt.Errorf("hydrate session: %w", err)
	}
	s.meals = meals

	water, err := st.LoadWater(ctx, userID, s.water.Date.Format(dateLayout))
	switch {
	case err == nil:
		s.water = water
	case !errors.Is(err, errNotFound):
		return nil, fmt.Errorf("hydrate session: %w", err)
	}

	if s.profile != nil {
		// Hydration recomputes derived state but writes no metrics history
		// and pushes nothing.
		s.recompute()
		s.pending = nil
	}
	log.Debug().Str("user_id", userID).Int("meals", len(meals)).Bool("has_profile", s.profile != nil).
		Msg("[session] hydrated")
	return s, nil
}
