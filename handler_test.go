package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// stubFoods is a fixed food search backend.
type stubFoods struct {
	foods []FoodItem
	err   error
}

func (s *stubFoods) Search(context.Context, string, int) ([]FoodItem, error) {
	return s.foods, s.err
}

type apiFixture struct {
	router   *gin.Engine
	store    *memStore
	queue    *syncQueue
	analyzer *stubAnalyzer
	foods    *stubFoods
	hub      *summaryHub
	clock    *testClock
	token    string
}

// setupAPITest wires the real routes over an in-memory store. Every request
// is made as user u1.
func setupAPITest(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &apiFixture{
		store:    newMemStore(),
		queue:    newSyncQueue(1, 0),
		analyzer: &stubAnalyzer{},
		foods:    &stubFoods{},
		clock:    &testClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, testZone)},
	}
	f.queue.start()
	t.Cleanup(f.queue.close)

	hub := newSummaryHub()
	f.hub = hub
	h := &Handler{
		sessions: newSessionRegistry(&sessionDeps{
			store:       f.store,
			sync:        f.queue,
			now:         f.clock.now,
			onSummary:   hub.publish,
			onCleared:   hub.publishCleared,
			historyDays: 30,
		}),
		store:     f.store,
		users:     f.store,
		analyzer:  f.analyzer,
		foods:     f.foods,
		hub:       hub,
		jwtSecret: testSecret,
		now:       f.clock.now,
	}
	f.router = gin.New()
	h.registerRoutes(f.router)

	tok, err := issueToken(testSecret, "u1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	f.token = tok
	return f
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

const profileBody = `{"name":"Ana","age":30,"weight_kg":70,"height_cm":165,"waist_cm":80,"hip_cm":100,
	"gender":"female","activity_level":"moderate","goal":"weight-loss"}`

func (f *apiFixture) putProfile(t *testing.T) {
	t.Helper()
	if w := f.do("PUT", "/api/profile", profileBody); w.Code != http.StatusOK {
		t.Fatalf("put profile: %d %s", w.Code, w.Body.String())
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

/* ─── Auth and health ────────────────────────────────────────────────── */

func TestAPI_Healthz(t *testing.T) {
	f := setupAPITest(t)
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAPI_RequiresAuth(t *testing.T) {
	f := setupAPITest(t)
	req := httptest.NewRequest("GET", "/api/profile", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

/* ─── Profile ────────────────────────────────────────────────────────── */

func TestAPI_ProfileLifecycle(t *testing.T) {
	f := setupAPITest(t)

	w := f.do("GET", "/api/profile", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"profile":null`) {
		t.Fatalf("expected empty profile, got %d %s", w.Code, w.Body.String())
	}

	w = f.do("PUT", "/api/profile", profileBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[profileResponse](t, w)
	if resp.Goals == nil || resp.Goals.DailyCalories != 1761 || resp.Metrics.BodyType != BodyTypeMixed {
		t.Errorf("unexpected profile response: %s", w.Body.String())
	}

	w = f.do("PATCH", "/api/profile", `{"weight_kg":65}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	patched := decode[profileResponse](t, w)
	if patched.Profile.WeightKG != 65 || patched.Profile.Name != "Ana" {
		t.Errorf("patch not merged: %+v", patched.Profile)
	}
	if patched.Goals.DailyCalories >= resp.Goals.DailyCalories {
		t.Errorf("expected fewer calories after weight loss, got %d", patched.Goals.DailyCalories)
	}

	f.queue.flush()
	w = f.do("GET", "/api/body-metrics?limit=5", "")
	history := decode[[]BodyMetricsRecord](t, w)
	if len(history) != 2 || history[0].WeightKG != 65 {
		t.Errorf("expected newest-first history of 2, got %+v", history)
	}

	w = f.do("DELETE", "/api/profile", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = f.do("GET", "/api/summary/today", "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 after delete, got %d", w.Code)
	}
	f.queue.flush()
	w = f.do("GET", "/api/body-metrics", "")
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Errorf("expected body metrics cleared with the profile, got %d %s", w.Code, w.Body.String())
	}
}

func TestAPI_ProfileErrors(t *testing.T) {
	f := setupAPITest(t)
	cases := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"patch before put", "PATCH", `{"age":31}`, http.StatusConflict},
		{"invalid gender", "PUT", strings.Replace(profileBody, "female", "robot", 1), http.StatusBadRequest},
		{"bad json", "PUT", `{"name":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(tc.method, "/api/profile", tc.body)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAPI_Preferences(t *testing.T) {
	f := setupAPITest(t)
	w := f.do("PATCH", "/api/preferences", `{"has_completed_onboarding":true,"theme":"dark"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	prefs := decode[Preferences](t, w)
	if !prefs.HasCompletedOnboarding || prefs.Theme != ThemeDark {
		t.Errorf("unexpected preferences: %+v", prefs)
	}
	for _, body := range []string{`{}`, `{"has_completed_onboarding":false}`, `{"theme":"neon"}`} {
		if w := f.do("PATCH", "/api/preferences", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}
}

/* ─── Meals ──────────────────────────────────────────────────────────── */

const mealBody = `{"type":"lunch","foods":[
	{"name":"Rice","calories":200,"protein_g":4,"carbs_g":44,"fat_g":0.5,"portion":"1 cup"},
	{"name":"Chicken","calories":165,"protein_g":31,"carbs_g":0,"fat_g":3.6,"portion":"100 g"}]}`

func TestAPI_MealsRequireProfile(t *testing.T) {
	f := setupAPITest(t)
	if w := f.do("POST", "/api/meals", mealBody); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAPI_MealCRUD(t *testing.T) {
	f := setupAPITest(t)
	f.putProfile(t)

	w := f.do("POST", "/api/meals", mealBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	m := decode[Meal](t, w)
	if m.ID == "" || m.TotalCalories != 365 {
		t.Errorf("unexpected meal: %+v", m)
	}

	w = f.do("GET", "/api/summary/today", "")
	s := decode[DailySummary](t, w)
	if s.TotalCalories != 365 || len(s.Meals) != 1 {
		t.Errorf("unexpected summary: %s", w.Body.String())
	}

	w = f.do("PUT", "/api/meals/"+m.ID, `{"type":"dinner","notes":"leftovers"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if updated := decode[Meal](t, w); updated.Type != MealDinner || updated.TotalCalories != 365 {
		t.Errorf("unexpected update: %+v", updated)
	}

	w = f.do("GET", "/api/meals?date=2026-10-15", "")
	if meals := decode[[]Meal](t, w); len(meals) != 1 {
		t.Errorf("expected 1 meal today, got %d", len(meals))
	}
	w = f.do("GET", "/api/meals?date=2026-10-14", "")
	if meals := decode[[]Meal](t, w); len(meals) != 0 {
		t.Errorf("expected no meals yesterday, got %d", len(meals))
	}

	if w := f.do("DELETE", "/api/meals/"+m.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := f.do("DELETE", "/api/meals/"+m.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestAPI_MealValidation(t *testing.T) {
	f := setupAPITest(t)
	f.putProfile(t)
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown type", "POST", "/api/meals", `{"type":"brunch","foods":[{"name":"Egg","calories":70}]}`, http.StatusBadRequest},
		{"no foods", "POST", "/api/meals", `{"type":"lunch","foods":[]}`, http.StatusBadRequest},
		{"negative calories", "POST", "/api/meals", `{"type":"lunch","foods":[{"name":"Egg","calories":-70}]}`, http.StatusBadRequest},
		{"empty update", "PUT", "/api/meals/abc", `{}`, http.StatusBadRequest},
		{"missing meal", "PUT", "/api/meals/abc", `{"notes":"x"}`, http.StatusNotFound},
		{"bad date", "GET", "/api/meals?date=15-10-2026", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := f.do(tc.method, tc.path, tc.body); w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAPI_MealPhotoWithoutStorage(t *testing.T) {
	f := setupAPITest(t)
	f.putProfile(t)
	body := `{"type":"lunch","photo":"` + testPhoto + `","foods":[{"name":"Egg","calories":70}]}`
	w := f.do("POST", "/api/meals", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if m := decode[Meal](t, w); m.Photo != nil {
		t.Errorf("expected photo dropped without storage, got %q", *m.Photo)
	}
}

/* ─── Analysis and search ────────────────────────────────────────────── */

func TestAPI_AnalyzeMeal(t *testing.T) {
	f := setupAPITest(t)
	f.putProfile(t)

	cases := []struct {
		name     string
		err      error
		want     int
		hasFoods bool
	}{
		{"success", nil, http.StatusOK, true},
		{"nothing recognized", errNoFoodsRecognized, http.StatusUnprocessableEntity, false},
		{"not configured", errAnalyzerUnavailable, http.StatusServiceUnavailable, false},
		{"upstream failure", errors.New("openai: timeout"), http.StatusBadGateway, false},
		{"bad input", invalid("input", "is required"), http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.analyzer.err = tc.err
			f.analyzer.result = analysisResult{}
			if tc.err == nil {
				f.analyzer.result = analysisResult{Foods: []FoodItem{food("Eggs", 180, 14, 2, 12)}, TotalCalories: 180}
			}
			w := f.do("POST", "/api/meals/analyze", `{"input":"2 eggs","input_type":"text"}`)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
			if tc.want == http.StatusUnprocessableEntity || tc.want == http.StatusBadGateway {
				if !strings.Contains(w.Body.String(), `"foods":[]`) {
					t.Errorf("expected empty foods list, got %s", w.Body.String())
				}
			}
			if tc.hasFoods && len(decode[analysisResult](t, w).Foods) != 1 {
				t.Errorf("expected 1 food, got %s", w.Body.String())
			}
		})
	}

	// Personalization comes from the session, not the request.
	if f.analyzer.last.Profile == nil || f.analyzer.last.BodyType == nil || *f.analyzer.last.BodyType != BodyTypeMixed {
		t.Errorf("expected profile and body type on request, got %+v", f.analyzer.last)
	}
	// Analysis never logs a meal.
	if s := decode[DailySummary](t, f.do("GET", "/api/summary/today", "")); len(s.Meals) != 0 {
		t.Errorf("analysis created a meal: %+v", s.Meals)
	}
}

func TestAPI_SearchFoods(t *testing.T) {
	f := setupAPITest(t)
	f.foods.foods = []FoodItem{food("Banana", 89, 1.1, 22.8, 0.3)}

	w := f.do("GET", "/api/foods/search?q=banana", "")
	if w.Code != http.StatusOK || len(decode[[]FoodItem](t, w)) != 1 {
		t.Fatalf("unexpected search response: %d %s", w.Code, w.Body.String())
	}
	if w := f.do("GET", "/api/foods/search?q=", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without q, got %d", w.Code)
	}
	if w := f.do("GET", "/api/foods/search?q=x&limit=100", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for limit 100, got %d", w.Code)
	}

	f.foods.err = errNotFound
	if w := f.do("GET", "/api/foods/search?q=zzz", ""); w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Errorf("expected empty list for no matches, got %d %s", w.Code, w.Body.String())
	}
	f.foods.err = errors.New("upstream down")
	if w := f.do("GET", "/api/foods/search?q=zzz", ""); w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

/* ─── Water and summaries ────────────────────────────────────────────── */

func TestAPI_Water(t *testing.T) {
	f := setupAPITest(t)
	if w := f.do("POST", "/api/water", `{"amount_ml":250}`); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before profile, got %d", w.Code)
	}
	f.putProfile(t)

	f.do("POST", "/api/water", `{"amount_ml":250}`)
	w := f.do("POST", "/api/water", `{"amount_ml":500}`)
	if rec := decode[WaterRecord](t, w); rec.AmountML != 750 || rec.GoalML != 2450 {
		t.Errorf("unexpected water record: %+v", rec)
	}
	if w := f.do("POST", "/api/water", `{"amount_ml":0}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for 0 mL, got %d", w.Code)
	}
	if w := f.do("POST", "/api/water", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without amount, got %d", w.Code)
	}
	w = f.do("PUT", "/api/water", `{"amount_ml":1000}`)
	if rec := decode[WaterRecord](t, w); rec.AmountML != 1000 {
		t.Errorf("expected 1000 after set, got %d", rec.AmountML)
	}

	f.queue.flush()
	w = f.do("GET", "/api/water/history?start=2026-10-01&end=2026-10-31", "")
	history := decode[[]WaterRecord](t, w)
	if len(history) != 1 || history[0].AmountML != 1000 {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestAPI_WeekAndProgress(t *testing.T) {
	f := setupAPITest(t)
	f.putProfile(t)
	f.do("POST", "/api/meals", mealBody)

	w := f.do("GET", "/api/summary/week?date=2026-10-15", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	week := decode[progressResponse](t, w)
	if len(week.Days) != 7 || week.Days[0].Date.Format(dateLayout) != "2026-10-12" {
		t.Fatalf("unexpected week: %+v", week.Days)
	}
	if !week.Days[3].HasData || week.Stats.DaysTracked != 1 {
		t.Errorf("expected Thursday tracked, got %+v", week.Stats)
	}

	w = f.do("GET", "/api/summary/progress?start=2026-10-01&end=2026-10-15", "")
	progress := decode[progressResponse](t, w)
	if len(progress.Days) != 15 || progress.Stats.DaysOnBudget != 1 {
		t.Errorf("unexpected progress: %d days, %+v", len(progress.Days), progress.Stats)
	}

	cases := []string{
		"/api/summary/progress",
		"/api/summary/progress?start=2026-10-15&end=2026-10-01",
		"/api/summary/progress?start=2025-01-01&end=2026-10-01",
		"/api/summary/progress?start=bad&end=2026-10-01",
		"/api/water/history?start=2026-10-01",
	}
	for _, path := range cases {
		if w := f.do("GET", path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

/* ─── Export / import ────────────────────────────────────────────────── */

func TestAPI_ExportImport(t *testing.T) {
	f := setupAPITest(t)
	f.putProfile(t)
	f.do("POST", "/api/meals", mealBody)

	exported := f.do("GET", "/api/export", "").Body.String()
	if !strings.Contains(exported, `"meals":[`) || !strings.Contains(exported, `"name":"Ana"`) {
		t.Fatalf("unexpected export: %s", exported)
	}

	f.do("DELETE", "/api/profile", "")
	w := f.do("POST", "/api/import", exported)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[profileResponse](t, w); resp.Goals == nil || resp.Goals.DailyCalories != 1761 {
		t.Errorf("goals not recomputed on import: %s", w.Body.String())
	}
	if s := decode[DailySummary](t, f.do("GET", "/api/summary/today", "")); s.TotalCalories != 365 {
		t.Errorf("expected imported meal in summary, got %f", s.TotalCalories)
	}

	if w := f.do("POST", "/api/import", `{"meals":[{"type":"lunch"}]}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for meals without profile, got %d", w.Code)
	}
}
