package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// store is the persistence boundary. Lookups of a single missing record
// return an error wrapping errNotFound.
type store interface {
	LoadProfile(ctx context.Context, userID string) (UserProfile, error)
	SaveProfile(ctx context.Context, p UserProfile) error
	// DeleteProfile removes the profile together with its meal log and body
	// metrics history.
	DeleteProfile(ctx context.Context, userID string) error

	ListMeals(ctx context.Context, userID string, since time.Time) ([]Meal, error)
	SaveMeal(ctx context.Context, m Meal) error
	UpdateMeal(ctx context.Context, m Meal) error
	DeleteMeal(ctx context.Context, userID, mealID string) error

	LoadWater(ctx context.Context, userID, date string) (WaterRecord, error)
	SaveWater(ctx context.Context, w WaterRecord) error
	ListWater(ctx context.Context, userID, from, to string) ([]WaterRecord, error)

	SaveBodyMetrics(ctx context.Context, r BodyMetricsRecord) error
	ListBodyMetrics(ctx context.Context, userID string, limit int) ([]BodyMetricsRecord, error)

	LoadPreferences(ctx context.Context, userID string) (Preferences, error)
	SavePreferences(ctx context.Context, userID string, p Preferences) error
}

// userStore looks up login accounts.
type userStore interface {
	FindUser(ctx context.Context, username string) (user, error)
}

/* ─── Database helpers ────────────────────────────────────────────────── */

// queryOne runs a query and scans the first row into T using RowToStructByName.
// pgx.ErrNoRows is translated to errNotFound.
func queryOne[T any](ctx context.Context, pool *pgxpool.Pool, sql string, args pgx.NamedArgs) (T, error) {
	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		log.Error().Err(err).Msg("[queryOne] query error")
		var zero T
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return result, errNotFound
	}
	if err != nil {
		log.Error().Err(err).Msg("[queryOne] scan error")
	}
	return result, err
}

// queryMany runs a query and scans all rows into []T using RowToStructByName.
func queryMany[T any](ctx context.Context, pool *pgxpool.Pool, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		log.Error().Err(err).Msg("[queryMany] query error")
		return nil, err
	}
	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		log.Error().Err(err).Msg("[queryMany] scan error")
	}
	return results, err
}

// newDBPool creates a connection pool. A pool (not a single conn) survives
// the provider closing idle connections.
func newDBPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse DB URL: %w", err)
	}
	// Simple protocol avoids "cached plan must not change result type" after
	// schema changes on poolers with server-side statement caches.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

/* ─── pgStore ────────────────────────────────────────────────────────── */

// pgStore implements store and userStore on PostgreSQL.
type pgStore struct {
	db *pgxpool.Pool
}

func newPGStore(pool *pgxpool.Pool) *pgStore {
	return &pgStore{db: pool}
}

const profileColumns = `user_id, name, email, age, weight_kg, height_cm, waist_cm, hip_cm,
	gender, activity_level, reproductive_phase, goal, created_at, updated_at`

func (s *pgStore) LoadProfile(ctx context.Context, userID string) (UserProfile, error) {
	row, err := queryOne[profileRow](ctx, s.db,
		"SELECT "+profileColumns+" FROM profiles WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		return UserProfile{}, fmt.Errorf("load profile %s: %w", userID, err)
	}
	return rowToProfile(row), nil
}

// SaveProfile upserts the profile row.
func (s *pgStore) SaveProfile(ctx context.Context, p UserProfile) error {
	r := profileToRow(p)
	_, err := s.db.Exec(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES (@userID, @name, @email, @age, @weightKG, @heightCM, @waistCM, @hipCM,
		         @gender, @activityLevel, @reproductivePhase, @goal, @createdAt, @updatedAt)
		 ON CONFLICT (user_id) DO UPDATE SET
		   name = EXCLUDED.name, email = EXCLUDED.email, age = EXCLUDED.age,
		   weight_kg = EXCLUDED.weight_kg, height_cm = EXCLUDED.height_cm,
		   waist_cm = EXCLUDED.waist_cm, hip_cm = EXCLUDED.hip_cm,
		   gender = EXCLUDED.gender, activity_level = EXCLUDED.activity_level,
		   reproductive_phase = EXCLUDED.reproductive_phase, goal = EXCLUDED.goal,
		   updated_at = EXCLUDED.updated_at`,
		pgx.NamedArgs{
			"userID":            r.UserID,
			"name":              r.Name,
			"email":             r.Email,
			"age":               r.Age,
			"weightKG":          r.WeightKG,
			"heightCM":          r.HeightCM,
			"waistCM":           r.WaistCM,
			"hipCM":             r.HipCM,
			"gender":            r.Gender,
			"activityLevel":     r.ActivityLevel,
			"reproductivePhase": r.ReproductivePhase,
			"goal":              r.Goal,
			"createdAt":         r.CreatedAt,
			"updatedAt":         r.UpdatedAt,
		})
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProfile removes the profile, meals and body metrics in one
// transaction so a cleared profile leaves nothing derived from it behind.
func (s *pgStore) DeleteProfile(ctx context.Context, userID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete profile: %w", err)
	}
	defer tx.Rollback(ctx)

	args := pgx.NamedArgs{"userID": userID}
	if _, err := tx.Exec(ctx, "DELETE FROM meals WHERE user_id = @userID", args); err != nil {
		return fmt.Errorf("delete meals for %s: %w", userID, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM body_metrics WHERE user_id = @userID", args); err != nil {
		return fmt.Errorf("delete body metrics for %s: %w", userID, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM profiles WHERE user_id = @userID", args); err != nil {
		return fmt.Errorf("delete profile %s: %w", userID, err)
	}
	return tx.Commit(ctx)
}

const mealColumns = `id, user_id, type, foods, total_calories, total_protein_g, total_carbs_g,
	total_fat_g, total_fiber_g, avg_glycemic_index, eaten_at, photo, notes`

func (s *pgStore) ListMeals(ctx context.Context, userID string, since time.Time) ([]Meal, error) {
	rows, err := queryMany[mealRow](ctx, s.db,
		`SELECT `+mealColumns+` FROM meals
		 WHERE user_id = @userID AND eaten_at >= @since
		 ORDER BY eaten_at`,
		pgx.NamedArgs{"userID": userID, "since": since})
	if err != nil {
		return nil, fmt.Errorf("list meals for %s: %w", userID, err)
	}
	meals := make([]Meal, 0, len(rows))
	for _, r := range rows {
		m, err := rowToMeal(r)
		if err != nil {
			return nil, err
		}
		meals = append(meals, m)
	}
	return meals, nil
}

func mealArgs(r mealRow) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":               r.ID,
		"userID":           r.UserID,
		"type":             r.Type,
		"foods":            r.Foods,
		"totalCalories":    r.TotalCalories,
		"totalProteinG":    r.TotalProteinG,
		"totalCarbsG":      r.TotalCarbsG,
		"totalFatG":        r.TotalFatG,
		"totalFiberG":      r.TotalFiberG,
		"avgGlycemicIndex": r.AvgGlycemicIndex,
		"eatenAt":          r.EatenAt,
		"photo":            r.Photo,
		"notes":            r.Notes,
	}
}

// SaveMeal inserts a meal. Replaying the same meal id is a no-op so a retried
// sync job does not fail on a row it already wrote.
func (s *pgStore) SaveMeal(ctx context.Context, m Meal) error {
	r, err := mealToRow(m)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO meals (`+mealColumns+`)
		 VALUES (@id, @userID, @type, @foods, @totalCalories, @totalProteinG, @totalCarbsG,
		         @totalFatG, @totalFiberG, @avgGlycemicIndex, @eatenAt, @photo, @notes)
		 ON CONFLICT (id) DO NOTHING`,
		mealArgs(r))
	if err != nil {
		return fmt.Errorf("save meal %s: %w", m.ID, err)
	}
	return nil
}

func (s *pgStore) UpdateMeal(ctx context.Context, m Meal) error {
	r, err := mealToRow(m)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE meals SET type = @type, foods = @foods, total_calories = @totalCalories,
		   total_protein_g = @totalProteinG, total_carbs_g = @totalCarbsG,
		   total_fat_g = @totalFatG, total_fiber_g = @totalFiberG,
		   avg_glycemic_index = @avgGlycemicIndex, eaten_at = @eatenAt,
		   photo = @photo, notes = @notes
		 WHERE id = @id AND user_id = @userID`,
		mealArgs(r))
	if err != nil {
		return fmt.Errorf("update meal %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update meal %s: %w", m.ID, errNotFound)
	}
	return nil
}

func (s *pgStore) DeleteMeal(ctx context.Context, userID, mealID string) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM meals WHERE id = @id AND user_id = @userID",
		pgx.NamedArgs{"id": mealID, "userID": userID})
	if err != nil {
		return fmt.Errorf("delete meal %s: %w", mealID, err)
	}
	return nil
}

const waterColumns = "user_id, date, amount_ml, goal_ml, created_at, updated_at"

func (s *pgStore) LoadWater(ctx context.Context, userID, date string) (WaterRecord, error) {
	row, err := queryOne[waterRow](ctx, s.db,
		"SELECT "+waterColumns+" FROM daily_water WHERE user_id = @userID AND date = @date",
		pgx.NamedArgs{"userID": userID, "date": date})
	if err != nil {
		return WaterRecord{}, fmt.Errorf("load water %s %s: %w", userID, date, err)
	}
	return rowToWater(row), nil
}

// SaveWater upserts the day's record; updated_at is always set by the database.
func (s *pgStore) SaveWater(ctx context.Context, w WaterRecord) error {
	r := waterToRow(w)
	_, err := s.db.Exec(ctx,
		`INSERT INTO daily_water (user_id, date, amount_ml, goal_ml)
		 VALUES (@userID, @date, @amountML, @goalML)
		 ON CONFLICT (user_id, date) DO UPDATE SET
		   amount_ml = EXCLUDED.amount_ml, goal_ml = EXCLUDED.goal_ml, updated_at = now()`,
		pgx.NamedArgs{
			"userID":   r.UserID,
			"date":     r.Date.Format(dateLayout),
			"amountML": r.AmountML,
			"goalML":   r.GoalML,
		})
	if err != nil {
		return fmt.Errorf("save water %s %s: %w", w.UserID, w.Date.Format(dateLayout), err)
	}
	return nil
}

func (s *pgStore) ListWater(ctx context.Context, userID, from, to string) ([]WaterRecord, error) {
	rows, err := queryMany[waterRow](ctx, s.db,
		`SELECT `+waterColumns+` FROM daily_water
		 WHERE user_id = @userID AND date >= @from AND date <= @to
		 ORDER BY date`,
		pgx.NamedArgs{"userID": userID, "from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("list water for %s: %w", userID, err)
	}
	records := make([]WaterRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, rowToWater(r))
	}
	return records, nil
}

func (s *pgStore) SaveBodyMetrics(ctx context.Context, rec BodyMetricsRecord) error {
	r := bodyMetricsToRow(rec)
	_, err := s.db.Exec(ctx,
		`INSERT INTO body_metrics (user_id, weight_kg, waist_cm, hip_cm, bmi, bmi_category,
		   body_fat_percentage, waist_hip_ratio, body_type, bmr, tdee, recorded_at)
		 VALUES (@userID, @weightKG, @waistCM, @hipCM, @bmi, @bmiCategory,
		   @bodyFat, @waistHipRatio, @bodyType, @bmr, @tdee, @recordedAt)`,
		pgx.NamedArgs{
			"userID":        r.UserID,
			"weightKG":      r.WeightKG,
			"waistCM":       r.WaistCM,
			"hipCM":         r.HipCM,
			"bmi":           r.BMI,
			"bmiCategory":   r.BMICategory,
			"bodyFat":       r.BodyFatPercentage,
			"waistHipRatio": r.WaistHipRatio,
			"bodyType":      r.BodyType,
			"bmr":           r.BMR,
			"tdee":          r.TDEE,
			"recordedAt":    r.RecordedAt,
		})
	if err != nil {
		return fmt.Errorf("save body metrics for %s: %w", rec.UserID, err)
	}
	return nil
}

// ListBodyMetrics returns the newest entries first.
func (s *pgStore) ListBodyMetrics(ctx context.Context, userID string, limit int) ([]BodyMetricsRecord, error) {
	rows, err := queryMany[bodyMetricsRow](ctx, s.db,
		`SELECT user_id, weight_kg, waist_cm, hip_cm, bmi, bmi_category, body_fat_percentage,
		   waist_hip_ratio, body_type, bmr, tdee, recorded_at
		 FROM body_metrics WHERE user_id = @userID
		 ORDER BY recorded_at DESC LIMIT @limit`,
		pgx.NamedArgs{"userID": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list body metrics for %s: %w", userID, err)
	}
	records := make([]BodyMetricsRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, rowToBodyMetrics(r))
	}
	return records, nil
}

func (s *pgStore) LoadPreferences(ctx context.Context, userID string) (Preferences, error) {
	row, err := queryOne[preferencesRow](ctx, s.db,
		"SELECT user_id, has_completed_onboarding, theme FROM user_preferences WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		return Preferences{}, fmt.Errorf("load preferences %s: %w", userID, err)
	}
	return rowToPreferences(row), nil
}

func (s *pgStore) SavePreferences(ctx context.Context, userID string, p Preferences) error {
	r := preferencesToRow(userID, p)
	_, err := s.db.Exec(ctx,
		`INSERT INTO user_preferences (user_id, has_completed_onboarding, theme)
		 VALUES (@userID, @onboarded, @theme)
		 ON CONFLICT (user_id) DO UPDATE SET
		   has_completed_onboarding = EXCLUDED.has_completed_onboarding, theme = EXCLUDED.theme`,
		pgx.NamedArgs{"userID": r.UserID, "onboarded": r.HasCompletedOnboarding, "theme": r.Theme})
	if err != nil {
		return fmt.Errorf("save preferences %s: %w", userID, err)
	}
	return nil
}

func (s *pgStore) FindUser(ctx context.Context, username string) (user, error) {
	return queryOne[user](ctx, s.db,
		"SELECT id, username, password FROM users WHERE username = @username",
		pgx.NamedArgs{"username": username})
}
