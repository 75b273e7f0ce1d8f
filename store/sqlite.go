// Package store persists per-user state: preference overrides, pending
// clarification sessions, and the meal log. Backed by SQLite so a single-binary
// deployment needs no external database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"nutrimind"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS user_preferences (
        user_key   TEXT NOT NULL,
        pref_key   TEXT NOT NULL,
        pref_value TEXT NOT NULL,
        updated_at TEXT NOT NULL,
        PRIMARY KEY (user_key, pref_key)
    );

    CREATE TABLE IF NOT EXISTS pending_sessions (
        user_key       TEXT PRIMARY KEY,
        question       TEXT NOT NULL,
        partial_result TEXT NOT NULL,
        original_input TEXT NOT NULL,
        created_at     TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS meals (
        id              INTEGER PRIMARY KEY AUTOINCREMENT,
        user_key        TEXT NOT NULL,
        description     TEXT NOT NULL,
        total_kcal      INTEGER NOT NULL,
        total_protein_g REAL NOT NULL,
        total_carbs_g   REAL NOT NULL,
        total_fats_g    REAL NOT NULL,
        notes           TEXT NOT NULL,
        logged_at       TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS meal_items (
        id         INTEGER PRIMARY KEY AUTOINCREMENT,
        meal_id    INTEGER NOT NULL,
        name       TEXT NOT NULL,
        kcal       REAL NOT NULL,
        protein_g  REAL NOT NULL,
        carbs_g    REAL NOT NULL,
        fats_g     REAL NOT NULL,
        confidence REAL NOT NULL,
        source     TEXT NOT NULL,
        FOREIGN KEY (meal_id) REFERENCES meals(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_meals_user_logged ON meals(user_key, logged_at);
    CREATE INDEX IF NOT EXISTS idx_meal_items_meal_id ON meal_items(meal_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetPreferences returns the user's overrides as a flat key/value map.
func (s *SQLiteStore) GetPreferences(ctx context.Context, userKey string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pref_key, pref_value FROM user_preferences WHERE user_key = ?`, userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	prefs := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs[k] = v
	}
	return prefs, rows.Err()
}

// SetPreference upserts one override, e.g. ("bowl_size", "300ml").
func (s *SQLiteStore) SetPreference(ctx context.Context, userKey, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO user_preferences (user_key, pref_key, pref_value, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(user_key, pref_key) DO UPDATE SET pref_value = excluded.pref_value, updated_at = excluded.updated_at`,
		userKey, key, value, timeNow())
	if err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePreference(ctx context.Context, userKey, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_preferences WHERE user_key = ? AND pref_key = ?`, userKey, key)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}

// SavePending stores (or replaces) the user's unresolved clarification session.
func (s *SQLiteStore) SavePending(ctx context.Context, session nutrimind.PendingClarification) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO pending_sessions (user_key, question, partial_result, original_input, created_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(user_key) DO UPDATE SET
            question = excluded.question,
            partial_result = excluded.partial_result,
            original_input = excluded.original_input,
            created_at = excluded.created_at`,
		session.UserKey, session.Question, session.PartialResult,
		session.OriginalInput, session.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save pending session: %w", err)
	}
	return nil
}

// GetPending returns the user's pending session, or nil when there is none.
func (s *SQLiteStore) GetPending(ctx context.Context, userKey string) (*nutrimind.PendingClarification, error) {
	var session nutrimind.PendingClarification
	var createdAt string

	err := s.db.QueryRowContext(ctx, `
        SELECT user_key, question, partial_result, original_input, created_at
        FROM pending_sessions WHERE user_key = ?`, userKey).
		Scan(&session.UserKey, &session.Question, &session.PartialResult,
			&session.OriginalInput, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending session: %w", err)
	}

	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &session, nil
}

func (s *SQLiteStore) ClearPending(ctx context.Context, userKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_sessions WHERE user_key = ?`, userKey)
	if err != nil {
		return fmt.Errorf("failed to clear pending session: %w", err)
	}
	return nil
}

// LoggedMeal is one persisted analysis with its line items.
type LoggedMeal struct {
	ID          int64
	UserKey     string
	Description string
	Result      nutrimind.AnalysisResult
	LoggedAt    time.Time
}

// SaveMeal persists a finalized analysis. Clarification results are rejected:
// their totals are meaningless.
func (s *SQLiteStore) SaveMeal(ctx context.Context, userKey, description string, result nutrimind.AnalysisResult) (int64, error) {
	if result.ClarificationNeeded {
		return 0, fmt.Errorf("refusing to log a clarification result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        INSERT INTO meals (user_key, description, total_kcal, total_protein_g, total_carbs_g, total_fats_g, notes, logged_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userKey, description, result.TotalKcal, result.TotalProteinG,
		result.TotalCarbsG, result.TotalFatsG, result.Notes, timeNow())
	if err != nil {
		return 0, fmt.Errorf("failed to insert meal: %w", err)
	}
	mealID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read meal id: %w", err)
	}

	for _, item := range result.Items {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO meal_items (meal_id, name, kcal, protein_g, carbs_g, fats_g, confidence, source)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			mealID, item.Name, item.Kcal, item.ProteinG, item.CarbsG,
			item.FatsG, item.Confidence, item.Source)
		if err != nil {
			return 0, fmt.Errorf("failed to insert meal item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit meal: %w", err)
	}
	return mealID, nil
}

// GetMeals returns the user's meals logged at or after since, newest first.
func (s *SQLiteStore) GetMeals(ctx context.Context, userKey string, since time.Time, limit int) ([]LoggedMeal, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_key, description, total_kcal, total_protein_g, total_carbs_g, total_fats_g, notes, logged_at
        FROM meals
        WHERE user_key = ? AND logged_at >= ?
        ORDER BY logged_at DESC
        LIMIT ?`,
		userKey, since.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	var meals []LoggedMeal
	for rows.Next() {
		var meal LoggedMeal
		var loggedAt string
		if err := rows.Scan(&meal.ID, &meal.UserKey, &meal.Description,
			&meal.Result.TotalKcal, &meal.Result.TotalProteinG,
			&meal.Result.TotalCarbsG, &meal.Result.TotalFatsG,
			&meal.Result.Notes, &loggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		if meal.LoggedAt, err = time.Parse(time.RFC3339Nano, loggedAt); err != nil {
			return nil, fmt.Errorf("failed to parse logged_at: %w", err)
		}
		if err := s.loadItems(ctx, &meal); err != nil {
			return nil, err
		}
		meals = append(meals, meal)
	}
	return meals, rows.Err()
}

func (s *SQLiteStore) loadItems(ctx context.Context, meal *LoggedMeal) error {
	rows, err := s.db.QueryContext(ctx, `
        SELECT name, kcal, protein_g, carbs_g, fats_g, confidence, source
        FROM meal_items
        WHERE meal_id = ?
        ORDER BY id`, meal.ID)
	if err != nil {
		return fmt.Errorf("failed to query meal items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item nutrimind.FoodItem
		if err := rows.Scan(&item.Name, &item.Kcal, &item.ProteinG,
			&item.CarbsG, &item.FatsG, &item.Confidence, &item.Source); err != nil {
			return fmt.Errorf("failed to scan meal item: %w", err)
		}
		meal.Result.Items = append(meal.Result.Items, item)
	}
	return rows.Err()
}

// MarshalPartialResult serializes an analysis for a pending session.
func MarshalPartialResult(result nutrimind.AnalysisResult) string {
	b, _ := json.Marshal(result)
	return string(b)
}

func timeNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
