package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sprouthq/plantcare/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Plants ---

func (s *SQLiteStore) CreatePlant(ctx context.Context, p *models.Plant) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	schedule, err := json.Marshal(p.CareSchedule)
	if err != nil {
		return fmt.Errorf("marshal care schedule: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plants (id, user_id, name, care_schedule, image_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, string(schedule), p.ImagePath, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create plant: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanPlant(row interface{ Scan(...any) error }) (*models.Plant, error) {
	p := &models.Plant{}
	var schedule string
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &schedule, &p.ImagePath, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schedule), &p.CareSchedule); err != nil {
		return nil, fmt.Errorf("unmarshal care schedule: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetPlant(ctx context.Context, id, userID string) (*models.Plant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, care_schedule, image_path, created_at, updated_at
		FROM plants WHERE id = ? AND user_id = ?`, id, userID)
	p, err := s.scanPlant(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plant %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get plant: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetPlantByName(ctx context.Context, name, userID string) (*models.Plant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, care_schedule, image_path, created_at, updated_at
		FROM plants WHERE name = ? COLLATE NOCASE AND user_id = ?
		ORDER BY created_at LIMIT 1`, name, userID)
	p, err := s.scanPlant(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plant %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get plant by name: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListPlants(ctx context.Context, userID string) ([]*models.Plant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, care_schedule, image_path, created_at, updated_at
		FROM plants WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	defer rows.Close()

	var plants []*models.Plant
	for rows.Next() {
		p, err := s.scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		plants = append(plants, p)
	}
	return plants, rows.Err()
}

func (s *SQLiteStore) UpdatePlant(ctx context.Context, p *models.Plant) error {
	p.UpdatedAt = time.Now().UTC()

	schedule, err := json.Marshal(p.CareSchedule)
	if err != nil {
		return fmt.Errorf("marshal care schedule: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE plants SET name = ?, care_schedule = ?, image_path = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, string(schedule), p.ImagePath, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update plant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("plant %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeletePlant(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM plants WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete plant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("plant %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Diagnosis sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *models.DiagnosisSession) error {
	if sess.ID == "" {
		sess.ID = newULID()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	contextJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("marshal diagnosis context: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO diagnosis_sessions (id, plant_id, status, context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.PlantID, string(sess.Status), string(contextJSON), sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanSession(row interface{ Scan(...any) error }) (*models.DiagnosisSession, error) {
	sess := &models.DiagnosisSession{}
	var status, contextJSON string
	err := row.Scan(&sess.ID, &sess.PlantID, &status, &contextJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sess.Status = models.SessionStatus(status)
	if err := json.Unmarshal([]byte(contextJSON), &sess.Context); err != nil {
		return nil, fmt.Errorf("unmarshal diagnosis context: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.DiagnosisSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, plant_id, status, context, created_at, updated_at
		FROM diagnosis_sessions WHERE id = ?`, id)
	sess, err := s.scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessionsByPlant(ctx context.Context, plantID string) ([]*models.DiagnosisSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plant_id, status, context, created_at, updated_at
		FROM diagnosis_sessions WHERE plant_id = ? ORDER BY created_at DESC`, plantID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.DiagnosisSession
	for rows.Next() {
		sess, err := s.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *models.DiagnosisSession) error {
	sess.UpdatedAt = time.Now().UTC()

	contextJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("marshal diagnosis context: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE diagnosis_sessions SET status = ?, context = ?, updated_at = ?
		WHERE id = ?`,
		string(sess.Status), string(contextJSON), sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM diagnosis_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}
