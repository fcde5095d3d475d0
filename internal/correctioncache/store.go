package correctioncache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"coverscan/internal/config"
	"coverscan/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases must be cleared after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Conflict policies for an existing row with the same normalized input.
const (
	OnConflictKeep    = "keep"
	OnConflictReplace = "replace"
)

// Entry is one persisted correction: the pick a user confirmed for a
// normalized OCR text, with the vision confidence stored as an integer
// percentage.
type Entry struct {
	ID              int64
	NormalizedInput string
	InputText       string
	ComicID         int64
	VolumeID        int64
	Title           string
	Issue           string
	Year            int
	Publisher       string
	CoverURL        string
	Confidence      int
	UserID          string
	CreatedAt       time.Time
}

// Store manages correction persistence backed by SQLite.
type Store struct {
	db            *sql.DB
	path          string
	minConfidence float64
	onConflict    string
	logger        *slog.Logger
}

// Open initializes or connects to the correction database. The conflict
// policy and write-gating confidence come from configuration.
func Open(cfg config.CorrectionCache, logger *slog.Logger) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("correction cache path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	minConfidence := cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.70
	}
	onConflict := strings.ToLower(strings.TrimSpace(cfg.OnConflict))
	if onConflict == "" {
		onConflict = OnConflictKeep
	}

	store := &Store{
		db:            db,
		path:          path,
		minConfidence: minConfidence,
		onConflict:    onConflict,
		logger:        logging.NewComponentLogger(logger, "correctioncache"),
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Normalize produces the lookup key for an OCR text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Contains reports whether a correction exists for the OCR text. Empty text
// never matches.
func (s *Store) Contains(ctx context.Context, ocrText string) (bool, error) {
	key := Normalize(ocrText)
	if key == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM corrections WHERE normalized_input = ?`, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("lookup correction: %w", err)
	}
	return count > 0, nil
}

// Get returns the stored correction for the OCR text, or nil when absent.
func (s *Store) Get(ctx context.Context, ocrText string) (*Entry, error) {
	key := Normalize(ocrText)
	if key == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM corrections WHERE normalized_input = ?`, key)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get correction: %w", err)
	}
	return entry, nil
}

// Save persists a confirmed pick for the OCR text. It silently no-ops when
// the text is empty, the pick has no catalog id, or the vision confidence
// is below the configured minimum. The insert is atomic; under the "keep"
// policy an existing row always wins, under "replace" a higher stored
// confidence wins. Returns whether a row was written.
func (s *Store) Save(ctx context.Context, ocrText string, pick Entry, visionConfidence float64) (bool, error) {
	key := Normalize(ocrText)
	if key == "" || pick.ComicID == 0 {
		return false, nil
	}
	if visionConfidence < s.minConfidence {
		s.logger.Debug("skipping cache write, confidence below minimum",
			logging.Float64("confidence", visionConfidence),
			logging.Float64("minimum", s.minConfidence))
		return false, nil
	}

	confidence := int(math.Round(visionConfidence * 100))
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	createdAt := time.Now().UTC().Format(time.RFC3339Nano)

	query := `INSERT INTO corrections (
        normalized_input, input_text, selected_comic_id, selected_volume_id,
        selected_title, selected_issue, selected_year, selected_publisher,
        selected_cover_url, original_confidence, user_id, created_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(normalized_input) DO NOTHING`
	if s.onConflict == OnConflictReplace {
		query = `INSERT INTO corrections (
        normalized_input, input_text, selected_comic_id, selected_volume_id,
        selected_title, selected_issue, selected_year, selected_publisher,
        selected_cover_url, original_confidence, user_id, created_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(normalized_input) DO UPDATE SET
        input_text = excluded.input_text,
        selected_comic_id = excluded.selected_comic_id,
        selected_volume_id = excluded.selected_volume_id,
        selected_title = excluded.selected_title,
        selected_issue = excluded.selected_issue,
        selected_year = excluded.selected_year,
        selected_publisher = excluded.selected_publisher,
        selected_cover_url = excluded.selected_cover_url,
        original_confidence = excluded.original_confidence,
        user_id = excluded.user_id,
        created_at = excluded.created_at
    WHERE excluded.original_confidence > corrections.original_confidence`
	}

	res, err := s.db.ExecContext(ctx, query,
		key,
		strings.TrimSpace(ocrText),
		pick.ComicID,
		nullableInt64(pick.VolumeID),
		pick.Title,
		nullableString(pick.Issue),
		nullableInt64(int64(pick.Year)),
		nullableString(pick.Publisher),
		nullableString(pick.CoverURL),
		confidence,
		nullableString(pick.UserID),
		createdAt,
	)
	if err != nil {
		return false, fmt.Errorf("save correction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		s.logger.Debug("cached confirmed match",
			logging.String("normalized_input", key),
			logging.Int64("comic_id", pick.ComicID),
			logging.Int("confidence", confidence))
	}
	return affected > 0, nil
}

// List returns corrections newest first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM corrections ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corrections: %w", err)
	}
	return entries, nil
}

// Remove deletes the correction for the OCR text.
func (s *Store) Remove(ctx context.Context, ocrText string) error {
	key := Normalize(ocrText)
	if key == "" {
		return errors.New("text cannot be empty")
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM corrections WHERE normalized_input = ?`, key)
	if err != nil {
		return fmt.Errorf("remove correction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no correction stored for %q", key)
	}
	return nil
}

// Clear deletes all corrections.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM corrections`); err != nil {
		return fmt.Errorf("clear corrections: %w", err)
	}
	s.logger.Debug("cleared correction cache")
	return nil
}

// Count returns the number of stored corrections.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM corrections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count corrections: %w", err)
	}
	return count, nil
}

const entryColumns = `id, normalized_input, input_text, selected_comic_id,
    selected_volume_id, selected_title, selected_issue, selected_year,
    selected_publisher, selected_cover_url, original_confidence, user_id,
    created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry     Entry
		volumeID  sql.NullInt64
		issue     sql.NullString
		year      sql.NullInt64
		publisher sql.NullString
		coverURL  sql.NullString
		userID    sql.NullString
		createdAt string
	)
	err := row.Scan(
		&entry.ID,
		&entry.NormalizedInput,
		&entry.InputText,
		&entry.ComicID,
		&volumeID,
		&entry.Title,
		&issue,
		&year,
		&publisher,
		&coverURL,
		&entry.Confidence,
		&userID,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	entry.VolumeID = volumeID.Int64
	entry.Issue = issue.String
	entry.Year = int(year.Int64)
	entry.Publisher = publisher.String
	entry.CoverURL = coverURL.String
	entry.UserID = userID.String
	if parsed, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		entry.CreatedAt = parsed
	}
	return &entry, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'coverscan cache clear' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
