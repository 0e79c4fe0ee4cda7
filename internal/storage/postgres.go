package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const challengeColumns = `id, title, description, challenge_type, format_type, difficulty, focus_area,
	user_email, user_id, status, content, questions, responses, evaluation,
	created_at, updated_at, submitted_at, completed_at`

// CreateChallenge inserts a new challenge row
func (r *PostgresRepository) CreateChallenge(ctx context.Context, ch *models.Challenge) error {
	rec, err := ToRecord(ch)
	if err != nil {
		return fmt.Errorf("failed to map challenge: %w", err)
	}

	query := `
		INSERT INTO challenges (` + challengeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.Title,
		rec.Description,
		nullString(rec.ChallengeType),
		nullString(rec.FormatType),
		nullString(rec.Difficulty),
		nullString(rec.FocusArea),
		nullString(rec.UserEmail),
		nullString(rec.UserID),
		rec.Status,
		rec.Content,
		rec.Questions,
		rec.Responses,
		nullJSON(rec.Evaluation),
		rec.CreatedAt,
		rec.UpdatedAt,
		nullTime(rec.SubmittedAt),
		nullTime(rec.CompletedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}

	return nil
}

// GetChallenge retrieves a challenge by ID; (nil, nil) when absent
func (r *PostgresRepository) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`

	rec, err := r.scanChallenge(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	return ToDomain(rec)
}

// UpdateChallenge rewrites a challenge row
func (r *PostgresRepository) UpdateChallenge(ctx context.Context, ch *models.Challenge) error {
	rec, err := ToRecord(ch)
	if err != nil {
		return fmt.Errorf("failed to map challenge: %w", err)
	}

	query := `
		UPDATE challenges
		SET title = $2, description = $3, challenge_type = $4, format_type = $5,
			difficulty = $6, focus_area = $7, status = $8, content = $9,
			questions = $10, responses = $11, evaluation = $12,
			updated_at = $13, submitted_at = $14, completed_at = $15
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.Title,
		rec.Description,
		nullString(rec.ChallengeType),
		nullString(rec.FormatType),
		nullString(rec.Difficulty),
		nullString(rec.FocusArea),
		rec.Status,
		rec.Content,
		rec.Questions,
		rec.Responses,
		nullJSON(rec.Evaluation),
		rec.UpdatedAt,
		nullTime(rec.SubmittedAt),
		nullTime(rec.CompletedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("challenge %s: %w", rec.ID, models.ErrChallengeNotFound)
	}

	return nil
}

// DeleteChallenge deletes a challenge by ID
func (r *PostgresRepository) DeleteChallenge(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("challenge %s: %w", id, models.ErrChallengeNotFound)
	}

	return nil
}

// ListChallenges returns challenges matching filters, newest first
func (r *PostgresRepository) ListChallenges(ctx context.Context, filters models.ChallengeFilters) ([]*models.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND (user_id = $%d OR user_email = $%d)", argNum, argNum)
		args = append(args, filters.UserID)
		argNum++
	}

	if filters.FocusArea != "" {
		query += fmt.Sprintf(" AND focus_area = $%d", argNum)
		args = append(args, filters.FocusArea)
		argNum++
	}

	if filters.ChallengeType != "" {
		query += fmt.Sprintf(" AND challenge_type = $%d", argNum)
		args = append(args, filters.ChallengeType)
		argNum++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	return r.queryChallenges(ctx, query, args...)
}

// GetStalePendingChallenges returns pending challenges created before the
// cutoff, oldest first
func (r *PostgresRepository) GetStalePendingChallenges(ctx context.Context, olderThan time.Time) ([]*models.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC`

	return r.queryChallenges(ctx, query, olderThan)
}

func (r *PostgresRepository) queryChallenges(ctx context.Context, query string, args ...interface{}) ([]*models.Challenge, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*models.Challenge

	for rows.Next() {
		rec, err := r.scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}

		ch, err := ToDomain(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to map challenge %s: %w", rec.ID, err)
		}

		challenges = append(challenges, ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}

	return challenges, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanChallenge(row rowScanner) (*ChallengeRecord, error) {
	var rec ChallengeRecord
	var challengeType, formatType, difficulty, focusArea, userEmail, userID sql.NullString
	var evaluation []byte
	var submittedAt, completedAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Description,
		&challengeType,
		&formatType,
		&difficulty,
		&focusArea,
		&userEmail,
		&userID,
		&rec.Status,
		&rec.Content,
		&rec.Questions,
		&rec.Responses,
		&evaluation,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&submittedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ChallengeType = challengeType.String
	rec.FormatType = formatType.String
	rec.Difficulty = difficulty.String
	rec.FocusArea = focusArea.String
	rec.UserEmail = userEmail.String
	rec.UserID = userID.String
	rec.Evaluation = evaluation

	if submittedAt.Valid {
		rec.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}

	return &rec, nil
}

// --- Users ---

// GetUserByEmail retrieves a user profile; (nil, nil) when absent
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, full_name, focus_area, trait_scores, preferences, created_at, last_active
		FROM users
		WHERE email = $1
	`

	var u models.User
	var fullName, focusArea sql.NullString
	var traitScoresJSON, preferencesJSON []byte
	var lastActive sql.NullTime

	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID,
		&u.Email,
		&fullName,
		&focusArea,
		&traitScoresJSON,
		&preferencesJSON,
		&u.CreatedAt,
		&lastActive,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.FullName = fullName.String
	u.FocusArea = focusArea.String

	if lastActive.Valid {
		u.LastActive = &lastActive.Time
	}

	if traitScoresJSON != nil {
		if err := json.Unmarshal(traitScoresJSON, &u.TraitScores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trait scores: %w", err)
		}
	}

	if preferencesJSON != nil {
		if err := json.Unmarshal(preferencesJSON, &u.Preferences); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}

	return &u, nil
}

// UpdateUserLastActive stamps the user's last activity time
func (r *PostgresRepository) UpdateUserLastActive(ctx context.Context, email string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active = $2 WHERE email = $1`, email, at)
	if err != nil {
		return fmt.Errorf("failed to update last_active: %w", err)
	}
	return nil
}

// --- Progress ---

// GetProgress retrieves per-focus-area progress; (nil, nil) when absent
func (r *PostgresRepository) GetProgress(ctx context.Context, userID, focusArea string) (*models.UserProgress, error) {
	query := `
		SELECT user_id, focus_area, completed_count, average_score, updated_at
		FROM user_progress
		WHERE user_id = $1 AND focus_area = $2
	`

	var p models.UserProgress
	err := r.pool.QueryRow(ctx, query, userID, focusArea).Scan(
		&p.UserID,
		&p.FocusArea,
		&p.CompletedCount,
		&p.AverageScore,
		&p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return &p, nil
}

// UpsertProgress writes per-focus-area progress
func (r *PostgresRepository) UpsertProgress(ctx context.Context, p *models.UserProgress) error {
	query := `
		INSERT INTO user_progress (user_id, focus_area, completed_count, average_score, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, focus_area) DO UPDATE
		SET completed_count = EXCLUDED.completed_count,
			average_score = EXCLUDED.average_score,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query, p.UserID, p.FocusArea, p.CompletedCount, p.AverageScore, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}

// --- Journey events ---

// AppendJourneyEvent records a user activity event
func (r *PostgresRepository) AppendJourneyEvent(ctx context.Context, ev *models.JourneyEvent) error {
	dataJSON, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal journey event data: %w", err)
	}

	query := `
		INSERT INTO journey_events (id, user_id, event_type, data, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.pool.Exec(ctx, query, ev.ID, ev.UserID, ev.Type, dataJSON, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append journey event: %w", err)
	}
	return nil
}

// ListJourneyEvents returns a user's most recent journey events
func (r *PostgresRepository) ListJourneyEvents(ctx context.Context, userID string, limit int) ([]*models.JourneyEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, event_type, data, occurred_at
		FROM journey_events
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journey events: %w", err)
	}
	defer rows.Close()

	var events []*models.JourneyEvent

	for rows.Next() {
		var ev models.JourneyEvent
		var dataJSON []byte

		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Type, &dataJSON, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan journey event: %w", err)
		}

		if dataJSON != nil {
			json.Unmarshal(dataJSON, &ev.Data)
		}

		events = append(events, &ev)
	}

	return events, rows.Err()
}

// --- API clients ---

// GetClientByAPIKey retrieves an API client by its key; (nil, nil) when absent
func (r *PostgresRepository) GetClientByAPIKey(ctx context.Context, apiKey string) (*models.APIClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.APIClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.APIKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}
	return nil
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}
