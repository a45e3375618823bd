package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/shared"
)

const userColumns = `id, sequence, external_id, email, name, playlist_id,
	current_streak, best_streak, total_videos_completed, last_active_at,
	created_at, updated_at, deleted_at`

// UserRepository implements [models.Repository] for [models.User] persistence, including the progress ledger.
type UserRepository struct {
	db DBTX
}

var _ models.Repository[*models.User] = (*UserRepository)(nil)

// NewUserRepository creates a new [UserRepository] bound to the pool or a transaction
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	l := user.Ledger()

	query := `
		INSERT INTO users (id, sequence, external_id, email, name, playlist_id,
			current_streak, best_streak, total_videos_completed, last_active_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		id, sequence, user.ExternalID(), user.Email(), user.Name(), optionalString(user.PlaylistID()),
		l.CurrentStreak, l.BestStreak, l.TotalVideosCompleted, optionalTime(l.LastActiveAt),
		user.CreatedAt().UTC(), user.UpdatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.SetID(id)
	user.SetSequence(sequence)
	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return user, nil
}

// GetByExternalID retrieves a user by the identity provider's identifier
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (models.Optional[*models.User], error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.None[*models.User](), nil
	}
	if err != nil {
		return models.None[*models.User](), fmt.Errorf("failed to query user: %w", err)
	}
	return models.Some(user), nil
}

// Ensure returns the user for externalID, creating an empty one on first sight.
func (r *UserRepository) Ensure(ctx context.Context, externalID, email, name string) (*models.User, error) {
	found, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if user, ok := found.Get(); ok {
		return user, nil
	}

	user := models.NewUser(0, externalID, email, name)
	if err := r.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update modifies the profile fields of an existing user.
//
// Ledger columns are written only through [UserRepository.AdjustCompleted] and [UserRepository.SaveStreak].
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	query := `
		UPDATE users
		SET email = ?, name = ?, playlist_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	res, err := r.db.ExecContext(ctx, query, user.Email(), user.Name(), optionalString(user.PlaylistID()), now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := affectOne(res, "user", user.ID()); err != nil {
		return err
	}

	user.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return affectOne(res, "user", id)
}

// List retrieves all users matching the given criteria, excluding soft-deleted users.
//
// Supported criteria: "email" (string), "active" (bool, users with a non-null last_active_at).
func (r *UserRepository) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}
	if active, ok := criteria["active"].(bool); ok && active {
		query += " AND last_active_at IS NOT NULL"
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return users, nil
}

// AdjustCompleted moves the completed-video counter by delta as a single commutative update.
//
// The counter never drops below zero.
func (r *UserRepository) AdjustCompleted(ctx context.Context, id string, delta int) error {
	query := `
		UPDATE users
		SET total_videos_completed = MAX(total_videos_completed + ?, 0), updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	res, err := r.db.ExecContext(ctx, query, delta, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to adjust completed count: %w", err)
	}
	return affectOne(res, "user", id)
}

// SaveStreak writes the streak fields of l. The counter column is left alone.
func (r *UserRepository) SaveStreak(ctx context.Context, id string, l models.Ledger) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE users
		SET current_streak = ?, best_streak = ?, last_active_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	res, err := r.db.ExecContext(ctx, query, l.CurrentStreak, l.BestStreak, optionalTime(l.LastActiveAt), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return affectOne(res, "user", id)
}

// ResetForPlaylist links playlistID and zeroes the counter and current streak. Best streak is kept.
func (r *UserRepository) ResetForPlaylist(ctx context.Context, id, playlistID string) error {
	query := `
		UPDATE users
		SET playlist_id = ?, total_videos_completed = 0, current_streak = 0, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	res, err := r.db.ExecContext(ctx, query, playlistID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to reset user for playlist: %w", err)
	}
	return affectOne(res, "user", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		id, externalID, email, name string
		sequence                    int
		playlistID                  sql.NullString
		ledger                      models.Ledger
		lastActiveAt                sql.NullTime
		createdAt, updatedAt        time.Time
		deletedAt                   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &externalID, &email, &name, &playlistID,
		&ledger.CurrentStreak, &ledger.BestStreak, &ledger.TotalVideosCompleted, &lastActiveAt,
		&createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	ledger.LastActiveAt = fromNullTime(lastActiveAt)

	user := models.NewUser(sequence, externalID, email, name)
	user.SetID(id)
	user.SetPlaylistID(fromNullString(playlistID))
	user.SetLedger(ledger)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}
	return user, nil
}
