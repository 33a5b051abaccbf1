package sqlite

import (
	"context"

	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

// ProfileRepository implements persistence.ProfileRepository using SQLite.
type ProfileRepository struct {
	pool *ConnectionPool
}

// NewProfileRepository creates a new SQLite profile repository.
func NewProfileRepository(pool *ConnectionPool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// UpsertProfile inserts or replaces the display profile.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile persistence.Profile) error {
	if profile.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO profiles (id, name, email, phone, avatar_url, role, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			avatar_url = excluded.avatar_url,
			role = excluded.role,
			updated_at = excluded.updated_at`,
		profile.ID,
		profile.Name,
		profile.Email,
		profile.Phone,
		profile.AvatarURL,
		profile.Role,
		formatTime(profile.UpdatedAt),
	)
	return mapError(err)
}

// GetProfiles returns the profiles found for ids, keyed by id. Unknown ids are omitted.
func (r *ProfileRepository) GetProfiles(ctx context.Context, ids []string) (map[string]persistence.Profile, error) {
	profiles := make(map[string]persistence.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, name, email, phone, avatar_url, role, updated_at FROM profiles WHERE id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			profile   persistence.Profile
			updatedAt string
		)
		if err := rows.Scan(&profile.ID, &profile.Name, &profile.Email, &profile.Phone, &profile.AvatarURL, &profile.Role, &updatedAt); err != nil {
			return nil, mapError(err)
		}
		if profile.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		profiles[profile.ID] = profile
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return profiles, nil
}
