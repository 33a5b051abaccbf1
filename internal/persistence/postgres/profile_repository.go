package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

// ProfileRepository implements persistence.ProfileRepository on PostgreSQL.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a PostgreSQL profile repository.
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile persistence.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name, email, phone, avatar_url, role, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			avatar_url = EXCLUDED.avatar_url,
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at`,
		profile.ID, profile.Name, profile.Email, profile.Phone, profile.AvatarURL, profile.Role, profile.UpdatedAt.UTC())
	return mapError(err)
}

func (r *ProfileRepository) GetProfiles(ctx context.Context, ids []string) (map[string]persistence.Profile, error) {
	profiles := make(map[string]persistence.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, phone, avatar_url, role, updated_at FROM profiles WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var p persistence.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.AvatarURL, &p.Role, &p.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		p.UpdatedAt = p.UpdatedAt.UTC()
		profiles[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return profiles, nil
}
