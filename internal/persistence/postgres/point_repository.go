package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

const pointColumns = `id, user_id, address, district, schedule, lat, lng, materials, type, status, photo_url, notes, created_at, updated_at`

// PointRepository implements persistence.PointRepository on PostgreSQL.
type PointRepository struct {
	db *sql.DB
}

// NewPointRepository creates a PostgreSQL point repository.
func NewPointRepository(db *sql.DB) *PointRepository {
	return &PointRepository{db: db}
}

func (r *PointRepository) CreatePoint(ctx context.Context, point persistence.CollectionPoint) error {
	if point.ID == "" || point.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}
	if point.Status == "" {
		point.Status = persistence.PointStatusAvailable
	}
	materials := point.Materials
	if materials == nil {
		materials = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO collection_points (`+pointColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		point.ID,
		point.OwnerID,
		point.Address,
		point.District,
		point.Schedule,
		point.Lat,
		point.Lng,
		pq.Array(materials),
		point.Type,
		point.Status,
		point.PhotoURL,
		point.Notes,
		point.CreatedAt.UTC(),
		point.UpdatedAt.UTC(),
	)
	return mapError(err)
}

func (r *PointRepository) GetPoint(ctx context.Context, id string) (persistence.CollectionPoint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pointColumns+` FROM collection_points WHERE id = $1`, id)
	point, err := scanPoint(row)
	if err != nil {
		return persistence.CollectionPoint{}, mapError(err)
	}
	return point, nil
}

func (r *PointRepository) ListPointsByOwner(ctx context.Context, ownerID string) ([]persistence.CollectionPoint, error) {
	return r.list(ctx, `SELECT `+pointColumns+` FROM collection_points WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
}

func (r *PointRepository) ListPointsByType(ctx context.Context, pointType string) ([]persistence.CollectionPoint, error) {
	return r.list(ctx, `SELECT `+pointColumns+` FROM collection_points WHERE type = $1 ORDER BY created_at ASC, id ASC`, pointType)
}

func (r *PointRepository) ListPoints(ctx context.Context) ([]persistence.CollectionPoint, error) {
	return r.list(ctx, `SELECT `+pointColumns+` FROM collection_points ORDER BY created_at ASC, id ASC`)
}

// DeletePoint removes a point that holds no live claim.
func (r *PointRepository) DeletePoint(ctx context.Context, id string) error {
	return withTransaction(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRemovable(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM collection_points WHERE id = $1`, id); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// ArchivePoint moves a point without a live claim into collection_points_archive.
func (r *PointRepository) ArchivePoint(ctx context.Context, id string, archivedAt time.Time) error {
	return withTransaction(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRemovable(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`WITH moved AS (
				DELETE FROM collection_points WHERE id = $1 RETURNING *
			)
			INSERT INTO collection_points_archive SELECT moved.*, $2::timestamptz FROM moved`,
			id, archivedAt.UTC()); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// lockRemovable takes the point row lock before looking for a live claim.
// CreateClaim reads the point FOR SHARE, so a claim either commits before the
// lock is granted and is seen here, or waits and then finds the point gone.
func lockRemovable(ctx context.Context, tx *sql.Tx, id string) error {
	var locked string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM collection_points WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		return mapError(err)
	}
	var live bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM collection_claims WHERE collection_point_id = $1 AND status = 'claimed')`,
		id).Scan(&live); err != nil {
		return mapError(err)
	}
	if live {
		return persistence.ErrLiveClaim
	}
	return nil
}

func (r *PointRepository) list(ctx context.Context, query string, args ...any) ([]persistence.CollectionPoint, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var points []persistence.CollectionPoint
	for rows.Next() {
		point, err := scanPoint(rows)
		if err != nil {
			return nil, mapError(err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return points, nil
}

func scanPoint(row rowScanner) (persistence.CollectionPoint, error) {
	var (
		point     persistence.CollectionPoint
		lat, lng  sql.NullFloat64
		materials pq.StringArray
		photoURL  sql.NullString
	)
	if err := row.Scan(
		&point.ID,
		&point.OwnerID,
		&point.Address,
		&point.District,
		&point.Schedule,
		&lat,
		&lng,
		&materials,
		&point.Type,
		&point.Status,
		&photoURL,
		&point.Notes,
		&point.CreatedAt,
		&point.UpdatedAt,
	); err != nil {
		return persistence.CollectionPoint{}, err
	}

	if lat.Valid {
		v := lat.Float64
		point.Lat = &v
	}
	if lng.Valid {
		v := lng.Float64
		point.Lng = &v
	}
	if photoURL.Valid {
		v := photoURL.String
		point.PhotoURL = &v
	}
	point.Materials = []string(materials)
	point.CreatedAt = point.CreatedAt.UTC()
	point.UpdatedAt = point.UpdatedAt.UTC()
	return point, nil
}
