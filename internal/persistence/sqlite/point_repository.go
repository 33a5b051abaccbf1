package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

const pointColumns = `id, user_id, address, district, schedule, lat, lng, materials, type, status, photo_url, notes, created_at, updated_at`

// PointRepository implements persistence.PointRepository using SQLite.
type PointRepository struct {
	pool *ConnectionPool
}

// NewPointRepository creates a new SQLite point repository.
func NewPointRepository(pool *ConnectionPool) *PointRepository {
	return &PointRepository{pool: pool}
}

// CreatePoint inserts a new collection point.
func (r *PointRepository) CreatePoint(ctx context.Context, point persistence.CollectionPoint) error {
	if point.ID == "" || point.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}

	materials, err := encodeMaterials(point.Materials)
	if err != nil {
		return err
	}
	if point.Status == "" {
		point.Status = persistence.PointStatusAvailable
	}

	query := `INSERT INTO collection_points (` + pointColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.pool.db.ExecContext(ctx, query,
		point.ID,
		point.OwnerID,
		point.Address,
		point.District,
		point.Schedule,
		point.Lat,
		point.Lng,
		materials,
		point.Type,
		point.Status,
		point.PhotoURL,
		point.Notes,
		formatTime(point.CreatedAt),
		formatTime(point.UpdatedAt),
	)
	return mapError(err)
}

// GetPoint retrieves a point by ID.
func (r *PointRepository) GetPoint(ctx context.Context, id string) (persistence.CollectionPoint, error) {
	if id == "" {
		return persistence.CollectionPoint{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx, `SELECT `+pointColumns+` FROM collection_points WHERE id = ?`, id)
	point, err := scanPoint(row)
	if err != nil {
		return persistence.CollectionPoint{}, mapError(err)
	}
	return point, nil
}

// ListPointsByOwner returns the owner's points, newest first.
func (r *PointRepository) ListPointsByOwner(ctx context.Context, ownerID string) ([]persistence.CollectionPoint, error) {
	return r.list(ctx, `SELECT `+pointColumns+` FROM collection_points WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, ownerID)
}

// ListPointsByType returns every point of the given type, oldest first.
func (r *PointRepository) ListPointsByType(ctx context.Context, pointType string) ([]persistence.CollectionPoint, error) {
	return r.list(ctx, `SELECT `+pointColumns+` FROM collection_points WHERE type = ? ORDER BY created_at ASC, rowid ASC`, pointType)
}

// ListPoints returns every point, oldest first.
func (r *PointRepository) ListPoints(ctx context.Context) ([]persistence.CollectionPoint, error) {
	return r.list(ctx, `SELECT `+pointColumns+` FROM collection_points ORDER BY created_at ASC, rowid ASC`)
}

// DeletePoint removes a point that holds no live claim. Claims referencing it
// are left untouched.
func (r *PointRepository) DeletePoint(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := checkRemovable(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM collection_points WHERE id = ?`, id); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// ArchivePoint copies a point without a live claim into
// collection_points_archive and deletes it.
func (r *PointRepository) ArchivePoint(ctx context.Context, id string, archivedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := checkRemovable(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collection_points_archive (`+pointColumns+`, archived_at)
			SELECT `+pointColumns+`, ? FROM collection_points WHERE id = ?`,
			formatTime(archivedAt), id); err != nil {
			return mapError(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM collection_points WHERE id = ?`, id); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// checkRemovable runs inside the removing transaction. The pool holds a
// single connection, so no claim can be inserted between the check and the
// delete.
func checkRemovable(ctx context.Context, tx *sql.Tx, id string) error {
	var exists, live bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM collection_points WHERE id = ?),
			EXISTS (SELECT 1 FROM collection_claims WHERE collection_point_id = ? AND status = ?)`,
		id, id, persistence.ClaimStatusClaimed).Scan(&exists, &live)
	if err != nil {
		return mapError(err)
	}
	if !exists {
		return persistence.ErrNotFound
	}
	if live {
		return persistence.ErrLiveClaim
	}
	return nil
}

func (r *PointRepository) list(ctx context.Context, query string, args ...any) ([]persistence.CollectionPoint, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoint(row rowScanner) (persistence.CollectionPoint, error) {
	var (
		point                persistence.CollectionPoint
		lat, lng             sql.NullFloat64
		materials            string
		photoURL             sql.NullString
		createdAt, updatedAt string
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
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.CollectionPoint{}, err
	}

	if lat.Valid {
		point.Lat = &lat.Float64
	}
	if lng.Valid {
		point.Lng = &lng.Float64
	}
	if photoURL.Valid {
		point.PhotoURL = &photoURL.String
	}

	var err error
	if point.Materials, err = decodeMaterials(materials); err != nil {
		return persistence.CollectionPoint{}, err
	}
	if point.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.CollectionPoint{}, err
	}
	if point.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.CollectionPoint{}, err
	}
	return point, nil
}

// Materials are stored as a JSON array because SQLite has no array column type.
func encodeMaterials(materials []string) (string, error) {
	if len(materials) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(materials)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode materials: %w", err)
	}
	return string(raw), nil
}

func decodeMaterials(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var materials []string
	if err := json.Unmarshal([]byte(raw), &materials); err != nil {
		return nil, fmt.Errorf("sqlite: decode materials: %w", err)
	}
	return materials, nil
}
