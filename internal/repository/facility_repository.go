package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

// FacilityRepo provides data access to the facilities and
// facility_blackouts tables.  Facility metadata is read-mostly: the
// repo keeps a short-lived Redis cache for list/detail reads, but every
// conflict decision goes through the transactional booking store and
// never through this cache.
type FacilityRepo struct {
	db    *sql.DB
	cache *redis.Client // may be nil; caching then degrades to direct reads
	ttl   time.Duration
}

// NewFacilityRepo returns a FacilityRepo bound to the given database.
// cache may be nil to disable metadata caching.
func NewFacilityRepo(db *sql.DB, cache *redis.Client) *FacilityRepo {
	return &FacilityRepo{db: db, cache: cache, ttl: 30 * time.Second}
}

const facilityCols = `id, name, capacity, is_active, created_at, updated_at`

func scanFacility(row interface{ Scan(...any) error }) (*model.Facility, error) {
	var f model.Facility
	if err := row.Scan(&f.ID, &f.Name, &f.Capacity, &f.IsActive, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetByID loads a facility and its blackout ranges.  Returns
// ErrFacilityNotFound when the id does not exist.
func (r *FacilityRepo) GetByID(ctx context.Context, id uint64) (*model.Facility, error) {
	if f := r.cachedFacility(ctx, id); f != nil {
		return f, nil
	}
	f, err := getFacilityTx(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	r.cacheFacility(ctx, f)
	return f, nil
}

// querier abstracts *sql.DB and *sql.Tx so facility loads can run both
// inside and outside the booking transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getFacilityTx(ctx context.Context, q querier, id uint64) (*model.Facility, error) {
	f, err := scanFacility(q.QueryRowContext(ctx,
		`SELECT `+facilityCols+` FROM facilities WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFacilityNotFound
		}
		return nil, err
	}
	blackouts, err := blackoutsForFacility(ctx, q, id)
	if err != nil {
		return nil, err
	}
	f.Blackouts = blackouts
	return f, nil
}

func blackoutsForFacility(ctx context.Context, q querier, facilityID uint64) ([]model.BlackoutRange, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, starts_on, ends_on, reason FROM facility_blackouts WHERE facility_id = ? ORDER BY starts_on`,
		facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BlackoutRange
	for rows.Next() {
		var b model.BlackoutRange
		if err := rows.Scan(&b.ID, &b.StartsOn, &b.EndsOn, &b.Reason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// List returns every facility ordered by name, with blackouts attached.
func (r *FacilityRepo) List(ctx context.Context) ([]model.Facility, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+facilityCols+` FROM facilities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		blackouts, err := blackoutsForFacility(ctx, r.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Blackouts = blackouts
	}
	return out, nil
}

// Create inserts a facility and fills in its generated ID.
func (r *FacilityRepo) Create(ctx context.Context, f *model.Facility) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO facilities (name, capacity, is_active) VALUES (?, ?, ?)`,
		f.Name, f.Capacity, f.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	return r.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM facilities WHERE id = ?`, f.ID).
		Scan(&f.CreatedAt, &f.UpdatedAt)
}

// SetActive toggles facility availability.  Returns ErrFacilityNotFound
// when the id does not exist.  The cache entry is invalidated so the
// toggle is visible on the next read.
func (r *FacilityRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE facilities SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		active, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing or unchanged; disambiguate with a lookup.
		var exists uint64
		if err := r.db.QueryRowContext(ctx, `SELECT id FROM facilities WHERE id = ?`, id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrFacilityNotFound
			}
			return err
		}
	}
	r.invalidate(ctx, id)
	return nil
}

// AddBlackout records an inclusive blackout date range for a facility.
func (r *FacilityRepo) AddBlackout(ctx context.Context, facilityID uint64, b *model.BlackoutRange) error {
	if _, err := getFacilityTx(ctx, r.db, facilityID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO facility_blackouts (facility_id, starts_on, ends_on, reason) VALUES (?, ?, ?, ?)`,
		facilityID, b.StartsOn.UTC().Format("2006-01-02"), b.EndsOn.UTC().Format("2006-01-02"), b.Reason)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	r.invalidate(ctx, facilityID)
	return nil
}

func facilityCacheKey(id uint64) string { return fmt.Sprintf("facility:%d", id) }

func (r *FacilityRepo) cachedFacility(ctx context.Context, id uint64) *model.Facility {
	if r.cache == nil {
		return nil
	}
	raw, err := r.cache.Get(ctx, facilityCacheKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var f model.Facility
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

func (r *FacilityRepo) cacheFacility(ctx context.Context, f *model.Facility) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	// Best effort; a cache write failure never fails the read.
	_ = r.cache.Set(ctx, facilityCacheKey(f.ID), raw, r.ttl).Err()
}

func (r *FacilityRepo) invalidate(ctx context.Context, id uint64) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Del(ctx, facilityCacheKey(id)).Err()
}
