package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-service/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository reads the profile snapshots produced by the profile
// collaborator. The core never writes these rows.
type ProfileRepository interface {
	Get(ctx context.Context, id int64) (models.Profile, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]models.Profile, error)
}

// ProfileRepo is the sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Get fetches one profile snapshot.
func (r *ProfileRepo) Get(ctx context.Context, id int64) (models.Profile, error) {
	var p models.Profile
	err := r.db.GetContext(ctx, &p, `
        SELECT id, username, first_name, last_name, avatar_path, bio
        FROM profiles WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, err
}

// GetMany fetches several snapshots keyed by id; missing ids are simply
// absent from the result.
func (r *ProfileRepo) GetMany(ctx context.Context, ids []int64) (map[int64]models.Profile, error) {
	result := make(map[int64]models.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var profiles []models.Profile
	err := r.db.SelectContext(ctx, &profiles, `
        SELECT id, username, first_name, last_name, avatar_path, bio
        FROM profiles WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		result[p.ID] = p
	}
	return result, nil
}
