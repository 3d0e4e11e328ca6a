package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusgo/internal/models"
)

type AdRepository struct {
	db *DB
}

func NewAdRepository(db *DB) *AdRepository {
	return &AdRepository{db: db}
}

func (r *AdRepository) Create(a *models.Ad) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO ads (title, image_url, target_url, active, starts_at, ends_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.ImageURL, a.TargetURL, a.Active, a.StartsAt, a.EndsAt, now,
	)
	if err != nil {
		return fmt.Errorf("creating ad: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new ad id: %w", err)
	}

	a.ID = id
	a.CreatedAt = now
	return nil
}

func (r *AdRepository) FindByID(id int64) (*models.Ad, error) {
	a, err := scanAd(r.db.QueryRow(
		`SELECT id, title, image_url, target_url, active, starts_at, ends_at, created_at, updated_at
		 FROM ads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying ad: %w", err)
	}
	return a, nil
}

// FindAll lists ads; activeOnly limits to ads that are switched on and
// within their display window.
func (r *AdRepository) FindAll(activeOnly bool) ([]*models.Ad, error) {
	query := `SELECT id, title, image_url, target_url, active, starts_at, ends_at, created_at, updated_at FROM ads`
	var args []any

	if activeOnly {
		query += ` WHERE active = 1
			AND (starts_at IS NULL OR starts_at <= ?)
			AND (ends_at IS NULL OR ends_at >= ?)`
		now := time.Now().UTC()
		args = append(args, now, now)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ads: %w", err)
	}
	defer rows.Close()

	var ads []*models.Ad
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		ads = append(ads, a)
	}

	return ads, rows.Err()
}

func (r *AdRepository) Update(a *models.Ad) error {
	result, err := r.db.Exec(
		`UPDATE ads SET title = ?, image_url = ?, target_url = ?, active = ?, starts_at = ?, ends_at = ?, updated_at = ?
		 WHERE id = ?`,
		a.Title, a.ImageURL, a.TargetURL, a.Active, a.StartsAt, a.EndsAt, time.Now().UTC(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating ad: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AdRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM ads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting ad: %w", err)
	}
	return checkRowsAffected(result)
}

func scanAd(row rowScanner) (*models.Ad, error) {
	var a models.Ad
	var imageURL, targetURL sql.NullString
	var startsAt, endsAt, updatedAt sql.NullTime

	err := row.Scan(&a.ID, &a.Title, &imageURL, &targetURL, &a.Active, &startsAt, &endsAt, &a.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.ImageURL = nullStringToPtr(imageURL)
	a.TargetURL = nullStringToPtr(targetURL)
	a.StartsAt = nullTimeToPtr(startsAt)
	a.EndsAt = nullTimeToPtr(endsAt)
	a.UpdatedAt = nullTimeToPtr(updatedAt)

	return &a, nil
}
