package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusgo/internal/models"
)

type UniversityRepository struct {
	db *DB
}

func NewUniversityRepository(db *DB) *UniversityRepository {
	return &UniversityRepository{db: db}
}

func (r *UniversityRepository) Create(u *models.University) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO universities (country_id, city_id, name, description, website, image_url, ranking, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.CountryID, u.CityID, u.Name, u.Description, u.Website, u.ImageURL, u.Ranking, now,
	)
	if err != nil {
		return fmt.Errorf("creating university: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new university id: %w", err)
	}

	u.ID = id
	u.CreatedAt = now
	return nil
}

func (r *UniversityRepository) FindByID(id int64) (*models.University, error) {
	u, err := scanUniversity(r.db.QueryRow(
		`SELECT id, country_id, city_id, name, description, website, image_url, ranking, created_at, updated_at
		 FROM universities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying university: %w", err)
	}
	return u, nil
}

func (r *UniversityRepository) FindAll(countryID int64, search string) ([]*models.University, error) {
	query := `SELECT id, country_id, city_id, name, description, website, image_url, ranking, created_at, updated_at
		FROM universities`
	var conditions []string
	var args []any

	if countryID > 0 {
		conditions = append(conditions, `country_id = ?`)
		args = append(args, countryID)
	}
	if search != "" {
		conditions = append(conditions, `(name LIKE ? OR description LIKE ?)`)
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying universities: %w", err)
	}
	defer rows.Close()

	var universities []*models.University
	for rows.Next() {
		u, err := scanUniversity(rows)
		if err != nil {
			return nil, err
		}
		universities = append(universities, u)
	}

	return universities, rows.Err()
}

func (r *UniversityRepository) Update(u *models.University) error {
	result, err := r.db.Exec(
		`UPDATE universities SET country_id = ?, city_id = ?, name = ?, description = ?, website = ?,
			image_url = ?, ranking = ?, updated_at = ?
		 WHERE id = ?`,
		u.CountryID, u.CityID, u.Name, u.Description, u.Website, u.ImageURL, u.Ranking, time.Now().UTC(), u.ID,
	)
	if err != nil {
		return fmt.Errorf("updating university: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UniversityRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM universities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting university: %w", err)
	}
	return checkRowsAffected(result)
}

func scanUniversity(row rowScanner) (*models.University, error) {
	var u models.University
	var cityID, ranking sql.NullInt64
	var description, website, imageURL sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(&u.ID, &u.CountryID, &cityID, &u.Name, &description, &website, &imageURL, &ranking,
		&u.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	u.CityID = nullInt64ToPtr(cityID)
	u.Description = nullStringToPtr(description)
	u.Website = nullStringToPtr(website)
	u.ImageURL = nullStringToPtr(imageURL)
	u.Ranking = nullInt64ToPtr(ranking)
	u.UpdatedAt = nullTimeToPtr(updatedAt)

	return &u, nil
}
