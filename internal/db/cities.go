package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusgo/internal/models"
)

type CityRepository struct {
	db *DB
}

func NewCityRepository(db *DB) *CityRepository {
	return &CityRepository{db: db}
}

func (r *CityRepository) Create(c *models.City) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO cities (country_id, name, description, image_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.CountryID, c.Name, c.Description, c.ImageURL, now,
	)
	if err != nil {
		return fmt.Errorf("creating city: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new city id: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	return nil
}

func (r *CityRepository) FindByID(id int64) (*models.City, error) {
	c, err := scanCity(r.db.QueryRow(
		`SELECT id, country_id, name, description, image_url, created_at, updated_at FROM cities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying city: %w", err)
	}
	return c, nil
}

// FindAll lists cities, optionally limited to one country.
func (r *CityRepository) FindAll(countryID int64, search string) ([]*models.City, error) {
	query := `SELECT id, country_id, name, description, image_url, created_at, updated_at FROM cities`
	var conditions []string
	var args []any

	if countryID > 0 {
		conditions = append(conditions, `country_id = ?`)
		args = append(args, countryID)
	}
	if search != "" {
		conditions = append(conditions, `name LIKE ?`)
		args = append(args, "%"+search+"%")
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
		return nil, fmt.Errorf("querying cities: %w", err)
	}
	defer rows.Close()

	var cities []*models.City
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}

	return cities, rows.Err()
}

func (r *CityRepository) Update(c *models.City) error {
	result, err := r.db.Exec(
		`UPDATE cities SET country_id = ?, name = ?, description = ?, image_url = ?, updated_at = ? WHERE id = ?`,
		c.CountryID, c.Name, c.Description, c.ImageURL, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating city: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *CityRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM cities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting city: %w", err)
	}
	return checkRowsAffected(result)
}

func scanCity(row rowScanner) (*models.City, error) {
	var c models.City
	var description, imageURL sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(&c.ID, &c.CountryID, &c.Name, &description, &imageURL, &c.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Description = nullStringToPtr(description)
	c.ImageURL = nullStringToPtr(imageURL)
	c.UpdatedAt = nullTimeToPtr(updatedAt)

	return &c, nil
}
