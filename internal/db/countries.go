package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusgo/internal/models"
)

type CountryRepository struct {
	db *DB
}

func NewCountryRepository(db *DB) *CountryRepository {
	return &CountryRepository{db: db}
}

func (r *CountryRepository) Create(c *models.Country) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO countries (name, description, image_url, visa_info, cost_of_living, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.ImageURL, c.VisaInfo, c.CostOfLiving, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating country: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new country id: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	return nil
}

func (r *CountryRepository) FindByID(id int64) (*models.Country, error) {
	return r.findOne(`SELECT id, name, description, image_url, visa_info, cost_of_living, created_at, updated_at
		FROM countries WHERE id = ?`, id)
}

func (r *CountryRepository) FindAll(search string) ([]*models.Country, error) {
	query := `SELECT id, name, description, image_url, visa_info, cost_of_living, created_at, updated_at FROM countries`
	var args []any
	if search != "" {
		query += ` WHERE name LIKE ? OR description LIKE ?`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying countries: %w", err)
	}
	defer rows.Close()

	var countries []*models.Country
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}

	return countries, rows.Err()
}

func (r *CountryRepository) Update(c *models.Country) error {
	result, err := r.db.Exec(
		`UPDATE countries SET name = ?, description = ?, image_url = ?, visa_info = ?, cost_of_living = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name, c.Description, c.ImageURL, c.VisaInfo, c.CostOfLiving, time.Now().UTC(), c.ID,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("updating country: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *CountryRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM countries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting country: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *CountryRepository) findOne(query string, args ...any) (*models.Country, error) {
	c, err := scanCountry(r.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying country: %w", err)
	}
	return c, nil
}

func scanCountry(row rowScanner) (*models.Country, error) {
	var c models.Country
	var description, imageURL, visaInfo, costOfLiving sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(&c.ID, &c.Name, &description, &imageURL, &visaInfo, &costOfLiving, &c.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Description = nullStringToPtr(description)
	c.ImageURL = nullStringToPtr(imageURL)
	c.VisaInfo = nullStringToPtr(visaInfo)
	c.CostOfLiving = nullStringToPtr(costOfLiving)
	c.UpdatedAt = nullTimeToPtr(updatedAt)

	return &c, nil
}
