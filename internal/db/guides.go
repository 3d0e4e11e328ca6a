package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusgo/internal/models"
)

type GuideRepository struct {
	db *DB
}

func NewGuideRepository(db *DB) *GuideRepository {
	return &GuideRepository{db: db}
}

func (r *GuideRepository) Create(g *models.Guide) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO guides (title, slug, content, image_url, published, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		g.Title, g.Slug, g.Content, g.ImageURL, g.Published, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating guide: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new guide id: %w", err)
	}

	g.ID = id
	g.CreatedAt = now
	return nil
}

func (r *GuideRepository) FindByID(id int64) (*models.Guide, error) {
	return r.findOne(`SELECT id, title, slug, content, image_url, published, created_at, updated_at
		FROM guides WHERE id = ?`, id)
}

func (r *GuideRepository) FindBySlug(slug string) (*models.Guide, error) {
	return r.findOne(`SELECT id, title, slug, content, image_url, published, created_at, updated_at
		FROM guides WHERE slug = ?`, slug)
}

// FindAll lists guides; publishedOnly restricts to the public set.
func (r *GuideRepository) FindAll(publishedOnly bool, search string) ([]*models.Guide, error) {
	query := `SELECT id, title, slug, content, image_url, published, created_at, updated_at FROM guides`
	var conditions []string
	var args []any

	if publishedOnly {
		conditions = append(conditions, `published = 1`)
	}
	if search != "" {
		conditions = append(conditions, `(title LIKE ? OR content LIKE ?)`)
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
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying guides: %w", err)
	}
	defer rows.Close()

	var guides []*models.Guide
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, g)
	}

	return guides, rows.Err()
}

func (r *GuideRepository) Update(g *models.Guide) error {
	result, err := r.db.Exec(
		`UPDATE guides SET title = ?, slug = ?, content = ?, image_url = ?, published = ?, updated_at = ? WHERE id = ?`,
		g.Title, g.Slug, g.Content, g.ImageURL, g.Published, time.Now().UTC(), g.ID,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("updating guide: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *GuideRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM guides WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting guide: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *GuideRepository) findOne(query string, args ...any) (*models.Guide, error) {
	g, err := scanGuide(r.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying guide: %w", err)
	}
	return g, nil
}

func scanGuide(row rowScanner) (*models.Guide, error) {
	var g models.Guide
	var imageURL sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(&g.ID, &g.Title, &g.Slug, &g.Content, &imageURL, &g.Published, &g.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	g.ImageURL = nullStringToPtr(imageURL)
	g.UpdatedAt = nullTimeToPtr(updatedAt)

	return &g, nil
}
