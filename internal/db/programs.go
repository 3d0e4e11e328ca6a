package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusgo/internal/models"
)

type ProgramRepository struct {
	db *DB
}

func NewProgramRepository(db *DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

func (r *ProgramRepository) Create(p *models.Program) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO programs (university_id, name, level, field, language, duration_months, tuition_fee, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UniversityID, p.Name, p.Level, p.Field, p.Language, p.DurationMonths, p.TuitionFee, p.Description, now,
	)
	if err != nil {
		return fmt.Errorf("creating program: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new program id: %w", err)
	}

	p.ID = id
	p.CreatedAt = now
	return nil
}

func (r *ProgramRepository) FindByID(id int64) (*models.Program, error) {
	p, err := scanProgram(r.db.QueryRow(
		`SELECT id, university_id, name, level, field, language, duration_months, tuition_fee, description, created_at, updated_at
		 FROM programs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying program: %w", err)
	}
	return p, nil
}

func (r *ProgramRepository) FindAll(universityID int64, level, search string) ([]*models.Program, error) {
	query := `SELECT id, university_id, name, level, field, language, duration_months, tuition_fee, description, created_at, updated_at
		FROM programs`
	var conditions []string
	var args []any

	if universityID > 0 {
		conditions = append(conditions, `university_id = ?`)
		args = append(args, universityID)
	}
	if level != "" {
		conditions = append(conditions, `level = ?`)
		args = append(args, level)
	}
	if search != "" {
		conditions = append(conditions, `(name LIKE ? OR field LIKE ?)`)
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
		return nil, fmt.Errorf("querying programs: %w", err)
	}
	defer rows.Close()

	var programs []*models.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}

	return programs, rows.Err()
}

func (r *ProgramRepository) Update(p *models.Program) error {
	result, err := r.db.Exec(
		`UPDATE programs SET university_id = ?, name = ?, level = ?, field = ?, language = ?,
			duration_months = ?, tuition_fee = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		p.UniversityID, p.Name, p.Level, p.Field, p.Language, p.DurationMonths, p.TuitionFee,
		p.Description, time.Now().UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating program: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *ProgramRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM programs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting program: %w", err)
	}
	return checkRowsAffected(result)
}

func scanProgram(row rowScanner) (*models.Program, error) {
	var p models.Program
	var field, language, description sql.NullString
	var durationMonths sql.NullInt64
	var tuitionFee sql.NullFloat64
	var updatedAt sql.NullTime

	err := row.Scan(&p.ID, &p.UniversityID, &p.Name, &p.Level, &field, &language, &durationMonths,
		&tuitionFee, &description, &p.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.Field = nullStringToPtr(field)
	p.Language = nullStringToPtr(language)
	p.DurationMonths = nullInt64ToPtr(durationMonths)
	p.TuitionFee = nullFloatToPtr(tuitionFee)
	p.Description = nullStringToPtr(description)
	p.UpdatedAt = nullTimeToPtr(updatedAt)

	return &p, nil
}
