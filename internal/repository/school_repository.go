package repository

import (
	"context"
	"database/sql"

	"github.com/antrikuy/antrikuy-backend/internal/model"
)

// SchoolRepo persists tenant schools.
type SchoolRepo struct {
	db *sql.DB
}

func NewSchoolRepo(db *sql.DB) *SchoolRepo { return &SchoolRepo{db: db} }

// Create inserts a school and fills in its ID.
func (r *SchoolRepo) Create(ctx context.Context, s *model.School) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO schools (code, name) VALUES (?, ?)`, s.Code, s.Name)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByID fetches a school by id.
func (r *SchoolRepo) GetByID(ctx context.Context, id uint64) (*model.School, error) {
	var s model.School
	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, name, created_at, updated_at FROM schools WHERE id = ? LIMIT 1`,
		id).Scan(&s.ID, &s.Code, &s.Name, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSchoolNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns all schools ordered by name, for the browse screen.
func (r *SchoolRepo) List(ctx context.Context) ([]model.School, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code, name, created_at, updated_at FROM schools ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	schools := make([]model.School, 0)
	for rows.Next() {
		var s model.School
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		schools = append(schools, s)
	}
	return schools, rows.Err()
}
