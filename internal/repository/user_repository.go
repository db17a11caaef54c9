package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/antrikuy/antrikuy-backend/internal/model"
)

// UserRepo persists accounts in the 'users' table.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, school_id, name, email, password_hash, role, push_token, created_at, updated_at`

func scanUser(row eventScanner) (*model.User, error) {
	var u model.User
	var schoolID sql.NullInt64
	var pushToken sql.NullString
	err := row.Scan(&u.ID, &schoolID, &u.Name, &u.Email, &u.PasswordHash,
		&u.Role, &pushToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if schoolID.Valid {
		v := uint64(schoolID.Int64)
		u.SchoolID = &v
	}
	u.PushToken = pushToken.String
	return &u, nil
}

// Create inserts a user and fills in its ID.  Email is normalized before
// the insert so the unique index catches case-only duplicates.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	var schoolID any
	if u.SchoolID != nil {
		schoolID = *u.SchoolID
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (school_id, name, email, password_hash, role) VALUES (?, ?, ?, ?, ?)`,
		schoolID, u.Name, u.Email, u.PasswordHash, u.Role)
	if err != nil {
		if IsDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, email))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	return u, err
}

// UpdatePushToken stores the device push token for notification fan-out.
func (r *UserRepo) UpdatePushToken(ctx context.Context, id uint64, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET push_token = ? WHERE id = ?`, token, id)
	return err
}
