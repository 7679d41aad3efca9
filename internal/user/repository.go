package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"classbook/internal/db"

	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("user not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateOrganization(ctx context.Context, tx sqlx.ExtContext, name string) (*Organization, error) {
	query := `
		INSERT INTO organizations (name)
		VALUES ($1)
		RETURNING id, name, created_at
	`

	var org Organization
	if err := sqlx.GetContext(ctx, tx, &org, query, strings.TrimSpace(name)); err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) OrganizationExists(ctx context.Context, id int64) (bool, error) {
	return db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM organizations WHERE id = $1)`, id)
}

func (r *repository) Create(ctx context.Context, tx sqlx.ExtContext, u NewUser) (*User, error) {
	query := `
		INSERT INTO users (organization_id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	var user User
	err := sqlx.GetContext(ctx, tx, &user, query, u.OrganizationID, u.Name, normalizeEmail(u.Email), u.PasswordHash, u.Role)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`

	var user User
	err := r.db.GetContext(ctx, &user, query, normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, normalizeEmail(email))
}

func (r *repository) SetPaymentCustomer(ctx context.Context, id int64, customerID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET payment_customer_id = $2 WHERE id = $1
	`, id, customerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
