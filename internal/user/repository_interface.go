package user

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateOrganization(ctx context.Context, tx sqlx.ExtContext, name string) (*Organization, error)
	OrganizationExists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, tx sqlx.ExtContext, u NewUser) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	SetPaymentCustomer(ctx context.Context, id int64, customerID string) error
}

type NewUser struct {
	OrganizationID *int64
	Name           string
	Email          string
	PasswordHash   string
	Role           string
}
