package user

import "time"

type User struct {
	ID                int64     `db:"id" json:"id"`
	OrganizationID    *int64    `db:"organization_id" json:"organization_id,omitempty"`
	Name              string    `db:"name" json:"name"`
	Email             string    `db:"email" json:"email"`
	PasswordHash      string    `db:"password_hash" json:"-"`
	Role              string    `db:"role" json:"role"`
	PaymentCustomerID *string   `db:"payment_customer_id" json:"payment_customer_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

const userColumns = `id, organization_id, name, email, password_hash, role, payment_customer_id, created_at`

type Organization struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RegisterRequest creates an account. Organizers also create their
// organization; members may join an existing one.
type RegisterRequest struct {
	Name             string `json:"name" binding:"required,max=200" example:"Ann Lee"`
	Email            string `json:"email" binding:"required,email" example:"ann@example.com"`
	Password         string `json:"password" binding:"required,min=8" example:"secret123"`
	Role             string `json:"role" binding:"omitempty,oneof=organizer member" example:"member"`
	OrganizationName string `json:"organization_name,omitempty" binding:"required_if=Role organizer,max=200" example:"Sunrise Yoga"`
	OrganizationID   *int64 `json:"organization_id,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"ann@example.com"`
	Password string `json:"password" binding:"required" example:"secret123"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

type PaymentCustomerRequest struct {
	CustomerID string `json:"customer_id" binding:"required,max=255" example:"cust_test_5xyz"`
}
