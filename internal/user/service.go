package user

import (
	"context"
	"errors"

	"classbook/internal/auth"
	"classbook/internal/db"
	"classbook/internal/logger"

	"github.com/jmoiron/sqlx"
)

var (
	ErrEmailExists          = errors.New("email already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrOrganizationRequired = errors.New("organizers must name their organization")
	ErrOrganizationNotFound = errors.New("organization not found")
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	GetByID(ctx context.Context, userID int64) (*User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*RefreshResponse, error)
	SetPaymentCustomer(ctx context.Context, userID int64, customerID string) error
}

type service struct {
	db        db.Beginner
	repo      Repository
	jwtSecret string
}

func NewService(database db.Beginner, repo Repository, jwtSecret string) Service {
	return &service{
		db:        database,
		repo:      repo,
		jwtSecret: jwtSecret,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	role := req.Role
	if role == "" {
		role = auth.RoleMember
	}
	if role == auth.RoleOrganizer && req.OrganizationName == "" {
		return nil, ErrOrganizationRequired
	}

	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	orgID := req.OrganizationID
	if role == auth.RoleMember && orgID != nil {
		ok, err := s.repo.OrganizationExists(ctx, *orgID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrOrganizationNotFound
		}
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	var user *User
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if role == auth.RoleOrganizer {
			org, err := s.repo.CreateOrganization(ctx, tx, req.OrganizationName)
			if err != nil {
				return err
			}
			orgID = &org.ID
		}

		user, err = s.repo.Create(ctx, tx, NewUser{
			OrganizationID: orgID,
			Name:           req.Name,
			Email:          req.Email,
			PasswordHash:   passwordHash,
			Role:           role,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *service) GetByID(ctx context.Context, userID int64) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	_, claims, err := auth.RefreshAccessToken(refreshToken, s.jwtSecret, s.jwtSecret)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	accessToken, err := auth.GenerateAccessToken(identity(user), s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &RefreshResponse{AccessToken: accessToken, User: *user}, nil
}

func (s *service) SetPaymentCustomer(ctx context.Context, userID int64, customerID string) error {
	return s.repo.SetPaymentCustomer(ctx, userID, customerID)
}

func (s *service) issue(user *User) (*LoginResponse, error) {
	accessToken, refreshToken, err := auth.GenerateTokens(identity(user), s.jwtSecret, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         *user,
	}, nil
}

func identity(u *User) auth.Identity {
	id := auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
	if u.OrganizationID != nil {
		id.OrganizationID = *u.OrganizationID
	}
	return id
}
