package classsession

import (
	"context"
	"time"

	"classbook/internal/domain"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, orgID int64, req CreateSessionRequest) (*domain.ClassSession, error)
	GetByID(ctx context.Context, id int64) (*domain.ClassSession, error)
	ListByOrganization(ctx context.Context, orgID int64, onlyFuture bool) ([]SessionWithAvailability, error)
	HasActiveBookings(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (bool, error)
	UpdateWindow(ctx context.Context, tx sqlx.ExtContext, id int64, start, end time.Time) (*domain.ClassSession, error)
	UpdateCapacity(ctx context.Context, tx sqlx.ExtContext, id int64, capacity int) (*domain.ClassSession, error)
}
