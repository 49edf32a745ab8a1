package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/nordfeed/identity-service/internal/domain/identity/model"
)

// UserRepo is the credential store port. The store is the sole authority on
// email uniqueness; callers do not pre-check before CreateUser.
type UserRepo interface {
	CreateUser(ctx context.Context, user model.User) (uuid.UUID, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)
}
