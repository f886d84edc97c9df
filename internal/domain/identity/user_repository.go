package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared"
)

// UserRepository defines the interface for user persistence
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// FindAll lists users; Search matches name or email, From/To bound created_at
	FindAll(ctx context.Context, filter shared.Filter) ([]User, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	// Save inserts a new user, returning ErrAlreadyExists on a duplicate email
	Save(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
}
