package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/identity"
)

// RegisterRequest contains the input for customer registration
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Email    string `json:"email" binding:"required,email,max=200"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest contains the input for customer and admin login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,max=200"`
	Password string `json:"password" binding:"required,max=72"`
}

// UserListFilter represents admin user list filtering options
type UserListFilter struct {
	Search   string     `form:"search" json:"search"`
	Role     string     `form:"role" json:"role" binding:"omitempty,oneof=customer admin"`
	From     *time.Time `form:"from" json:"from" time_format:"2006-01-02" time_utc:"1"`
	To       *time.Time `form:"to" json:"to" time_format:"2006-01-02" time_utc:"1"`
	Page     int        `form:"page" json:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" json:"pageSize" binding:"omitempty,min=1,max=500"`
	OrderBy  string     `form:"order_by" json:"orderBy" binding:"omitempty,oneof=name email created_at"`
	OrderDir string     `form:"order_dir" json:"orderDir" binding:"omitempty,oneof=asc desc"`
}

// SetUserStatusRequest enables or disables an account
type SetUserStatusRequest struct {
	UserID uuid.UUID `json:"userId" binding:"required"`
	Active *bool     `json:"active" binding:"required"`
}

// AuthResult is returned by register and login.
// Token is the field the storefront stores
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public view of an account
type UserResponse struct {
	ID        uuid.UUID `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToUserResponse converts a domain user to a response DTO
func ToUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
	}
}

// ToUserResponses converts a slice of domain users
func ToUserResponses(users []identity.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = ToUserResponse(&users[i])
	}
	return out
}
