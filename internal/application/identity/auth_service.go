package identity

import (
	"context"
	"errors"
	"time"

	"github.com/mystique/backend/internal/domain/identity"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

var (
	errUserExists      = shared.ErrAlreadyExists.WithMessage("User already exists")
	errAccountLocked   = shared.NewDomainError("ACCOUNT_LOCKED", "Too many failed login attempts. Please try again later")
	errAccountDisabled = shared.NewDomainError("ACCOUNT_DISABLED", "Account has been disabled")
	errNotAdmin        = shared.ErrForbidden.WithMessage("Not authorized. Login again")
	errOwnStatus       = shared.ErrForbidden.WithMessage("You cannot change the status of your own account")
	errUserNotFound    = shared.ErrNotFound.WithMessage("User not found")
	errTokenIssue      = shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication token")
)

// AuthServiceConfig contains configuration for the auth service
type AuthServiceConfig struct {
	MaxLoginAttempts int           // Maximum failed login attempts before lock
	LockDuration     time.Duration // How long to lock account after max attempts
}

// DefaultAuthServiceConfig returns default configuration
func DefaultAuthServiceConfig() AuthServiceConfig {
	return AuthServiceConfig{
		MaxLoginAttempts: 5,
		LockDuration:     15 * time.Minute,
	}
}

// AuthService handles registration, authentication and account listing
type AuthService struct {
	userRepo       identity.UserRepository
	jwtService     *auth.JWTService
	blacklist      auth.TokenBlacklist
	eventPublisher shared.EventPublisher
	config         AuthServiceConfig
	logger         *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo identity.UserRepository,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	config AuthServiceConfig,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
		blacklist:  blacklist,
		config:     config,
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *AuthService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Register creates a customer account and signs it in
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	email := identity.NormalizeEmail(req.Email)
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errUserExists
	}

	user, err := identity.NewUser(req.Name, email, req.Password)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, errUserExists
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	s.publishEvents(ctx, user)
	return s.issue(user)
}

// Login authenticates a customer or admin by email and password
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// AdminLogin authenticates like Login and additionally requires the admin role
func (s *AuthService) AdminLogin(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		s.logger.Warn("Admin login rejected for non-admin account", zap.String("user_id", user.ID.String()))
		return nil, errNotAdmin
	}
	return s.issue(user)
}

func (s *AuthService) authenticate(ctx context.Context, req LoginRequest) (*identity.User, error) {
	email := identity.NormalizeEmail(req.Email)
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Login attempt for unknown email")
			return nil, identity.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.CanLogin() {
		if user.IsLocked() {
			s.logger.Warn("Login attempt for locked account", zap.String("user_id", user.ID.String()))
			return nil, errAccountLocked
		}
		return nil, errAccountDisabled
	}

	if !user.VerifyPassword(req.Password) {
		locked := user.RecordLoginFailure(s.config.MaxLoginAttempts, s.config.LockDuration)
		if err := s.userRepo.Update(ctx, user); err != nil {
			s.logger.Error("Failed to update user after login failure", zap.Error(err))
		}
		if locked {
			s.logger.Warn("Account locked after too many failed attempts",
				zap.String("user_id", user.ID.String()),
				zap.Int("attempts", s.config.MaxLoginAttempts))
			return nil, errAccountLocked
		}
		s.logger.Warn("Invalid password attempt",
			zap.String("user_id", user.ID.String()),
			zap.Int("failed_attempts", user.FailedAttempts))
		return nil, identity.ErrInvalidCredentials
	}

	user.RecordLoginSuccess()
	if err := s.userRepo.Update(ctx, user); err != nil {
		// Don't fail the login - just log the error
		s.logger.Error("Failed to update user after successful login", zap.Error(err))
	}
	s.logger.Info("User logged in", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *AuthService) issue(user *identity.User) (*AuthResult, error) {
	token, err := s.jwtService.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		s.logger.Error("Failed to generate token", zap.Error(err))
		return nil, errTokenIssue
	}
	return &AuthResult{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		User:      ToUserResponse(user),
	}, nil
}

// EnsureAdmin creates the configured admin account, or promotes an existing
// account with that email. Returns true when anything changed
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	if name == "" {
		name = "Administrator"
	}

	existing, err := s.userRepo.FindByEmail(ctx, identity.NormalizeEmail(email))
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return false, nil
		}
		existing.PromoteToAdmin()
		if err := s.userRepo.Update(ctx, existing); err != nil {
			return false, err
		}
		s.logger.Info("Promoted existing account to admin", zap.String("user_id", existing.ID.String()))
		return true, nil
	case !errors.Is(err, shared.ErrNotFound):
		return false, err
	}

	admin, err := identity.NewAdmin(name, email, password)
	if err != nil {
		return false, err
	}
	if err := s.userRepo.Save(ctx, admin); err != nil {
		// Another instance may have created it first
		if errors.Is(err, shared.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	s.logger.Info("Bootstrap admin account created", zap.String("user_id", admin.ID.String()))
	s.publishEvents(ctx, admin)
	return true, nil
}

// ListUsers returns accounts for the admin panel with the total count
func (s *AuthService) ListUsers(ctx context.Context, filter UserListFilter) ([]UserResponse, int64, error) {
	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	domainFilter.Search = filter.Search
	domainFilter = domainFilter.WithDateRange(filter.From, filter.To)
	if filter.Role != "" {
		domainFilter.Filters["role"] = filter.Role
	}

	users, err := s.userRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.userRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToUserResponses(users), total, nil
}

// SetUserStatus enables or disables an account. Disabling also revokes every
// token already issued to it. actorID is the admin making the change
func (s *AuthService) SetUserStatus(ctx context.Context, actorID string, req SetUserStatusRequest) (*UserResponse, error) {
	if req.UserID.String() == actorID {
		return nil, errOwnStatus
	}
	user, err := s.userRepo.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}

	active := req.Active != nil && *req.Active
	if active {
		user.Enable()
	} else {
		user.Disable()
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	if user.IsDisabled() && s.blacklist != nil {
		if err := s.blacklist.AddUserTokensToBlacklist(ctx, user.ID.String(), s.jwtService.GetExpiration()); err != nil {
			s.logger.Error("Failed to revoke tokens of disabled user", zap.String("user_id", user.ID.String()), zap.Error(err))
			return nil, err
		}
	}

	s.logger.Info("User status changed",
		zap.String("user_id", user.ID.String()),
		zap.String("status", string(user.Status)),
		zap.String("by", actorID),
	)
	resp := ToUserResponse(user)
	return &resp, nil
}

// Logout revokes the presented token until it would have expired
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.blacklist == nil || claims == nil || claims.ID == "" {
		return nil
	}
	if err := s.blacklist.AddToBlacklist(ctx, claims.ID, claims.GetRemainingTTL()); err != nil {
		s.logger.Error("Failed to blacklist token", zap.String("user_id", claims.UserID), zap.Error(err))
		return err
	}
	s.logger.Info("User logged out", zap.String("user_id", claims.UserID))
	return nil
}

func (s *AuthService) publishEvents(ctx context.Context, user *identity.User) {
	if s.eventPublisher != nil {
		for _, event := range user.GetDomainEvents() {
			if err := s.eventPublisher.Publish(ctx, event); err != nil {
				s.logger.Warn("failed to publish user event",
					zap.String("user_id", user.ID.String()),
					zap.String("event_type", event.EventType()),
					zap.Error(err),
				)
			}
		}
	}
	user.ClearDomainEvents()
}
