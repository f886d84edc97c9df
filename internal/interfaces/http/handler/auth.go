package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mystique/backend/internal/application/identity"
	"github.com/mystique/backend/internal/infrastructure/auth"
	"github.com/mystique/backend/internal/interfaces/http/middleware"
)

// AccountService is the part of identity.AuthService the user endpoints call
type AccountService interface {
	Register(ctx context.Context, req identity.RegisterRequest) (*identity.AuthResult, error)
	Login(ctx context.Context, req identity.LoginRequest) (*identity.AuthResult, error)
	AdminLogin(ctx context.Context, req identity.LoginRequest) (*identity.AuthResult, error)
	ListUsers(ctx context.Context, filter identity.UserListFilter) ([]identity.UserResponse, int64, error)
	Logout(ctx context.Context, claims *auth.Claims) error
	SetUserStatus(ctx context.Context, actorID string, req identity.SetUserStatusRequest) (*identity.UserResponse, error)
}

// AuthHandler handles the /user endpoints
type AuthHandler struct {
	BaseHandler
	authService AccountService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AccountService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register godoc
// @Summary      Register a customer
// @Description  Create a customer account and return a session token
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        request body identity.RegisterRequest true "Account details"
// @Success      201 {object} dto.Response{data=identity.AuthResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /user/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req identity.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Login godoc
// @Summary      Customer login
// @Description  Authenticate with email and password
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        request body identity.LoginRequest true "Login credentials"
// @Success      200 {object} dto.Response{data=identity.AuthResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /user/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	h.login(c, h.authService.Login)
}

// AdminLogin godoc
// @Summary      Admin login
// @Description  Authenticate an administrator; the token carries the admin role
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        request body identity.LoginRequest true "Login credentials"
// @Success      200 {object} dto.Response{data=identity.AuthResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /user/admin [post]
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	h.login(c, h.authService.AdminLogin)
}

func (h *AuthHandler) login(c *gin.Context, fn func(context.Context, identity.LoginRequest) (*identity.AuthResult, error)) {
	var req identity.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := fn(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListUsers godoc
// @Summary      List users
// @Description  Paginated account list for the admin panel
// @Tags         user
// @Produce      json
// @Param        search query string false "Name or email contains"
// @Param        role query string false "customer or admin"
// @Param        from query string false "Created on or after (YYYY-MM-DD)"
// @Param        to query string false "Created on or before (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(50)
// @Success      200 {object} dto.Response{data=[]identity.UserResponse,meta=dto.Meta}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /user/list [get]
func (h *AuthHandler) ListUsers(c *gin.Context) {
	var filter identity.UserListFilter
	if err := bindFilter(c, &filter); err != nil {
		h.BindError(c, err)
		return
	}

	users, total, err := h.authService.ListUsers(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, users, total, filter.Page, filter.PageSize)
}

// Logout godoc
// @Summary      Logout
// @Description  Revoke the presented token until it would have expired
// @Tags         user
// @Produce      json
// @Success      200 {object} SuccessResponse
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /user/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Not authorized, login again")
		return
	}
	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"message": "Logged out"})
}

// SetUserStatus godoc
// @Summary      Enable or disable an account
// @Description  Disabled accounts cannot log in and their issued tokens stop working
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        request body identity.SetUserStatusRequest true "Account and desired state"
// @Success      200 {object} dto.Response{data=identity.UserResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /user/status [post]
func (h *AuthHandler) SetUserStatus(c *gin.Context) {
	actorID, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req identity.SetUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	user, err := h.authService.SetUserStatus(c.Request.Context(), actorID.String(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// bindFilter reads list filters from the query string, or from the body when
// the admin panel POSTs them
func bindFilter(c *gin.Context, obj any) error {
	if c.Request.Method == http.MethodGet || c.Request.ContentLength == 0 {
		return c.ShouldBindQuery(obj)
	}
	return c.ShouldBind(obj)
}
