package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mystique/backend/internal/infrastructure/auth"
	"github.com/mystique/backend/internal/infrastructure/config"
	"github.com/mystique/backend/internal/interfaces/http/handler"
	"github.com/mystique/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "/api", r.basePath)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithBasePath("/shop"))
	assert.Equal(t, "/shop", r.basePath)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("product", "/product")
		assert.Equal(t, "product", g.Name())
		assert.Equal(t, "/product", g.Prefix())
	})

	t.Run("group middleware runs before routes", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test").Use(func(c *gin.Context) {
			c.Set("seen", true)
			c.Next()
		})
		g.PUT("/item", func(c *gin.Context) {
			c.String(http.StatusOK, "%v", c.GetBool("seen"))
		})
		g.RegisterRoutes(engine.Group("/api"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/test/item", nil))
		assert.Equal(t, "true", w.Body.String())
	})
}

// shopEngine mounts the real route table. Services are nil, so only requests
// rejected before reaching a service may be sent
func shopEngine(t *testing.T) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "router-test-secret-at-least-32-chars",
		AccessTokenExpiration: time.Minute,
		Issuer:                "mystique-test",
	})
	engine := gin.New()
	NewRouter(engine).Register(ShopRoutes(
		Handlers{
			Auth:    handler.NewAuthHandler(nil),
			Product: handler.NewProductHandler(nil),
			Cart:    handler.NewCartHandler(nil),
			Order:   handler.NewOrderHandler(nil),
			Report:  handler.NewReportHandler(nil),
		},
		Guards{
			Authenticate: gin.HandlersChain{middleware.JWTAuthMiddleware(jwtService)},
			Admin:        middleware.RequireAdmin(),
		},
	)...).Setup()
	return engine, jwtService
}

func TestShopRoutes_Table(t *testing.T) {
	engine, _ := shopEngine(t)

	registered := map[string]bool{}
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"POST /api/user/register", "POST /api/user/login", "POST /api/user/admin",
		"GET /api/user/list", "POST /api/user/list", "POST /api/user/logout", "POST /api/user/status",
		"POST /api/product/add", "POST /api/product/remove", "GET /api/product/get/:id",
		"GET /api/product/list", "PUT /api/product/update/:id",
		"GET /api/cart/get", "POST /api/cart/add", "POST /api/cart/update", "POST /api/cart/reset",
		"POST /api/order/place", "POST /api/order/stripe", "POST /api/order/verify",
		"POST /api/order/webhook", "POST /api/order/list", "POST /api/order/userorders",
		"POST /api/order/status",
		"GET /api/report/orders", "GET /api/report/users",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestShopRoutes_Guards(t *testing.T) {
	engine, jwtService := shopEngine(t)
	customer, err := jwtService.GenerateToken(uuid.New(), "customer")
	require.NoError(t, err)

	adminRoutes := []struct{ method, path string }{
		{http.MethodGet, "/api/user/list"},
		{http.MethodPost, "/api/user/status"},
		{http.MethodPost, "/api/product/add"},
		{http.MethodPost, "/api/product/remove"},
		{http.MethodPut, "/api/product/update/" + uuid.NewString()},
		{http.MethodPost, "/api/order/list"},
		{http.MethodPost, "/api/order/status"},
		{http.MethodGet, "/api/report/orders"},
		{http.MethodGet, "/api/report/users"},
	}
	for _, rt := range adminRoutes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			req := httptest.NewRequest(rt.method, rt.path, nil)
			req.Header.Set("token", customer.Token)
			w = httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}

	userRoutes := []struct{ method, path string }{
		{http.MethodGet, "/api/cart/get"},
		{http.MethodPost, "/api/cart/add"},
		{http.MethodPost, "/api/order/place"},
		{http.MethodPost, "/api/order/stripe"},
		{http.MethodPost, "/api/order/verify"},
		{http.MethodPost, "/api/order/userorders"},
		{http.MethodPost, "/api/user/logout"},
	}
	for _, rt := range userRoutes {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.path)
	}
}

func TestShopRoutes_PublicProductRoute(t *testing.T) {
	engine, _ := shopEngine(t)

	// reaches the handler without a token; the malformed id is rejected there
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/product/get/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
