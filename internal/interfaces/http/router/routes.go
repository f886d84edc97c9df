package router

import (
	"github.com/gin-gonic/gin"
	"github.com/mystique/backend/internal/interfaces/http/handler"
)

// Handlers are the endpoint handlers mounted under /api
type Handlers struct {
	Auth    *handler.AuthHandler
	Product *handler.ProductHandler
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Report  *handler.ReportHandler
}

// Guards are the per-route middleware chains.
// Authenticate must set the JWT claims; Admin runs after it
type Guards struct {
	Authenticate gin.HandlersChain
	Admin        gin.HandlerFunc
	// LoginLimit throttles credential endpoints. Optional
	LoginLimit gin.HandlerFunc
}

func (g Guards) user(h gin.HandlerFunc) []gin.HandlerFunc {
	return append(append(gin.HandlersChain{}, g.Authenticate...), h)
}

func (g Guards) admin(h gin.HandlerFunc) []gin.HandlerFunc {
	return append(append(gin.HandlersChain{}, g.Authenticate...), g.Admin, h)
}

func (g Guards) login(h gin.HandlerFunc) []gin.HandlerFunc {
	if g.LoginLimit == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{g.LoginLimit, h}
}

// ShopRoutes builds the storefront and admin route groups
func ShopRoutes(h Handlers, g Guards) []RouteRegistrar {
	userRoutes := NewDomainGroup("user", "/user")
	userRoutes.POST("/register", g.login(h.Auth.Register)...)
	userRoutes.POST("/login", g.login(h.Auth.Login)...)
	userRoutes.POST("/admin", g.login(h.Auth.AdminLogin)...)
	userRoutes.GET("/list", g.admin(h.Auth.ListUsers)...)
	userRoutes.POST("/list", g.admin(h.Auth.ListUsers)...)
	userRoutes.POST("/logout", g.user(h.Auth.Logout)...)
	userRoutes.POST("/status", g.admin(h.Auth.SetUserStatus)...)

	productRoutes := NewDomainGroup("product", "/product")
	productRoutes.POST("/add", g.admin(h.Product.Create)...)
	productRoutes.POST("/remove", g.admin(h.Product.Remove)...)
	productRoutes.GET("/get/:id", h.Product.GetByID)
	productRoutes.GET("/list", h.Product.List)
	productRoutes.PUT("/update/:id", g.admin(h.Product.Update)...)

	cartRoutes := NewDomainGroup("cart", "/cart").Use(g.Authenticate...)
	cartRoutes.GET("/get", h.Cart.Get)
	cartRoutes.POST("/add", h.Cart.Add)
	cartRoutes.POST("/update", h.Cart.Update)
	cartRoutes.POST("/reset", h.Cart.Reset)

	orderRoutes := NewDomainGroup("order", "/order")
	orderRoutes.POST("/place", g.user(h.Order.PlaceCOD)...)
	orderRoutes.POST("/stripe", g.user(h.Order.PlaceStripe)...)
	orderRoutes.POST("/verify", g.user(h.Order.Verify)...)
	orderRoutes.POST("/webhook", h.Order.Webhook)
	orderRoutes.POST("/list", g.admin(h.Order.ListAll)...)
	orderRoutes.POST("/userorders", g.user(h.Order.ListMine)...)
	orderRoutes.POST("/status", g.admin(h.Order.UpdateStatus)...)

	reportRoutes := NewDomainGroup("report", "/report").Use(g.Authenticate...).Use(g.Admin)
	reportRoutes.GET("/orders", h.Report.Orders)
	reportRoutes.GET("/users", h.Report.Users)

	return []RouteRegistrar{userRoutes, productRoutes, cartRoutes, orderRoutes, reportRoutes}
}
