// Package handlers wires the HTTP surface: route groups, request
// validation, and the mapping from domain errors to HTTP statuses.
package handlers

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/suraj0258/ecommerce-backend/internal/auth"
	"github.com/suraj0258/ecommerce-backend/internal/categories"
	"github.com/suraj0258/ecommerce-backend/internal/orders"
	"github.com/suraj0258/ecommerce-backend/internal/products"
	"github.com/suraj0258/ecommerce-backend/internal/stores/kafka"
	"github.com/suraj0258/ecommerce-backend/internal/users"
	"github.com/suraj0258/ecommerce-backend/middleware"
)

type Handler struct {
	u        *users.Conf
	p        *products.Conf
	c        *categories.Conf
	o        *orders.Conf
	k        *kafka.Conf
	keys     *auth.Keys
	validate *validator.Validate
}

// NewHandler builds the handler set. k may be nil when no broker is
// configured; event production is then skipped.
func NewHandler(u *users.Conf, p *products.Conf, c *categories.Conf, o *orders.Conf,
	k *kafka.Conf, keys *auth.Keys) *Handler {
	return &Handler{
		u:        u,
		p:        p,
		c:        c,
		o:        o,
		k:        k,
		keys:     keys,
		validate: validator.New(),
	}
}

// API assembles the gin engine with all route groups.
func API(h *Handler) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	m, err := middleware.NewMid(h.keys)
	if err != nil {
		panic(err)
	}

	r.Use(middleware.Logger(), gin.Recovery())
	r.GET("/ping", HealthCheck)

	usersGroup := r.Group("/users")
	{
		usersGroup.POST("", h.Register)
		usersGroup.POST("/login", h.Login)

		authed := usersGroup.Group("")
		authed.Use(m.Authentication())
		authed.GET("/profile", h.GetProfile)
		authed.PUT("/profile", h.UpdateProfile)
		authed.POST("/address", h.AddAddress)
		authed.PUT("/address/:addressId", h.UpdateAddress)
		authed.DELETE("/address/:addressId", h.DeleteAddress)
		authed.GET("/wishlist", h.GetWishlist)
		authed.POST("/wishlist", h.AddToWishlist)
		authed.DELETE("/wishlist/:productId", h.RemoveFromWishlist)
		authed.GET("", m.Authorize(h.ListUsers, auth.RoleAdmin))
		authed.GET("/:id", m.Authorize(h.GetUser, auth.RoleAdmin))
		authed.PUT("/:id", m.Authorize(h.UpdateUser, auth.RoleAdmin))
		authed.DELETE("/:id", m.Authorize(h.DeleteUser, auth.RoleAdmin))
	}

	productsGroup := r.Group("/products")
	{
		productsGroup.GET("", h.ListProducts)
		productsGroup.GET("/top", h.TopProducts)
		productsGroup.GET("/featured", h.FeaturedProducts)
		productsGroup.GET("/:id", h.GetProduct)

		authed := productsGroup.Group("")
		authed.Use(m.Authentication())
		authed.POST("", m.Authorize(h.CreateProduct, auth.RoleAdmin))
		authed.PUT("/:id", m.Authorize(h.UpdateProduct, auth.RoleAdmin))
		authed.DELETE("/:id", m.Authorize(h.DeleteProduct, auth.RoleAdmin))
		authed.POST("/:id/reviews", h.CreateReview)
	}

	categoriesGroup := r.Group("/categories")
	{
		categoriesGroup.GET("", h.ListCategories)
		categoriesGroup.GET("/:id", h.GetCategory)
		categoriesGroup.GET("/:id/products", h.ProductsByCategory)

		authed := categoriesGroup.Group("")
		authed.Use(m.Authentication())
		authed.POST("", m.Authorize(h.CreateCategory, auth.RoleAdmin))
		authed.PUT("/:id", m.Authorize(h.UpdateCategory, auth.RoleAdmin))
		authed.DELETE("/:id", m.Authorize(h.DeleteCategory, auth.RoleAdmin))
	}

	ordersGroup := r.Group("/orders")
	{
		ordersGroup.POST("/webhook", h.Webhook)

		authed := ordersGroup.Group("")
		authed.Use(m.Authentication())
		authed.POST("", h.CreateOrder)
		authed.GET("/myorders", h.MyOrders)
		authed.GET("/stats", m.Authorize(h.OrderStats, auth.RoleAdmin))
		authed.GET("", m.Authorize(h.ListOrders, auth.RoleAdmin))
		authed.GET("/:id", h.GetOrder)
		authed.PUT("/:id/pay", h.PayOrder)
		authed.PUT("/:id/status", m.Authorize(h.SetOrderStatus, auth.RoleAdmin))
	}

	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// currentClaims pulls the authenticated claims set by the middleware.
func currentClaims(c *gin.Context) (auth.Claims, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	return claims, ok
}

// pageParams reads page/pageSize query parameters with the defaults the
// listing endpoints share.
func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.Query("pageSize"))
	if err != nil || pageSize < 1 {
		pageSize = 10
	}
	return page, pageSize
}

// pageCount is the number of pages needed for count items.
func pageCount(count, pageSize int) int {
	if count == 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}
