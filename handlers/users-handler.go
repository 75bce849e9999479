package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/suraj0258/ecommerce-backend/internal/auth"
	"github.com/suraj0258/ecommerce-backend/internal/users"
	"github.com/suraj0258/ecommerce-backend/pkg/ctxmanage"
	"github.com/suraj0258/ecommerce-backend/pkg/logkey"
)

// profileResponse is the auth payload: identity plus a fresh token.
type profileResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Phone string `json:"phone,omitempty"`
	Token string `json:"token"`
}

func (h *Handler) tokenFor(user users.User) (string, error) {
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    "ecommerce-backend",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour)),
		},
		Role: auth.Role(user.Role),
	}
	return h.keys.GenerateToken(claims)
}

func (h *Handler) respondWithToken(c *gin.Context, traceId string, user users.User, status int) {
	token, err := h.tokenFor(user)
	if err != nil {
		slog.Error("failed to generate token", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}
	c.JSON(status, profileResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
		Phone: user.Phone,
		Token: token,
	})
}

// Register creates a customer account and signs the caller in.
func (h *Handler) Register(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var newUser users.NewUser
	if err := c.ShouldBindJSON(&newUser); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(newUser); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid user data"})
		return
	}

	user, err := h.u.InsertUser(c.Request.Context(), newUser)
	if err != nil {
		if errors.Is(err, users.ErrUserExists) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
			return
		}
		slog.Error("failed to insert user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	h.respondWithToken(c, traceId, user, http.StatusCreated)
}

// Login authenticates by email and password.
func (h *Handler) Login(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	user, err := h.u.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		slog.Error("failed to authenticate user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	h.respondWithToken(c, traceId, user, http.StatusOK)
}

// GetProfile returns the authenticated user's profile with addresses.
func (h *Handler) GetProfile(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	user, err := h.u.GetUserByID(c.Request.Context(), claims.Subject)
	if err != nil {
		h.userError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile patches the caller's own profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	var up users.UpdateProfile
	if err := c.ShouldBindJSON(&up); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(up); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid user data"})
		return
	}

	user, err := h.u.UpdateUserProfile(c.Request.Context(), claims.Subject, up)
	if err != nil {
		h.userError(c, traceId, err)
		return
	}
	h.respondWithToken(c, traceId, user, http.StatusOK)
}

// AddAddress appends a shipping address to the caller's address book.
func (h *Handler) AddAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	var na users.NewAddress
	if err := c.ShouldBindJSON(&na); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(na); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid address data"})
		return
	}

	addresses, err := h.u.AddAddress(c.Request.Context(), claims.Subject, na)
	if err != nil {
		h.userError(c, traceId, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"addresses": addresses})
}

// UpdateAddress patches one saved address.
func (h *Handler) UpdateAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	var na users.NewAddress
	if err := c.ShouldBindJSON(&na); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	addresses, err := h.u.UpdateAddress(c.Request.Context(), claims.Subject, c.Param("addressId"), na)
	if err != nil {
		h.userError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

// DeleteAddress removes one saved address.
func (h *Handler) DeleteAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	addresses, err := h.u.DeleteAddress(c.Request.Context(), claims.Subject, c.Param("addressId"))
	if err != nil {
		h.userError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

// GetWishlist returns the caller's saved product ids.
func (h *Handler) GetWishlist(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	wishlist, err := h.u.GetWishlist(c.Request.Context(), claims.Subject)
	if err != nil {
		h.userError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wishlist": wishlist})
}

// AddToWishlist saves a product reference; duplicates are rejected.
func (h *Handler) AddToWishlist(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	var req struct {
		ProductID string `json:"product_id" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Product ID missing"})
		return
	}

	wishlist, err := h.u.AddToWishlist(c.Request.Context(), claims.Subject, req.ProductID)
	if err != nil {
		h.userError(c, traceId, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"wishlist": wishlist})
}

// RemoveFromWishlist drops a product reference from the wishlist.
func (h *Handler) RemoveFromWishlist(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	wishlist, err := h.u.RemoveFromWishlist(c.Request.Context(), claims.Subject, c.Param("productId"))
	if err != nil {
		h.userError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wishlist": wishlist})
}

// ListUsers is the admin account listing.
func (h *Handler) ListUsers(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	page, pageSize := pageParams(c)
	result, count, err := h.u.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		h.userError(c, traceId, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":      result,
		"page":       page,
		"pages":      pageCount(count, pageSize),
		"totalUsers": count,
	})
}

// GetUser is the admin account lookup.
func (h *Handler) GetUser(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	user, err := h.u.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.userError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser is the admin account patch (name, email, role).
func (h *Handler) UpdateUser(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email" validate:"omitempty,email"`
		Role  string `json:"role" validate:"omitempty,oneof=customer admin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid user data"})
		return
	}

	user, err := h.u.UpdateUser(c.Request.Context(), c.Param("id"), req.Name, req.Email, req.Role)
	if err != nil {
		h.userError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser is the admin account removal.
func (h *Handler) DeleteUser(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	if err := h.u.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.userError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User removed"})
}

func (h *Handler) userError(c *gin.Context, traceId string, err error) {
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, users.ErrAddressNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
	case errors.Is(err, users.ErrAlreadyInWishlist):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Product already in wishlist"})
	case errors.Is(err, users.ErrNotInWishlist):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found in wishlist"})
	default:
		slog.Error("user operation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
	}
}
