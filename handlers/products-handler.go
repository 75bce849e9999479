package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suraj0258/ecommerce-backend/internal/products"
	"github.com/suraj0258/ecommerce-backend/internal/users"
	"github.com/suraj0258/ecommerce-backend/pkg/ctxmanage"
	"github.com/suraj0258/ecommerce-backend/pkg/logkey"
)

// ListProducts is the public catalog listing with keyword, category and
// price-range filters.
func (h *Handler) ListProducts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	filter := products.Filter{
		Keyword:    c.Query("keyword"),
		CategoryID: c.Query("category"),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	}
	// Both bounds must be present for the price filter to apply, matching
	// the original behavior.
	if minStr, maxStr := c.Query("minPrice"), c.Query("maxPrice"); minStr != "" && maxStr != "" {
		minPrice, errMin := strconv.ParseInt(minStr, 10, 64)
		maxPrice, errMax := strconv.ParseInt(maxStr, 10, 64)
		if errMin == nil && errMax == nil {
			filter.MinPrice = &minPrice
			filter.MaxPrice = &maxPrice
		}
	}

	page, pageSize := pageParams(c)
	result, count, err := h.p.ListProducts(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.productError(c, traceId, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products":      result,
		"page":          page,
		"pages":         pageCount(count, pageSize),
		"totalProducts": count,
	})
}

// GetProduct returns one product with category name and reviews.
func (h *Handler) GetProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	product, err := h.p.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.productError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// TopProducts lists the highest-rated products.
func (h *Handler) TopProducts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = 5
	}

	result, err := h.p.TopProducts(c.Request.Context(), limit)
	if err != nil {
		h.productError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// FeaturedProducts lists products flagged featured.
func (h *Handler) FeaturedProducts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = 8
	}

	result, err := h.p.FeaturedProducts(c.Request.Context(), limit)
	if err != nil {
		h.productError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateProduct is the admin catalog insert.
func (h *Handler) CreateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	if c.Request.ContentLength > 5*1024 {
		slog.Error("request body limit breached", slog.String(logkey.TraceID, traceId),
			slog.Int64("Size Received", c.Request.ContentLength))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Request body too large."})
		return
	}

	var newProduct products.NewProduct
	if err := c.ShouldBindJSON(&newProduct); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(newProduct); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid product data"})
		return
	}

	product, err := h.p.InsertProduct(c.Request.Context(), newProduct)
	if err != nil {
		h.productError(c, traceId, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// UpdateProduct is the admin catalog patch.
func (h *Handler) UpdateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var up products.UpdateProduct
	if err := c.ShouldBindJSON(&up); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(up); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid product data"})
		return
	}

	product, err := h.p.UpdateProduct(c.Request.Context(), c.Param("id"), up)
	if err != nil {
		h.productError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct is the admin catalog removal.
func (h *Handler) DeleteProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	if err := h.p.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.productError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product removed"})
}

// CreateReview appends the caller's review; one per user per product.
func (h *Handler) CreateReview(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	var review products.NewReview
	if err := c.ShouldBindJSON(&review); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(review); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid review data"})
		return
	}

	// The reviewer's display name is snapshotted onto the review.
	user, err := h.u.GetUserByID(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		slog.Error("failed to load reviewer", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	err = h.p.AddReview(c.Request.Context(), c.Param("id"), claims.Subject, user.Name, review)
	if err != nil {
		if errors.Is(err, products.ErrAlreadyReviewed) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Product already reviewed"})
			return
		}
		h.productError(c, traceId, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Review added"})
}

func (h *Handler) productError(c *gin.Context, traceId string, err error) {
	if errors.Is(err, products.ErrProductNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	slog.Error("product operation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
}
