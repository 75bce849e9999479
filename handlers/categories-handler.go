package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suraj0258/ecommerce-backend/internal/categories"
	"github.com/suraj0258/ecommerce-backend/pkg/ctxmanage"
	"github.com/suraj0258/ecommerce-backend/pkg/logkey"
)

// ListCategories returns every active category.
func (h *Handler) ListCategories(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	result, err := h.c.ListActiveCategories(c.Request.Context())
	if err != nil {
		h.categoryError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetCategory returns one category by id.
func (h *Handler) GetCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	category, err := h.c.GetCategoryByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.categoryError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// ProductsByCategory pages the products of one category.
func (h *Handler) ProductsByCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	page, pageSize := pageParams(c)
	result, count, err := h.p.ListByCategory(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		h.categoryError(c, traceId, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products":      result,
		"page":          page,
		"pages":         pageCount(count, pageSize),
		"totalProducts": count,
	})
}

// CreateCategory is the admin insert; names are unique.
func (h *Handler) CreateCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var nc categories.NewCategory
	if err := c.ShouldBindJSON(&nc); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(nc); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Name value missing"})
		return
	}

	category, err := h.c.InsertCategory(c.Request.Context(), nc)
	if err != nil {
		if errors.Is(err, categories.ErrCategoryExists) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Category already exists"})
			return
		}
		h.categoryError(c, traceId, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// UpdateCategory is the admin patch.
func (h *Handler) UpdateCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var uc categories.UpdateCategory
	if err := c.ShouldBindJSON(&uc); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	category, err := h.c.UpdateCategory(c.Request.Context(), c.Param("id"), uc)
	if err != nil {
		h.categoryError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// DeleteCategory removes a category unless products still reference it.
func (h *Handler) DeleteCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	if err := h.c.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		var inUse *categories.InUseError
		if errors.As(err, &inUse) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Cannot delete category with %d associated products", inUse.ProductCount),
			})
			return
		}
		h.categoryError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category removed"})
}

func (h *Handler) categoryError(c *gin.Context, traceId string, err error) {
	if errors.Is(err, categories.ErrCategoryNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}
	slog.Error("category operation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
}
