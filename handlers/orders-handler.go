package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suraj0258/ecommerce-backend/internal/auth"
	"github.com/suraj0258/ecommerce-backend/internal/orders"
	"github.com/suraj0258/ecommerce-backend/internal/stores/kafka"
	"github.com/suraj0258/ecommerce-backend/pkg/ctxmanage"
	"github.com/suraj0258/ecommerce-backend/pkg/logkey"
)

// CreateOrder validates the submitted line items against the catalog,
// materializes the order and applies the stock decrements.
func (h *Handler) CreateOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	var newOrder orders.NewOrder
	if err := c.ShouldBindJSON(&newOrder); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	created, err := h.o.PlaceOrder(c.Request.Context(), claims.Subject, newOrder)
	if err != nil {
		h.orderError(c, traceId, err)
		return
	}

	if h.k != nil {
		go h.produceOrderPlaced(created, traceId)
	}

	slog.Info("order placed", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.OrderID, created.ID), slog.String(logkey.UserID, claims.Subject))
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) produceOrderPlaced(order orders.Order, traceId string) {
	event, err := json.Marshal(kafka.OrderPlacedEvent{
		OrderId:    order.ID,
		UserId:     order.UserID,
		TotalPrice: order.TotalPrice,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		slog.Error("failed to marshal OrderPlacedEvent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		return
	}
	if err := h.k.ProduceMessage(kafka.TopicOrderPlaced, []byte(order.ID), event); err != nil {
		slog.Error("failed to produce OrderPlacedEvent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}
}

// GetOrder returns one order; only the owner or an admin may view it.
func (h *Handler) GetOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	order, err := h.o.GetOrder(c.Request.Context(), c.Param("id"), claims.Subject, claims.Role == auth.RoleAdmin)
	if err != nil {
		h.orderError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// payRequest mirrors the payment gateway callback body.
type payRequest struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

// PayOrder records a successful payment callback. Repeated calls simply
// overwrite the stored gateway payload.
func (h *Handler) PayOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	order, err := h.o.MarkPaid(c.Request.Context(), c.Param("id"), orders.PaymentResult{
		ID:           req.ID,
		Status:       req.Status,
		UpdateTime:   req.UpdateTime,
		EmailAddress: req.Payer.EmailAddress,
	})
	if err != nil {
		h.orderError(c, traceId, err)
		return
	}

	if h.k != nil {
		go h.produceOrderPaid(order, traceId)
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) produceOrderPaid(order orders.Order, traceId string) {
	for _, item := range order.Items {
		event, err := json.Marshal(kafka.OrderPaidEvent{
			OrderId:   order.ID,
			ProductId: item.ProductID,
			Quantity:  item.Quantity,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			slog.Error("failed to marshal OrderPaidEvent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			return
		}
		if err := h.k.ProduceMessage(kafka.TopicOrderPaid, []byte(order.ID), event); err != nil {
			slog.Error("failed to produce OrderPaidEvent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			return
		}
	}
}

// SetOrderStatus is the admin status transition.
func (h *Handler) SetOrderStatus(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Status value missing"})
		return
	}

	order, err := h.o.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.orderError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// MyOrders lists the requesting user's orders.
func (h *Handler) MyOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := currentClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return
	}

	page, pageSize := pageParams(c)
	result, count, err := h.o.MyOrders(c.Request.Context(), claims.Subject, page, pageSize)
	if err != nil {
		h.orderError(c, traceId, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":      result,
		"page":        page,
		"pages":       pageCount(count, pageSize),
		"totalOrders": count,
	})
}

// ListOrders is the admin listing; keyword filters by status.
func (h *Handler) ListOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	page, pageSize := pageParams(c)
	result, count, err := h.o.AllOrders(c.Request.Context(), c.Query("keyword"), page, pageSize)
	if err != nil {
		h.orderError(c, traceId, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":      result,
		"page":        page,
		"pages":       pageCount(count, pageSize),
		"totalOrders": count,
	})
}

// OrderStats is the admin sales aggregation.
func (h *Handler) OrderStats(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	stats, err := h.o.OrderStats(c.Request.Context())
	if err != nil {
		h.orderError(c, traceId, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// orderError maps order core errors onto HTTP statuses and messages.
func (h *Handler) orderError(c *gin.Context, traceId string, err error) {
	var notFound *orders.ProductNotFoundError
	var outOfStock *orders.OutOfStockError

	switch {
	case errors.Is(err, orders.ErrNoOrderItems):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No order items"})
	case errors.As(err, &notFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Product not found: %s", notFound.ProductID)})
	case errors.As(err, &outOfStock):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Product %s is out of stock", outOfStock.Name)})
	case errors.Is(err, orders.ErrOrderNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, orders.ErrNotOwner):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not authorized to view this order"})
	case errors.Is(err, orders.ErrInvalidStatus):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid order status"})
	default:
		slog.Error("order operation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
	}
}
