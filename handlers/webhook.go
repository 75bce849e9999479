package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"

	"github.com/suraj0258/ecommerce-backend/internal/orders"
	"github.com/suraj0258/ecommerce-backend/pkg/logkey"
)

// Webhook handles Stripe events. A successful payment intent carrying an
// order id in its metadata marks that order paid and emits the per-item
// paid events.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := uuid.NewString()
	const MaxBodyBytes = int64(65536)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	var event stripe.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		slog.Error("failed to bind webhook event", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			slog.Error("failed to unmarshal payment intent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		orderId := paymentIntent.Metadata["order_id"]
		if orderId == "" {
			slog.Error("payment intent missing order_id metadata", slog.String(logkey.TraceID, traceId),
				slog.String("PaymentIntentID", paymentIntent.ID))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing order_id metadata"})
			return
		}
		slog.Info("payment intent succeeded", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderId), slog.String("PaymentIntentID", paymentIntent.ID))

		order, err := h.o.MarkPaid(c.Request.Context(), orderId, orders.PaymentResult{
			ID:           paymentIntent.ID,
			Status:       string(paymentIntent.Status),
			EmailAddress: paymentIntent.ReceiptEmail,
		})
		if err != nil {
			if errors.Is(err, orders.ErrOrderNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
				return
			}
			slog.Error("failed to mark order paid", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.OrderID, orderId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
			return
		}

		if h.k != nil {
			go h.produceOrderPaid(order, traceId)
		}
		c.Status(http.StatusOK)

	default:
		slog.Info("unhandled event type", slog.String(logkey.TraceID, traceId), slog.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{
			"message": "Event type not handled",
			"event":   event.Type,
		})
	}
}
