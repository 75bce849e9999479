package logkey

// Common keys for structured log attributes so the same name is used
// everywhere.
const (
	TraceID   = "Trace ID"
	ERROR     = "Error"
	UserID    = "UserID"
	ProductID = "ProductID"
	OrderID   = "OrderID"
)
