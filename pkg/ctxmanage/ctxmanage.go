package ctxmanage

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type key string

// TraceIdKey is the context key under which the middleware stores the
// per-request trace id.
const TraceIdKey key = "1"

// GetTraceIdOfRequest returns the trace id set by the logger middleware.
// If the middleware did not run, a fresh id is generated so log lines are
// never missing one.
func GetTraceIdOfRequest(c *gin.Context) string {
	ctx := c.Request.Context()
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok {
		traceId = uuid.NewString()
	}
	return traceId
}
