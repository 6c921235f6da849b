package runtime

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/drblury/bidgate/internal/runtime/admission"
	"github.com/drblury/bidgate/internal/runtime/metadata"
)

// Routes served by the gateway.
const (
	RouteBidRequest = "/bid-request"
	RouteHealth     = "/health"
	RouteMetrics    = "/metrics"
)

// Response bodies keyed by outcome. Dropped requests get 204 with no body.
var (
	statusAccepted      = gin.H{"status": "accepted"}
	statusBadRequest    = gin.H{"status": "bad request"}
	statusSerialization = gin.H{"status": "serialization error"}
	statusBufferFull    = gin.H{"status": "kafka buffer full"}
	statusInternal      = gin.H{"status": "internal error"}
	statusHealthy       = gin.H{"status": "healthy"}
)

func (g *Gateway) newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestIDMiddleware(), accessLogMiddleware(g.Logger))

	r.GET(RouteHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, statusHealthy)
	})
	r.GET(RouteMetrics, gin.WrapH(g.metrics.Handler()))
	r.POST(RouteBidRequest, bodyLimitMiddleware(g.Conf.HTTPMaxBodyBytes), g.handleBidRequest)
	return r
}

func (g *Gateway) handleBidRequest(c *gin.Context) {
	// The admission runs to completion even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())
	md := metadata.New(
		metadata.KeyCorrelationID, requestIDFrom(c),
		metadata.KeyReceivedAt, time.Now().UTC().Format(time.RFC3339Nano),
		metadata.KeyRemoteAddr, c.ClientIP(),
	)

	var res admission.Result
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		res = g.pipeline.RejectPayload(ctx, md, err)
	} else {
		res = g.pipeline.AdmitPayload(ctx, body, md)
	}
	writeResult(c, res)
}

func writeResult(c *gin.Context, res admission.Result) {
	switch res.Outcome {
	case admission.OutcomePublished:
		c.JSON(http.StatusOK, statusAccepted)
	case admission.OutcomeDropped:
		c.Status(http.StatusNoContent)
	case admission.OutcomeBadRequest:
		c.JSON(http.StatusBadRequest, statusBadRequest)
	case admission.OutcomeSerializationError:
		c.JSON(http.StatusInternalServerError, statusSerialization)
	case admission.OutcomeBrokerUnavailable:
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, statusBufferFull)
	default:
		c.JSON(http.StatusInternalServerError, statusInternal)
	}
}
