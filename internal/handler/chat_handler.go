package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/devashis/prajna/internal/chat"
	"github.com/devashis/prajna/internal/config"
	"github.com/devashis/prajna/internal/geotools"
	"github.com/devashis/prajna/internal/pkg/errcode"
	appErr "github.com/devashis/prajna/internal/pkg/errors"
	"github.com/devashis/prajna/internal/pkg/iputil"
	"github.com/devashis/prajna/internal/pkg/response"
	"github.com/devashis/prajna/internal/ratelimit"
	"github.com/devashis/prajna/internal/sse"
)

// Answerer runs one validated chat exchange against a sink.
type Answerer interface {
	Answer(ctx context.Context, req *chat.Request, meta geotools.RequestMeta, sink chat.Sink) error
}

type ChatHandler struct {
	site    *config.SiteConfig
	svc     Answerer
	limiter *ratelimit.Limiter
}

func NewChatHandler(site *config.SiteConfig, svc Answerer, limiter *ratelimit.Limiter) *ChatHandler {
	return &ChatHandler{site: site, svc: svc, limiter: limiter}
}

// Chat answers one question over SSE. Validation and quota failures are plain
// JSON with a real HTTP status; once the stream opens, all failures become
// error events because the 200 header is already on the wire.
//
// Validation runs before the quota check: counting a request costs a store
// write, and a malformed request must not cause any side effect.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "Invalid request body")
		return
	}
	if err := chat.Validate(&req, h.site); err != nil {
		handleError(c, err)
		return
	}
	if !h.limiter.Check(c.Request.Context(), iputil.HashIP(c.ClientIP())) {
		response.Error(c, http.StatusTooManyRequests, errcode.ErrTooMany, "Daily request limit reached")
		return
	}

	meta := geotools.RequestMeta{Header: c.Request.Header, IP: c.ClientIP()}
	stream, err := sse.NewWriter(c.Writer)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "streaming unsupported")
		return
	}

	if err := h.svc.Answer(c.Request.Context(), &req, meta, stream); err != nil {
		logutil.GetLogger(c.Request.Context()).Error("chat exchange failed",
			zap.String("collection", req.Collection),
			zap.Bool("compare", req.Compare),
			zap.Error(err),
		)
		_ = stream.Error(publicMessage(err))
		return
	}
	_ = stream.Done()
}

// publicMessage keeps upstream detail out of client-visible error events.
func publicMessage(err error) string {
	if errors.Is(err, appErr.ErrGeneration) {
		return "Answer generation failed. Please try again."
	}
	return "Something went wrong. Please try again."
}
