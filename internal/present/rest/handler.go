package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	faucet "github.com/agentfaucet/faucetd"
	"github.com/agentfaucet/faucetd/internal/domain"
	"github.com/agentfaucet/faucetd/internal/present/rest/presenter"
	"github.com/agentfaucet/faucetd/internal/service"
	"github.com/agentfaucet/faucetd/internal/usecase"
)

type Handler struct {
	config   domain.Config
	claim    *usecase.ClaimUsecase
	identity *usecase.IdentityUsecase
	stats    *usecase.StatsUsecase
	sponsor  *usecase.SponsorUsecase
	signal   *service.SignalService
}

func NewHandler(
	config domain.Config,
	claim *usecase.ClaimUsecase,
	identity *usecase.IdentityUsecase,
	stats *usecase.StatsUsecase,
	sponsor *usecase.SponsorUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		config:   config,
		claim:    claim,
		identity: identity,
		stats:    stats,
		sponsor:  sponsor,
		signal:   signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/claim", h.handleClaim)
	e.GET("/api/v1/status", h.handleStatus)
	e.GET("/api/v1/stats", h.handleStats)
	e.POST("/api/v1/register", h.handleRegister)
	e.POST("/api/v1/token/regenerate", h.handleRegenerate)
	e.POST("/api/v1/identity/mint", h.handleMint)
	e.GET("/api/v1/agent/:username", h.handleAgentFile)
	e.POST("/api/v1/sponsor/record", h.handleSponsorRecord)
	e.GET("/api/v1/sponsor/stats", h.handleSponsorStats)
	e.POST("/api/v1/return/record", h.handleReturnRecord)
	e.GET("/realtime", h.handleRealtime)
}

// requester pulls the verified subject and token generation the auth
// middleware stowed in the request context.
func requester(c echo.Context) (string, int64, bool) {
	ctx := c.Request().Context()
	subject, ok := ctx.Value(domain.RequesterSubjectCtxKey).(string)
	if !ok || subject == "" {
		return "", 0, false
	}
	generation, ok := ctx.Value(domain.RequesterGenerationCtxKey).(int64)
	if !ok {
		return "", 0, false
	}
	return subject, generation, true
}

func (h *Handler) handleClaim(c echo.Context) error {
	ctx := c.Request().Context()

	subject, generation, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c)
	}

	var req faucet.ClaimRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	resp, err := h.claim.Claim(ctx, subject, generation, req)
	if err != nil {
		var rle domain.RateLimitError
		switch {
		case errors.As(err, &rle):
			return presenter.TooManyRequests(c, rle)
		case errors.Is(err, domain.ErrUnauthorized):
			return presenter.Unauthorized(c)
		case errors.Is(err, domain.ErrNotFound):
			return presenter.NotFound(c, "identity not found")
		case errors.Is(err, domain.ErrInvalidRequest):
			return presenter.BadRequest(c, err)
		case errors.Is(err, domain.ErrTransferFailed):
			return presenter.BadGateway(c, err)
		default:
			return presenter.InternalError(c, err)
		}
	}

	return presenter.OK(c, resp)
}

func (h *Handler) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()

	subject, generation, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c)
	}

	resp, err := h.claim.Status(ctx, subject, generation)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			return presenter.Unauthorized(c)
		case errors.Is(err, domain.ErrNotFound):
			return presenter.NotFound(c, "identity not found")
		default:
			return presenter.InternalError(c, err)
		}
	}

	return presenter.OK(c, resp)
}

func (h *Handler) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	resp, err := h.stats.Stats(ctx)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, resp)
}

func (h *Handler) handleRegister(c echo.Context) error {
	ctx := c.Request().Context()

	var req faucet.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	resp, err := h.identity.Register(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return presenter.BadRequest(c, err)
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, resp)
}

func (h *Handler) handleRegenerate(c echo.Context) error {
	ctx := c.Request().Context()

	var req faucet.RegenerateRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Subject == "" {
		return presenter.BadRequestMessage(c, "subject is required")
	}

	resp, err := h.identity.Regenerate(ctx, req.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.NotFound(c, "identity not found")
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, resp)
}

func (h *Handler) handleMint(c echo.Context) error {
	ctx := c.Request().Context()

	var req faucet.MintRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Subject == "" {
		return presenter.BadRequestMessage(c, "subject is required")
	}

	resp, err := h.identity.Mint(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return presenter.NotFound(c, "identity not found")
		case errors.Is(err, domain.ErrTransferFailed):
			return presenter.BadGateway(c, err)
		default:
			return presenter.InternalError(c, err)
		}
	}

	return presenter.OK(c, resp)
}

// handleAgentFile serves the public JSON-LD agent document a minted agent URI
// resolves to. No auth; the document only carries public profile data.
func (h *Handler) handleAgentFile(c echo.Context) error {
	ctx := c.Request().Context()

	origin := c.Scheme() + "://" + c.Request().Host
	doc, err := h.identity.AgentFile(ctx, c.Param("username"), origin)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.NotFound(c, "agent not found")
		}
		return presenter.InternalError(c, err)
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=300")
	return presenter.OK(c, doc)
}

func (h *Handler) handleSponsorRecord(c echo.Context) error {
	ctx := c.Request().Context()

	var req faucet.SponsorRecordRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	campaign, err := h.sponsor.RecordDeposit(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			return presenter.Conflict(c, err)
		case errors.Is(err, domain.ErrInvalidRequest):
			return presenter.BadRequest(c, err)
		default:
			return presenter.InternalError(c, err)
		}
	}

	return presenter.OK(c, campaign)
}

func (h *Handler) handleSponsorStats(c echo.Context) error {
	ctx := c.Request().Context()

	resp, err := h.sponsor.Stats(ctx, c.QueryParam("address"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return presenter.BadRequest(c, err)
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, resp)
}

func (h *Handler) handleReturnRecord(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		TxHash string `json:"txHash"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	ret, err := h.sponsor.RecordReturn(ctx, req.TxHash)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			return presenter.Conflict(c, err)
		case errors.Is(err, domain.ErrInvalidRequest):
			return presenter.BadRequest(c, err)
		default:
			return presenter.InternalError(c, err)
		}
	}

	return presenter.OK(c, ret)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	output := make(chan faucet.DispensationEvent)
	go h.signal.Realtime(ctx, domain.DispensationChannel, output)

	// buffered so the reader goroutine never blocks on a writer that
	// already returned
	quit := make(chan struct{}, 1)

	go func() {
		for {
			// the feed is one-way; reads only service heartbeats and close
			if _, _, err := ws.ReadMessage(); err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.DebugContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			if err := ws.WriteJSON(event); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
