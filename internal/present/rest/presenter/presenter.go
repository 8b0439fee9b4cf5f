package presenter

import (
	"net/http"

	"github.com/labstack/echo/v4"

	faucet "github.com/agentfaucet/faucetd"
	"github.com/agentfaucet/faucetd/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type rateLimitResponse struct {
	Error     string `json:"error"`
	Quota     string `json:"quota"`
	Claimed   string `json:"claimed"`
	Remaining string `json:"remaining"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func Unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func Conflict(c echo.Context, err error) error {
	return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
}

// TooManyRequests renders an exhausted daily quota with the wei counters
// converted to whole-currency units.
func TooManyRequests(c echo.Context, rle domain.RateLimitError) error {
	return c.JSON(http.StatusTooManyRequests, rateLimitResponse{
		Error:     "daily limit exceeded",
		Quota:     faucet.FormatWei(rle.QuotaWei),
		Claimed:   faucet.FormatWei(rle.ClaimedWei),
		Remaining: faucet.FormatWei(rle.RemainingWei),
	})
}

func BadGateway(c echo.Context, err error) error {
	return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
}

func InternalError(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}
