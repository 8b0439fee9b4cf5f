package service

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/agentfaucet/faucetd/internal/domain"
	"github.com/agentfaucet/faucetd/token"
)

var tracer = otel.Tracer("auth")

// AuthService verifies entitlement tokens. Generation checking against the
// stored identity happens later, in the usecase; this service only vouches
// for the signature and the embedded claims.
type AuthService struct {
	config domain.Config
	issuer *token.Issuer
}

func NewAuthService(
	config domain.Config,
	issuer *token.Issuer,
) *AuthService {
	return &AuthService{
		config: config,
		issuer: issuer,
	}
}

type AuthResult struct {
	Subject    string
	Generation int64
	Claims     *token.Claims
}

func (s *AuthService) AuthToken(ctx context.Context, tok string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthToken")
	defer span.End()

	claims, err := s.issuer.Verify(tok)
	if err != nil {
		span.RecordError(errors.Wrap(err, "token verification failed"))
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		span.RecordError(errors.New("token has no subject"))
		return nil, domain.ErrUnauthorized
	}

	if claims.Provider != s.config.Provider {
		span.RecordError(errors.New("token provider mismatch: " + claims.Provider))
		return nil, domain.ErrUnauthorized
	}

	if _, err := strconv.ParseInt(claims.DailyLimitWei, 10, 64); err != nil {
		span.RecordError(errors.Wrap(err, "token quota snapshot unparsable"))
		return nil, domain.ErrUnauthorized
	}

	return &AuthResult{
		Subject:    claims.Subject,
		Generation: claims.Generation,
		Claims:     claims,
	}, nil
}
