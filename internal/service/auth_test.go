package service

import (
	"context"
	"errors"
	"testing"

	"github.com/agentfaucet/faucetd/internal/domain"
	"github.com/agentfaucet/faucetd/token"
)

func TestAuthToken(t *testing.T) {
	conf := domain.Config{
		Issuer:      "agentfaucet",
		TokenSecret: "test-secret",
		Provider:    "github",
	}
	issuer := token.NewIssuer([]byte(conf.TokenSecret), conf.Issuer)
	svc := NewAuthService(conf, issuer)

	tok, err := issuer.Issue(token.Claims{
		Subject:       "gh:1",
		Username:      "dev",
		DailyLimitWei: "5000000000000000",
		Generation:    3,
		Provider:      "github",
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	result, err := svc.AuthToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("auth failed: %v", err)
	}
	if result.Subject != "gh:1" || result.Generation != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAuthTokenRejections(t *testing.T) {
	conf := domain.Config{
		Issuer:      "agentfaucet",
		TokenSecret: "test-secret",
		Provider:    "github",
	}
	issuer := token.NewIssuer([]byte(conf.TokenSecret), conf.Issuer)
	svc := NewAuthService(conf, issuer)

	otherSecret := token.NewIssuer([]byte("other"), conf.Issuer)
	forged, _ := otherSecret.Issue(token.Claims{Subject: "gh:1", Provider: "github", DailyLimitWei: "1"})

	wrongProvider, _ := issuer.Issue(token.Claims{Subject: "gh:1", Provider: "gitlab", DailyLimitWei: "1"})
	noSubject, _ := issuer.Issue(token.Claims{Provider: "github", DailyLimitWei: "1"})
	badQuota, _ := issuer.Issue(token.Claims{Subject: "gh:1", Provider: "github", DailyLimitWei: "lots"})

	for name, tok := range map[string]string{
		"garbage":        "not.a.token",
		"forged":         forged,
		"wrong provider": wrongProvider,
		"no subject":     noSubject,
		"bad quota":      badQuota,
	} {
		if _, err := svc.AuthToken(context.Background(), tok); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
}
