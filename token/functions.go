package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const lifetime = 30 * 24 * time.Hour

var (
	// ErrMalformed means the token could not be decoded at all.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalid means the token decoded but its signature does not verify.
	ErrInvalid = errors.New("token signature invalid")
	// ErrExpired means the token is past its expiration time.
	ErrExpired = errors.New("token expired")
)

// Issuer mints and verifies entitlement tokens. The signing secret is fixed
// at construction and read-only for the process lifetime.
type Issuer struct {
	secret []byte
	issuer string
}

func NewIssuer(secret []byte, issuer string) *Issuer {
	return &Issuer{secret: secret, issuer: issuer}
}

// Issue signs a token for the given claims, stamping issuer, issued-at and a
// 30-day expiry. The caller's iss/iat/exp fields are overwritten.
func (i *Issuer) Issue(claims Claims) (string, error) {
	now := time.Now()
	claims.Issuer = i.issuer
	claims.IssuedAt = strconv.FormatInt(now.Unix(), 10)
	claims.ExpirationTime = strconv.FormatInt(now.Add(lifetime).Unix(), 10)

	header := Header{
		Type:      "JWT",
		Algorithm: "HS256",
	}
	headerStr, err := json.Marshal(header)
	if err != nil {
		return "", err
	}

	payloadStr, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	headerB64 := base64.RawURLEncoding.EncodeToString(headerStr)
	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadStr)
	target := headerB64 + "." + payloadB64

	signatureB64 := base64.RawURLEncoding.EncodeToString(i.sign(target))

	return target + "." + signatureB64, nil
}

// Verify checks structure, signature and expiry, in that order, and returns
// the embedded claims. Failures map to ErrMalformed, ErrInvalid, ErrExpired.
func (i *Issuer) Verify(tok string) (*Claims, error) {

	split := strings.Split(tok, ".")
	if len(split) != 3 {
		return nil, ErrMalformed
	}

	var header Header
	headerBytes, err := base64.RawURLEncoding.DecodeString(split[0])
	if err != nil {
		return nil, ErrMalformed
	}
	err = json.Unmarshal(headerBytes, &header)
	if err != nil {
		return nil, ErrMalformed
	}

	if header.Type != "JWT" || header.Algorithm != "HS256" {
		return nil, fmt.Errorf("%w: unsupported algorithm %s", ErrInvalid, header.Algorithm)
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(split[1])
	if err != nil {
		return nil, ErrMalformed
	}

	var claims Claims
	err = json.Unmarshal(payloadBytes, &claims)
	if err != nil {
		return nil, ErrMalformed
	}

	signatureBytes, err := base64.RawURLEncoding.DecodeString(split[2])
	if err != nil {
		return nil, ErrMalformed
	}

	expected := i.sign(split[0] + "." + split[1])
	if !hmac.Equal(signatureBytes, expected) {
		return nil, ErrInvalid
	}

	if claims.Issuer != i.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalid)
	}

	if claims.ExpirationTime != "" {
		exp, err := strconv.ParseInt(claims.ExpirationTime, 10, 64)
		if err != nil {
			return nil, ErrMalformed
		}
		if exp < time.Now().Unix() {
			return nil, ErrExpired
		}
	}

	return &claims, nil
}

func (i *Issuer) sign(target string) []byte {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(target))
	return mac.Sum(nil)
}
