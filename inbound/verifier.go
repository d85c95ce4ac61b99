package inbound

import (
	"context"
	"crypto/subtle"
	"strings"
)

const TokenHeader = "X-Webhook-Token"

// TokenVerifier accepts requests that present the shared webhook token in
// the X-Webhook-Token header or as a bearer token.
type TokenVerifier struct {
	Token string
}

func (v TokenVerifier) Verify(_ context.Context, req Request) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return nil
	}
	presented := headerValue(req.Headers, TokenHeader)
	if presented == "" {
		auth := headerValue(req.Headers, "authorization")
		if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			presented = strings.TrimSpace(auth[7:])
		}
	}
	if presented == "" {
		return inboundBadInput("inbound: webhook token is required", nil)
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		return inboundBadInput("inbound: webhook token mismatch", nil)
	}
	return nil
}
