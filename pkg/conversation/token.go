package conversation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/teslashibe/go-interview-relay/internal/httpc"
)

// DefaultGrantURL issues short-lived agent tokens.
const DefaultGrantURL = "https://api.deepgram.com/v1/auth/grant"

// DefaultTokenTTL is the lifetime requested for browser tokens.
const DefaultTokenTTL = 30 * time.Second

// AccessToken is a temporary credential a browser can use to reach the agent directly.
type AccessToken struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
}

// TokenGranter exchanges the long-lived API key for short-lived tokens.
type TokenGranter struct {
	APIKey string
	URL    string
	HTTP   *http.Client
}

// NewTokenGranter returns a granter for the default endpoint.
func NewTokenGranter(apiKey string) *TokenGranter {
	return &TokenGranter{APIKey: apiKey, URL: DefaultGrantURL, HTTP: httpc.Client}
}

type grantRequest struct {
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

// Grant requests a token valid for ttl. A zero ttl uses DefaultTokenTTL.
func (g *TokenGranter) Grant(ctx context.Context, ttl time.Duration) (*AccessToken, error) {
	if g.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	var tok AccessToken
	err := httpc.DoJSON(ctx, g.HTTP, httpc.Request{
		Method: http.MethodPost,
		URL:    g.URL,
		Header: http.Header{"Authorization": []string{"Token " + g.APIKey}},
		Body:   grantRequest{TTLSeconds: int(ttl / time.Second)},
	}, &tok)
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("conversation: grant response has no access_token")
	}
	return &tok, nil
}
