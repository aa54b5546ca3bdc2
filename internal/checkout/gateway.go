package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/superfanlabs/fanclub/internal/apperr"
)

// CardSession is one hosted payment session created on the card rail.
type CardSession struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// CardGateway creates hosted payment sessions. The gateway itself is an
// external collaborator; confirmation arrives later through its webhook.
type CardGateway interface {
	CreateSession(ctx context.Context, params CreateSessionParams) (CardSession, error)
}

// CreateSessionParams describes the single aggregate charge for a cart.
type CreateSessionParams struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

// HTTPCardGateway talks to a hosted card gateway over its JSON API.
type HTTPCardGateway struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPCardGateway constructs a gateway client.
func NewHTTPCardGateway(endpoint, apiKey string) *HTTPCardGateway {
	return &HTTPCardGateway{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateSession requests one payment session for the aggregate amount.
func (g *HTTPCardGateway) CreateSession(ctx context.Context, params CreateSessionParams) (CardSession, error) {
	payload, errMarshal := json.Marshal(params)
	if errMarshal != nil {
		return CardSession{}, fmt.Errorf("checkout: marshal session params: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/sessions", bytes.NewReader(payload))
	if errReq != nil {
		return CardSession{}, fmt.Errorf("checkout: build session request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, errDo := g.client.Do(req)
	if errDo != nil {
		return CardSession{}, apperr.Wrap(apperr.KindExternalRail, errDo, "checkout: card gateway unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CardSession{}, apperr.New(apperr.KindExternalRail, "checkout: card gateway returned %d", resp.StatusCode)
	}

	var session CardSession
	if errDecode := json.NewDecoder(resp.Body).Decode(&session); errDecode != nil {
		return CardSession{}, apperr.Wrap(apperr.KindExternalRail, errDecode, "checkout: decode session response")
	}
	if session.SessionID == "" {
		return CardSession{}, apperr.New(apperr.KindExternalRail, "checkout: card gateway returned empty session id")
	}
	return session, nil
}
