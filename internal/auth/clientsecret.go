package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/apim-backup-operator/internal/config"
	"github.com/Chapsvision-dev/apim-backup-operator/internal/util"
)

// clientSecretProvider implements the OAuth2 client-credentials grant
// against the AAD token endpoint.
type clientSecretProvider struct {
	cfg         config.AuthConfig
	aadEndpoint string // e.g. https://login.microsoftonline.com
	scope       string // e.g. https://management.azure.com/.default
	httpClient  *http.Client
}

// Acquire exchanges tenant/client identity and secret for a bearer
// access token. One POST, no retry; any failure is fatal to the run.
func (p *clientSecretProvider) Acquire(ctx context.Context) (string, error) {
	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.aadEndpoint, url.PathEscape(p.cfg.TenantID))

	form := url.Values{}
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("scope", p.scope)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := p.httpClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &Error{Err: fmt.Errorf("token request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	// Handle non-200 responses with a trimmed body snippet. The secret
	// never appears in AAD error bodies, so surfacing them is safe.
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &Error{Err: fmt.Errorf("token request failed: %s (%s)", resp.Status, strings.TrimSpace(string(data)))}
	}

	// Decode response and extract the access token.
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if out.AccessToken == "" {
		return "", &Error{Err: errors.New("token response: empty access_token")}
	}

	// Log success. Never the token itself, only its redacted form.
	log.Info().
		Str("action", "auth_acquire").
		Str("method", "client_secret").
		Str("tenant", p.cfg.TenantID).
		Str("token", util.RedactToken(out.AccessToken)).
		Msg("client-credentials login OK")

	return out.AccessToken, nil
}
