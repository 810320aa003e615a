package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/apim-backup-operator/internal/config"
)

var (
	ErrNoToken = errors.New("no token available for management-plane auth")
)

// Error is the fatal outcome of a failed token acquisition (bad
// credentials, network issue, malformed response).
type Error struct {
	Err error
}

func (e *Error) Error() string { return "authentication failed: " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Provider abstracts how we acquire an ARM bearer token (no renew here;
// the process lifetime is far below any token expiry).
type Provider interface {
	Acquire(ctx context.Context) (string, error)
}

// New selects the provider based on cfg.Auth.Method.
// NOTE: This package never initializes logging; main() does via logx.InitFromEnv().
func New(cfg config.Config) (Provider, error) {
	scope := strings.TrimRight(cfg.ARMEndpoint, "/") + "/.default"
	method := strings.ToLower(strings.TrimSpace(cfg.Auth.Method))
	switch method {
	case "client_secret":
		log.Debug().
			Str("action", "auth_new").
			Str("method", "client_secret").
			Str("tenant", cfg.Auth.TenantID).
			Msg("auth provider selected")
		return &clientSecretProvider{
			cfg:         cfg.Auth,
			aadEndpoint: strings.TrimRight(cfg.AADEndpoint, "/"),
			scope:       scope,
		}, nil

	case "azure":
		log.Debug().
			Str("action", "auth_new").
			Str("method", "azure").
			Msg("auth provider selected")
		return &azureProvider{scope: scope}, nil

	case "token":
		log.Debug().
			Str("action", "auth_new").
			Str("method", "token").
			Msg("auth provider selected")
		return &tokenProvider{token: strings.TrimSpace(cfg.Auth.Token)}, nil

	default:
		return nil, errors.New("unsupported auth method: " + method)
	}
}
