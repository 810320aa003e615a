package auth

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/rs/zerolog/log"
)

// azureProvider acquires the ARM token through DefaultAzureCredential:
// environment, workload identity, managed identity, then Azure CLI.
// Used when no explicit client secret is configured.
type azureProvider struct {
	scope string
}

func (p *azureProvider) Acquire(ctx context.Context) (string, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return "", &Error{Err: err}
	}
	tk, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{p.scope}})
	if err != nil {
		return "", &Error{Err: err}
	}
	log.Info().
		Str("action", "auth_acquire").
		Str("method", "azure").
		Str("scope", p.scope).
		Msg("credential chain login OK")
	return tk.Token, nil
}
