package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/Chapsvision-dev/apim-backup-operator/internal/config"
)

// newClientFromConfig builds a blob client for the destination account.
// Priority: 1) account key  2) Service Principal  3) DefaultAzureCredential.
func newClientFromConfig(c config.Config) (*azblob.Client, error) {
	endpoint := os.Getenv("AZURE_BLOB_ENDPOINT")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", c.Storage.Account)
	}

	// 1) Shared key
	if c.Storage.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(c.Storage.Account, c.Storage.AccountKey)
		if err != nil {
			return nil, err
		}
		return azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
	}

	// 2) Service Principal
	if c.Auth.ClientID != "" && c.Auth.ClientSecret != "" && c.Auth.TenantID != "" {
		cred, err := azidentity.NewClientSecretCredential(
			c.Auth.TenantID, c.Auth.ClientID, c.Auth.ClientSecret, nil,
		)
		if err != nil {
			return nil, err
		}
		return azblob.NewClient(endpoint, cred, nil)
	}

	// 3) Managed Identity / DefaultAzureCredential
	defCred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azblob.NewClient(endpoint, defCred, nil)
}

// VerifyContainer checks that the destination container exists and the
// caller is authorized, using a minimal one-page list. Run before the
// backup request so a misconfigured destination fails fast instead of
// surfacing minutes later inside the management plane.
func VerifyContainer(ctx context.Context, cfg config.Config) error {
	client, err := newClientFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("storage client: %w", err)
	}

	start := time.Now()
	container := cfg.Storage.Container

	pager := client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{
		MaxResults: to.Ptr(int32(1)),
	})
	if pager.More() {
		if _, err := pager.NextPage(ctx); err != nil {
			var re *azcore.ResponseError
			if errors.As(err, &re) {
				switch re.ErrorCode {
				case string(bloberror.ContainerNotFound):
					return fmt.Errorf("container %q not found in account %q: create it before triggering a backup", container, cfg.Storage.Account)
				case string(bloberror.AuthorizationFailure),
					string(bloberror.AuthorizationPermissionMismatch),
					string(bloberror.AuthenticationFailed):
					return fmt.Errorf("not authorized for container %q in account %q: grant the caller blob read access or supply the account key", container, cfg.Storage.Account)
				}
			}
			return fmt.Errorf("container check: %w", err)
		}
	}

	log.Debug().
		Str("action", "storage_preflight").
		Str("account", cfg.Storage.Account).
		Str("container", container).
		Dur("elapsed_ms", time.Since(start)).
		Msg("container access OK")
	return nil
}
