package config

import (
	"errors"
	"os"
	"strings"

	"github.com/Chapsvision-dev/apim-backup-operator/internal/apim"
)

// Defaults for the Azure public cloud. Both can be overridden, which is
// also how tests point the tool at local fake endpoints.
const (
	DefaultAADEndpoint = "https://login.microsoftonline.com"
	DefaultARMEndpoint = "https://management.azure.com"

	// DefaultAPIVersion is the oldest api-version supporting
	// managed-identity access to the backup operation.
	DefaultAPIVersion = "2024-05-01"
)

type Config struct {
	// Auth selects how the ARM bearer token is acquired.
	Auth AuthConfig

	// Target APIM service coordinates.
	SubscriptionID string
	ResourceGroup  string
	ServiceName    string
	APIVersion     string

	Storage StorageConfig

	// BackupName names the produced blob. Empty means a timestamped
	// name is generated at run time.
	BackupName            string
	BackupTimestampFormat string

	// Endpoint overrides (identity and management hosts).
	AADEndpoint string
	ARMEndpoint string

	// StoragePreflight probes the destination container before the
	// backup request is spent.
	StoragePreflight bool
}

type AuthConfig struct {
	Method string // "client_secret", "azure" or "token"

	TenantID     string
	ClientID     string
	ClientSecret string

	// Token is a pre-acquired ARM bearer, only if Method == token.
	Token string
}

type StorageConfig struct {
	Account   string
	Container string

	// AccountKey selects the legacy key-based backup variant.
	AccountKey string
	// ManagedIdentityClientID selects the user-assigned identity
	// variant; the default is the service's system-assigned identity.
	ManagedIdentityClientID string

	// ResourceGroup of the storage account. Accepted for parity with
	// the scheduler's variable set; never transmitted.
	ResourceGroup string
}

// Load reads config from environment variables, applies defaults and
// validates. Validation failures happen before any network call.
func Load() (Config, error) {
	get := func(key, def string) string {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	parseBool := func(key string, def bool) bool {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "1", "true", "yes", "y", "on":
				return true
			case "0", "false", "no", "n", "off":
				return false
			}
		}
		return def
	}

	// -------------------------
	// Auth parsing (fallbacks)
	// -------------------------
	method := strings.ToLower(get("AUTH_METHOD", ""))
	tenantID := get("AZURE_TENANT_ID", "")
	clientID := get("AZURE_CLIENT_ID", "")
	clientSecret := get("AZURE_CLIENT_SECRET", "")
	armToken := get("ARM_TOKEN", "")

	if method == "" {
		switch {
		case tenantID != "" && clientID != "" && clientSecret != "":
			method = "client_secret"
		case armToken != "":
			method = "token"
		default:
			// DefaultAzureCredential picks up workload identity,
			// Azure CLI or MSI ambient credentials.
			method = "azure"
		}
	}

	auth := AuthConfig{
		Method:       method,
		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Token:        armToken,
	}

	switch method {
	case "client_secret":
		if tenantID == "" || clientID == "" || clientSecret == "" {
			return Config{}, errors.New("auth method client_secret requires AZURE_TENANT_ID, AZURE_CLIENT_ID and AZURE_CLIENT_SECRET")
		}
	case "token":
		if armToken == "" {
			return Config{}, errors.New("auth method token requires ARM_TOKEN")
		}
	case "azure":
		// No mandatory inputs; the credential chain resolves at use.
	default:
		return Config{}, errors.New("unsupported auth method: " + method)
	}

	cfg := Config{
		Auth: auth,

		SubscriptionID: get("AZURE_SUBSCRIPTION_ID", ""),
		ResourceGroup:  get("APIM_RESOURCE_GROUP", ""),
		ServiceName:    get("APIM_SERVICE_NAME", ""),
		APIVersion:     get("APIM_API_VERSION", DefaultAPIVersion),

		Storage: StorageConfig{
			Account:                 get("AZURE_STORAGE_ACCOUNT", ""),
			Container:               get("AZURE_STORAGE_CONTAINER", ""),
			AccountKey:              get("AZURE_STORAGE_KEY", ""),
			ManagedIdentityClientID: get("MANAGED_IDENTITY_CLIENT_ID", ""),
			ResourceGroup:           get("STORAGE_RESOURCE_GROUP", ""),
		},

		BackupName:            get("BACKUP_NAME", ""),
		BackupTimestampFormat: get("BACKUP_TIMESTAMP_FORMAT", ""),

		AADEndpoint: strings.TrimRight(get("AAD_ENDPOINT", DefaultAADEndpoint), "/"),
		ARMEndpoint: strings.TrimRight(get("ARM_ENDPOINT", DefaultARMEndpoint), "/"),

		StoragePreflight: parseBool("STORAGE_PREFLIGHT", false),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate checks the inputs the backup request cannot do without.
func (c *Config) validate() error {
	if c.SubscriptionID == "" {
		return errors.New("AZURE_SUBSCRIPTION_ID is required")
	}
	if c.ResourceGroup == "" {
		return errors.New("APIM_RESOURCE_GROUP is required")
	}
	if c.ServiceName == "" {
		return errors.New("APIM_SERVICE_NAME is required")
	}
	if c.Storage.Account == "" || c.Storage.Container == "" {
		return errors.New("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_CONTAINER are required")
	}
	if c.Storage.AccountKey != "" && c.Storage.ManagedIdentityClientID != "" {
		return errors.New("AZURE_STORAGE_KEY and MANAGED_IDENTITY_CLIENT_ID are mutually exclusive: pick the key-based or the managed-identity variant")
	}
	return nil
}

// AccessMethod derives the backup access variant from the storage config:
// account key -> legacy key-based, user-assigned client id -> user-assigned
// managed identity, neither -> system-assigned managed identity.
func (c Config) AccessMethod() apim.AccessMethod {
	switch {
	case c.Storage.AccountKey != "":
		return apim.AccessMethod{Type: apim.AccessTypeKey, Key: c.Storage.AccountKey}
	case c.Storage.ManagedIdentityClientID != "":
		return apim.AccessMethod{Type: apim.AccessTypeUserAssigned, ClientID: c.Storage.ManagedIdentityClientID}
	default:
		return apim.AccessMethod{Type: apim.AccessTypeSystemAssigned}
	}
}
