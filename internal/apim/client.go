package apim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/apim-backup-operator/internal/util"
)

// AccessType tags how the management plane reaches the destination
// storage account when writing the backup blob.
type AccessType string

const (
	// AccessTypeKey is the legacy variant: the storage account key is
	// transmitted in the request body.
	AccessTypeKey AccessType = "AccessKey"
	// AccessTypeSystemAssigned uses the APIM service's system-assigned
	// managed identity. No secret leaves this process.
	AccessTypeSystemAssigned AccessType = "SystemAssignedManagedIdentity"
	// AccessTypeUserAssigned uses a user-assigned managed identity,
	// addressed by its client id.
	AccessTypeUserAssigned AccessType = "UserAssignedManagedIdentity"
)

// AccessMethod is the tagged variant: Key is set only for AccessTypeKey,
// ClientID only for AccessTypeUserAssigned.
type AccessMethod struct {
	Type     AccessType
	Key      string
	ClientID string
}

// BackupRequest addresses the APIM service to back up and the blob
// destination the management plane writes to.
type BackupRequest struct {
	SubscriptionID string
	ResourceGroup  string
	ServiceName    string

	StorageAccount string
	ContainerName  string
	BackupName     string

	Access AccessMethod
}

// BackupResponse acknowledges that the asynchronous backup operation
// started. It says nothing about completion; that happens out-of-band
// in the management plane over minutes.
type BackupResponse struct {
	Status      string
	OperationID string
}

// backupBody is the wire shape of the backup POST. The managed-identity
// variants carry accessType and never an accessKey; the key variant
// carries accessKey and no accessType.
type backupBody struct {
	StorageAccount string `json:"storageAccount"`
	AccessKey      string `json:"accessKey,omitempty"`
	ContainerName  string `json:"containerName"`
	BackupName     string `json:"backupName"`
	AccessType     string `json:"accessType,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
}

// Client issues backup requests against an ARM management endpoint.
type Client struct {
	endpoint   string // e.g. https://management.azure.com
	apiVersion string
	httpClient *http.Client
}

// NewClient builds a client for the given management endpoint and
// api-version. A nil httpClient gets a 30s-timeout default.
func NewClient(endpoint, apiVersion string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiVersion: apiVersion,
		httpClient: httpClient,
	}
}

// backupURL builds the ARM backup operation URL for the target service.
func (c *Client) backupURL(r BackupRequest) string {
	return fmt.Sprintf(
		"%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ApiManagement/service/%s/backup?api-version=%s",
		c.endpoint,
		url.PathEscape(r.SubscriptionID),
		url.PathEscape(r.ResourceGroup),
		url.PathEscape(r.ServiceName),
		url.QueryEscape(c.apiVersion),
	)
}

// wireBody maps the tagged access variant onto the request body.
func wireBody(r BackupRequest) backupBody {
	b := backupBody{
		StorageAccount: r.StorageAccount,
		ContainerName:  r.ContainerName,
		BackupName:     r.BackupName,
	}
	switch r.Access.Type {
	case AccessTypeKey:
		b.AccessKey = r.Access.Key
	case AccessTypeUserAssigned:
		b.AccessType = string(AccessTypeUserAssigned)
		b.ClientID = r.Access.ClientID
	default:
		b.AccessType = string(AccessTypeSystemAssigned)
	}
	return b
}

// TriggerBackup POSTs the backup request with the given bearer token and
// interprets the synchronous response. One request, no retry: a caller
// hitting a transient failure re-invokes the whole procedure.
func (c *Client) TriggerBackup(ctx context.Context, token string, r BackupRequest) (BackupResponse, error) {
	var res BackupResponse

	payload, err := json.Marshal(wireBody(r))
	if err != nil {
		return res, fmt.Errorf("encode backup body: %w", err)
	}

	u := c.backupURL(r)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return res, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	log.Debug().
		Str("action", "apim_backup").
		Str("service", r.ServiceName).
		Str("storage_account", r.StorageAccount).
		Str("container", r.ContainerName).
		Str("backup_name", r.BackupName).
		Str("access_type", string(wireAccessType(r.Access))).
		Msg("sending backup request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport error text can echo the request; scrub the bearer.
		return res, fmt.Errorf("backup request: %s", util.ScrubToken(err.Error(), token))
	}
	defer func() { _ = resp.Body.Close() }()

	// Handle non-2xx with a trimmed body snippet.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		body := strings.TrimSpace(string(data))
		if resp.StatusCode == http.StatusConflict {
			return res, &ConflictError{
				RequestError: RequestError{StatusCode: resp.StatusCode, Body: body},
				ServiceName:  r.ServiceName,
			}
		}
		return res, &RequestError{StatusCode: resp.StatusCode, Body: body}
	}

	// The acknowledgment body is best-effort: 202 responses may carry an
	// empty body and point at the operation via headers instead.
	var ack struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Status     string `json:"status"`
		Properties struct {
			Status string `json:"status"`
		} `json:"properties"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &ack)
	}

	res.Status = ack.Status
	if res.Status == "" {
		res.Status = ack.Properties.Status
	}
	if res.Status == "" {
		res.Status = "Accepted"
	}

	res.OperationID = ack.ID
	if res.OperationID == "" {
		res.OperationID = ack.Name
	}
	if res.OperationID == "" {
		if loc := resp.Header.Get("Azure-AsyncOperation"); loc != "" {
			res.OperationID = loc
		} else if loc := resp.Header.Get("Location"); loc != "" {
			res.OperationID = loc
		}
	}

	log.Debug().
		Str("action", "apim_backup").
		Int("http_status", resp.StatusCode).
		Str("status", res.Status).
		Str("operation_id", res.OperationID).
		Msg("backup request acknowledged")

	return res, nil
}

// wireAccessType reports the access type the body will carry, with the
// key variant named for logging even though the wire omits the field.
func wireAccessType(a AccessMethod) AccessType {
	if a.Type == "" {
		return AccessTypeSystemAssigned
	}
	return a.Type
}
