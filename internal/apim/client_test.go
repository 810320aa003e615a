package apim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testRequest() BackupRequest {
	return BackupRequest{
		SubscriptionID: "sub-1",
		ResourceGroup:  "rg-apim",
		ServiceName:    "apim-prod",
		StorageAccount: "backupsa",
		ContainerName:  "apim-backups",
		BackupName:     "nightly-2026-08-25",
		Access:         AccessMethod{Type: AccessTypeSystemAssigned},
	}
}

// capture returns a server that records the last request body and
// replies with the given status and payload.
func capture(t *testing.T, status int, payload string, lastBody *map[string]any, lastReq **http.Request) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 && lastBody != nil {
			m := map[string]any{}
			if err := json.Unmarshal(data, &m); err != nil {
				t.Errorf("body is not JSON: %v", err)
			}
			*lastBody = m
		}
		if lastReq != nil {
			*lastReq = r.Clone(context.Background())
		}
		if payload != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
}

func TestTriggerBackup_WireContract(t *testing.T) {
	var body map[string]any
	var req *http.Request
	srv := capture(t, http.StatusOK, `{"status":"InProgress","id":"op1"}`, &body, &req)
	defer srv.Close()

	res, err := NewClient(srv.URL, "2024-05-01", nil).TriggerBackup(context.Background(), "tok", testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "InProgress" || res.OperationID != "op1" {
		t.Fatalf("unexpected ack: %+v", res)
	}

	wantPath := "/subscriptions/sub-1/resourceGroups/rg-apim/providers/Microsoft.ApiManagement/service/apim-prod/backup"
	if req.URL.Path != wantPath {
		t.Fatalf("path: want %q, got %q", wantPath, req.URL.Path)
	}
	if got := req.URL.Query().Get("api-version"); got != "2024-05-01" {
		t.Fatalf("api-version: got %q", got)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Fatalf("authorization: got %q", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type: got %q", got)
	}

	// Destination coordinates round-trip verbatim.
	for key, want := range map[string]string{
		"storageAccount": "backupsa",
		"containerName":  "apim-backups",
		"backupName":     "nightly-2026-08-25",
		"accessType":     "SystemAssignedManagedIdentity",
	} {
		if got, _ := body[key].(string); got != want {
			t.Errorf("body %s: want %q, got %q", key, want, got)
		}
	}
	if _, present := body["accessKey"]; present {
		t.Fatal("managed-identity body must not carry accessKey")
	}
}

func TestTriggerBackup_UserAssignedVariant(t *testing.T) {
	var body map[string]any
	srv := capture(t, http.StatusAccepted, `{"status":"InProgress"}`, &body, nil)
	defer srv.Close()

	r := testRequest()
	r.Access = AccessMethod{Type: AccessTypeUserAssigned, ClientID: "mi-client"}
	if _, err := NewClient(srv.URL, "2024-05-01", nil).TriggerBackup(context.Background(), "tok", r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, _ := body["accessType"].(string); got != "UserAssignedManagedIdentity" {
		t.Fatalf("accessType: got %q", got)
	}
	if got, _ := body["clientId"].(string); got != "mi-client" {
		t.Fatalf("clientId: got %q", got)
	}
	if _, present := body["accessKey"]; present {
		t.Fatal("managed-identity body must not carry accessKey")
	}
}

func TestTriggerBackup_KeyVariant(t *testing.T) {
	var body map[string]any
	srv := capture(t, http.StatusAccepted, `{"status":"InProgress"}`, &body, nil)
	defer srv.Close()

	r := testRequest()
	r.Access = AccessMethod{Type: AccessTypeKey, Key: "key=="}
	if _, err := NewClient(srv.URL, "2021-08-01", nil).TriggerBackup(context.Background(), "tok", r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, _ := body["accessKey"].(string); got != "key==" {
		t.Fatalf("accessKey: got %q", got)
	}
	if _, present := body["accessType"]; present {
		t.Fatal("key-based body must not carry accessType")
	}
}

func TestTriggerBackup_Conflict(t *testing.T) {
	srv := capture(t, http.StatusConflict, `{"error":{"code":"ServiceLocked","message":"backup in progress"}}`, nil, nil)
	defer srv.Close()

	_, err := NewClient(srv.URL, "2024-05-01", nil).TriggerBackup(context.Background(), "tok", testRequest())

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want *ConflictError, got %T (%v)", err, err)
	}
	if conflict.StatusCode != http.StatusConflict {
		t.Fatalf("status: got %d", conflict.StatusCode)
	}
	msg := err.Error()
	if !strings.Contains(msg, "apim-prod") || !strings.Contains(msg, "activity log") {
		t.Fatalf("conflict message must name the service and the activity log, got %q", msg)
	}

	// The generic class does not match; callers can branch on 409.
	var generic *RequestError
	if errors.As(err, &generic) {
		t.Fatal("conflict must be distinguishable from a generic request error")
	}
}

func TestTriggerBackup_GenericFailure(t *testing.T) {
	srv := capture(t, http.StatusInternalServerError, `{"error":{"code":"InternalServerError"}}`, nil, nil)
	defer srv.Close()

	_, err := NewClient(srv.URL, "2024-05-01", nil).TriggerBackup(context.Background(), "tok", testRequest())

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("want *RequestError, got %T (%v)", err, err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status: got %d", reqErr.StatusCode)
	}
	if !strings.Contains(reqErr.Body, "InternalServerError") {
		t.Fatalf("body not surfaced: %q", reqErr.Body)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("message must carry the status code, got %q", err)
	}
}

func TestTriggerBackup_AcceptedWithHeadersOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://management.example.test/operations/op-async-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "2024-05-01", nil).TriggerBackup(context.Background(), "tok", testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "Accepted" {
		t.Fatalf("want fallback status Accepted, got %q", res.Status)
	}
	if res.OperationID != "https://management.example.test/operations/op-async-1" {
		t.Fatalf("operation id must fall back to the Location header, got %q", res.OperationID)
	}
}

func TestTriggerBackup_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := NewClient(srv.URL, "2024-05-01", nil).TriggerBackup(context.Background(), "tok", testRequest())
	if err == nil {
		t.Fatal("want transport error")
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		t.Fatal("transport failures are not HTTP request errors")
	}
	if strings.Contains(err.Error(), "tok") && !strings.Contains(err.Error(), "token") {
		t.Fatalf("error text must not leak the bearer, got %q", err)
	}
}
