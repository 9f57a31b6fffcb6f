package fcm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// tokenServer fakes the OAuth2 exchange and hands out the given token.
func tokenServer(token string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, token)
	}))
}

func TestNewClient(t *testing.T) {
	data, err := json.Marshal(testServiceAccount())
	if err != nil {
		t.Fatalf("Failed to marshal account: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write key file: %v", err)
	}

	client, err := NewClient(path)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	// Defaults point at Google
	if client.tokenURL != "https://oauth2.googleapis.com/token" {
		t.Errorf("Unexpected token URL: %s", client.tokenURL)
	}
	if client.endpoint != "https://fcm.googleapis.com" {
		t.Errorf("Unexpected endpoint: %s", client.endpoint)
	}
	if client.client != http.DefaultClient {
		t.Error("Expected http.DefaultClient by default")
	}
}

func TestNewClient_MissingFile(t *testing.T) {
	_, err := NewClient(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrCredentialsFile) {
		t.Fatalf("Expected ErrCredentialsFile, got %v", err)
	}
}

func TestNewClientFromJSON_Options(t *testing.T) {
	hc := &http.Client{Timeout: 3 * time.Second}
	client, err := NewClientFromJSON(testAccountJSON(t),
		WithHTTPClient(hc),
		WithTokenURL("http://127.0.0.1:9099/token"),
		WithEndpoint("http://127.0.0.1:9099"),
	)
	if err != nil {
		t.Fatalf("NewClientFromJSON failed: %v", err)
	}
	if client.client != hc {
		t.Error("WithHTTPClient was not applied")
	}
	if client.tokenURL != "http://127.0.0.1:9099/token" {
		t.Errorf("WithTokenURL was not applied, got %s", client.tokenURL)
	}
	if client.endpoint != "http://127.0.0.1:9099" {
		t.Errorf("WithEndpoint was not applied, got %s", client.endpoint)
	}
}

func TestSend(t *testing.T) {
	tokenSrv := tokenServer("ya29.issued")
	defer tokenSrv.Close()

	var gotPath, gotAuth, gotContentType string
	var gotBody []byte
	fcmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"projects/demo-project/messages/0:1500415314455276"}`))
	}))
	defer fcmSrv.Close()

	client, err := NewClientFromJSON(testAccountJSON(t),
		WithTokenURL(tokenSrv.URL), WithEndpoint(fcmSrv.URL))
	if err != nil {
		t.Fatalf("NewClientFromJSON failed: %v", err)
	}

	notification := &Notification{
		Token: "device-token-123",
		Title: "Breaking",
		Body:  "Something happened",
		Data:  map[string]string{"article_id": "42"},
	}
	if err := client.Send(context.Background(), notification); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotPath != "/v1/projects/demo-project/messages:send" {
		t.Errorf("Unexpected request path: %s", gotPath)
	}
	if gotAuth != "Bearer ya29.issued" {
		t.Errorf("Expected Bearer ya29.issued, got %s", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", gotContentType)
	}

	var got map[string]any
	if err := json.Unmarshal(gotBody, &got); err != nil {
		t.Fatalf("Request body is not JSON: %v", err)
	}
	want := map[string]any{
		"message": map[string]any{
			"token": "device-token-123",
			"notification": map[string]any{
				"title": "Breaking",
				"body":  "Something happened",
			},
			"data": map[string]any{"article_id": "42"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Request body mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_OmitsEmptyData(t *testing.T) {
	cases := []struct {
		name string
		data map[string]string
	}{
		{"Nil Map", nil},
		{"Empty Map", map[string]string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokenSrv := tokenServer("tok")
			defer tokenSrv.Close()

			var gotBody []byte
			fcmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotBody, _ = io.ReadAll(r.Body)
				w.Write([]byte(`{"name":"projects/demo-project/messages/1"}`))
			}))
			defer fcmSrv.Close()

			client, err := NewClientFromJSON(testAccountJSON(t),
				WithTokenURL(tokenSrv.URL), WithEndpoint(fcmSrv.URL))
			if err != nil {
				t.Fatalf("NewClientFromJSON failed: %v", err)
			}

			n := &Notification{Token: "tok-1", Title: "Hi", Body: "There", Data: tc.data}
			if err := client.Send(context.Background(), n); err != nil {
				t.Fatalf("Send failed: %v", err)
			}

			if strings.Contains(string(gotBody), `"data"`) {
				t.Errorf("Expected data to be omitted, got body %s", gotBody)
			}
		})
	}
}

func TestSend_ProviderRejection(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{
			name:   "Quota Exceeded",
			status: http.StatusForbidden,
			body:   "quota exceeded",
			detail: "quota exceeded",
		},
		{
			name:   "Unknown Token",
			status: http.StatusNotFound,
			body:   `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`,
			detail: "NOT_FOUND",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokenSrv := tokenServer("tok")
			defer tokenSrv.Close()

			fcmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer fcmSrv.Close()

			client, err := NewClientFromJSON(testAccountJSON(t),
				WithTokenURL(tokenSrv.URL), WithEndpoint(fcmSrv.URL))
			if err != nil {
				t.Fatalf("NewClientFromJSON failed: %v", err)
			}

			err = client.Send(context.Background(), &Notification{Token: "gone", Title: "x", Body: "y"})

			var sendErr *SendError
			if !errors.As(err, &sendErr) {
				t.Fatalf("Expected *SendError, got %v", err)
			}
			if sendErr.StatusCode != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, sendErr.StatusCode)
			}
			if sendErr.Body != tc.body {
				t.Errorf("Expected raw body to be preserved, got %s", sendErr.Body)
			}
			// The provider's detail must survive into the error message.
			if !strings.Contains(err.Error(), tc.detail) {
				t.Errorf("Expected error message to contain %q, got %v", tc.detail, err)
			}
		})
	}
}

func TestSend_NoRequestWithoutToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal_failure"}`))
	}))
	defer tokenSrv.Close()

	fcmHits := 0
	fcmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fcmHits++
		w.Write([]byte(`{"name":"projects/demo-project/messages/1"}`))
	}))
	defer fcmSrv.Close()

	client, err := NewClientFromJSON(testAccountJSON(t),
		WithTokenURL(tokenSrv.URL), WithEndpoint(fcmSrv.URL))
	if err != nil {
		t.Fatalf("NewClientFromJSON failed: %v", err)
	}

	err = client.Send(context.Background(), &Notification{Token: "t", Title: "x", Body: "y"})
	if !errors.Is(err, ErrAccessTokenNotFound) {
		t.Fatalf("Expected ErrAccessTokenNotFound, got %v", err)
	}
	if fcmHits != 0 {
		t.Errorf("Expected no send request after failed exchange, got %d", fcmHits)
	}
}

func TestSend_FreshTokenPerSend(t *testing.T) {
	issued := 0
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issued++
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, issued)
	}))
	defer tokenSrv.Close()

	var auths []string
	fcmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		w.Write([]byte(`{"name":"projects/demo-project/messages/1"}`))
	}))
	defer fcmSrv.Close()

	client, err := NewClientFromJSON(testAccountJSON(t),
		WithTokenURL(tokenSrv.URL), WithEndpoint(fcmSrv.URL))
	if err != nil {
		t.Fatalf("NewClientFromJSON failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := client.Send(context.Background(), &Notification{Token: "t", Title: "x", Body: "y"}); err != nil {
			t.Fatalf("Send %d failed: %v", i+1, err)
		}
	}

	// No caching: each send exchanges its own token.
	want := []string{"Bearer tok-1", "Bearer tok-2"}
	if diff := cmp.Diff(want, auths); diff != "" {
		t.Errorf("Authorization headers mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_TransportError(t *testing.T) {
	tokenSrv := tokenServer("tok")
	defer tokenSrv.Close()

	fcmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := fcmSrv.URL
	fcmSrv.Close()

	client, err := NewClientFromJSON(testAccountJSON(t),
		WithTokenURL(tokenSrv.URL), WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("NewClientFromJSON failed: %v", err)
	}

	err = client.Send(context.Background(), &Notification{Token: "t", Title: "x", Body: "y"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Expected ErrTransport, got %v", err)
	}
}
