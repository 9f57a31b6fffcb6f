// Package fcm sends push notifications through the Firebase Cloud Messaging
// HTTP v1 API, authenticating with a service account key file instead of the
// Firebase Admin SDK. Each send performs its own OAuth2 token exchange, so
// the client holds no mutable state and needs no refresh loop.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultEndpoint = "https://fcm.googleapis.com"

// Notification is a single push notification addressed to one device.
type Notification struct {
	// Token is the FCM registration token of the target device.
	Token string
	Title string
	Body  string
	// Data carries optional custom key/value pairs. When empty it is left
	// out of the request entirely.
	Data map[string]string
}

// Client sends notifications on behalf of one service account. It is
// immutable after construction and safe for concurrent use.
type Client struct {
	account  *ServiceAccount
	client   *http.Client
	tokenURL string
	endpoint string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the http.Client used for both the token exchange and
// the send request. The default is http.DefaultClient; timeout policy is up
// to the caller.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTokenURL overrides the OAuth2 token endpoint. Intended for tests and
// the local emulator.
func WithTokenURL(u string) Option {
	return func(c *Client) { c.tokenURL = u }
}

// WithEndpoint overrides the FCM API base URL. Intended for tests and the
// local emulator.
func WithEndpoint(u string) Option {
	return func(c *Client) { c.endpoint = u }
}

// NewClient builds a Client from a service account key file on disk.
func NewClient(credentialsFile string, opts ...Option) (*Client, error) {
	account, err := LoadServiceAccount(credentialsFile)
	if err != nil {
		return nil, err
	}
	return newClient(account, opts), nil
}

// NewClientFromJSON builds a Client from raw service account JSON.
func NewClientFromJSON(credentials []byte, opts ...Option) (*Client, error) {
	account, err := ParseServiceAccount(credentials)
	if err != nil {
		return nil, err
	}
	return newClient(account, opts), nil
}

func newClient(account *ServiceAccount, opts []Option) *Client {
	c := &Client{
		account:  account,
		client:   http.DefaultClient,
		tokenURL: defaultTokenURL,
		endpoint: defaultEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire format of the v1 messages:send request.
type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send acquires an access token and delivers one notification. A non-2xx
// answer from FCM is returned as a *SendError carrying the response body.
func (c *Client) Send(ctx context.Context, n *Notification) error {
	accessToken, err := c.fetchAccessToken(ctx)
	if err != nil {
		return err
	}

	payload, _ := json.Marshal(sendRequest{
		Message: message{
			Token:        n.Token,
			Notification: notification{Title: n.Title, Body: n.Body},
			Data:         n.Data,
		},
	})

	sendURL := fmt.Sprintf("%s/v1/projects/%s/messages:send", c.endpoint, c.account.ProjectID)
	req, err := http.NewRequestWithContext(ctx, "POST", sendURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		return &SendError{StatusCode: resp.StatusCode, Body: string(detail)}
	}

	return nil
}
