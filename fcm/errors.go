package fcm

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by this package. Every failure wraps exactly one
// of these (or is a *SendError), so callers can classify failures with
// errors.Is / errors.As.
var (
	// ErrCredentialsFile means the service account key file could not be read.
	ErrCredentialsFile = errors.New("failed to read service account file")

	// ErrCredentialsJSON means the key file content is not valid service
	// account JSON, or a required field is missing or empty.
	ErrCredentialsJSON = errors.New("failed to parse service account JSON")

	// ErrSignAssertion means the OAuth2 assertion could not be signed,
	// usually because the private key PEM is unusable.
	ErrSignAssertion = errors.New("failed to sign token assertion")

	// ErrTransport means an HTTP round trip failed at the transport level
	// (connection refused, DNS, TLS, cancelled context).
	ErrTransport = errors.New("HTTP request failed")

	// ErrAccessTokenNotFound means the token endpoint answered, but the
	// response carried no access_token string.
	ErrAccessTokenNotFound = errors.New("access token not found in response")
)

// SendError is returned when the FCM endpoint rejects a send request with a
// non-2xx status. Body holds the raw response body so callers can inspect
// the provider's error details.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send notification: status %d: %s", e.StatusCode, e.Body)
}
