package fcm

import (
	"encoding/json"
	"fmt"
	"os"
)

// ServiceAccount holds the credentials from a Google service account key
// file, as downloaded from the Firebase console. All fields of the key file
// are required.
type ServiceAccount struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
	UniverseDomain          string `json:"universe_domain"`
}

// LoadServiceAccount reads and parses a service account key file.
func LoadServiceAccount(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsFile, err)
	}
	return ParseServiceAccount(data)
}

// ParseServiceAccount parses service account credentials from raw JSON.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var account ServiceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsJSON, err)
	}
	if err := account.validate(); err != nil {
		return nil, err
	}
	return &account, nil
}

// validate checks that every key file field is present and non-empty.
func (sa *ServiceAccount) validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"type", sa.Type},
		{"project_id", sa.ProjectID},
		{"private_key_id", sa.PrivateKeyID},
		{"private_key", sa.PrivateKey},
		{"client_email", sa.ClientEmail},
		{"client_id", sa.ClientID},
		{"auth_uri", sa.AuthURI},
		{"token_uri", sa.TokenURI},
		{"auth_provider_x509_cert_url", sa.AuthProviderX509CertURL},
		{"client_x509_cert_url", sa.ClientX509CertURL},
		{"universe_domain", sa.UniverseDomain},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: missing field %q", ErrCredentialsJSON, f.name)
		}
	}
	return nil
}
