package gcp

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

// Credentials locates a service account. Raw holds either inline JSON or a
// file path; empty means application default credentials.
type Credentials struct {
	Raw string
}

func CredentialsFromEnv() Credentials {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return Credentials{Raw: creds}
}

func (c Credentials) ClientOptions() []option.ClientOption {
	raw := strings.TrimSpace(c.Raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	return []option.ClientOption{option.WithCredentialsFile(raw)}
}
