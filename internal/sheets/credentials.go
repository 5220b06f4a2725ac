package sheets

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/khayami66/study-support-bot/internal/apperror"
)

// CredentialSource lists the places service account credentials may come from.
// The first non-empty source wins: JSON, then Base64, then File.
type CredentialSource struct {
	JSON   string
	Base64 string
	File   string
}

// ServiceAccount holds the fields of a credentials file that are checked before use.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
}

// Configured reports whether any credential source is set.
func (s CredentialSource) Configured() bool {
	return s.JSON != "" || s.Base64 != "" || s.File != ""
}

// Load returns the raw credentials JSON.
func (s CredentialSource) Load() ([]byte, error) {
	switch {
	case s.JSON != "":
		return []byte(s.JSON), nil
	case s.Base64 != "":
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s.Base64))
		if err != nil {
			return nil, fmt.Errorf("%w: decode base64: %v", apperror.ErrInvalidCredentials, err)
		}
		return b, nil
	case s.File != "":
		b, err := os.ReadFile(s.File)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperror.ErrInvalidCredentials, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: no credential source configured", apperror.ErrInvalidCredentials)
	}
}

// ParseServiceAccount checks that raw is a service account key.
func ParseServiceAccount(raw []byte) (ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return sa, fmt.Errorf("%w: %v", apperror.ErrInvalidCredentials, err)
	}
	var errs []error
	if sa.Type != "service_account" {
		errs = append(errs, fmt.Errorf("type is %q, want service_account", sa.Type))
	}
	if sa.ClientEmail == "" {
		errs = append(errs, errors.New("client_email is missing"))
	}
	if sa.ProjectID == "" {
		errs = append(errs, errors.New("project_id is missing"))
	}
	if len(errs) > 0 {
		return sa, fmt.Errorf("%w: %w", apperror.ErrInvalidCredentials, errors.Join(errs...))
	}
	return sa, nil
}

// EncodeFile returns the base64 form of a credentials file, suitable for GOOGLE_CREDENTIALS_BASE64.
func EncodeFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
