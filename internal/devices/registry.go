package devices

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCredentials is returned when a serial/secret pair does not
// match a provisioned device.
var ErrInvalidCredentials = errors.New("invalid device credentials")

// Registry holds the provisioned devices allowed to open sessions. Backing
// it with the environment keeps the gateway stateless; nothing about a
// device persists beyond its provisioning entry.
type Registry struct {
	secrets map[string]string
}

// NewRegistry parses a comma-separated list of serial:secret pairs.
func NewRegistry(entries string) (*Registry, error) {
	secrets := make(map[string]string)
	for _, entry := range strings.Split(entries, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		serial, secret, ok := strings.Cut(entry, ":")
		if !ok || serial == "" || secret == "" {
			return nil, fmt.Errorf("malformed device registry entry %q", entry)
		}
		secrets[serial] = secret
	}
	return &Registry{secrets: secrets}, nil
}

// Empty reports whether no devices are provisioned.
func (r *Registry) Empty() bool {
	return len(r.secrets) == 0
}

// Validate checks a serial/secret pair and returns the device ID on
// success.
func (r *Registry) Validate(serial, secret string) (string, error) {
	want, ok := r.secrets[serial]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(secret)) != 1 {
		return "", ErrInvalidCredentials
	}
	return serial, nil
}
