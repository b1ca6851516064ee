package credstore

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/muurk/zubwifi/internal/station"
)

// DefaultNamespace is the namespace used when none is configured.
const DefaultNamespace = "wifi_config"

// MaxNamespaceLen matches the key-space limit of the device's flash store.
const MaxNamespaceLen = 15

// ErrInvalidNamespace is returned for an empty, too long or non-portable namespace.
var ErrInvalidNamespace = errors.New("invalid credential namespace")

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateNamespace checks that namespace can be used as a store key and a file name.
func ValidateNamespace(namespace string) error {
	if namespace == "" || len(namespace) > MaxNamespaceLen {
		return fmt.Errorf("%w: %q must be 1-%d characters", ErrInvalidNamespace, namespace, MaxNamespaceLen)
	}
	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("%w: %q may only contain letters, digits, '_' and '-'", ErrInvalidNamespace, namespace)
	}
	return nil
}

var (
	_ station.CredentialStore = (*FileStore)(nil)
	_ station.CredentialStore = (*MemoryStore)(nil)
)
