package connectclient

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxKindLen is the maximum length of a factory kind name.
	MaxKindLen = 128

	// MaxEndpointLen is the maximum length of an endpoint URL.
	MaxEndpointLen = 256
)

// validKindPattern matches valid factory kind names.
// Must start with a letter, contain only alphanumeric, underscore, hyphen, dot.
var validKindPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.\-]*$`)

// ValidateKind validates a factory kind name. Kind names are persisted
// identities, so they are checked at registration and again at rehydration.
// Returns an error if:
// - Empty or too long
// - Contains invalid characters
// - Contains path traversal sequences
func ValidateKind(kind string) error {
	if kind == "" {
		return fmt.Errorf("factory kind cannot be empty")
	}

	if len(kind) > MaxKindLen {
		return fmt.Errorf("factory kind too long: %d bytes (max: %d)", len(kind), MaxKindLen)
	}

	if !validKindPattern.MatchString(kind) {
		return fmt.Errorf("factory kind %q contains invalid characters (must match: %s)", kind, validKindPattern.String())
	}

	// Check for path traversal attempts
	if strings.Contains(kind, "..") {
		return fmt.Errorf("factory kind contains path traversal characters: %s", kind)
	}

	// Check for null bytes
	if strings.Contains(kind, "\x00") {
		return fmt.Errorf("factory kind contains null bytes")
	}

	return nil
}

// ValidateEndpoint validates a service endpoint URL.
// Returns an error if:
// - Empty or too long
// - Missing an http:// or https:// scheme
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if len(endpoint) > MaxEndpointLen {
		return fmt.Errorf("endpoint too long: %d bytes (max: %d)", len(endpoint), MaxEndpointLen)
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return fmt.Errorf("endpoint must start with http:// or https://: %s", endpoint)
	}

	// Check for null bytes
	if strings.Contains(endpoint, "\x00") {
		return fmt.Errorf("endpoint contains null bytes")
	}

	return nil
}
