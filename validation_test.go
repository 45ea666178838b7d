package connectclient

import (
	"strings"
	"testing"
)

func TestValidateKind(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		wantErr bool
	}{
		{"simple", "default", false},
		{"with digits", "pool2", false},
		{"with separators", "io.scheduled_executor-v2", false},
		{"single letter", "x", false},
		{"max length", "a" + strings.Repeat("b", MaxKindLen-1), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxKindLen+1), true},
		{"leading digit", "2fast", true},
		{"leading dash", "-kind", true},
		{"spaces", "my kind", true},
		{"slash", "a/b", true},
		{"traversal", "a..b", true},
		{"nul byte", "kind\x00", true},
		{"unicode", "käind", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKind(tt.kind)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKind(%q) error = %v, wantErr %v", tt.kind, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"http", "http://localhost:8080", false},
		{"https", "https://svc.internal", false},
		{"in-process", "http://mem", false},
		{"empty", "", true},
		{"no scheme", "localhost:8080", true},
		{"wrong scheme", "ftp://host", true},
		{"nul byte", "http://host\x00", true},
		{"too long", "http://" + strings.Repeat("a", MaxEndpointLen), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.endpoint)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpoint(%q) error = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
			}
		})
	}
}
