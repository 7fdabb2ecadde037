package main

import (
	"net/http/httptest"
	"testing"
)

func TestCallbackCode(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{"ok", "?state=s1&code=abc", "abc", false},
		{"wrong state", "?state=other&code=abc", "", true},
		{"denied", "?state=s1&error=access_denied", "", true},
		{"no code", "?state=s1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := callbackCode(httptest.NewRequest("GET", "/callback"+tt.query, nil), "s1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected code %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRandomState(t *testing.T) {
	a, b := randomState(), randomState()
	if a == b || len(a) != 24 {
		t.Errorf("unexpected states %q %q", a, b)
	}
}
