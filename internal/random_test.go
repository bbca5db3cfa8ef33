package internal

import (
	"encoding/base64"
	"regexp"
	"testing"
)

func TestNewOpaqueIDIsUniqueAndURLSafe(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		id, err := NewOpaqueID()
		if err != nil {
			t.Fatalf("NewOpaqueID error: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(id)
		if err != nil || len(raw) != opaqueIDSize {
			t.Fatalf("unexpected id encoding %q: %v", id, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNamespaceAndKeysShape(t *testing.T) {
	if ns := NewNamespace(); !regexp.MustCompile(`^[0-9a-f]{7}$`).MatchString(ns) {
		t.Fatalf("unexpected namespace %q", ns)
	}
	if k := NewAPIKey("PUBLIC"); !regexp.MustCompile(`^PUBLIC-[0-9A-F]{32}$`).MatchString(k) {
		t.Fatalf("unexpected public key %q", k)
	}
	if NewAPIKey("PRIVATE") == NewAPIKey("PRIVATE") {
		t.Fatal("expected distinct keys")
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("", "") != "" {
		t.Fatal("expected empty fingerprint for empty input")
	}
	a := Fingerprint("1.2.3.4", "curl/8")
	if a == "" || a != Fingerprint("1.2.3.4", "curl/8") {
		t.Fatal("expected stable fingerprint")
	}
	if a == Fingerprint("1.2.3.5", "curl/8") {
		t.Fatal("expected fingerprint to change with ip")
	}
}
