package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	h, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := h.Hash("pw123456")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if hash == "pw123456" || !strings.HasPrefix(hash, "$2a$") {
		t.Fatalf("unexpected bcrypt hash: %s", hash)
	}

	ok, err := h.Verify("pw123456", hash)
	if err != nil || !ok {
		t.Fatalf("expected verify success, ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("pw1234567", hash)
	if err != nil || ok {
		t.Fatalf("expected verify mismatch, ok=%v err=%v", ok, err)
	}
}

func TestBcryptRejectsInvalidCostAndLongInput(t *testing.T) {
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected invalid cost error")
	}

	h, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	if _, err := h.Hash(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestBcryptNeedsUpgrade(t *testing.T) {
	weak, _ := NewBcrypt(bcrypt.MinCost)
	strong, _ := NewBcrypt(bcrypt.MinCost + 1)

	hash, err := weak.Hash("upgrade-me")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if up, err := strong.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("expected upgrade for lower cost, up=%v err=%v", up, err)
	}
	if up, err := weak.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("expected no upgrade at same cost, up=%v err=%v", up, err)
	}
}

func TestChainVerifiesLegacyAndRequestsUpgrade(t *testing.T) {
	bc, _ := NewBcrypt(bcrypt.MinCost)
	a2, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	legacyHash, err := a2.Hash("legacy-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	chain := NewChain(bc, a2)

	ok, err := chain.Verify("legacy-password", legacyHash)
	if err != nil || !ok {
		t.Fatalf("expected legacy verify success, ok=%v err=%v", ok, err)
	}
	up, err := chain.NeedsUpgrade(legacyHash)
	if err != nil || !up {
		t.Fatalf("expected legacy hash to need upgrade, up=%v err=%v", up, err)
	}

	fresh, err := chain.Hash("legacy-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(fresh, "$2a$") {
		t.Fatalf("expected primary (bcrypt) hash, got %s", fresh)
	}
	up, err = chain.NeedsUpgrade(fresh)
	if err != nil || up {
		t.Fatalf("expected fresh hash to be current, up=%v err=%v", up, err)
	}

	if _, err := chain.Verify("x", "plaintext"); !errors.Is(err, ErrUnknownHash) {
		t.Fatalf("expected ErrUnknownHash, got %v", err)
	}
}
