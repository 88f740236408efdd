package secrets

import (
	"errors"
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec("unit-test-secret")
	if err != nil {
		t.Fatal(err)
	}

	for _, plaintext := range []string{"", "p@ssw0rd", "long password with spaces and √ƒ∂ unicode"} {
		encoded, err := codec.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plaintext, err)
		}
		if encoded == plaintext && plaintext != "" {
			t.Fatalf("ciphertext equals plaintext for %q", plaintext)
		}

		got, err := codec.Decrypt(encoded)
		if err != nil {
			t.Fatalf("decrypt %q: %v", plaintext, err)
		}
		if got != plaintext {
			t.Errorf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestCodec_EmptyStoredValue(t *testing.T) {
	codec, err := NewCodec("unit-test-secret")
	if err != nil {
		t.Fatal(err)
	}

	got, err := codec.Decrypt("")
	if err != nil || got != "" {
		t.Errorf("empty stored value should decrypt to empty password, got %q err %v", got, err)
	}
}

func TestCodec_WrongSecret(t *testing.T) {
	first, err := NewCodec("secret-one")
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewCodec("secret-two")
	if err != nil {
		t.Fatal(err)
	}

	encoded, err := first.Encrypt("p@ssw0rd")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := second.Decrypt(encoded); !errors.Is(err, ErrMalformedCiphertext) {
		t.Errorf("expected ErrMalformedCiphertext, got %v", err)
	}
}

func TestCodec_Malformed(t *testing.T) {
	codec, err := NewCodec("unit-test-secret")
	if err != nil {
		t.Fatal(err)
	}

	for _, encoded := range []string{"not base64 !!!", "YWJj"} { // "abc": shorter than a nonce
		if _, err := codec.Decrypt(encoded); !errors.Is(err, ErrMalformedCiphertext) {
			t.Errorf("decrypt %q: expected ErrMalformedCiphertext, got %v", encoded, err)
		}
	}
}

func TestNewCodec_EmptySecret(t *testing.T) {
	if _, err := NewCodec(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
