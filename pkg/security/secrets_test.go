package security

import (
	"bytes"
	"testing"
)

func TestNewSecretsManager(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{
			name:    "valid 32-byte key",
			key:     make([]byte, 32),
			wantErr: false,
		},
		{
			name:    "invalid short key",
			key:     make([]byte, 16),
			wantErr: true,
		},
		{
			name:    "invalid long key",
			key:     make([]byte, 64),
			wantErr: true,
		},
		{
			name:    "empty key",
			key:     []byte{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSecretsManager(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSecretsManager() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && sm == nil {
				t.Error("NewSecretsManager() returned nil without error")
			}
		})
	}
}

func TestNewSecretsManagerFromPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "valid password",
			password: "my-secure-password",
			wantErr:  false,
		},
		{
			name:     "empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSecretsManagerFromPassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSecretsManagerFromPassword() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && sm == nil {
				t.Error("NewSecretsManagerFromPassword() returned nil without error")
			}
		})
	}
}

func TestSamePasswordDerivesSameKey(t *testing.T) {
	sm1, err := NewSecretsManagerFromPassword("shared-password")
	if err != nil {
		t.Fatalf("NewSecretsManagerFromPassword() error = %v", err)
	}
	sm2, err := NewSecretsManagerFromPassword("shared-password")
	if err != nil {
		t.Fatalf("NewSecretsManagerFromPassword() error = %v", err)
	}

	ciphertext, err := sm1.Encrypt([]byte("target-ssh-password"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	plaintext, err := sm2.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if string(plaintext) != "target-ssh-password" {
		t.Errorf("Decrypt() = %q, want %q", plaintext, "target-ssh-password")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sm, err := NewSecretsManagerFromPassword("test-password")
	if err != nil {
		t.Fatalf("NewSecretsManagerFromPassword() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"short value", []byte("hunter2")},
		{"long value", bytes.Repeat([]byte("credential-material-"), 100)},
		{"binary value", []byte{0, 1, 2, 255, 254, 253}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := sm.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if bytes.Equal(ciphertext, tt.plaintext) {
				t.Error("ciphertext equals plaintext")
			}

			plaintext, err := sm.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(plaintext, tt.plaintext) {
				t.Errorf("Decrypt() = %q, want %q", plaintext, tt.plaintext)
			}
		})
	}
}

func TestEncryptEmptyData(t *testing.T) {
	sm, _ := NewSecretsManagerFromPassword("test-password")
	if _, err := sm.Encrypt(nil); err == nil {
		t.Error("Encrypt(nil) expected error, got nil")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	sm, _ := NewSecretsManagerFromPassword("test-password")

	ciphertext, err := sm.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xff

	if _, err := sm.Decrypt(ciphertext); err == nil {
		t.Error("Decrypt() of tampered ciphertext expected error, got nil")
	}
}

func TestDecryptTooShort(t *testing.T) {
	sm, _ := NewSecretsManagerFromPassword("test-password")
	if _, err := sm.Decrypt([]byte{1, 2, 3}); err == nil {
		t.Error("Decrypt() of truncated ciphertext expected error, got nil")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	sm1, _ := NewSecretsManagerFromPassword("password-one")
	sm2, _ := NewSecretsManagerFromPassword("password-two")

	ciphertext, err := sm1.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := sm2.Decrypt(ciphertext); err == nil {
		t.Error("Decrypt() with wrong key expected error, got nil")
	}
}

func TestEncryptStringRoundTrip(t *testing.T) {
	sm, _ := NewSecretsManagerFromPassword("test-password")

	token, err := sm.EncryptString("ssh-password")
	if err != nil {
		t.Fatalf("EncryptString() error = %v", err)
	}
	if token == "ssh-password" {
		t.Error("EncryptString() returned plaintext")
	}

	plain, err := sm.DecryptString(token)
	if err != nil {
		t.Fatalf("DecryptString() error = %v", err)
	}
	if plain != "ssh-password" {
		t.Errorf("DecryptString() = %q, want %q", plain, "ssh-password")
	}
}

func TestEncryptStringEmptyPassesThrough(t *testing.T) {
	sm, _ := NewSecretsManagerFromPassword("test-password")

	token, err := sm.EncryptString("")
	if err != nil {
		t.Fatalf("EncryptString() error = %v", err)
	}
	if token != "" {
		t.Errorf("EncryptString(\"\") = %q, want empty", token)
	}

	plain, err := sm.DecryptString("")
	if err != nil {
		t.Fatalf("DecryptString() error = %v", err)
	}
	if plain != "" {
		t.Errorf("DecryptString(\"\") = %q, want empty", plain)
	}
}
