package roomcrypto

import "testing"

func TestDeriveKeyDeterministic(t *testing.T) {
	k1, err := DeriveKey([]byte("hunter2"))
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	k2, err := DeriveKey([]byte("hunter2"))
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if k1 != k2 {
		t.Error("same password produced different keys")
	}

	k3, err := DeriveKey([]byte("different"))
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if k1 == k3 {
		t.Error("different passwords produced the same key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := DeriveKey([]byte("room password"))
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}

	cleartext := []byte("hey bob, lunch?")
	blob, err := Encrypt(cleartext, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(blob) != len(cleartext)+Overhead {
		t.Errorf("blob length = %d, want %d", len(blob), len(cleartext)+Overhead)
	}

	got, err := Decrypt(blob, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got) != string(cleartext) {
		t.Errorf("decrypted = %q, want %q", got, cleartext)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key, _ := DeriveKey([]byte("correct horse"))
	wrongKey, _ := DeriveKey([]byte("battery staple"))

	blob, err := Encrypt([]byte("secret"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(blob, wrongKey); err == nil {
		t.Error("Decrypt succeeded with the wrong key")
	}
}

func TestDecryptRejectsNonFinalTag(t *testing.T) {
	key, _ := DeriveKey([]byte("pw"))
	blob, err := Encrypt([]byte("hi"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	blob[nonceSize] = 0x01 // not the final-chunk tag
	if _, err := Decrypt(blob, key); err != ErrNotFinalChunk {
		t.Errorf("Decrypt error = %v, want ErrNotFinalChunk", err)
	}
}

func TestDecryptShortBlob(t *testing.T) {
	key, _ := DeriveKey([]byte("pw"))
	if _, err := Decrypt([]byte{1, 2, 3}, key); err != ErrShortBlob {
		t.Errorf("Decrypt error = %v, want ErrShortBlob", err)
	}
}
