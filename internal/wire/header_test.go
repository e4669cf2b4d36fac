package wire

import (
	"strings"
	"testing"
)

func TestBuildThenParseRoundTrip(t *testing.T) {
	raw := NewHeaderBuilder().
		PacketNumber(7).
		SourceUsername("alice").
		DestUsername("bob").
		Type(TypeMessage).
		Payload([]byte("hello")).
		Build()

	h, err := Parse(raw[:])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.PacketNumber() != 7 {
		t.Errorf("packet number = %d, want 7", h.PacketNumber())
	}
	if h.SourceUsername() != "alice" || h.DestUsername() != "bob" {
		t.Errorf("usernames = %q/%q", h.SourceUsername(), h.DestUsername())
	}
	if h.MessageType() != TypeMessage {
		t.Errorf("type = %v, want MESSAGE", h.MessageType())
	}
	if h.DataPacketLength() != 5 {
		t.Errorf("data length = %d, want 5", h.DataPacketLength())
	}
	if !VerifyDataChecksum(h.DataChecksum(), []byte("hello")) {
		t.Error("data checksum did not verify against original payload")
	}
}

func TestFlippedByteFailsChecksum(t *testing.T) {
	raw := NewHeaderBuilder().PacketNumber(1).Type(TypeWho).Build()
	raw[10] ^= 0xFF // corrupt a byte inside the checksummed region

	if _, err := Parse(raw[:]); err == nil {
		t.Fatal("Parse succeeded on a header with a flipped byte")
	}
}

func TestWrongLengthRejected(t *testing.T) {
	if _, err := Parse(make([]byte, HeaderSize-1)); err == nil {
		t.Fatal("Parse accepted a short buffer")
	}
}

func TestDataChecksumDetectsTamperedPayload(t *testing.T) {
	raw := NewHeaderBuilder().Type(TypeMessage).Payload([]byte("ciphertext")).Build()
	h, err := Parse(raw[:])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if VerifyDataChecksum(h.DataChecksum(), []byte("CIPHERTEXT")) {
		t.Error("VerifyDataChecksum accepted a different payload")
	}
}

func TestUsernameTruncatedAt31Bytes(t *testing.T) {
	long := strings.Repeat("x", 40)
	raw := NewHeaderBuilder().SourceUsername(long).Build()
	h, err := Parse(raw[:])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := h.SourceUsername(), long[:maxUsernameLen]; got != want {
		t.Errorf("truncated username = %q, want %q", got, want)
	}
}

func TestMaxLengthUsernameFillsFieldWithNUL(t *testing.T) {
	// A 31-byte name plus the trailing NUL fills the field exactly;
	// getting it back should not include a phantom 32nd byte.
	name := strings.Repeat("y", maxUsernameLen)
	raw := NewHeaderBuilder().DestUsername(name).Build()
	h, err := Parse(raw[:])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.DestUsername() != name {
		t.Errorf("dest username = %q, want %q", h.DestUsername(), name)
	}
}

func TestEmptyPayloadLeavesChecksumZero(t *testing.T) {
	raw := NewHeaderBuilder().Type(TypeLogin).Build()
	h, err := Parse(raw[:])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.DataPacketLength() != 0 {
		t.Errorf("data length = %d, want 0", h.DataPacketLength())
	}
	if !VerifyDataChecksum(h.DataChecksum(), nil) {
		t.Error("zero checksum should verify against an empty payload")
	}
}

func TestByteExactRelay(t *testing.T) {
	raw := NewHeaderBuilder().PacketNumber(42).SourceUsername("alice").Type(TypeMessage).Payload([]byte("x")).Build()
	h, err := Parse(raw[:])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.Raw() != raw {
		t.Error("Raw() did not return the exact bytes the header was parsed from")
	}
}
