package agent

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

// samplePlaintext is long enough for frequency analysis to settle.
var samplePlaintext = []byte(strings.Repeat(
	"the investigation recovered several archives from the disk image and "+
		"each of them contained fragments of the same correspondence between "+
		"the suspect and an unknown third party about moving the files offshore "+
		"before the seizure order could be executed by the authorities ", 8))

func TestXorRoundTrip(t *testing.T) {
	payload := []byte("attack at dawn, bring the archive keys")

	for keyLen := 1; keyLen <= 8; keyLen++ {
		key := make([]byte, keyLen)
		for i := range key {
			key[i] = byte(0x31 + i*7)
		}

		encrypted := XorBytes(payload, key)
		decrypted := XorBytes(encrypted, key)
		if !bytes.Equal(decrypted, payload) {
			t.Errorf("key length %d: round trip mismatch", keyLen)
		}
	}
}

func TestXorBytesEmptyKey(t *testing.T) {
	payload := []byte("unchanged")
	if got := XorBytes(payload, nil); !bytes.Equal(got, payload) {
		t.Errorf("empty key modified data: %q", got)
	}
}

func TestCrackSingleByteRecoversKey(t *testing.T) {
	encrypted := XorBytes(samplePlaintext, []byte{0x2a})

	key, score, plain := CrackSingleByte(encrypted)
	if key != 0x2a {
		t.Fatalf("recovered key = %#02x, want 0x2a", key)
	}
	if score < retainThreshold {
		t.Errorf("score for correct key = %f, want >= %f", score, retainThreshold)
	}
	if !bytes.Equal(plain, samplePlaintext) {
		t.Error("recovered plaintext does not match original")
	}
}

func TestEstimateKeyLength(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
		want int
	}{
		{name: "single byte", key: []byte{0x2a}, want: 1},
		{name: "four bytes", key: []byte{0x11, 0x22, 0x33, 0x44}, want: 4},
		{name: "five bytes", key: []byte{0x51, 0x13, 0x77, 0x2e, 0x08}, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted := XorBytes(samplePlaintext, tt.key)
			if got := EstimateKeyLength(encrypted, 8); got != tt.want {
				t.Errorf("EstimateKeyLength() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCrackRepeatingKey(t *testing.T) {
	key := []byte{0x11, 0x22, 0x33, 0x44}
	encrypted := XorBytes(samplePlaintext, key)

	keyLen := EstimateKeyLength(encrypted, 8)
	if keyLen != len(key) {
		t.Fatalf("estimated key length = %d, want %d", keyLen, len(key))
	}

	recovered := CrackRepeatingKey(encrypted, keyLen)
	if !bytes.Equal(recovered, key) {
		t.Fatalf("recovered key = %s, want %s",
			hex.EncodeToString(recovered), hex.EncodeToString(key))
	}

	plain := XorBytes(encrypted, recovered)
	if !bytes.Equal(plain, samplePlaintext) {
		t.Error("decryption with recovered key does not match plaintext")
	}
}

func TestPlaintextScoreRange(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		high bool
	}{
		{name: "english", data: samplePlaintext, high: true},
		{name: "garbage", data: bytes.Repeat([]byte{0x01, 0xfe, 0x9c, 0x03}, 128), high: false},
		{name: "empty", data: nil, high: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlaintextScore(tt.data)
			if got < 0 || got > 10 {
				t.Fatalf("PlaintextScore() = %f outside [0, 10]", got)
			}
			if tt.high && got < retainThreshold {
				t.Errorf("PlaintextScore() = %f, want >= %f for English text", got, retainThreshold)
			}
			if !tt.high && got >= retainThreshold {
				t.Errorf("PlaintextScore() = %f, want < %f", got, retainThreshold)
			}
		})
	}
}

func TestReadableRuns(t *testing.T) {
	if got := ReadableRuns([]byte("abc\x00defgh\x00xy")); got != 5 {
		t.Errorf("ReadableRuns() = %d, want 5 (only the defgh run counts)", got)
	}
}
