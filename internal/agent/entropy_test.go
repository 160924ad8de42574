package agent

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestShannonEntropyBounds(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		min  float64
		max  float64
	}{
		{name: "empty", data: nil, min: 0, max: 0},
		{name: "all zero", data: make([]byte, 4096), min: 0, max: 0},
		{name: "single repeated byte", data: bytes.Repeat([]byte{0x41}, 1024), min: 0, max: 0},
		{name: "two values", data: bytes.Repeat([]byte{0x00, 0xff}, 512), min: 1, max: 1},
		{name: "english text", data: []byte("the quick brown fox jumps over the lazy dog and keeps on running"), min: 3, max: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShannonEntropy(tt.data)
			if got < tt.min-1e-9 || got > tt.max+1e-9 {
				t.Errorf("ShannonEntropy() = %f, want within [%f, %f]", got, tt.min, tt.max)
			}
			if got < 0 || got > 8 {
				t.Errorf("ShannonEntropy() = %f outside [0, 8]", got)
			}
		})
	}
}

func TestShannonEntropyUniformRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := make([]byte, 1<<16)
	rng.Read(data)

	got := ShannonEntropy(data)
	if got < 7.99 || got > 8 {
		t.Errorf("entropy of 64KiB uniform random = %f, want ~8", got)
	}
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "plain text", data: []byte("hello world\nthis is text\n"), want: false},
		{name: "contains nul", data: []byte("hello\x00world"), want: true},
		{name: "mostly unprintable", data: bytes.Repeat([]byte{0x01, 0x02, 0x03, 'a'}, 64), want: true},
		{name: "empty", data: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBinary(tt.data); got != tt.want {
				t.Errorf("IsBinary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSuspicionScoreBounds(t *testing.T) {
	if got := suspicionScore(8, true, 100); got != 10 {
		t.Errorf("max inputs score = %f, want clamp to 10", got)
	}
	if got := suspicionScore(0, false, 0); got != 0 {
		t.Errorf("min inputs score = %f, want 0", got)
	}
	mid := suspicionScore(7.9, false, 3)
	if mid <= 0 || mid >= 10 {
		t.Errorf("mid inputs score = %f, want strictly inside (0, 10)", mid)
	}
}
