package audio

import (
	"testing"
	"time"
)

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

func samplesFromPCM(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
	}
	return out
}

func TestMuLawRoundTripApproximates(t *testing.T) {
	in := []int16{0, 100, -100, 1000, -1000, 8000, -8000, 30000, -30000}
	decoded := samplesFromPCM(DecodeMuLaw(EncodePCM16(pcmBytes(in))))
	if len(decoded) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(decoded))
	}
	for i, want := range in {
		got := decoded[i]
		diff := int(want) - int(got)
		if diff < 0 {
			diff = -diff
		}
		// mu-law is lossy; error grows with amplitude but stays small
		// relative to the signal.
		limit := int(want)/16 + 40
		if limit < 0 {
			limit = -limit
		}
		if diff > limit {
			t.Fatalf("sample %d: want %d got %d (diff %d > %d)", i, want, got, diff, limit)
		}
	}
}

func TestMuLawMonotonic(t *testing.T) {
	// Larger positive inputs must never decode below smaller ones.
	prev := int16(-32768)
	for s := -32000; s <= 32000; s += 997 {
		got := decodeSample(encodeSample(int16(s)))
		if got < prev {
			t.Fatalf("decode not monotonic at input %d: %d < %d", s, got, prev)
		}
		prev = got
	}
}

func TestEncodeClipsExtremes(t *testing.T) {
	hi := decodeSample(encodeSample(32767))
	lo := decodeSample(encodeSample(-32768))
	if hi <= 0 || lo >= 0 {
		t.Fatalf("expected clipped extremes to keep sign, got %d and %d", hi, lo)
	}
}

func TestDurations(t *testing.T) {
	pcm := make([]byte, 320) // 160 samples
	if got := PCM16Duration(pcm, 8000); got != 20*time.Millisecond {
		t.Fatalf("expected 20ms, got %s", got)
	}
	mu := make([]byte, 160)
	if got := MuLawDuration(mu, 8000); got != 20*time.Millisecond {
		t.Fatalf("expected 20ms, got %s", got)
	}
	if PCM16Duration(pcm, 0) != 0 {
		t.Fatalf("expected zero duration for invalid rate")
	}
}

func TestSilenceMuLaw(t *testing.T) {
	s := SilenceMuLaw(20*time.Millisecond, 8000)
	if len(s) != 160 {
		t.Fatalf("expected 160 bytes, got %d", len(s))
	}
	for _, b := range s {
		if b != 0xFF {
			t.Fatalf("expected mu-law silence byte 0xFF, got %#x", b)
		}
	}
	if SilenceMuLaw(0, 8000) != nil {
		t.Fatalf("expected nil for zero duration")
	}
}
