package audio

import "time"

// Transcoding between 16-bit linear PCM (what the capture device and
// speaker work in) and G.711 mu-law (what telephony-grade dialogue
// providers stream). All functions are pure; no state is kept.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// EncodePCM16 converts little-endian 16-bit PCM samples to mu-law bytes.
// An odd trailing byte is ignored.
func EncodePCM16(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		out[i/2] = encodeSample(sample)
	}
	return out
}

// DecodeMuLaw converts mu-law bytes to little-endian 16-bit PCM.
func DecodeMuLaw(mu []byte) []byte {
	out := make([]byte, len(mu)*2)
	for i, b := range mu {
		s := decodeSample(b)
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

func encodeSample(sample int16) byte {
	sign := byte(0)
	s := int(sample)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias
	exponent := byte(7)
	for mask := 0x4000; mask != 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((s >> (uint(exponent) + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

func decodeSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	s := (int(mantissa)<<3 + muLawBias) << uint(exponent)
	s -= muLawBias
	if sign != 0 {
		s = -s
	}
	return int16(s)
}

// PCM16Duration returns the playback duration of little-endian 16-bit
// mono PCM at the given sample rate.
func PCM16Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// MuLawDuration returns the playback duration of mu-law audio
// (one byte per sample) at the given sample rate.
func MuLawDuration(mu []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(mu)) * time.Second / time.Duration(sampleRate)
}

// SilenceMuLaw returns d worth of mu-law silence at the given rate.
func SilenceMuLaw(d time.Duration, sampleRate int) []byte {
	if d <= 0 || sampleRate <= 0 {
		return nil
	}
	n := int(d * time.Duration(sampleRate) / time.Second)
	out := make([]byte, n)
	for i := range out {
		out[i] = 0xFF
	}
	return out
}
