package audio

import "fmt"

// MulawSampleRate is the rate of G.711 audio sent to the recognizer.
const MulawSampleRate = 8000

// DecodePCM16 decodes 16-bit signed little-endian PCM.
func DecodePCM16(data []byte) ([]int16, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty PCM data")
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples)")
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples, nil
}

// PCM16ToMulaw converts 16-bit PCM at inputRate to 8kHz G.711 μ-law.
func PCM16ToMulaw(pcm []byte, inputRate int) ([]byte, error) {
	if inputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", inputRate)
	}
	samples, err := DecodePCM16(pcm)
	if err != nil {
		return nil, err
	}

	samples = Resample(samples, inputRate, MulawSampleRate)
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = linearToMulaw(s)
	}
	return out, nil
}

// Resample converts between sample rates by linear interpolation.
func Resample(samples []int16, inputRate, outputRate int) []int16 {
	if inputRate == outputRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	out := make([]int16, int(float64(len(samples))*ratio))
	for i := range out {
		pos := float64(i) / ratio
		i0 := int(pos)
		i1 := i0 + 1
		if i1 >= len(samples) {
			i1 = len(samples) - 1
		}
		frac := pos - float64(i0)
		out[i] = int16(float64(samples[i0])*(1-frac) + float64(samples[i1])*frac)
	}
	return out
}

// linearToMulaw encodes one sample per ITU-T G.711.
func linearToMulaw(sample int16) byte {
	const (
		clip = 32635
		bias = 0x84
	)

	var sign byte
	mag := int32(sample)
	if mag < 0 {
		sign = 0x80
		mag = -mag
	}
	if mag > clip {
		mag = clip
	}
	mag += bias

	exponent := byte(7)
	for mask := int32(0x4000); mag&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}

	mantissa := byte(mag>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}
