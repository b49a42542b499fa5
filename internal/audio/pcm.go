package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// DecodePCM16 converts 16-bit signed little-endian PCM bytes to samples
func DecodePCM16(pcmData []byte) ([]int16, error) {
	if len(pcmData)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples), got %d bytes", len(pcmData))
	}

	samples := make([]int16, len(pcmData)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcmData[i*2:]))
	}
	return samples, nil
}

// EncodePCM16 converts samples to 16-bit signed little-endian PCM bytes
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// SilenceSamples returns mono digital silence of the given length
func SilenceSamples(d time.Duration, sampleRate int) []int16 {
	n := int(math.Round(d.Seconds() * float64(sampleRate)))
	if n < 0 {
		n = 0
	}
	return make([]int16, n)
}

// DurationSeconds returns the length of mono samples at sampleRate
func DurationSeconds(numSamples, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(numSamples) / float64(sampleRate)
}

// Resample performs simple linear interpolation resampling
func Resample(samples []int16, inputRate, outputRate int) []int16 {
	if inputRate == outputRate || len(samples) == 0 || inputRate <= 0 || outputRate <= 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLength := int(float64(len(samples)) * ratio)
	output := make([]int16, outputLength)

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		if idx0 >= len(samples) {
			idx0 = len(samples) - 1
		}
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}

		fraction := srcPos - float64(idx0)
		output[i] = int16(float64(samples[idx0])*(1.0-fraction) + float64(samples[idx1])*fraction)
	}

	return output
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// Normalize scales samples so the loudest one reaches peak (0..1 of full
// scale). Gain is capped at maxGain so near-silent audio is not blown up.
func Normalize(samples []int16, peak, maxGain float64) []int16 {
	var loudest float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > loudest {
			loudest = a
		}
	}
	if loudest == 0 || peak <= 0 {
		return samples
	}

	gain := peak * math.MaxInt16 / loudest
	if maxGain > 0 && gain > maxGain {
		gain = maxGain
	}
	if math.Abs(gain-1) < 1e-3 {
		return samples
	}

	out := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * gain)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}
