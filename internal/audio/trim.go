package audio

import "time"

// TrimConfig controls edge-silence trimming of synthesized segments
type TrimConfig struct {
	EnergyThreshold float64       // RMS below this is silence
	FrameDuration   time.Duration // analysis window
	MaxTrim         time.Duration // never remove more than this from either edge
	KeepPadding     time.Duration // silence left in place next to speech
}

// DefaultTrimConfig returns thresholds suited to 24 kHz TTS output
func DefaultTrimConfig() TrimConfig {
	return TrimConfig{
		EnergyThreshold: 200.0,
		FrameDuration:   10 * time.Millisecond,
		MaxTrim:         400 * time.Millisecond,
		KeepPadding:     20 * time.Millisecond,
	}
}

// TrimSilence removes leading and trailing silent frames, bounded by
// MaxTrim per edge. Audio with no frame above the threshold is returned
// unchanged.
func TrimSilence(samples []int16, sampleRate int, cfg TrimConfig) []int16 {
	frame := int(cfg.FrameDuration.Seconds() * float64(sampleRate))
	if frame <= 0 || len(samples) < frame {
		return samples
	}
	maxTrim := int(cfg.MaxTrim.Seconds() * float64(sampleRate))
	keep := int(cfg.KeepPadding.Seconds() * float64(sampleRate))

	start := -1
	for i := 0; i+frame <= len(samples); i += frame {
		if !DetectSilence(samples[i:i+frame], cfg.EnergyThreshold) {
			start = i
			break
		}
	}
	if start < 0 {
		return samples
	}

	end := len(samples)
	for i := len(samples); i-frame >= 0; i -= frame {
		if !DetectSilence(samples[i-frame:i], cfg.EnergyThreshold) {
			end = i
			break
		}
	}

	start -= keep
	if start < 0 {
		start = 0
	}
	if start > maxTrim {
		start = maxTrim
	}
	end += keep
	if end > len(samples) {
		end = len(samples)
	}
	if len(samples)-end > maxTrim {
		end = len(samples) - maxTrim
	}
	if start >= end {
		return samples
	}
	return samples[start:end]
}

// DetectSilence reports whether samples fall below the energy threshold
func DetectSilence(samples []int16, threshold float64) bool {
	return CalculateRMS(samples) < threshold
}
