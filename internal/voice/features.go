package voice

import (
	"errors"
	"math"

	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/utils"
)

const (
	frameLength = 2048
	hopLength   = 512

	// frames quieter than this RMS are treated as silence for pitch
	voicedRMS = 0.01
	// shortest beat spacing considered, 240 BPM
	minBeatSeconds = 0.25
	// an envelope peak must clear the mean by this factor to count as a beat
	peakContrast = 1.25
)

// Analysis summarises a recording's prosody.
type Analysis struct {
	SampleRate int
	Duration   float64
	Energy     float64 // mean frame RMS
	Pitch      float64 // Hz, from zero crossings over voiced frames
	Tempo      float64 // BPM, from energy-envelope peaks
	Emotion    models.VoiceEmotion
	Features   map[string][][]float64
}

// Analyze frames the signal and derives arousal from energy, valence from
// pitch and dominance from tempo.
func Analyze(p *PCM) (*Analysis, error) {
	if p == nil || len(p.Samples) == 0 || p.SampleRate <= 0 {
		return nil, errors.New("empty audio")
	}

	rms, zcr := frameStats(p.Samples)

	var energy float64
	for _, v := range rms {
		energy += v
	}
	energy /= float64(len(rms))

	pitch := estimatePitch(rms, zcr, p.SampleRate)
	tempo := estimateTempo(rms, p.SampleRate)

	return &Analysis{
		SampleRate: p.SampleRate,
		Duration:   float64(len(p.Samples)) / float64(p.SampleRate),
		Energy:     energy,
		Pitch:      pitch,
		Tempo:      tempo,
		Emotion: models.VoiceEmotion{
			Arousal:   utils.Clamp(energy*2, 0, 1),
			Valence:   utils.Clamp(pitch/500, 0, 1),
			Dominance: utils.Clamp(tempo/200, 0, 1),
		},
		Features: map[string][][]float64{
			"rms":                {rms},
			"zero_crossing_rate": {zcr},
		},
	}, nil
}

func frameStats(s []float64) (rms, zcr []float64) {
	n := len(s)
	if n <= frameLength {
		r, z := frame(s)
		return []float64{r}, []float64{z}
	}
	for start := 0; start+frameLength <= n; start += hopLength {
		r, z := frame(s[start : start+frameLength])
		rms = append(rms, r)
		zcr = append(zcr, z)
	}
	return rms, zcr
}

func frame(f []float64) (rms, zcr float64) {
	var sq float64
	var crossings int
	for i, v := range f {
		sq += v * v
		if i > 0 && (v >= 0) != (f[i-1] >= 0) {
			crossings++
		}
	}
	return math.Sqrt(sq / float64(len(f))), float64(crossings) / float64(len(f))
}

// estimatePitch treats each voiced frame as roughly periodic: two zero
// crossings per cycle.
func estimatePitch(rms, zcr []float64, sampleRate int) float64 {
	var sum float64
	var n int
	for i := range rms {
		if rms[i] < voicedRMS {
			continue
		}
		sum += zcr[i] * float64(sampleRate) / 2
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func estimateTempo(rms []float64, sampleRate int) float64 {
	if len(rms) < 3 {
		return 0
	}

	var mean float64
	for _, v := range rms {
		mean += v
	}
	mean /= float64(len(rms))

	framesPerSec := float64(sampleRate) / hopLength
	minGap := int(math.Ceil(minBeatSeconds * framesPerSec))

	var peaks []int
	for i := 1; i < len(rms)-1; i++ {
		if rms[i] <= mean*peakContrast || rms[i] < voicedRMS {
			continue
		}
		if rms[i] > rms[i-1] && rms[i] >= rms[i+1] {
			if len(peaks) > 0 && i-peaks[len(peaks)-1] < minGap {
				continue
			}
			peaks = append(peaks, i)
		}
	}
	if len(peaks) < 2 {
		return 0
	}

	span := float64(peaks[len(peaks)-1]-peaks[0]) / framesPerSec
	return 60 * float64(len(peaks)-1) / span
}
