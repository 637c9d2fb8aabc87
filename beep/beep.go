// Package beep plays short audible cues for chord progress.
package beep

import "math"

var disabled bool

func Disable() { disabled = true }

const sampleRate = 44100

// note is one tone of a cue followed by gap seconds of silence.
type note struct {
	freq float64
	dur  float64
	gap  float64
}

// cue is a short melody rendered with an exponential decay per note.
type cue struct {
	notes  []note
	volume float64
	decay  float64
}

var (
	// Fired: rising fifth
	firedCue = cue{
		notes:  []note{{freq: 660, dur: 0.045}, {freq: 990, dur: 0.07}},
		volume: 0.5,
		decay:  40,
	}

	// Reset: falling pair with a gap, like backing out
	resetCue = cue{
		notes:  []note{{freq: 440, dur: 0.06, gap: 0.04}, {freq: 330, dur: 0.08}},
		volume: 0.6,
		decay:  30,
	}

	// Failed: one long low tone
	failedCue = cue{
		notes:  []note{{freq: 196, dur: 0.18}},
		volume: 0.6,
		decay:  12,
	}
)

const (
	pendingBase = 1000

	// semitones added per completed step; deep chords stop climbing
	pendingStep     = 2
	pendingMaxDepth = 6
)

// pendingCue is a single tick whose pitch climbs with the number of
// completed steps, so a long sequence can be followed by ear.
func pendingCue(depth int) cue {
	depth = min(max(depth, 1), pendingMaxDepth)
	freq := pendingBase * math.Pow(2, float64((depth-1)*pendingStep)/12)
	return cue{
		notes:  []note{{freq: freq, dur: 0.035}},
		volume: 0.5,
		decay:  60,
	}
}

// render synthesizes c as mono 16-bit samples.
func (c cue) render() []int16 {
	var out []int16
	for _, n := range c.notes {
		frames := int(sampleRate * n.dur)
		for i := range frames {
			t := float64(i) / sampleRate
			env := math.Exp(-t * c.decay)
			out = append(out, int16(math.Sin(2*math.Pi*n.freq*t)*math.MaxInt16*c.volume*env))
		}
		out = append(out, make([]int16, int(sampleRate*n.gap))...)
	}
	return out
}
