//go:build linux

package beep

import (
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// Rendered once; pending ticks depend on depth and are rendered per call.
var (
	firedSamples  = stereo(firedCue.render())
	resetSamples  = stereo(resetCue.render())
	failedSamples = stereo(failedCue.render())
)

// stereo duplicates each mono sample into an interleaved pair.
func stereo(mono []int16) []int16 {
	out := make([]int16, 0, len(mono)*2)
	for _, s := range mono {
		out = append(out, s, s)
	}
	return out
}

// play streams samples to the pulse server. Each cue gets its own
// connection so a missing server costs nothing until a cue is played.
func play(samples []int16) {
	if len(samples) == 0 {
		return
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName("chordd"))
	if err != nil {
		return
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName("chord cue"),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
}

func Init() {}

func Pending(depth int) {
	if disabled {
		return
	}
	go play(stereo(pendingCue(depth).render()))
}

func Fired() {
	if disabled {
		return
	}
	go play(firedSamples)
}

func Reset() {
	if disabled {
		return
	}
	go play(resetSamples)
}

func Failed() {
	if disabled {
		return
	}
	go play(failedSamples)
}
