//go:build darwin

package beep

import (
	"encoding/binary"
	"sync"

	"github.com/gen2brain/malgo"
)

// player owns one mono playback device. A cue replaces whatever is still
// playing.
type player struct {
	ctl    sync.Mutex // device lifecycle
	mu     sync.Mutex // buf and pos, shared with the audio thread
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	buf    []byte
	pos    int
}

var (
	out     player
	outOnce sync.Once

	firedBytes  = pcm(firedCue.render())
	resetBytes  = pcm(resetCue.render())
	failedBytes = pcm(failedCue.render())
)

// pcm encodes samples as little-endian S16.
func pcm(samples []int16) []byte {
	b := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		b = binary.LittleEndian.AppendUint16(b, uint16(s))
	}
	return b
}

func (p *player) open() {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	p.ctx = ctx
	if err := p.initDevice(); err != nil {
		ctx.Uninit()
		p.ctx = nil
	}
}

func (p *player) initDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	dev, err := malgo.InitDevice(p.ctx.Context, cfg, malgo.DeviceCallbacks{Data: p.fill})
	if err != nil {
		return err
	}
	p.device = dev
	return nil
}

// fill runs on the audio thread.
func (p *player) fill(output, _ []byte, _ uint32) {
	p.mu.Lock()
	n := copy(output, p.buf[p.pos:])
	p.pos += n
	p.mu.Unlock()
	clear(output[n:])
}

func (p *player) play(b []byte) {
	outOnce.Do(p.open)
	if p.ctx == nil || len(b) == 0 {
		return
	}
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.mu.Lock()
	p.buf, p.pos = b, 0
	p.mu.Unlock()

	if p.device != nil && p.device.IsStarted() {
		return
	}
	if p.device != nil && p.device.Start() == nil {
		return
	}
	// the device goes stale across sleep and wake
	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	if p.initDevice() != nil || p.device.Start() != nil {
		p.mu.Lock()
		p.buf = nil
		p.mu.Unlock()
	}
}

func Init() { outOnce.Do(out.open) }

func Pending(depth int) {
	if disabled {
		return
	}
	out.play(pcm(pendingCue(depth).render()))
}

func Fired() {
	if disabled {
		return
	}
	out.play(firedBytes)
}

func Reset() {
	if disabled {
		return
	}
	out.play(resetBytes)
}

func Failed() {
	if disabled {
		return
	}
	out.play(failedBytes)
}
