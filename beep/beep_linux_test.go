//go:build linux

package beep

import "testing"

func TestStereoInterleaves(t *testing.T) {
	mono := firedCue.render()
	s := stereo(mono)
	if len(s) != len(mono)*2 {
		t.Fatalf("len = %d, want %d", len(s), len(mono)*2)
	}
	for i := 0; i < len(s); i += 2 {
		if s[i] != s[i+1] || s[i] != mono[i/2] {
			t.Fatalf("frame %d: %d/%d, want %d", i/2, s[i], s[i+1], mono[i/2])
		}
	}
}

func TestDisabledSkipsPlayback(t *testing.T) {
	Disable()
	t.Cleanup(func() { disabled = false })
	// returns before touching the sound server
	Pending(2)
	Fired()
	Reset()
	Failed()
}
