//go:build windows

package beep

// No audio playback on Windows - cues disabled.

func Init()       {}
func Pending(int) {}
func Fired()      {}
func Reset()      {}
func Failed()     {}
