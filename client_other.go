//go:build !linux

package main

import (
	"fmt"
	"os"

	"chordd/display"
	"chordd/hotkey"
)

func openClient(name string) (display.Client, string, error) {
	if name != "" {
		fmt.Fprintf(os.Stderr, "Warning: -display %q ignored on this platform\n", name)
	}
	return hotkey.New(), "hotkey", nil
}
