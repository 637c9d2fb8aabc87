//go:build linux

package main

import (
	"chordd/display"
	"chordd/display/x11"
)

func openClient(name string) (display.Client, string, error) {
	c, err := x11.Connect(name)
	if err != nil {
		return nil, "", err
	}
	return c, "x11", nil
}
