// Package main is the entry point for lyricsctl, the terminal client for the
// lyrics backend.
//
// Build:
//
//	go build -o build/lyricsctl ./cmd/lyricsctl
package main

import "github.com/tejashwikalptaru/beatstage/internal/cli"

func main() {
	cli.Execute()
}
