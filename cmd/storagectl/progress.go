package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// newMigrateProgress returns a ProgressFunc that renders a width-aware bar
// when stdout is a terminal (sized via term.GetSize, the same call
// beads/internal/coop/attach.go uses to fit its pty to the attached
// terminal) and falls back to plain "migrate: NN%" lines when it isn't, so piping
// `storagectl migrate` output to a file or log collector doesn't fill it
// with carriage-return junk.
func newMigrateProgress(quiet bool) func(percent int) {
	if quiet {
		return func(int) {}
	}

	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return func(percent int) {
			fmt.Printf("migrate: %d%%\n", percent)
		}
	}

	return func(percent int) {
		width, _, err := term.GetSize(fd)
		if err != nil || width <= 0 {
			width = 80
		}

		label := fmt.Sprintf(" %3d%%", percent)
		barWidth := width - len(label) - 2
		if barWidth < 1 {
			fmt.Print("\r" + label)
			return
		}

		filled := barWidth * percent / 100
		if filled > barWidth {
			filled = barWidth
		}
		bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled) + "]"
		fmt.Print("\r" + bar + label)
	}
}
