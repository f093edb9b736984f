package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"                __ _               ", "#818cf8"},
	{"  _____   __   / _| | _____      __", "#a78bfa"},
	{" / __\\ \\ / /  | |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
	{"| (__ \\ V /   |  _| | (_) \\ V  V / ", "#e879f9"},
	{" \\___| \\_/    |_| |_|\\___/ \\_/\\_/  ", "#f472b6"},
}

// PrintBanner writes the cvflow banner and version to w. Colours degrade
// with the terminal profile of w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
