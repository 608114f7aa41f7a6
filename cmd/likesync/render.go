package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/likesync/internal/search"
	"github.com/pders01/likesync/internal/sync"
)

var (
	accentColor = lipgloss.Color("#4ECDC4")
	mutedColor  = lipgloss.Color("#95E1D3")
	warnColor   = lipgloss.Color("#FF6B6B")

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(18)
	valueStyle = lipgloss.NewStyle().Bold(true)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(warnColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 2)
)

func showBanner(w io.Writer) {
	title := lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("likesync")
	tagline := lipgloss.NewStyle().Foreground(mutedColor).Render("liked posts archiver " + Version)
	fmt.Fprintln(w, title+"  "+tagline)
}

func renderReport(r *sync.Report) string {
	row := func(label string, n int, warn bool) string {
		style := valueStyle
		if warn && n > 0 {
			style = warnStyle
		}
		return labelStyle.Render(label) + style.Render(fmt.Sprint(n))
	}

	rows := []string{
		row("Identifiers read", r.Read, false),
		row("Already archived", r.Rejected, false),
		row("Favorited", r.Favorited, false),
		row("Missing upstream", r.Missing(), false),
		row("Failed lookups", r.FailedBatches, true),
		"",
		row("Media downloaded", r.MediaDownloaded, false),
		row("Media skipped", r.MediaSkipped, false),
		row("Media failed", r.MediaFailed, true),
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderResult(r *search.Result) string {
	fav := r.Favorite
	header := lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render(fav.ID)
	if fav.ScreenName != "" {
		header += " " + lipgloss.NewStyle().Foreground(mutedColor).Render("@"+fav.ScreenName)
	}
	text := strings.Join(strings.Fields(fav.Text), " ")
	return header + "\n  " + text
}
