package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/negotiate"
)

var (
	accent = lipgloss.Color("#22d3ee")
	muted  = lipgloss.Color("#6B7280")
	peer   = lipgloss.Color("#10B981")

	statusStyle  = lipgloss.NewStyle().Foreground(muted).Italic(true)
	peerStyle    = lipgloss.NewStyle().Foreground(peer).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	sessionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

func statusLine(format string, args ...any) string {
	return statusStyle.Render("* " + fmt.Sprintf(format, args...))
}

func peerLine(text string) string {
	return peerStyle.Render("<") + " " + text
}

// sessionBanner shows the session identifier and the command the other party
// runs to join it.
func sessionBanner(id, relay string) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("session "+id),
		"",
		"join with:",
		fmt.Sprintf("aero-webrtc-peer join %s --relay %s", id, relay),
	)
	return sessionStyle.Render(body)
}

// statsTable summarises what the negotiation engine did during the session.
func statsTable(eng *negotiate.Engine) string {
	st := eng.Stats()
	role := "impolite"
	if eng.Polite() {
		role = "polite"
	}
	if !eng.PoliteResolved() {
		role = "unresolved"
	}

	rows := [][]string{
		{"role", role},
		{"tie-breaker", strconv.FormatUint(eng.TieBreaker(), 10)},
		{"offers sent", strconv.FormatUint(st.OffersSent, 10)},
		{"answers sent", strconv.FormatUint(st.AnswersSent, 10)},
		{"offers ignored", strconv.FormatUint(st.IgnoredOffers, 10)},
		{"offers yielded", strconv.FormatUint(st.YieldedOffers, 10)},
		{"ice restarts", strconv.FormatUint(st.ICERestarts, 10)},
		{"errors", strconv.FormatUint(st.Errors, 10)},
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(accent)).
		Headers("negotiation", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		String()
}
