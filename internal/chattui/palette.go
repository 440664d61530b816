package chattui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/chatsync/internal/models"
)

// palette holds the ANSI-256 color codes of one theme.
type palette struct {
	Name      string
	Text      string
	TextMuted string
	Border    string
	Focus     string
	Own       string
	Other     string
	AI        string
	Highlight string
	Success   string
	Warning   string
	Error     string
	Info      string
}

var paletteOrder = []string{"default", "dark", "light"}

var palettes = map[string]palette{
	"default": {
		Name:      "default",
		Text:      "252",
		TextMuted: "245",
		Border:    "240",
		Focus:     "75",
		Own:       "81",
		Other:     "147",
		AI:        "183",
		Highlight: "220",
		Success:   "41",
		Warning:   "214",
		Error:     "203",
		Info:      "111",
	},
	"dark": {
		Name:      "dark",
		Text:      "255",
		TextMuted: "243",
		Border:    "236",
		Focus:     "39",
		Own:       "87",
		Other:     "189",
		AI:        "177",
		Highlight: "226",
		Success:   "47",
		Warning:   "208",
		Error:     "196",
		Info:      "117",
	},
	"light": {
		Name:      "light",
		Text:      "235",
		TextMuted: "242",
		Border:    "250",
		Focus:     "25",
		Own:       "24",
		Other:     "60",
		AI:        "91",
		Highlight: "130",
		Success:   "28",
		Warning:   "130",
		Error:     "160",
		Info:      "31",
	},
}

func resolvePalette(name string) palette {
	if p, ok := palettes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return palettes["default"]
}

func cyclePalette(current string, delta int) palette {
	idx := 0
	for i, name := range paletteOrder {
		if name == current {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(paletteOrder)) % len(paletteOrder)
	return palettes[paletteOrder[idx]]
}

func (p palette) fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func (p palette) muted() lipgloss.Style {
	return p.fg(p.TextMuted)
}

func (p palette) severity(s models.Severity) lipgloss.Style {
	switch s {
	case models.SeveritySuccess:
		return p.fg(p.Success).Bold(true)
	case models.SeverityWarning:
		return p.fg(p.Warning).Bold(true)
	case models.SeverityError:
		return p.fg(p.Error).Bold(true)
	default:
		return p.fg(p.Info)
	}
}
