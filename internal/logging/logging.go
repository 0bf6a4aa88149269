package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type Options struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is text or json. Defaults to text.
	Format       string
	Prefix       string
	ReportCaller bool
}

// New builds a slog.Logger backed by a charm log handler writing to w.
func New(w io.Writer, o Options) *slog.Logger {
	formatter := log.TextFormatter
	if strings.EqualFold(o.Format, "json") {
		formatter = log.JSONFormatter
	}
	h := log.NewWithOptions(w, log.Options{
		ReportCaller:    o.ReportCaller,
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           ParseLevel(o.Level),
		Prefix:          o.Prefix,
		Formatter:       formatter,
	})
	h.SetStyles(styles())
	return slog.New(h)
}

// Setup builds a stdout logger and installs it as the slog default.
func Setup(o Options) *slog.Logger {
	l := New(os.Stdout, o)
	slog.SetDefault(l)
	return l
}

func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	level := func(label, color string) lipgloss.Style {
		return lipgloss.NewStyle().
			SetString(label).
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: color, Dark: color})
	}
	s.Levels[log.DebugLevel] = level("DEBUG", "#7E57C2")
	s.Levels[log.InfoLevel] = level("INFO", "#04B575")
	s.Levels[log.WarnLevel] = level("WARN", "#EE6FF8")
	s.Levels[log.ErrorLevel] = level("ERROR", "#FF6B6B")
	s.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	s.Values["err"] = lipgloss.NewStyle().Bold(true)
	return s
}
