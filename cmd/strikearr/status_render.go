package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"strikearr/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

// printer writes status sections, colouring them only on a terminal.
type printer struct {
	out      io.Writer
	colorize bool
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, colorize: shouldColorize(out)}
}

func (p *printer) section(title string) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if p.colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	fmt.Fprintln(p.out, line)
	fmt.Fprintln(p.out, rule)
}

func (p *printer) line(label string, kind statusKind, detail string) {
	fmt.Fprintln(p.out, renderStatusLine(label, kind, detail, p.colorize))
}

func (p *printer) blank() {
	fmt.Fprintln(p.out)
}

func renderStatusLine(label string, kind statusKind, detail string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if detail != "" {
		statusText += " " + detail
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// instanceKind grades an instance loop for the status listing.
func instanceKind(inst api.InstanceStatus) statusKind {
	switch {
	case inst.ConsecutiveFailures > 0:
		return statusError
	case inst.Failed > 0:
		return statusWarn
	case inst.State == "stopped":
		return statusInfo
	default:
		return statusOK
	}
}

// formatTimestamp renders an API timestamp in local time, or "-" when unset.
func formatTimestamp(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatAge renders how long ago an API timestamp was, relative to now.
func formatAge(value string, now time.Time) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < 0:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
