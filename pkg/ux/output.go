// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the socnet CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette.
var (
	ColorAccent  = lipgloss.Color("#2CD7C7")
	ColorPrimary = lipgloss.Color("#20B9B4")
	ColorBorder  = lipgloss.Color("#16858E")
	ColorSlate   = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1),
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes CLI output either styled for a terminal or as plain,
// line-oriented text for pipes and scripts.
type Printer struct {
	w     io.Writer
	plain bool
}

// NewPrinter returns a Printer that styles output only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, plain: !IsTerminal(w)}
}

// NewPlainPrinter returns a Printer that never styles output.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w, plain: true}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Plain reports whether styling is disabled.
func (p *Printer) Plain() bool { return p.plain }

// Writer returns the destination.
func (p *Printer) Writer() io.Writer { return p.w }

// Title prints a styled title. Plain mode prints nothing.
func (p *Printer) Title(text string) {
	if p.plain {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success message with a checkmark.
func (p *Printer) Success(text string) {
	if p.plain {
		fmt.Fprintf(p.w, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning message.
func (p *Printer) Warning(text string) {
	if p.plain {
		fmt.Fprintf(p.w, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error message.
func (p *Printer) Error(text string) {
	if p.plain {
		fmt.Fprintf(p.w, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Item prints one list entry with an optional muted annotation.
func (p *Printer) Item(text, note string) {
	switch {
	case p.plain && note != "":
		fmt.Fprintf(p.w, "%s\t%s\n", text, note)
	case p.plain:
		fmt.Fprintln(p.w, text)
	case note != "":
		fmt.Fprintf(p.w, "%s %s %s\n", IconBullet.Render(), text, Styles.Muted.Render("("+note+")"))
	default:
		fmt.Fprintf(p.w, "%s %s\n", IconBullet.Render(), text)
	}
}

// Muted prints secondary text. Plain mode prints nothing.
func (p *Printer) Muted(text string) {
	if p.plain {
		return
	}
	fmt.Fprintln(p.w, Styles.Muted.Render(text))
}

// Chain prints names joined by arrows, e.g. a path through the network.
func (p *Printer) Chain(names []string) {
	if p.plain {
		fmt.Fprintln(p.w, strings.Join(names, " -> "))
		return
	}
	styled := make([]string, len(names))
	for i, n := range names {
		styled[i] = Styles.Highlight.Render(n)
	}
	fmt.Fprintln(p.w, strings.Join(styled, " "+IconArrow.Render()+" "))
}

// Box prints content in a rounded box under a title.
func (p *Printer) Box(title, content string) {
	if p.plain {
		fmt.Fprintf(p.w, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, Styles.Box.Width(60).Render(Styles.Title.Render(title)+"\n"+content))
}
