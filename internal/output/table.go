// Package output renders c9install's terminal output: tables for the
// installed record, install history, sessions and package managers, and
// live progress while sessions run.
//
// Tables use plain ASCII layout. Status columns are colored with
// fatih/color, which disables itself when stdout is not a terminal or
// NO_COLOR is set.
package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/blackwell-systems/c9install/internal/installed"
	"github.com/blackwell-systems/c9install/internal/installer"
	"github.com/blackwell-systems/c9install/internal/registry"
	"github.com/blackwell-systems/c9install/internal/store"
)

// RenderRecordTable renders the installed record. last maps package names
// to their most recent run and may be nil.
func RenderRecordTable(rec installed.Record, last map[string]*store.Run) string {
	if len(rec) == 0 {
		return "No packages installed.\n"
	}

	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-28s %-8s %-16s\n", "Package", "Version", "Last Run"))
	sb.WriteString(strings.Repeat("─", 54))
	sb.WriteString("\n")

	for _, name := range names {
		lastRun := "unknown"
		if run, ok := last[name]; ok && run != nil {
			lastRun = formatRelativeTime(run.StartedAt)
		}
		sb.WriteString(fmt.Sprintf("%-28s %-8d %-16s\n", truncate(name, 28), rec[name], lastRun))
	}
	return sb.String()
}

// RenderHistoryTable renders runs in the order given.
func RenderHistoryTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No install history.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-10s %-24s %-7s %-9s %-16s %-9s\n",
		"Run", "Package", "Version", "Status", "Started", "Duration"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, run := range runs {
		// Pad before coloring so escape codes do not break alignment.
		status := colorStatus(run.Status, fmt.Sprintf("%-9s", run.Status))
		sb.WriteString(fmt.Sprintf("%-10s %-24s %-7d %s %-16s %-9s\n",
			shortID(run.RunID),
			truncate(run.Package, 24),
			run.Version,
			status,
			formatRelativeTime(run.StartedAt),
			formatDuration(run.Duration()),
		))
		if run.Error != "" {
			sb.WriteString("           " + truncate(run.Error, 69) + "\n")
		}
	}
	return sb.String()
}

// RenderSessionTable renders sessions with their state and selection.
func RenderSessionTable(sessions []*installer.Session) string {
	if len(sessions) == 0 {
		return "Nothing to install.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-28s %-8s %-22s %-6s %s\n", "Package", "Version", "State", "Tasks", "Selection"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, s := range sessions {
		pkg := s.Package()
		sb.WriteString(fmt.Sprintf("%-28s %-8d %-22s %-6d %s\n",
			truncate(pkg.Name, 28),
			pkg.Version,
			s.State(),
			len(s.Tasks()),
			installer.PackageCheckState(s),
		))
		for _, t := range s.Tasks() {
			mark := "[x]"
			switch {
			case !t.Optional:
				mark = "[*]"
			case t.Checked == installer.Unchecked:
				mark = "[ ]"
			}
			line := fmt.Sprintf("  %s %s (%s)", mark, t.Name, t.Manager)
			if t.Description != "" {
				line += " - " + t.Description
			}
			sb.WriteString(line + "\n")
		}
	}
	return sb.String()
}

// RenderManagerTable renders registered package managers and their aliases.
func RenderManagerTable(entries []registry.Entry) string {
	if len(entries) == 0 {
		return "No package managers registered.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-12s %s\n", "Manager", "Aliases"))
	sb.WriteString(strings.Repeat("─", 40))
	sb.WriteString("\n")
	for _, e := range entries {
		aliases := strings.Join(e.Aliases, ", ")
		if aliases == "" {
			aliases = "-"
		}
		sb.WriteString(fmt.Sprintf("%-12s %s\n", e.Name, aliases))
	}
	return sb.String()
}

func colorStatus(status, text string) string {
	switch status {
	case store.StatusStopped:
		return color.GreenString("%s", text)
	case store.StatusFailed:
		return color.RedString("%s", text)
	case store.StatusAborted, store.StatusRunning:
		return color.YellowString("%s", text)
	default:
		return text
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Second).String()
}

// formatRelativeTime formats a timestamp relative to now.
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
