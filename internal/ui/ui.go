// Package ui renders schedules and execution history for the terminal with
// [lipgloss] styles.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// StatusBadge renders a run status in its palette color.
func StatusBadge(status models.RunStatus) string {
	switch status {
	case models.StatusSuccess:
		return styles.ok.Render(string(status))
	case models.StatusFailed:
		return styles.err.Render(string(status))
	case models.StatusRunning:
		return styles.warn.Render(string(status))
	case models.StatusSkipped:
		return styles.help.Render(string(status))
	default:
		return styles.help.Render("never run")
	}
}

// RenderScheduleList formats schedules as a compact list for `schedule list`.
func RenderScheduleList(schedules []*models.Schedule) string {
	if len(schedules) == 0 {
		return styles.help.Render("No schedules yet. Create one with `shuffify schedule create`.") + "\n"
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Schedules (%d)", len(schedules))))
	b.WriteString("\n")

	for _, schedule := range schedules {
		state := styles.ok.Render("enabled")
		if !schedule.Enabled() {
			state = styles.help.Render("disabled")
		}

		b.WriteString(fmt.Sprintf("%s  %s  %s\n", schedule.ID(), state, schedule.JobType()))
		b.WriteString(fmt.Sprintf("  target: %s\n", targetLabel(schedule)))
		b.WriteString(fmt.Sprintf("  trigger: %s %q\n", schedule.TriggerType(), schedule.TriggerValue()))
		b.WriteString(fmt.Sprintf("  last run: %s\n", lastRunLabel(schedule)))
	}

	return b.String()
}

// RenderSchedule formats one schedule in full for `schedule show`.
func RenderSchedule(schedule *models.Schedule) string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Schedule " + schedule.ID()))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Job type: %s\n", schedule.JobType()))
	b.WriteString(fmt.Sprintf("Target: %s\n", targetLabel(schedule)))
	if sources := schedule.SourcePlaylistIDs(); len(sources) > 0 {
		b.WriteString(fmt.Sprintf("Sources: %s\n", strings.Join(sources, ", ")))
	}
	if schedule.AlgorithmName() != "" {
		b.WriteString(fmt.Sprintf("Algorithm: %s\n", schedule.AlgorithmName()))
		if params := schedule.AlgorithmParams(); len(params) > 0 {
			b.WriteString(fmt.Sprintf("Params: %v\n", params))
		}
	}
	b.WriteString(fmt.Sprintf("Trigger: %s %q\n", schedule.TriggerType(), schedule.TriggerValue()))
	b.WriteString(fmt.Sprintf("Enabled: %v\n", schedule.Enabled()))
	b.WriteString(fmt.Sprintf("Last run: %s", lastRunLabel(schedule)))
	if schedule.LastStatus() != "" {
		b.WriteString("  " + StatusBadge(schedule.LastStatus()))
	}
	b.WriteString("\n")
	if schedule.LastError() != "" {
		b.WriteString(styles.err.Render("Last error: ") + schedule.LastError() + "\n")
	}
	b.WriteString(styles.help.Render(fmt.Sprintf("Created %s", schedule.CreatedAt().Format(time.RFC1123))))
	b.WriteString("\n")

	return b.String()
}

// RenderHistory formats recent executions for `schedule history`.
func RenderHistory(executions []*models.JobExecution) string {
	if len(executions) == 0 {
		return styles.help.Render("No executions recorded.") + "\n"
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Executions (%d)", len(executions))))
	b.WriteString("\n")

	for _, execution := range executions {
		b.WriteString(fmt.Sprintf("%s  %s  started %s",
			execution.ID(), StatusBadge(execution.Status()),
			execution.StartedAt().Format(time.RFC3339)))
		if completed := execution.CompletedAt(); completed != nil {
			b.WriteString(fmt.Sprintf("  took %s", completed.Sub(execution.StartedAt()).Round(time.Millisecond)))
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  added %d of %d tracks\n", execution.TracksAdded(), execution.TracksTotal()))
		if execution.ErrorMessage() != "" {
			b.WriteString("  " + styles.err.Render(execution.ErrorMessage()) + "\n")
		}
	}

	return b.String()
}

func targetLabel(schedule *models.Schedule) string {
	if name := schedule.TargetPlaylistName(); name != "" {
		return fmt.Sprintf("%s (%s)", name, schedule.TargetPlaylistID())
	}
	return schedule.TargetPlaylistID()
}

func lastRunLabel(schedule *models.Schedule) string {
	if at := schedule.LastRunAt(); at != nil {
		return at.Format(time.RFC1123)
	}
	return "never"
}
