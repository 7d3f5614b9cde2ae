package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"testudot/internal/monitor"
	"testudot/lib/tableutil"

	"github.com/jedib0t/go-pretty/v6/table"
)

func printReport(out io.Writer, report monitor.Report) {
	t := tableutil.NewTable(out)
	t.SetTitle(fmt.Sprintf("cycle %s (term %s)", report.ID, report.Term))
	t.AppendHeader(table.Row{"Course", "Status", "New", "Changed", "Removed", "Time", "Notes"})

	for _, o := range report.Outcomes {
		status := "ok"
		var notes []string
		if !o.Succeeded() {
			status = fmt.Sprintf("failed (%s)", o.Stage)
			notes = append(notes, o.Err.Error())
		}
		if o.Notified() {
			notes = append(notes, "subscribers notified")
		}
		for _, w := range o.Warnings {
			notes = append(notes, w.Error())
		}
		t.AppendRow(table.Row{
			o.Course,
			status,
			o.Summary.New,
			o.Summary.Changed,
			o.Summary.Removed,
			o.Duration.Round(time.Millisecond),
			strings.Join(notes, "\n"),
		})
	}
	if len(report.Outcomes) == 0 {
		t.AppendRow(table.Row{"no courses are tracked, add one with `testudot add`"})
	}
	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%d failed", len(report.Failed())),
		"", "", "",
		report.End.Sub(report.Start).Round(time.Millisecond),
		fmt.Sprintf("%d changes", report.TotalEvents()),
	})
	t.Render()
}

func logReport(report monitor.Report) {
	slog.Info(
		"cycle finished",
		"id", report.ID,
		"term", report.Term,
		"courses", len(report.Outcomes),
		"changes", report.TotalEvents(),
		"failed", len(report.Failed()),
		"duration", report.End.Sub(report.Start).Round(time.Millisecond),
	)
	for _, o := range report.Failed() {
		slog.Warn("course failed", "course", o.Course, "stage", o.Stage.String(), "err", o.Err)
	}
}
