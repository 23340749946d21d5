package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
)

// asciiTables switches table borders to plain ASCII when stdout is not a
// terminal.
var asciiTables bool

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if asciiTables {
		tw.SetStyle(table.StyleDefault)
	} else {
		tw.SetStyle(table.StyleRounded)
	}

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    72,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func renderApplications(apps []domain.Application) string {
	rows := make([][]string, 0, len(apps))
	for _, app := range apps {
		rows = append(rows, []string{
			app.ID,
			app.Title,
			orDash(app.PredictedPrimaryClassification),
			orDash(app.TechnologyArea),
			formatDate(app.FilingDate),
			formatDate(app.PublicationDeadline),
			app.UpdatedAt.Format(time.DateTime),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Primary CPC", "Technology", "Filed", "Publication", "Updated"},
		rows, nil,
	)
}

func renderView(view *domain.ApplicationView) string {
	app := view.Application
	var b strings.Builder
	b.WriteString(renderTable([]string{"Field", "Value"}, [][]string{
		{"ID", app.ID},
		{"Title", app.Title},
		{"State", string(view.State)},
		{"Primary CPC", orDash(app.PredictedPrimaryClassification)},
		{"Technology", orDash(app.TechnologyArea)},
		{"Filed", formatDate(app.FilingDate)},
		{"Publication deadline", formatDate(app.PublicationDeadline)},
		{"Provisional", yesNo(app.IsProvisional)},
		{"Archived", yesNo(app.Archived)},
		{"Files", fmt.Sprintf("%d", len(app.FileReferences))},
	}, nil))

	if len(view.Pods) > 0 {
		rows := make([][]string, 0, len(view.Pods))
		for _, pod := range view.Pods {
			rows = append(rows, []string{
				strconv.Itoa(pod.DisplayOrder),
				marker(pod.IsPrimary),
				pod.Text,
				yesNo(pod.SuggestedBySystem),
			})
		}
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"#", "Primary", "Point of distinction", "Suggested"}, rows,
			[]columnAlignment{alignRight}))
	}
	return b.String()
}

func renderUpload(result *ports.UploadResult) string {
	rows := make([][]string, 0, len(result.Documents))
	for _, doc := range result.Documents {
		rows = append(rows, []string{
			doc.SourceFilename,
			orDash(doc.MediaType),
			fmt.Sprintf("%d", doc.ByteLength),
			fmt.Sprintf("%d", doc.TextLength),
		})
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Application %s (%s)\n", result.Application.ID, result.Application.Title)
	b.WriteString(renderTable([]string{"File", "Type", "Bytes", "Text chars"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
	fmt.Fprintf(&b, "\n%d characters extracted from %d files\n", result.Corpus.TotalTextLength, result.Corpus.FileCount)
	return b.String()
}

func renderClassification(result *domain.ClassificationResult) string {
	rows := make([][]string, 0, len(result.SecondaryClassifications)+1)
	for _, p := range result.Predictions() {
		rows = append(rows, []string{p.Code, orDash(p.Class), fmt.Sprintf("%.2f", p.Confidence), marker(p.IsPrimary)})
	}
	var b strings.Builder
	if result.GeneratedTitle != "" {
		fmt.Fprintf(&b, "Title: %s\n", result.GeneratedTitle)
	}
	fmt.Fprintf(&b, "Technology area: %s\n", result.TechnologyArea)
	b.WriteString(renderTable([]string{"CPC", "Class", "Confidence", "Primary"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight}))

	pods := make([][]string, 0, len(result.CandidatePods))
	for i, pod := range result.CandidatePods {
		pods = append(pods, []string{fmt.Sprintf("%d", i+1), marker(pod.IsPrimary), pod.Text, pod.Rationale})
	}
	b.WriteString("\n")
	b.WriteString(renderTable([]string{"#", "Primary", "Candidate", "Rationale"}, pods, []columnAlignment{alignRight}))
	return b.String()
}

func renderEvent(event domain.ApplicationCommitted) string {
	return fmt.Sprintf("%s committed %s %q primary=%s pods=%d",
		event.CommittedAt.Format(time.RFC3339), event.ApplicationID, event.Title, event.PrimaryClassification, event.PodCount)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func marker(v bool) string {
	if v {
		return "*"
	}
	return ""
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
