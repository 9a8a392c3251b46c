// Package export renders link decisions as spreadsheet and PDF reports.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

const (
	summarySheet = "summary"
	linksSheet   = "links"
)

var linkColumns = []string{
	"Extraction", "Strategy", "Outcome", "Goal Total", "Matched Total",
	"Candidates", "Orders", "Lines", "Duration (ms)", "Dry Run", "Linked At",
}

// BuildLinksPDF renders a one-table PDF report of link decisions.
func BuildLinksPDF(links []*storage.LinkRecord, stats *storage.Stats) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Invoice Match Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	for _, row := range summaryRows(stats) {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %v", row.label, row.value))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	widths := []float64{62, 24, 22, 24, 26, 20, 22, 22, 20, 14, 0}
	pdf.SetFont("Arial", "B", 8)
	for i, col := range linkColumns[:len(linkColumns)-1] {
		pdf.CellFormat(widths[i], 6, col, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, link := range links {
		pdf.CellFormat(widths[0], 6, link.ExtractionID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, link.Strategy, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 6, link.Outcome, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 6, link.GoalTotal.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, link.MatchedTotal.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 6, strconv.Itoa(link.CandidateCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[6], 6, strconv.Itoa(len(link.OrderIDs)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[7], 6, strconv.Itoa(len(link.LineIDs)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[8], 6, strconv.FormatInt(link.DurationMs, 10), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[9], 6, yesNo(link.DryRun), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildLinksXLSX renders a workbook with a summary sheet and a links sheet.
func BuildLinksXLSX(links []*storage.LinkRecord, stats *storage.Stats) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(linksSheet); err != nil {
		return nil, err
	}

	w := &cellWriter{f: f}
	w.set(summarySheet, "A1", "Invoice Match Report")
	w.set(summarySheet, "A2", "Generated")
	w.set(summarySheet, "B2", time.Now().UTC().Format(time.RFC3339))
	for i, row := range summaryRows(stats) {
		r := i + 4
		w.set(summarySheet, fmt.Sprintf("A%d", r), row.label)
		w.set(summarySheet, fmt.Sprintf("B%d", r), row.value)
	}

	for i, col := range linkColumns {
		w.setAt(linksSheet, i+1, 1, col)
	}
	for i, link := range links {
		values := []interface{}{
			link.ExtractionID,
			link.Strategy,
			link.Outcome,
			link.GoalTotal.InexactFloat64(),
			link.MatchedTotal.InexactFloat64(),
			link.CandidateCount,
			joinIDs(link.OrderIDs),
			joinIDs(link.LineIDs),
			link.DurationMs,
			yesNo(link.DryRun),
			link.LinkedAt.UTC().Format(time.RFC3339),
		}
		for col, v := range values {
			w.setAt(linksSheet, col+1, i+2, v)
		}
	}
	if w.err != nil {
		return nil, fmt.Errorf("failed to write cells: %w", w.err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type summaryRow struct {
	label string
	value interface{}
}

func summaryRows(stats *storage.Stats) []summaryRow {
	if stats == nil {
		return nil
	}
	rows := []summaryRow{
		{"Total Extractions", stats.TotalExtractions},
		{"Pending", stats.Pending},
		{"Linked", stats.Linked},
		{"Unlinked", stats.Unlinked},
		{"Total Links", stats.TotalLinks},
	}
	for _, k := range sortedKeys(stats.StrategyCounts) {
		rows = append(rows, summaryRow{"Strategy " + k, stats.StrategyCounts[k]})
	}
	for _, k := range sortedKeys(stats.OutcomeCounts) {
		rows = append(rows, summaryRow{"Outcome " + k, stats.OutcomeCounts[k]})
	}
	return rows
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// cellWriter sets cell values and keeps the first error.
type cellWriter struct {
	f   *excelize.File
	err error
}

func (w *cellWriter) set(sheet, cell string, value interface{}) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellValue(sheet, cell, value)
}

func (w *cellWriter) setAt(sheet string, col, row int, value interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.set(sheet, cell, value)
}
