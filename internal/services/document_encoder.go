package services

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"html/template"
	"strconv"

	"github.com/triptracker/backend/internal/config"
)

// CSVHTMLEncoder is the default DocumentEncoder: CSV for the spreadsheet
// and a self-contained printable HTML document for attachments, one page
// per attachment with the entry header above the image.
type CSVHTMLEncoder struct {
	exportCfg *config.ExportConfig
}

func NewCSVHTMLEncoder(exportCfg *config.ExportConfig) *CSVHTMLEncoder {
	return &CSVHTMLEncoder{exportCfg: exportCfg}
}

func (e *CSVHTMLEncoder) EncodeSpreadsheet(projection SpreadsheetProjection) ([]byte, string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{"Date", "Details", "Category", "Mode", "Cash In", "Cash Out"},
	}
	for _, row := range projection.Rows {
		records = append(records, []string{
			row.Date, row.Details, row.Category, row.Mode,
			formatCell(row.CashIn), formatCell(row.CashOut),
		})
	}
	records = append(records,
		[]string{"", "", "", "", "", ""},
		[]string{"", "", "", "Total", formatAmount(projection.Totals.CashIn), formatAmount(projection.Totals.CashOut)},
		[]string{"", "", "", "Balance", formatAmount(projection.Totals.Balance), ""},
	)

	if err := w.WriteAll(records); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), ".csv", nil
}

var attachmentDocTmpl = template.Must(template.New("attachments").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.LedgerName}} - Attachments</title>
<style>
@page { size: {{.PageWidth}}pt {{.PageHeight}}pt; margin: 0; }
body { font-family: Helvetica, Arial, sans-serif; margin: 0; }
.page { width: {{.PageWidth}}pt; height: {{.PageHeight}}pt; page-break-after: always; position: relative; box-sizing: border-box; padding: {{.PageMargin}}pt; }
.header p { margin: 2pt 0; font-size: 10pt; }
.header .details { font-size: 13pt; font-weight: bold; }
img { position: absolute; }
.error { position: absolute; left: {{.PageMargin}}pt; right: {{.PageMargin}}pt; top: 40%; text-align: center; color: #999; font-size: 12pt; border: 1pt dashed #ccc; padding: 24pt; }
</style>
</head>
<body>
{{range .Pages}}<div class="page">
<div class="header">
<p class="details">{{.Details}}</p>
<p>{{.Date}} {{.Time}}</p>
<p>{{.Kind}} · {{.Amount}}{{if .Category}} · {{.Category}}{{end}}</p>
</div>
{{if .Failed}}<div class="error">Attachment could not be loaded</div>
{{else}}<img src="{{.Src}}" style="left: {{.X}}pt; top: {{.Y}}pt; width: {{.Width}}pt; height: {{.Height}}pt;">
{{end}}</div>
{{end}}</body>
</html>
`))

type attachmentDocPage struct {
	Details  string
	Date     string
	Time     string
	Kind     string
	Amount   string
	Category string
	Failed   bool
	Src      template.URL
	X        string
	Y        string
	Width    string
	Height   string
}

func (e *CSVHTMLEncoder) EncodeAttachmentDocument(ledgerName string, pages []RenderedPage) ([]byte, string, error) {
	docPages := make([]attachmentDocPage, 0, len(pages))
	for _, page := range pages {
		doc := attachmentDocPage{
			Details:  page.Details,
			Date:     page.Date,
			Time:     page.Time,
			Kind:     page.Kind,
			Amount:   formatAmount(page.Amount),
			Category: page.Category,
			Failed:   page.Failed,
		}
		if !page.Failed {
			doc.Src = template.URL(fmt.Sprintf("data:%s;base64,%s", page.MimeType, base64.StdEncoding.EncodeToString(page.Image)))
			doc.X = formatPt(page.Placement.X)
			doc.Y = formatPt(page.Placement.Y)
			doc.Width = formatPt(page.Placement.Width)
			doc.Height = formatPt(page.Placement.Height)
		}
		docPages = append(docPages, doc)
	}

	var buf bytes.Buffer
	err := attachmentDocTmpl.Execute(&buf, map[string]interface{}{
		"LedgerName": ledgerName,
		"PageWidth":  e.exportCfg.PageWidth,
		"PageHeight": e.exportCfg.PageHeight,
		"PageMargin": e.exportCfg.PageMargin,
		"Pages":      docPages,
	})
	if err != nil {
		return nil, "", err
	}

	return buf.Bytes(), ".html", nil
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return formatAmount(*v)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatPt(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
