// Package report renders captured domain results into a paged PDF document.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/use-agent/pricelens/models"
)

// ErrNoResults is returned when asked to assemble an empty report.
var ErrNoResults = errors.New("report: no domain results to assemble")

// Page geometry in points (A4 portrait).
const (
	margin       = 24.0
	contentWidth = 547.0
	gridTop      = 118.0
	cellGap      = 12.0
	cellHeight   = 320.0
	captionH     = 14.0
	footerY      = 808.0
)

// panel is one cell of the screenshot grid.
type panel struct {
	caption string
	profile models.Profile
	framing models.Framing
}

var grid = []panel{
	{"Desktop", models.ProfileDesktop, models.FramingViewport},
	{"Desktop (full page)", models.ProfileDesktop, models.FramingFullPage},
	{"Mobile", models.ProfileMobile, models.FramingViewport},
	{"Mobile (full page)", models.ProfileMobile, models.FramingFullPage},
}

func init() {
	// Keep pdfcpu from creating a config directory under the user's home.
	model.ConfigPath = "disable"
}

// Assembler builds the report document. The zero value is ready to use.
type Assembler struct{}

// NewAssembler returns an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble renders one page per result, in order, and verifies that the
// produced document parses back with exactly len(results) pages.
func (a *Assembler) Assemble(results []models.DomainResult) ([]byte, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Pricing report", true)
	pdf.SetCreator("pricelens", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i := range results {
		r := &results[i]
		pdf.AddPage()
		drawHeader(pdf, tr, r)
		if r.Succeeded() {
			drawGrid(pdf, tr, i, r)
		} else {
			drawFailure(pdf, tr, r)
		}
		if !pdf.Ok() {
			return nil, fmt.Errorf("report: render %s: %w", r.Domain, pdf.Error())
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("report: write document: %w", err)
	}

	pages, err := PageCount(buf.Bytes())
	if err != nil {
		return nil, err
	}
	if pages != len(results) {
		return nil, fmt.Errorf("report: document has %d pages, expected %d", pages, len(results))
	}
	return buf.Bytes(), nil
}

// PageCount parses a PDF and returns its number of pages.
func PageCount(doc []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(doc), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("report: parse document: %w", err)
	}
	return n, nil
}

func drawHeader(pdf *fpdf.Fpdf, tr func(string) string, r *models.DomainResult) {
	pdf.SetTextColor(17, 24, 39)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(margin, 22)
	pdf.CellFormat(contentWidth, 22, tr(r.Domain), "", 1, "L", false, 0, "")

	pdf.SetTextColor(55, 65, 81)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(margin, 48)
	pdf.CellFormat(contentWidth, 14, tr("Timestamp: "+r.TimestampLocal), "", 1, "L", false, 0, "")
	pdf.SetXY(margin, 64)
	pdf.CellFormat(contentWidth, 14, tr("URL: "+clip(r.DisplayURL(), 110)), "", 1, "L", false, 0, "")

	status := "Status: " + r.Status
	if code := r.Code(); code != "" {
		status += " (" + code + ")"
	}
	pdf.SetXY(margin, 80)
	pdf.CellFormat(contentWidth, 14, tr(status), "", 1, "L", false, 0, "")
}

func drawFailure(pdf *fpdf.Fpdf, tr func(string) string, r *models.DomainResult) {
	code := r.Code()
	if code == "" {
		code = models.ErrCodeUnknown
	}
	pdf.SetTextColor(153, 27, 27)
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetXY(margin, gridTop)
	pdf.MultiCell(contentWidth, 14, tr("Pricing page not found or unavailable. Reason: "+code), "", "L", false)

	if msg := r.Message(); msg != "" {
		pdf.SetTextColor(75, 85, 99)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetXY(margin, 140)
		pdf.MultiCell(contentWidth, 12, tr(clip(msg, 600)), "", "L", false)
	}
}

// drawGrid lays the four screenshots out two by two, each scaled to fit
// its cell with the aspect ratio preserved.
func drawGrid(pdf *fpdf.Fpdf, tr func(string) string, index int, r *models.DomainResult) {
	cellW := (contentWidth - cellGap) / 2
	for n, p := range grid {
		x := margin + float64(n%2)*(cellW+cellGap)
		y := gridTop + float64(n/2)*(cellHeight+cellGap)

		pdf.SetTextColor(17, 24, 39)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetXY(x, y)
		pdf.CellFormat(cellW, captionH, tr(p.caption), "", 0, "L", false, 0, "")

		img := r.Screenshots.Get(p.profile, p.framing)
		if !decodable(img) {
			pdf.SetTextColor(107, 114, 128)
			pdf.SetFont("Helvetica", "", 9)
			pdf.SetXY(x, y+captionH+8)
			pdf.CellFormat(cellW, 12, "Screenshot unavailable", "", 0, "L", false, 0, "")
			continue
		}

		name := fmt.Sprintf("page%d-%s-%s", index, p.profile, p.framing)
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
		if info == nil || !pdf.Ok() {
			return
		}
		w, h := fit(info.Width(), info.Height(), cellW, cellHeight-captionH-4)
		pdf.ImageOptions(name, x, y+captionH+4, w, h, false, opts, 0, "")
	}

	pdf.SetTextColor(107, 114, 128)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(margin, footerY)
	pdf.CellFormat(contentWidth, 10, "HTTP fallback used: "+yesNo(r.HTTPFallbackUsed), "", 0, "L", false, 0, "")
}

// fit scales w×h down (never up) to fit inside maxW×maxH.
func fit(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	scale := maxW / w
	if s := maxH / h; s < scale {
		scale = s
	}
	if scale > 1 {
		scale = 1
	}
	return w * scale, h * scale
}

// decodable reports whether b is a PNG the renderer can embed. Broken images
// degrade to a placeholder instead of failing the whole document.
func decodable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(b))
	return err == nil && format == "png"
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
