package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harborline/tablepos/internal/core"
	"github.com/jung-kurt/gofpdf"
)

// salesReport is the assembled content of one daily report
type salesReport struct {
	VenueName   string
	DateLabel   string
	Timezone    string
	StartAt     time.Time
	EndAt       time.Time
	GeneratedAt time.Time
	Revenue     float64
	Discounts   float64
	CashTotal   float64
	CardTotal   float64
	TicketCount int
	Tickets     []*core.Ticket
}

// DailySalesReportPDF renders one calendar day of settled tickets as a PDF.
// An empty date means today in the venue timezone.
func (s *ReportService) DailySalesReportPDF(ctx context.Context, date string) ([]byte, string, error) {
	loc, err := time.LoadLocation(s.timezoneName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load timezone: %w", err)
	}

	targetDate, err := resolveReportDate(date, loc)
	if err != nil {
		return nil, "", err
	}

	start := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)

	tickets, err := s.reportRepo.PaidBetween(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch report tickets: %w", err)
	}

	report := &salesReport{
		VenueName:   s.venueName,
		DateLabel:   targetDate.Format("2006-01-02"),
		Timezone:    s.timezoneName,
		StartAt:     start,
		EndAt:       end,
		GeneratedAt: time.Now().In(loc),
		TicketCount: len(tickets),
		Tickets:     tickets,
	}
	for _, ticket := range tickets {
		report.Revenue += ticket.Total - ticket.Discount
		report.Discounts += ticket.Discount
		report.CashTotal += ticket.CashAmount
		report.CardTotal += ticket.CardAmount
	}

	pdfBytes, err := renderSalesReportPDF(report, loc)
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("daily-sales-%s.pdf", targetDate.Format("2006-01-02"))
	return pdfBytes, filename, nil
}

func resolveReportDate(dateString string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(dateString) == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}

	parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(dateString), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date format, expected YYYY-MM-DD", core.ErrValidation)
	}

	return parsed, nil
}

func renderSalesReportPDF(report *salesReport, loc *time.Location) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 8, report.VenueName, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 7, "Daily Sales Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s (%s)", report.DateLabel, report.Timezone), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Range: %s to %s", formatReportDateTime(report.StartAt, loc), formatReportDateTime(report.EndAt, loc)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated At: %s", formatReportDateTime(report.GeneratedAt, loc)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Summary", "1", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(95, 7, fmt.Sprintf("Revenue: %s", formatAmount(report.Revenue)), "1", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Tickets: %d", report.TicketCount), "1", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Cash: %s", formatAmount(report.CashTotal)), "1", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Card: %s", formatAmount(report.CardTotal)), "1", 1, "L", false, 0, "")
	pdf.CellFormat(190, 7, fmt.Sprintf("Discounts Given: %s", formatAmount(report.Discounts)), "1", 1, "L", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Ticket-Level Detail", "", 1, "L", false, 0, "")

	if len(report.Tickets) == 0 {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, "No settled tickets found for this date.", "", 1, "L", false, 0, "")
	} else {
		for i, ticket := range report.Tickets {
			ensurePageSpace(pdf, 35)

			closedAt := ticket.CreatedAt
			if ticket.ClosedAt != nil {
				closedAt = *ticket.ClosedAt
			}

			pdf.SetFont("Arial", "B", 10)
			headerLine := fmt.Sprintf(
				"%d) %s | %s | %s",
				i+1,
				string(ticket.Kind),
				string(ticket.PaymentMethod),
				formatReportDateTime(closedAt, loc),
			)
			pdf.MultiCell(0, 6, headerLine, "", "L", false)

			pdf.SetFont("Arial", "", 10)
			pdf.MultiCell(0, 5, fmt.Sprintf("Total: %s | Discount: %s | Cash: %s | Card: %s",
				formatAmount(ticket.Total),
				formatAmount(ticket.Discount),
				formatAmount(ticket.CashAmount),
				formatAmount(ticket.CardAmount)), "", "L", false)

			if len(ticket.Lines) == 0 {
				pdf.MultiCell(0, 5, "- No lines found", "", "L", false)
			} else {
				for _, line := range ticket.Lines {
					itemLine := fmt.Sprintf(
						"- %dx %s @ %s = %s",
						line.Quantity,
						safeReportValue(line.ProductName),
						formatAmount(line.UnitPrice),
						formatAmount(line.EffectiveTotal()),
					)
					if line.Status == core.LineStatusComped {
						itemLine += " (comped)"
					}
					pdf.MultiCell(0, 5, itemLine, "", "L", false)
				}
			}

			pdf.CellFormat(0, 1, "", "B", 1, "L", false, 0, "")
			pdf.Ln(1)
		}
	}

	var buffer bytes.Buffer
	if err := pdf.Output(&buffer); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	return buffer.Bytes(), nil
}

func ensurePageSpace(pdf *gofpdf.Fpdf, minSpace float64) {
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottomMargin := pdf.GetMargins()
	usableBottom := pageHeight - bottomMargin
	if pdf.GetY()+minSpace > usableBottom {
		pdf.AddPage()
	}
}

func formatReportDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04")
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func safeReportValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
