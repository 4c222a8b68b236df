package demobank

import (
	"context"
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/go-pdf/fpdf"
)

// Statement renders the account's ledger, newest entry first, as a PDF.
func (s *serviceImpl) Statement(ctx context.Context, w io.Writer, acctID snowflake.ID) error {
	acct, err := s.repo.GetAccount(ctx, acctID)
	if err != nil {
		return err
	}
	entries, err := s.repo.ListEntries(ctx, acctID)
	if err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, "Account Statement")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Account %s (%s, %s)", acct.Number, acct.Type, acct.Status))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Balance: "+acct.Balance.StringFixed(2))
	pdf.Ln(10)

	widths := [4]float64{40, 35, 30, 85}
	headers := [4]string{"Date", "Type", "Amount", "Note"}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for _, e := range entries {
		pdf.CellFormat(widths[0], 6, e.Time.Format("2006-01-02 15:04"), "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[1], 6, string(e.Type), "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[2], 6, e.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, e.Note, "1", 0, "", false, 0, "")
		pdf.Ln(-1)
	}
	if err = pdf.Output(w); err != nil {
		s.log.Err(err).Str("method", "statement").Msg("error writing PDF")
		return err
	}
	return nil
}
