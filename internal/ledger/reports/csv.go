package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const csvBufferSize = 32 * 1024

var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders a monetary value with thousands separators for the
// exported file, e.g. 1,234,567.89.
func formatAmount(v decimal.Decimal) string {
	return amountPrinter.Sprintf("%.2f", v.InexactFloat64())
}

// WriteTrialBalanceCSV streams the trial balance as CSV with a metadata
// comment header.
func WriteTrialBalanceCSV(w io.Writer, tb TrialBalance) error {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true

	meta := []string{
		"# Report: Trial Balance",
		fmt.Sprintf("# Outlet: %d | Period: %s to %s | Balanced: %t",
			tb.OutletID, tb.From.Format("2006-01-02"), tb.To.Format("2006-01-02"), tb.IsBalanced),
	}
	for _, line := range meta {
		if !strings.HasSuffix(line, "\r\n") {
			line += "\r\n"
		}
		if _, err := buf.WriteString(line); err != nil {
			return err
		}
	}

	if err := writer.Write([]string{"Code", "Name", "Type", "Opening", "Debit", "Credit", "Closing"}); err != nil {
		return err
	}
	for _, row := range tb.Rows {
		record := []string{
			row.Code,
			row.Name,
			row.Type,
			formatAmount(row.Opening),
			formatAmount(row.Debit),
			formatAmount(row.Credit),
			formatAmount(row.Closing),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	totals := []string{
		"", "Totals", "",
		formatAmount(tb.TotalOpening),
		formatAmount(tb.TotalDebit),
		formatAmount(tb.TotalCredit),
		formatAmount(tb.TotalClosing),
	}
	if err := writer.Write(totals); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}
