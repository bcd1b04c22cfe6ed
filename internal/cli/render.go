package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/hivefi/ledger/internal/core/domain"
	"github.com/hivefi/ledger/internal/dto"
	"github.com/hivefi/ledger/internal/utils"
)

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

// cell keeps free text on one table row: separators are escaped and line
// breaks become spaces.
func cell(s string) string {
	return cellEscaper.Replace(s)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	if h == "" {
		return "-"
	}
	return h
}

func renderExpenses(w io.Writer, expenses []domain.Expense) {
	fmt.Fprintf(w, "# Expenses (%d)\n\n", len(expenses))
	if len(expenses) == 0 {
		fmt.Fprintln(w, "_No expenses recorded._")
		return
	}
	fmt.Fprintln(w, "| Date | Category | Amount | Description | ID |")
	fmt.Fprintln(w, "|------|----------|-------:|-------------|----|")
	for _, e := range expenses {
		fmt.Fprintf(w, "| %s | %s | %s | %s | `%s` |\n",
			e.Date, cell(e.Category), utils.FormatMoney(e.Amount, e.CurrencyCode), cell(e.Description), e.ExpenseID)
	}
}

func renderTransactions(w io.Writer, entries []domain.Transaction) {
	fmt.Fprintf(w, "# Audit log (%d entries)\n\n", len(entries))
	if len(entries) == 0 {
		fmt.Fprintln(w, "_The chain is empty._")
		return
	}
	fmt.Fprintln(w, "| # | Timestamp | Action | Expense | Amount | Prev | Hash |")
	fmt.Fprintln(w, "|--:|-----------|--------|---------|-------:|------|------|")
	for _, t := range entries {
		fmt.Fprintf(w, "| %d | %s | %s | `%s` | %s %s | `%s` | `%s` |\n",
			t.Sequence, t.Timestamp.Format(domain.TimestampLayout), t.Action, t.ExpenseID,
			t.Snapshot.Amount.String(), t.Snapshot.CurrencyCode, shortHash(t.PrevHash), shortHash(t.TxHash))
	}
}

func renderVerify(w io.Writer, r domain.VerifyResult) {
	if r.Valid {
		fmt.Fprintf(w, "**Chain valid.** %d entries, head `%s`.\n", r.Length, shortHash(r.HeadHash))
		return
	}
	fmt.Fprintf(w, "**Chain broken** at index %d of %d: %s\n", r.FirstBadIndex, r.Length, r.Reason)
}

func renderUnconverted(w io.Writer, rows []dto.CategoryCurrencyBreakdownResponse) {
	fmt.Fprintln(w, "# Category breakdown (unconverted)")
	fmt.Fprintln(w)
	if len(rows) == 0 {
		fmt.Fprintln(w, "_No expenses recorded._")
		return
	}
	fmt.Fprintln(w, "| Category | Currency | Total |")
	fmt.Fprintln(w, "|----------|----------|------:|")
	for _, row := range rows {
		for _, t := range row.Totals {
			fmt.Fprintf(w, "| %s | %s | %s |\n", cell(row.Category), t.CurrencyCode, t.Display)
		}
	}
}

func renderConverted(w io.Writer, resp dto.ConvertedBreakdownResponse) {
	fmt.Fprintf(w, "# Category breakdown in %s\n\n", resp.CurrencyCode)
	if len(resp.Categories) == 0 {
		fmt.Fprintln(w, "_No expenses recorded._")
		return
	}
	fmt.Fprintln(w, "| Category | Total |")
	fmt.Fprintln(w, "|----------|------:|")
	for _, c := range resp.Categories {
		fmt.Fprintf(w, "| %s | %s |\n", cell(c.Category), c.Display)
	}
	fmt.Fprintf(w, "| **Total** | **%s** |\n", resp.Display)
}
