package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/core/domain"
	"github.com/hivefi/ledger/internal/dto"
	"github.com/hivefi/ledger/internal/utils"
	"github.com/shopspring/decimal"
)

type recordCmd struct {
	category    string
	currency    string
	amount      string
	description string
	date        string
	requestID   string
}

func (*recordCmd) Name() string     { return "record" }
func (*recordCmd) Synopsis() string { return "record an expense and append it to the audit chain" }
func (*recordCmd) Usage() string {
	return `ledgerctl record -c <category> -cur <code> -a <amount> [-desc <text>] [-d <dd/MM/yyyy>] [-id <request id>]

  Records one expense. With -id the call is idempotent: repeating it with the
  same id fails without writing anything.
`
}

func (c *recordCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "c", "", "Expense category.")
	f.StringVar(&c.currency, "cur", "", "ISO 4217 currency code.")
	f.StringVar(&c.amount, "a", "", "Amount, a positive decimal.")
	f.StringVar(&c.description, "desc", "", "Free-text description.")
	f.StringVar(&c.date, "d", "", "Expense date (dd/MM/yyyy). Defaults to today.")
	f.StringVar(&c.requestID, "id", "", "Idempotency key.")
}

func (c *recordCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing amount %q: %v\n", c.amount, err)
		return subcommands.ExitUsageError
	}
	date := c.date
	if date == "" {
		date = time.Now().Format(domain.DisplayDateLayout)
	}
	req := dto.RecordExpenseRequest{
		Category:     c.category,
		CurrencyCode: c.currency,
		Amount:       amount,
		Description:  c.description,
		Date:         date,
	}
	return withApp(ctx, func(a *app) error {
		expense, err := a.services.Ledger.RecordExpense(ctx, req, c.requestID)
		if err != nil {
			if errors.Is(err, apperrors.ErrDuplicateRequest) {
				return fmt.Errorf("request %q was already recorded", c.requestID)
			}
			return err
		}
		printMarkdown(fmt.Sprintf("Recorded `%s`: %s %s on %s.\n",
			expense.ExpenseID, cell(expense.Category), utils.FormatMoney(expense.Amount, expense.CurrencyCode), expense.Date))
		return nil
	})
}

type listCmd struct {
	category string
	from     string
	to       string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list expenses, newest first" }
func (*listCmd) Usage() string {
	return `ledgerctl list [-c <category> | -from <dd/MM/yyyy> -to <dd/MM/yyyy>]
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "c", "", "Only list this category.")
	f.StringVar(&c.from, "from", "", "Range start, inclusive.")
	f.StringVar(&c.to, "to", "", "Range end, inclusive.")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	hasRange := c.from != "" || c.to != ""
	if hasRange && (c.from == "" || c.to == "") {
		fmt.Fprintln(stderr, "both -from and -to are required for a date range")
		return subcommands.ExitUsageError
	}
	if hasRange && c.category != "" {
		fmt.Fprintln(stderr, "use either -c or -from/-to")
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(a *app) error {
		var (
			expenses []domain.Expense
			err      error
		)
		switch {
		case c.category != "":
			expenses, err = a.services.Ledger.ListByCategory(ctx, c.category)
		case hasRange:
			from, perr := domain.ParseDisplayDate(c.from)
			if perr != nil {
				return perr
			}
			to, perr := domain.ParseDisplayDate(c.to)
			if perr != nil {
				return perr
			}
			expenses, err = a.services.Ledger.ListByDateRange(ctx, from, to)
		default:
			expenses, err = a.services.Ledger.ListAll(ctx)
		}
		if err != nil {
			return err
		}
		var b strings.Builder
		renderExpenses(&b, expenses)
		printMarkdown(b.String())
		return nil
	})
}

type logCmd struct {
	limit int
}

func (*logCmd) Name() string     { return "log" }
func (*logCmd) Synopsis() string { return "display the audit chain in append order" }
func (*logCmd) Usage() string {
	return `ledgerctl log [-n <entries>]
`
}

func (c *logCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 0, "Only show the last n entries.")
}

func (c *logCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) error {
		entries, err := a.services.Ledger.Transactions(ctx)
		if err != nil {
			return err
		}
		if c.limit > 0 && len(entries) > c.limit {
			entries = entries[len(entries)-c.limit:]
		}
		var b strings.Builder
		renderTransactions(&b, entries)
		printMarkdown(b.String())
		return nil
	})
}

type verifyCmd struct{}

func (*verifyCmd) Name() string     { return "verify" }
func (*verifyCmd) Synopsis() string { return "recompute every hash of the audit chain" }
func (*verifyCmd) Usage() string {
	return `ledgerctl verify

  Exits with status 1 when the chain is broken.
`
}
func (*verifyCmd) SetFlags(*flag.FlagSet) {}

func (*verifyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) error {
		result, err := a.services.Ledger.VerifyChain(ctx)
		if err != nil && !errors.Is(err, apperrors.ErrChainIntegrity) {
			return err
		}
		var b strings.Builder
		renderVerify(&b, result)
		printMarkdown(b.String())
		return err
	})
}

type reconcileCmd struct{}

func (*reconcileCmd) Name() string { return "reconcile" }
func (*reconcileCmd) Synopsis() string {
	return "append missing CREATE entries for expenses the chain does not reference"
}
func (*reconcileCmd) Usage() string {
	return `ledgerctl reconcile
`
}
func (*reconcileCmd) SetFlags(*flag.FlagSet) {}

func (*reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) error {
		repaired, err := a.services.Ledger.Reconcile(ctx)
		if err != nil {
			return err
		}
		if len(repaired) == 0 {
			printMarkdown("Nothing to repair.\n")
			return nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Repaired %d expense(s):\n\n", len(repaired))
		for _, id := range repaired {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
		printMarkdown(b.String())
		return nil
	})
}

type rateCmd struct{}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "show the conversion rate between two currencies" }
func (*rateCmd) Usage() string {
	return `ledgerctl rate <from> <to>
`
}
func (*rateCmd) SetFlags(*flag.FlagSet) {}

func (*rateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprintln(stderr, "rate takes exactly two currency codes")
		return subcommands.ExitUsageError
	}
	from, to := strings.ToUpper(f.Arg(0)), strings.ToUpper(f.Arg(1))
	return withApp(ctx, func(a *app) error {
		rate, err := a.services.ExchangeRate.GetRate(ctx, from, to)
		if err != nil {
			return err
		}
		printMarkdown(fmt.Sprintf("1 %s = **%s** %s\n", from, rate.String(), to))
		return nil
	})
}

type convertCmd struct{}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "convert an amount between currencies" }
func (*convertCmd) Usage() string {
	return `ledgerctl convert <amount> <from> <to>
`
}
func (*convertCmd) SetFlags(*flag.FlagSet) {}

func (*convertCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		fmt.Fprintln(stderr, "convert takes an amount and two currency codes")
		return subcommands.ExitUsageError
	}
	amount, err := decimal.NewFromString(f.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing amount %q: %v\n", f.Arg(0), err)
		return subcommands.ExitUsageError
	}
	from, to := strings.ToUpper(f.Arg(1)), strings.ToUpper(f.Arg(2))
	return withApp(ctx, func(a *app) error {
		converted, err := a.services.ExchangeRate.Convert(ctx, amount, from, to)
		if err != nil {
			return err
		}
		printMarkdown(fmt.Sprintf("%s %s = **%s** %s\n", amount.String(), from, converted.String(), to))
		return nil
	})
}

type breakdownCmd struct {
	currency string
}

func (*breakdownCmd) Name() string     { return "breakdown" }
func (*breakdownCmd) Synopsis() string { return "sum expenses per category" }
func (*breakdownCmd) Usage() string {
	return `ledgerctl breakdown [-in <code>]

  Without -in totals are kept per currency. With -in every expense is
  converted first and totals are rounded to two decimals.
`
}

func (c *breakdownCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "in", "", "Convert totals into this currency.")
}

func (c *breakdownCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) error {
		var b strings.Builder
		if c.currency == "" {
			rows, err := a.services.Ledger.CategoryBreakdownByCurrencyUnconverted(ctx)
			if err != nil {
				return err
			}
			renderUnconverted(&b, dto.ToUnconvertedBreakdownResponse(rows))
		} else {
			currency := strings.ToUpper(c.currency)
			rows, err := a.services.Ledger.CategoryBreakdownConverted(ctx, currency)
			if err != nil {
				return err
			}
			renderConverted(&b, dto.ToConvertedBreakdownResponse(currency, rows))
		}
		printMarkdown(b.String())
		return nil
	})
}

type tokenCmd struct {
	subject string
	ttl     time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "mint a bearer token for the HTTP API" }
func (*tokenCmd) Usage() string {
	return `ledgerctl token [-sub <subject>] [-ttl <duration>]

  Signs a token with JWT_SECRET and JWT_ISSUER from the environment.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.subject, "sub", "ledgerctl", "Token subject.")
	f.DurationVar(&c.ttl, "ttl", 0, "Token lifetime. Defaults to JWT_EXPIRY_DURATION.")
}

func (c *tokenCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) error {
		ttl := c.ttl
		if ttl <= 0 {
			ttl = a.cfg.JWTExpiryDuration
		}
		token, err := utils.GenerateJWT(c.subject, a.cfg.JWTSecret, ttl, a.cfg.JWTIssuer)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, token)
		return nil
	})
}
