package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/invoicing/backend/internal/bootstrap"
	"github.com/invoicing/backend/internal/domain/invoice"
	"github.com/invoicing/backend/internal/domain/merchant"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type seedOptions struct {
	company         string
	merchantEmail   string
	payoutAccount   string
	customerFirst   string
	customerLast    string
	customerEmail   string
	amount          string
	recurringAmount string
	frequency       string
	start           string
}

func seedCmd(opts *rootOptions) *cobra.Command {
	so := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a merchant and a recurring invoice template for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := so.parse(time.Now())
			if err != nil {
				return err
			}

			return opts.withApp(cmd.Context(), func(app *bootstrap.App) error {
				var (
					m   *merchant.Merchant
					inv *invoice.Invoice
				)
				err := app.Database.InTx(cmd.Context(), func(s persistence.Stores) error {
					var err error
					m, inv, err = plan.save(cmd.Context(), s.Merchants, s.Invoices)
					return err
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created merchant %d (%s) and %s invoice %d starting %s\n",
					m.ID, m.CompanyName, inv.Frequency, inv.ID, inv.RecurrenceStartDate.Format(time.DateOnly))
				if !m.HasPayoutDestination() {
					fmt.Fprintln(out, "No payout account given; payment links will be skipped for this merchant")
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&so.company, "company", "Acme Studio", "Merchant company name")
	f.StringVar(&so.merchantEmail, "merchant-email", "billing@acme.test", "Merchant contact email")
	f.StringVar(&so.payoutAccount, "payout-account", "", "Connected payment account id (acct_...)")
	f.StringVar(&so.customerFirst, "customer-first-name", "Ada", "Customer first name")
	f.StringVar(&so.customerLast, "customer-last-name", "Lovelace", "Customer last name")
	f.StringVar(&so.customerEmail, "customer-email", "ada@example.com", "Customer email")
	f.StringVar(&so.amount, "amount", "100.00", "Initial invoice amount")
	f.StringVar(&so.recurringAmount, "recurring-amount", "", "Amount billed each period (defaults to --amount)")
	f.StringVar(&so.frequency, "frequency", "monthly", "Billing frequency (monthly or yearly)")
	f.StringVar(&so.start, "start", "", "Recurrence start date YYYY-MM-DD (defaults to today)")
	return cmd
}

// seedInput is the flag set after normalization, checked before any domain
// constructor runs.
type seedInput struct {
	Company         string          `flag:"company" validate:"required"`
	MerchantEmail   string          `flag:"merchant-email" validate:"required,email"`
	PayoutAccount   string          `flag:"payout-account" validate:"omitempty,startswith=acct_"`
	CustomerFirst   string          `flag:"customer-first-name" validate:"required"`
	CustomerLast    string          `flag:"customer-last-name"`
	CustomerEmail   string          `flag:"customer-email" validate:"required,email"`
	Amount          decimal.Decimal `flag:"amount" validate:"gt=0"`
	RecurringAmount decimal.Decimal `flag:"recurring-amount" validate:"gt=0"`
	Frequency       string          `flag:"frequency" validate:"oneof=monthly yearly"`
}

var seedValidator = newValidator()

type seedPlan struct {
	merchant        *merchant.Merchant
	customer        invoice.Customer
	amount          decimal.Decimal
	recurringAmount decimal.Decimal
	frequency       invoice.Frequency
	start           time.Time
}

// parse validates the flags before anything is written
func (o *seedOptions) parse(now time.Time) (*seedPlan, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(o.amount))
	if err != nil {
		return nil, fmt.Errorf("invalid --amount %q: %w", o.amount, err)
	}
	recurring := amount
	if o.recurringAmount != "" {
		recurring, err = decimal.NewFromString(strings.TrimSpace(o.recurringAmount))
		if err != nil {
			return nil, fmt.Errorf("invalid --recurring-amount %q: %w", o.recurringAmount, err)
		}
	}

	in := seedInput{
		Company:         strings.TrimSpace(o.company),
		MerchantEmail:   strings.TrimSpace(o.merchantEmail),
		PayoutAccount:   strings.TrimSpace(o.payoutAccount),
		CustomerFirst:   strings.TrimSpace(o.customerFirst),
		CustomerLast:    strings.TrimSpace(o.customerLast),
		CustomerEmail:   strings.TrimSpace(o.customerEmail),
		Amount:          amount,
		RecurringAmount: recurring,
		Frequency:       strings.ToLower(strings.TrimSpace(o.frequency)),
	}
	if err := seedValidator.Struct(in); err != nil {
		return nil, validationError(err)
	}

	m, err := merchant.NewMerchant(in.Company, in.MerchantEmail)
	if err != nil {
		return nil, err
	}
	if in.PayoutAccount != "" {
		m.ConnectPayoutDestination(in.PayoutAccount)
	}

	frequency, err := invoice.ParseFrequency(in.Frequency)
	if err != nil {
		return nil, fmt.Errorf("invalid --frequency %q: %w", o.frequency, err)
	}

	start := invoice.DateOf(now)
	if o.start != "" {
		start, err = parseBillingDate(o.start)
		if err != nil {
			return nil, err
		}
	}

	return &seedPlan{
		merchant:        m,
		customer:        invoice.Customer{FirstName: in.CustomerFirst, LastName: in.CustomerLast, Email: in.CustomerEmail},
		amount:          in.Amount,
		recurringAmount: in.RecurringAmount,
		frequency:       frequency,
		start:           start,
	}, nil
}

// save stores the merchant and then its recurring template
func (p *seedPlan) save(ctx context.Context, merchants merchant.Repository, invoices invoice.Repository) (*merchant.Merchant, *invoice.Invoice, error) {
	if err := merchants.Save(ctx, p.merchant); err != nil {
		return nil, nil, fmt.Errorf("failed to save merchant: %w", err)
	}

	inv, err := invoice.NewRecurringInvoice(p.merchant.ID, p.customer,
		p.amount, p.start, p.frequency, p.recurringAmount, p.start)
	if err != nil {
		return nil, nil, err
	}
	if err := invoices.Save(ctx, inv); err != nil {
		return nil, nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	return p.merchant, inv, nil
}
