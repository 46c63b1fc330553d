package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

const dateLayout = "2006-01-02"

// documentFixture is the on-disk form read by `totals`. JSON documents parse
// as YAML, so one decoder serves both.
type documentFixture struct {
	Type            string                `yaml:"type"`
	Customer        string                `yaml:"customer"`
	Currency        string                `yaml:"currency"`
	Status          string                `yaml:"status"`
	TransactionDate string                `yaml:"transaction_date"`
	ValidUntil      string                `yaml:"valid_until"`
	Lines           []lineFixture         `yaml:"lines"`
	Pricing         pricing.RawParameters `yaml:"pricing"`
}

type lineFixture struct {
	ItemReference string `yaml:"item_reference"`
	Description   string `yaml:"description"`
	Quantity      string `yaml:"quantity"`
	UnitPrice     string `yaml:"unit_price"`
}

// TotalsResult is the output of the totals command.
type TotalsResult struct {
	Type      documents.DocumentType `json:"type"`
	Currency  string                 `json:"currency"`
	Lines     []pricing.LineItem     `json:"lines"`
	Totals    pricing.Totals         `json:"totals"`
	Validity  documents.Validity     `json:"validity"`
	DaysLeft  *int                   `json:"days_left,omitempty"`
	Evaluated string                 `json:"evaluated_on"`
}

// RenderText prints the lines followed by the totals block.
func (r TotalsResult) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "#\tItem\tQty\tRate\tAmount\t\n")
	for i, line := range r.Lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", i+1, line.ItemReference, line.Quantity, line.UnitPrice, line.LineTotal.StringFixed(pricing.MinorUnits(r.Currency)))
	}
	places := pricing.MinorUnits(r.Currency)
	fmt.Fprintf(tw, "\t\t\tNet Total\t%s\t\n", r.Totals.NetTotal.StringFixed(places))
	fmt.Fprintf(tw, "\t\t\tTax\t%s\t\n", r.Totals.TaxAmount.StringFixed(places))
	fmt.Fprintf(tw, "\t\t\tTaxes and Charges\t%s\t\n", r.Totals.TotalTaxesAndCharges.StringFixed(places))
	fmt.Fprintf(tw, "\t\t\tDiscount\t%s\t\n", r.Totals.DiscountAmount.StringFixed(places))
	fmt.Fprintf(tw, "\t\t\tGrand Total (%s)\t%s\t\n", r.Currency, r.Totals.GrandTotal.StringFixed(places))
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.Type == documents.TypeQuotation {
		_, err := fmt.Fprintf(w, "validity: %s\n", r.Validity)
		return err
	}
	return nil
}

// NewTotalsCommand creates the totals command.
func NewTotalsCommand(rootOpts *RootOptions) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "totals <file>",
		Short: "Compute the totals of a document fixture",
		Long: `Read a quotation, sales order or delivery note from a YAML or JSON file and
print its line totals and rounded document totals. Quotations also report
their validity at --as-of (today by default).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if asOf != "" {
				parsed, err := time.Parse(dateLayout, asOf)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --as-of", err)
				}
				now = parsed
			}
			return runTotals(rootOpts, args[0], now, cmd)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date for quotation validity (YYYY-MM-DD)")
	return cmd
}

func runTotals(opts *RootOptions, path string, now time.Time, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitCommandError, "read document", err))
	}
	doc, err := parseFixture(data)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitFailure, "invalid document", err))
	}
	opts.logger(cmd.ErrOrStderr()).Debug("document loaded",
		"type", doc.Type, "lines", doc.Lines.Len(), "currency", doc.Currency)

	result := TotalsResult{
		Type:      doc.Type,
		Currency:  doc.Currency,
		Lines:     doc.Lines.Lines(),
		Totals:    doc.DisplayTotals(),
		Validity:  documents.Classify(doc, now),
		Evaluated: now.Format(dateLayout),
	}
	if doc.ValidUntil != nil {
		days := documents.DaysUntil(*doc.ValidUntil, now)
		result.DaysLeft = &days
	}
	return formatter.Success(result)
}

func parseFixture(data []byte) (*documents.SalesDocument, error) {
	var fx documentFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	docType := documents.TypeQuotation
	if fx.Type != "" {
		parsed, err := documents.ParseDocumentType(fx.Type)
		if err != nil {
			return nil, err
		}
		docType = parsed
	}
	txDate := time.Now()
	if fx.TransactionDate != "" {
		parsed, err := time.Parse(dateLayout, fx.TransactionDate)
		if err != nil {
			return nil, fmt.Errorf("transaction_date: %w", err)
		}
		txDate = parsed
	}
	customer := fx.Customer
	if customer == "" {
		customer = "fixture"
	}

	doc := documents.New(docType, customer, fx.Currency, txDate, documents.Defaults{})
	if fx.Status != "" {
		doc.Status = documents.Status(strings.ToUpper(fx.Status))
	}
	if fx.ValidUntil != "" {
		parsed, err := time.Parse(dateLayout, fx.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("valid_until: %w", err)
		}
		doc.ValidUntil = &parsed
	}

	params, err := pricing.ParseParameters(fx.Pricing)
	if err != nil {
		return nil, err
	}
	doc.Pricing = params

	for i, line := range fx.Lines {
		qty := decimal.NewFromInt(1)
		if line.Quantity != "" {
			parsed, err := decimal.NewFromString(line.Quantity)
			if err != nil {
				return nil, fmt.Errorf("line %d quantity: %w", i+1, err)
			}
			qty = parsed
		}
		price, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("line %d unit_price: %w", i+1, err)
		}
		if _, err := doc.Lines.AddLine(line.ItemReference, line.Description, qty, price); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}
