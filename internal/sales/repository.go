package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-sales/internal/platform/db"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

// Repository provides PostgreSQL backed persistence for sales documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ DocumentStore  = (*Repository)(nil)
	_ DocumentLister = (*Repository)(nil)
)

const selectDocument = `
SELECT id, doc_number, doc_type, customer_reference, currency, transaction_date, status,
       valid_until, COALESCE(linked_source_id, ''),
       tax_rate_percent::text, additional_charges::text, additional_discount_percent::text,
       discount_amount::text, apply_discount_on
FROM sales_documents`

// documentRow mirrors one sales_documents row with numerics read as text.
type documentRow struct {
	pk              int64
	number          string
	docType         string
	customer        string
	currency        string
	transactionDate time.Time
	status          string
	validUntil      *time.Time
	linkedSource    string
	taxRate         string
	charges         string
	discountPercent string
	discountAmount  string
	discountOn      string
}

type lineRow struct {
	itemReference string
	description   string
	quantity      string
	unitPrice     string
}

// ============================================================================
// READS
// ============================================================================

func (r *Repository) FetchDocument(ctx context.Context, docType documents.DocumentType, id string) (*documents.SalesDocument, error) {
	row := r.pool.QueryRow(ctx, selectDocument+` WHERE doc_number = $1 AND doc_type = $2`, id, string(docType))
	rec, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %s", documents.ErrNotFound, docType, id)
		}
		return nil, err
	}
	lines, err := r.loadLines(ctx, r.pool, rec.pk)
	if err != nil {
		return nil, err
	}
	return rec.toDocument(lines)
}

func (r *Repository) ListDocuments(ctx context.Context, filter ListFilter) ([]*documents.SalesDocument, error) {
	query := selectDocument + ` WHERE doc_type = $1`
	args := []any{string(filter.Type)}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, statuses)
	}
	query += ` ORDER BY transaction_date DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var recs []documentRow
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*documents.SalesDocument, 0, len(recs))
	for _, rec := range recs {
		lines, err := r.loadLines(ctx, r.pool, rec.pk)
		if err != nil {
			return nil, err
		}
		doc, err := rec.toDocument(lines)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) loadLines(ctx context.Context, q querier, documentID int64) ([]lineRow, error) {
	rows, err := q.Query(ctx, `
SELECT item_reference, description, quantity::text, unit_price::text
FROM sales_document_lines
WHERE document_id = $1
ORDER BY line_no`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []lineRow
	for rows.Next() {
		var l lineRow
		if err := rows.Scan(&l.itemReference, &l.description, &l.quantity, &l.unitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanDocument(row pgx.Row) (documentRow, error) {
	var rec documentRow
	err := row.Scan(
		&rec.pk, &rec.number, &rec.docType, &rec.customer, &rec.currency, &rec.transactionDate, &rec.status,
		&rec.validUntil, &rec.linkedSource,
		&rec.taxRate, &rec.charges, &rec.discountPercent, &rec.discountAmount, &rec.discountOn,
	)
	return rec, err
}

// ============================================================================
// WRITES
// ============================================================================

func (r *Repository) CreateDocument(ctx context.Context, docType documents.DocumentType, doc *documents.SalesDocument) (string, error) {
	var number string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('sales_document_number_seq')`).Scan(&seq); err != nil {
			return fmt.Errorf("next number: %w", err)
		}
		number = documents.FormatNumber(docType, doc.TransactionDate, seq)

		args := headerArgs(doc)
		var pk int64
		err := tx.QueryRow(ctx, `
INSERT INTO sales_documents (
    doc_number, doc_type, customer_reference, currency, transaction_date, status, valid_until, linked_source_id,
    tax_rate_percent, additional_charges, additional_discount_percent, discount_amount, apply_discount_on,
    subtotal, tax_amount, total_taxes_and_charges, discount_total, grand_total
) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING id`, append([]any{number, string(docType)}, args...)...).Scan(&pk)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return insertLines(ctx, tx, pk, doc.Lines.Lines())
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

func (r *Repository) UpdateDocument(ctx context.Context, docType documents.DocumentType, id string, doc *documents.SalesDocument) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		args := headerArgs(doc)
		var pk int64
		err := tx.QueryRow(ctx, `
UPDATE sales_documents SET
    customer_reference = $3, currency = $4, transaction_date = $5, status = $6, valid_until = $7,
    linked_source_id = NULLIF($8, ''),
    tax_rate_percent = $9, additional_charges = $10, additional_discount_percent = $11,
    discount_amount = $12, apply_discount_on = $13,
    subtotal = $14, tax_amount = $15, total_taxes_and_charges = $16, discount_total = $17, grand_total = $18,
    updated_at = NOW()
WHERE doc_number = $1 AND doc_type = $2
RETURNING id`, append([]any{id, string(docType)}, args...)...).Scan(&pk)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s %s", documents.ErrNotFound, docType, id)
			}
			return fmt.Errorf("update document: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sales_document_lines WHERE document_id = $1`, pk); err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}
		return insertLines(ctx, tx, pk, doc.Lines.Lines())
	})
}

func insertLines(ctx context.Context, tx pgx.Tx, documentID int64, lines []pricing.LineItem) error {
	if len(lines) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, l := range lines {
		batch.Queue(`
INSERT INTO sales_document_lines (document_id, line_no, item_reference, description, quantity, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			documentID, i+1, l.ItemReference, l.Description,
			l.Quantity.String(), l.UnitPrice.String(), l.LineTotal.String())
	}
	br := tx.SendBatch(ctx, batch)
	for range lines {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert line: %w", err)
		}
	}
	return br.Close()
}

// headerArgs returns parameters $3..$18 shared by insert and update.
func headerArgs(doc *documents.SalesDocument) []any {
	totals := doc.DisplayTotals()
	p := doc.Pricing
	return []any{
		doc.CustomerReference,
		doc.Currency,
		doc.TransactionDate,
		string(doc.Status),
		doc.ValidUntil,
		doc.LinkedSourceID,
		p.TaxRatePercent.String(),
		p.AdditionalCharges.String(),
		p.AdditionalDiscountPercent.String(),
		p.DiscountAmount.String(),
		string(p.ApplyDiscountOn),
		totals.Subtotal.String(),
		totals.TaxAmount.String(),
		totals.TotalTaxesAndCharges.String(),
		totals.DiscountAmount.String(),
		totals.GrandTotal.String(),
	}
}

// ============================================================================
// MAPPING
// ============================================================================

func (rec documentRow) toDocument(lines []lineRow) (*documents.SalesDocument, error) {
	params, err := pricing.ParseParameters(pricing.RawParameters{
		TaxRatePercent:            rec.taxRate,
		AdditionalCharges:         rec.charges,
		AdditionalDiscountPercent: rec.discountPercent,
		DiscountAmount:            rec.discountAmount,
		ApplyDiscountOn:           rec.discountOn,
	})
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", rec.number, err)
	}

	items := make([]pricing.LineItem, 0, len(lines))
	for i, l := range lines {
		qty, err := decimal.NewFromString(l.quantity)
		if err != nil {
			return nil, fmt.Errorf("document %s line %d quantity: %w", rec.number, i+1, err)
		}
		price, err := decimal.NewFromString(l.unitPrice)
		if err != nil {
			return nil, fmt.Errorf("document %s line %d unit price: %w", rec.number, i+1, err)
		}
		item, err := pricing.NewLineItem(l.itemReference, l.description, qty, price)
		if err != nil {
			return nil, fmt.Errorf("document %s line %d: %w", rec.number, i+1, err)
		}
		items = append(items, item)
	}
	ledger, err := pricing.NewLedger(items...)
	if err != nil {
		return nil, err
	}

	return &documents.SalesDocument{
		ID:                rec.number,
		Type:              documents.DocumentType(rec.docType),
		CustomerReference: rec.customer,
		Currency:          rec.currency,
		TransactionDate:   rec.transactionDate,
		Status:            documents.Status(rec.status),
		Lines:             *ledger,
		Pricing:           params,
		ValidUntil:        rec.validUntil,
		LinkedSourceID:    rec.linkedSource,
	}, nil
}
