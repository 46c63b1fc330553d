package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-sales/internal/observability"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

// DocumentView is what clients render: the document, its rounded totals and
// the actions currently allowed. Key is set while the document is a draft.
type DocumentView struct {
	Key      string                   `json:"key,omitempty"`
	Document *documents.SalesDocument `json:"document"`
	Totals   pricing.Totals           `json:"totals"`
	Actions  documents.Actions        `json:"actions"`
}

// ServiceParams groups the collaborators of Service.
type ServiceParams struct {
	Store    DocumentStore
	Catalog  CatalogPricer
	Drafts   DraftStore
	Defaults documents.Defaults
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Clock    func() time.Time
}

// Service orchestrates draft editing, lifecycle transitions and conversions
// against the document store.
type Service struct {
	store    DocumentStore
	catalog  CatalogPricer
	drafts   DraftStore
	defaults documents.Defaults
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    func() time.Time
}

// NewService creates a new sales service.
func NewService(params ServiceParams) *Service {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:    params.Store,
		catalog:  params.Catalog,
		drafts:   params.Drafts,
		defaults: params.Defaults,
		logger:   logger,
		metrics:  params.Metrics,
		clock:    clock,
	}
}

// ============================================================================
// DRAFTS
// ============================================================================

// NewDraftInput describes the header of a new document.
type NewDraftInput struct {
	Type            documents.DocumentType
	Customer        string
	Currency        string
	TransactionDate time.Time
	ValidUntil      *time.Time
}

// NewDraft starts an unsaved document seeded with the type's pricing defaults.
func (s *Service) NewDraft(ctx context.Context, input NewDraftInput) (*DocumentView, error) {
	txDate := input.TransactionDate
	if txDate.IsZero() {
		txDate = s.now()
	}
	doc := documents.New(input.Type, input.Customer, input.Currency, txDate, s.defaults)
	if input.Type == documents.TypeQuotation {
		doc.ValidUntil = input.ValidUntil
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	draft, err := s.drafts.Create(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.draftView(draft), nil
}

// GetDraft returns the current state of a draft.
func (s *Service) GetDraft(ctx context.Context, key string) (*DocumentView, error) {
	draft, err := s.drafts.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.draftView(draft), nil
}

// DiscardDraft drops a draft without persisting it.
func (s *Service) DiscardDraft(ctx context.Context, key string) error {
	if _, err := s.drafts.Get(ctx, key); err != nil {
		return err
	}
	return s.drafts.Delete(ctx, key)
}

// AddLineInput describes a new ledger line. A nil quantity means one; a nil
// price is looked up in the catalog.
type AddLineInput struct {
	ItemReference string
	Description   string
	Quantity      *decimal.Decimal
	UnitPrice     *decimal.Decimal
}

// AddLine appends a line to the draft.
func (s *Service) AddLine(ctx context.Context, key string, input AddLineInput) (*DocumentView, error) {
	return s.editDraft(ctx, key, func(doc *documents.SalesDocument) error {
		quantity := decimal.NewFromInt(1)
		if input.Quantity != nil {
			quantity = *input.Quantity
		}
		var price decimal.Decimal
		if input.UnitPrice != nil {
			price = *input.UnitPrice
		} else {
			if s.catalog == nil {
				return fmt.Errorf("%w: unit price is required", pricing.ErrInvalidPrice)
			}
			looked, err := s.catalog.FetchCatalogPrice(ctx, input.ItemReference)
			if err != nil {
				return persistenceErr("fetch catalog price", err)
			}
			price = looked
		}
		_, err := doc.Lines.AddLine(strings.TrimSpace(input.ItemReference), input.Description, quantity, price)
		return err
	})
}

// UpdateLine edits one field of a draft line.
func (s *Service) UpdateLine(ctx context.Context, key string, index int, field pricing.Field, value string) (*DocumentView, error) {
	return s.editDraft(ctx, key, func(doc *documents.SalesDocument) error {
		return doc.Lines.UpdateLine(index, field, value)
	})
}

// RemoveLine deletes a draft line.
func (s *Service) RemoveLine(ctx context.Context, key string, index int) (*DocumentView, error) {
	return s.editDraft(ctx, key, func(doc *documents.SalesDocument) error {
		return doc.Lines.RemoveLine(index)
	})
}

// SetPricing replaces the document-level pricing parameters of a draft.
func (s *Service) SetPricing(ctx context.Context, key string, params pricing.Parameters) (*DocumentView, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.editDraft(ctx, key, func(doc *documents.SalesDocument) error {
		doc.Pricing = params
		return nil
	})
}

// HeaderInput carries optional header edits; nil fields are left unchanged.
type HeaderInput struct {
	Customer        *string
	Currency        *string
	TransactionDate *time.Time
	ValidUntil      *time.Time
}

// UpdateHeader edits the customer, currency or dates of a draft.
func (s *Service) UpdateHeader(ctx context.Context, key string, input HeaderInput) (*DocumentView, error) {
	return s.editDraft(ctx, key, func(doc *documents.SalesDocument) error {
		if input.Customer != nil {
			doc.CustomerReference = strings.TrimSpace(*input.Customer)
		}
		if input.Currency != nil {
			doc.Currency = strings.ToUpper(strings.TrimSpace(*input.Currency))
		}
		if input.TransactionDate != nil {
			doc.TransactionDate = *input.TransactionDate
		}
		if input.ValidUntil != nil {
			v := *input.ValidUntil
			doc.ValidUntil = &v
		}
		return doc.Validate()
	})
}

// editDraft applies fn to a copy of the draft document and stores the result
// only when fn succeeds.
func (s *Service) editDraft(ctx context.Context, key string, fn func(*documents.SalesDocument) error) (*DocumentView, error) {
	draft, err := s.drafts.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := documents.OpenForEdit(draft.Document, s.now()); err != nil {
		return nil, err
	}
	doc := draft.Document.Clone()
	if err := fn(doc); err != nil {
		return nil, err
	}
	draft.Document = doc
	if err := s.drafts.Save(ctx, draft); err != nil {
		return nil, err
	}
	return s.draftView(draft), nil
}

// SaveDraft persists the draft through the document store and keeps it open
// for further editing. A failed save leaves the draft as it was. When the
// document is created but the draft cannot be rewritten, the error names the
// new document ID so the caller can reopen it instead of saving again.
func (s *Service) SaveDraft(ctx context.Context, key string) (*DocumentView, error) {
	draft, err := s.drafts.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	doc := draft.Document.Clone()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	created, err := s.persist(ctx, doc)
	if err != nil {
		return nil, err
	}
	draft.Document = doc
	if created {
		s.markSourceConverted(ctx, doc)
	}
	if err := s.drafts.Save(ctx, draft); err != nil {
		if created {
			s.logger.Error("record stored document in draft",
				slog.String("key", key),
				slog.String("type", string(doc.Type)),
				slog.String("id", doc.ID),
				slog.Any("error", err),
			)
			return nil, fmt.Errorf("%s %s stored but draft %s not updated: %w", doc.Type, doc.ID, key, err)
		}
		return nil, err
	}
	return s.draftView(draft), nil
}

// SubmitDraft submits the draft and persists it. On success the draft is
// closed; on failure it stays in Draft status, unchanged.
func (s *Service) SubmitDraft(ctx context.Context, key string) (*DocumentView, error) {
	draft, err := s.drafts.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	doc := draft.Document.Clone()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if doc.Lines.Len() == 0 {
		return nil, documents.ErrNoLines
	}
	if err := documents.OpenForEdit(doc, s.now()); err != nil {
		return nil, err
	}
	target := documents.SubmitTarget(doc.Type)
	if err := documents.Submit(doc); err != nil {
		s.metrics.ObserveTransition(string(doc.Type), string(target), err)
		return nil, err
	}
	created, err := s.persist(ctx, doc)
	s.metrics.ObserveTransition(string(doc.Type), string(target), err)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Delete(ctx, key); err != nil {
		s.logger.Warn("discard submitted draft", slog.String("key", key), slog.Any("error", err))
	}
	if created {
		s.markSourceConverted(ctx, doc)
	}
	s.logger.Info("document submitted", slog.String("type", string(doc.Type)), slog.String("id", doc.ID))
	return s.documentView(doc), nil
}

// persist creates or updates doc, setting its ID on creation.
func (s *Service) persist(ctx context.Context, doc *documents.SalesDocument) (bool, error) {
	if doc.IsNew() {
		id, err := s.store.CreateDocument(ctx, doc.Type, doc)
		if err != nil {
			return false, persistenceErr("create document", err)
		}
		doc.ID = id
		return true, nil
	}
	if err := s.store.UpdateDocument(ctx, doc.Type, doc.ID, doc); err != nil {
		return false, persistenceErr("update document", err)
	}
	return false, nil
}

// markSourceConverted moves the quotation behind a newly persisted sales order
// to ConvertedToOrder. The order is already stored, so failures are logged.
func (s *Service) markSourceConverted(ctx context.Context, doc *documents.SalesDocument) {
	if doc.Type != documents.TypeSalesOrder || doc.LinkedSourceID == "" {
		return
	}
	logger := s.logger.With(slog.String("quotation_id", doc.LinkedSourceID), slog.String("sales_order_id", doc.ID))
	source, err := s.store.FetchDocument(ctx, documents.TypeQuotation, doc.LinkedSourceID)
	if err != nil {
		logger.Warn("load converted quotation", slog.Any("error", err))
		return
	}
	err = documents.MarkConverted(source)
	if err == nil {
		err = s.store.UpdateDocument(ctx, source.Type, source.ID, source)
	}
	s.metrics.ObserveTransition(string(documents.TypeQuotation), string(documents.StatusConvertedToOrder), err)
	if err != nil {
		logger.Warn("mark quotation converted", slog.Any("error", err))
		return
	}
	logger.Info("quotation converted to order")
}

// ============================================================================
// PERSISTED DOCUMENTS
// ============================================================================

// ViewDocument returns a read-only view. Expired quotations remain viewable.
func (s *Service) ViewDocument(ctx context.Context, docType documents.DocumentType, id string) (*DocumentView, error) {
	doc, err := s.fetch(ctx, docType, id)
	if err != nil {
		return nil, err
	}
	return s.documentView(doc), nil
}

// OpenForEdit loads a persisted document into a new draft session.
func (s *Service) OpenForEdit(ctx context.Context, docType documents.DocumentType, id string) (*DocumentView, error) {
	doc, err := s.fetch(ctx, docType, id)
	if err != nil {
		return nil, err
	}
	if err := documents.OpenForEdit(doc, s.now()); err != nil {
		return nil, err
	}
	draft, err := s.drafts.Create(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.draftView(draft), nil
}

// TransitionDocument moves a persisted document to target and stores it.
func (s *Service) TransitionDocument(ctx context.Context, docType documents.DocumentType, id string, target documents.Status) (*DocumentView, error) {
	doc, err := s.fetch(ctx, docType, id)
	if err != nil {
		return nil, err
	}
	err = s.transition(ctx, doc, target)
	s.metrics.ObserveTransition(string(docType), string(target), err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document transitioned",
		slog.String("type", string(docType)),
		slog.String("id", id),
		slog.String("status", string(target)),
	)
	return s.documentView(doc), nil
}

func (s *Service) transition(ctx context.Context, doc *documents.SalesDocument, target documents.Status) error {
	if doc.Status == documents.StatusDraft && target == documents.SubmitTarget(doc.Type) {
		if doc.Lines.Len() == 0 {
			return documents.ErrNoLines
		}
		if err := documents.OpenForEdit(doc, s.now()); err != nil {
			return err
		}
	}
	previous := doc.Status
	if err := documents.Transition(doc, target); err != nil {
		return err
	}
	if err := s.store.UpdateDocument(ctx, doc.Type, doc.ID, doc); err != nil {
		doc.Status = previous
		return persistenceErr("update document", err)
	}
	return nil
}

// ConvertDocument seeds a draft of type target from a persisted source document.
// The source must already be approved or confirmed; it is never submitted here.
func (s *Service) ConvertDocument(ctx context.Context, docType documents.DocumentType, id string, target documents.DocumentType) (*DocumentView, error) {
	view, err := s.convert(ctx, docType, id, target)
	s.metrics.ObserveConversion(string(docType), string(target), err)
	return view, err
}

func (s *Service) convert(ctx context.Context, docType documents.DocumentType, id string, target documents.DocumentType) (*DocumentView, error) {
	source, err := s.fetch(ctx, docType, id)
	if err != nil {
		return nil, err
	}
	converted, err := documents.Convert(source, target, s.now(), s.defaults)
	if err != nil {
		return nil, err
	}
	draft, err := s.drafts.Create(ctx, converted)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document converted",
		slog.String("source_type", string(docType)),
		slog.String("source_id", id),
		slog.String("target_type", string(target)),
		slog.String("draft", draft.Key),
	)
	return s.draftView(draft), nil
}

func (s *Service) fetch(ctx context.Context, docType documents.DocumentType, id string) (*documents.SalesDocument, error) {
	if !docType.IsValid() {
		return nil, fmt.Errorf("%w: %q", documents.ErrUnknownDocumentType, docType)
	}
	doc, err := s.store.FetchDocument(ctx, docType, id)
	if err != nil {
		return nil, persistenceErr("fetch document", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s %s", documents.ErrNotFound, docType, id)
	}
	return doc, nil
}

// ============================================================================
// VIEWS
// ============================================================================

func (s *Service) draftView(draft *Draft) *DocumentView {
	view := s.documentView(draft.Document)
	view.Key = draft.Key
	return view
}

func (s *Service) documentView(doc *documents.SalesDocument) *DocumentView {
	return &DocumentView{
		Document: doc,
		Totals:   doc.DisplayTotals(),
		Actions:  documents.ActionsFor(doc, s.now()),
	}
}

func (s *Service) now() time.Time {
	return s.clock()
}
