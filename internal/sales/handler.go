package sales

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-sales/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

// Handler exposes the sales engine as a JSON API for the mobile client.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/drafts", func(r chi.Router) {
		r.Post("/", h.createDraft)
		r.Get("/{key}", h.getDraft)
		r.Delete("/{key}", h.discardDraft)
		r.Post("/{key}/lines", h.addLine)
		r.Patch("/{key}/lines/{index}", h.updateLine)
		r.Delete("/{key}/lines/{index}", h.removeLine)
		r.Put("/{key}/pricing", h.setPricing)
		r.Patch("/{key}/header", h.updateHeader)
		r.Post("/{key}/save", h.saveDraft)
		r.Post("/{key}/submit", h.submitDraft)
	})
	r.Route("/documents/{type}/{id}", func(r chi.Router) {
		r.Get("/", h.viewDocument)
		r.Post("/edit", h.openForEdit)
		r.Post("/transitions", h.transition)
		r.Post("/convert", h.convert)
	})
}

// ============================================================================
// DRAFT HANDLERS
// ============================================================================

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var req CreateDraftRequest
	if !h.decode(w, r, &req) {
		return
	}
	docType, err := documents.ParseDocumentType(req.Type)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	input := NewDraftInput{
		Type:       docType,
		Customer:   req.Customer,
		Currency:   req.Currency,
		ValidUntil: req.ValidUntil.ptr(),
	}
	if t := req.TransactionDate.ptr(); t != nil {
		input.TransactionDate = *t
	}
	view, err := h.service.NewDraft(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetDraft(r.Context(), chi.URLParam(r, "key"))
	h.respond(w, r, view, err)
}

func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DiscardDraft(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.AddLine(r.Context(), chi.URLParam(r, "key"), AddLineInput{
		ItemReference: req.ItemReference,
		Description:   req.Description,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
	})
	h.respond(w, r, view, err)
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	index, ok := h.lineIndex(w, r)
	if !ok {
		return
	}
	var req UpdateLineRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.UpdateLine(r.Context(), chi.URLParam(r, "key"), index, pricing.Field(req.Field), req.Value)
	h.respond(w, r, view, err)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	index, ok := h.lineIndex(w, r)
	if !ok {
		return
	}
	view, err := h.service.RemoveLine(r.Context(), chi.URLParam(r, "key"), index)
	h.respond(w, r, view, err)
}

func (h *Handler) setPricing(w http.ResponseWriter, r *http.Request) {
	var req PricingRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.SetPricing(r.Context(), chi.URLParam(r, "key"), req.parameters())
	h.respond(w, r, view, err)
}

func (h *Handler) updateHeader(w http.ResponseWriter, r *http.Request) {
	var req UpdateHeaderRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.UpdateHeader(r.Context(), chi.URLParam(r, "key"), HeaderInput{
		Customer:        req.Customer,
		Currency:        req.Currency,
		TransactionDate: req.TransactionDate.ptr(),
		ValidUntil:      req.ValidUntil.ptr(),
	})
	h.respond(w, r, view, err)
}

func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.SaveDraft(r.Context(), chi.URLParam(r, "key"))
	h.respond(w, r, view, err)
}

func (h *Handler) submitDraft(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.SubmitDraft(r.Context(), chi.URLParam(r, "key"))
	h.respond(w, r, view, err)
}

// ============================================================================
// DOCUMENT HANDLERS
// ============================================================================

func (h *Handler) viewDocument(w http.ResponseWriter, r *http.Request) {
	docType, ok := h.documentType(w, r)
	if !ok {
		return
	}
	view, err := h.service.ViewDocument(r.Context(), docType, chi.URLParam(r, "id"))
	h.respond(w, r, view, err)
}

func (h *Handler) openForEdit(w http.ResponseWriter, r *http.Request) {
	docType, ok := h.documentType(w, r)
	if !ok {
		return
	}
	view, err := h.service.OpenForEdit(r.Context(), docType, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	docType, ok := h.documentType(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.TransitionDocument(r.Context(), docType, chi.URLParam(r, "id"), documents.Status(req.Status))
	h.respond(w, r, view, err)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	docType, ok := h.documentType(w, r)
	if !ok {
		return
	}
	var req ConvertRequest
	if !h.decode(w, r, &req) {
		return
	}
	target, err := documents.ParseDocumentType(req.Target)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	view, err := h.service.ConvertDocument(r.Context(), docType, chi.URLParam(r, "id"), target)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			problems := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				problems[fe.Field()] = fmt.Sprintf("failed on %s", fe.Tag())
			}
			httpx.WriteProblem(w, httpx.ProblemDetail{
				Status: http.StatusBadRequest,
				Title:  "Validation Failed",
				Errors: problems,
			})
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Line Index", "line index must be an integer")
		return 0, false
	}
	return index, true
}

func (h *Handler) documentType(w http.ResponseWriter, r *http.Request) (documents.DocumentType, bool) {
	docType, err := documents.ParseDocumentType(chi.URLParam(r, "type"))
	if err != nil {
		h.respondError(w, r, err)
		return "", false
	}
	return docType, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, view *DocumentView, err error) {
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

var errorRules = []httpx.Rule{
	{Err: ErrDraftNotFound, Status: http.StatusNotFound, Title: "Draft Not Found", Code: "draft_not_found"},
	{Err: documents.ErrNotFound, Status: http.StatusNotFound, Title: "Document Not Found", Code: "not_found"},
	{Err: documents.ErrUnknownDocumentType, Status: http.StatusNotFound, Title: "Unknown Document Type", Code: "unknown_type"},

	{Err: pricing.ErrInvalidQuantity, Status: http.StatusUnprocessableEntity, Title: "Invalid Quantity", Code: "invalid_quantity"},
	{Err: pricing.ErrInvalidPrice, Status: http.StatusUnprocessableEntity, Title: "Invalid Price", Code: "invalid_price"},
	{Err: pricing.ErrIndexOutOfRange, Status: http.StatusUnprocessableEntity, Title: "Line Not Found", Code: "index_out_of_range"},
	{Err: pricing.ErrUnknownField, Status: http.StatusUnprocessableEntity, Title: "Unknown Field", Code: "unknown_field"},
	{Err: pricing.ErrInvalidParameters, Status: http.StatusUnprocessableEntity, Title: "Invalid Pricing", Code: "invalid_pricing"},
	{Err: documents.ErrInvalidDocument, Status: http.StatusUnprocessableEntity, Title: "Invalid Document", Code: "invalid_document"},
	{Err: documents.ErrNoLines, Status: http.StatusUnprocessableEntity, Title: "Empty Document", Code: "no_lines"},

	{Err: documents.ErrDocumentExpired, Status: http.StatusConflict, Title: "Document Expired", Code: "document_expired"},
	{Err: documents.ErrNotEditable, Status: http.StatusConflict, Title: "Not Editable", Code: "not_editable"},
	{Err: documents.ErrInvalidTransition, Status: http.StatusConflict, Title: "Invalid Transition", Code: "invalid_transition"},
	{Err: documents.ErrInvalidStateForConversion, Status: http.StatusConflict, Title: "Invalid State For Conversion", Code: "invalid_state_for_conversion"},
	{Err: documents.ErrUnsupportedConversion, Status: http.StatusConflict, Title: "Unsupported Conversion", Code: "unsupported_conversion"},
	{Err: documents.ErrSourceNotPersisted, Status: http.StatusConflict, Title: "Source Not Saved", Code: "source_not_persisted"},

	{Err: ErrPersistence, Status: http.StatusBadGateway, Title: "Document Store Error", Code: "persistence_error"},
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	p := httpx.RespondError(w, err, errorRules...)
	logger := h.logger.With(slog.String("path", r.URL.Path), slog.Any("error", err))
	switch {
	case p.Status >= http.StatusInternalServerError:
		logger.Error("sales request failed", slog.Int("status", p.Status))
	case p.Status == http.StatusConflict:
		logger.Info("sales request rejected", slog.String("code", p.Code))
	}
}
