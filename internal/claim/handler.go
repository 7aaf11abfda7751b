package claim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/internal/document"
	"github.com/frahmantamala/claims-management/internal/transport"
	"github.com/frahmantamala/claims-management/pkg/logger"
)

const (
	maxDocumentsPerClaim = 10
	multipartMemory      = 8 << 20
)

type ServiceAPI interface {
	SubmitClaim(ctx context.Context, actor identity.Actor, dto SubmitClaimDTO, uploads []document.Upload) (*Claim, error)
	Verify(ctx context.Context, actor identity.Actor, claimID int64) (*Claim, error)
	Approve(ctx context.Context, actor identity.Actor, claimID int64, approve bool) (*Claim, error)
	GetClaim(ctx context.Context, actor identity.Actor, claimID int64) (*Claim, error)
	AuditTrail(ctx context.Context, actor identity.Actor, claimID int64) ([]*AuditEntry, error)
	ListLecturerClaims(ctx context.Context, actor identity.Actor, status string) ([]*Claim, error)
	ListPendingClaims(ctx context.Context, actor identity.Actor) ([]*Claim, error)
	ListVerifiedClaims(ctx context.Context, actor identity.Actor) ([]*Claim, error)
	ListApprovedClaims(ctx context.Context, actor identity.Actor, from, to *time.Time) ([]*Claim, error)
}

type Handler struct {
	*transport.BaseHandler
	Service         ServiceAPI
	maxDocumentSize int64
}

func NewHandler(service ServiceAPI, maxDocumentSize int64) *Handler {
	if maxDocumentSize <= 0 {
		maxDocumentSize = document.MaxSize
	}
	return &Handler{
		BaseHandler:     transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:         service,
		maxDocumentSize: maxDocumentSize,
	}
}

// SubmitClaim handles POST /claims. Accepts multipart/form-data with the claim
// fields and zero or more "documents" files, or a plain JSON body without documents.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	var (
		dto     SubmitClaimDTO
		uploads []document.Upload
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxDocumentSize*maxDocumentsPerClaim+multipartMemory)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			h.WriteError(w, internal.NewValidationError("invalid multipart form: "+err.Error(), internal.ErrCodeValidationFailed))
			return
		}
		defer r.MultipartForm.RemoveAll()

		var parseErrs []internal.ValidationError
		dto, parseErrs = submitDTOFromForm(r.MultipartForm)
		if len(parseErrs) > 0 {
			h.WriteError(w, withValidationErrors(parseErrs, dto))
			return
		}

		files := r.MultipartForm.File["documents"]
		if len(files) > maxDocumentsPerClaim {
			h.WriteError(w, internal.NewValidationFieldError("documents", fmt.Sprintf("at most %d documents per claim", maxDocumentsPerClaim), internal.ErrCodeInvalidDocument))
			return
		}
		for _, fh := range files {
			up, err := h.readUpload(fh)
			if err != nil {
				h.Logger.Error("SubmitClaim: failed to read upload", "error", err, "filename", fh.Filename)
				h.WriteError(w, internal.NewValidationFieldError("documents", fh.Filename+": could not be read", internal.ErrCodeInvalidDocument))
				return
			}
			uploads = append(uploads, up)
		}
	} else if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed))
		return
	}

	c, err := h.Service.SubmitClaim(r.Context(), actor, dto, uploads)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, SubmitClaimResponse{Claim: c, NeedsManualReview: c.NeedsManualReview()})
}

// readUpload reads at most one byte past the limit so oversize files are
// detected by validation without buffering them whole.
func (h *Handler) readUpload(fh *multipart.FileHeader) (document.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return document.Upload{}, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxDocumentSize+1))
	if err != nil {
		return document.Upload{}, err
	}
	return document.Upload{Filename: fh.Filename, Content: content}, nil
}

func submitDTOFromForm(form *multipart.Form) (SubmitClaimDTO, []internal.ValidationError) {
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	var errs []internal.ValidationError
	number := func(key string) int {
		raw := strings.TrimSpace(value(key))
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, internal.ValidationError{
				Field:   key,
				Message: key + " must be a whole number",
				Code:    string(internal.ErrCodeInvalidQuantity),
			})
		}
		return n
	}

	dto := SubmitClaimDTO{
		Sessions:    number("sessions"),
		Hours:       number("hours"),
		Rate:        number("rate"),
		ModuleName:  value("module_name"),
		FacultyName: value("faculty_name"),
	}
	return dto, errs
}

// withValidationErrors adds the DTO's own failures to parse failures, skipping
// fields that already failed to parse.
func withValidationErrors(parseErrs []internal.ValidationError, dto SubmitClaimDTO) *internal.AppError {
	failed := make(map[string]bool, len(parseErrs))
	for _, e := range parseErrs {
		failed[e.Field] = true
	}

	errs := append([]internal.ValidationError{}, parseErrs...)
	dto.Normalize()
	if appErr, ok := internal.IsAppError(dto.Validate()); ok {
		if details, ok := appErr.Details.(internal.ValidationErrors); ok {
			for _, e := range details.Errors {
				if !failed[e.Field] {
					errs = append(errs, e)
				}
			}
		}
	}
	return internal.NewValidationErrors(errs)
}

// ListMyClaims handles GET /claims?status=
func (h *Handler) ListMyClaims(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	claims, err := h.Service.ListLecturerClaims(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ClaimsResponse{Claims: claims, Count: len(claims)})
}

func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}
	claimID, ok := h.ParseIDParam(w, r, "id")
	if !ok {
		return
	}

	c, err := h.Service.GetClaim(r.Context(), actor, claimID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}
	claimID, ok := h.ParseIDParam(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.Service.AuditTrail(r.Context(), actor, claimID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, AuditTrailResponse{ClaimID: claimID, Entries: entries})
}

// ListPending handles GET /claims/pending for coordinators.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	h.listQueue(w, r, h.Service.ListPendingClaims)
}

// ListVerified handles GET /claims/verified for managers.
func (h *Handler) ListVerified(w http.ResponseWriter, r *http.Request) {
	h.listQueue(w, r, h.Service.ListVerifiedClaims)
}

func (h *Handler) listQueue(w http.ResponseWriter, r *http.Request, list func(context.Context, identity.Actor) ([]*Claim, error)) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}

	claims, err := list(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ClaimsResponse{Claims: claims, Count: len(claims)})
}

// VerifyClaim handles PATCH /claims/{id}/verify
func (h *Handler) VerifyClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}
	claimID, ok := h.ParseIDParam(w, r, "id")
	if !ok {
		return
	}

	c, err := h.Service.Verify(r.Context(), actor, claimID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, c)
}

// DecideClaim handles PATCH /claims/{id}/decision with {"approve": bool}
func (h *Handler) DecideClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}
	claimID, ok := h.ParseIDParam(w, r, "id")
	if !ok {
		return
	}

	var dto DecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed))
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	c, err := h.Service.Approve(r.Context(), actor, claimID, *dto.Approve)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, c)
}

// ListApproved handles GET /hr/claims/approved?from=&to=
func (h *Handler) ListApproved(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}
	from, to, ok := h.ParseDateRange(w, r)
	if !ok {
		return
	}

	claims, err := h.Service.ListApprovedClaims(r.Context(), actor, from, to)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ClaimsResponse{Claims: claims, Count: len(claims)})
}
