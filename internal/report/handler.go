package report

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/claim"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/internal/transport"
	"github.com/frahmantamala/claims-management/pkg/logger"
)

// ApprovedClaimsLister is the slice of the claim service the report needs.
type ApprovedClaimsLister interface {
	ListApprovedClaims(ctx context.Context, actor identity.Actor, from, to *time.Time) ([]*claim.Claim, error)
}

type Handler struct {
	*transport.BaseHandler
	Claims ApprovedClaimsLister
	now    func() time.Time
}

func NewHandler(claims ApprovedClaimsLister) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Claims:      claims,
		now:         time.Now,
	}
}

// ExportCSV handles GET /reports/approved-claims.csv?from=&to=
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequireActor(w, r)
	if !ok {
		return
	}
	from, to, ok := h.ParseDateRange(w, r)
	if !ok {
		return
	}

	claims, err := h.Claims.ListApprovedClaims(r.Context(), actor, from, to)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	now := h.now()
	var buf bytes.Buffer
	if err := WriteApprovedClaimsCSV(&buf, claims, now); err != nil {
		h.HandleServiceError(w, r, internal.NewInternalError("failed to render report", err))
		return
	}

	logger.From(r.Context()).Info("approved claims report exported", "claims", len(claims), "user_id", actor.UserID)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, Filename(now)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.Logger.Error("failed to write report", "error", err)
	}
}
