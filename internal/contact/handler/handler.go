package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"contactgraph/internal/contact/models"
	"contactgraph/internal/platform/middleware"
	"contactgraph/pkg/domain"
	dErrors "contactgraph/pkg/domain-errors"
	"contactgraph/pkg/platform/httputil"
	"contactgraph/pkg/requestcontext"
)

// maxBodyBytes bounds the identify request body.
const maxBodyBytes = 64 << 10

// Service defines the reconciliation operation the handler depends on.
type Service interface {
	Reconcile(ctx context.Context, owner domain.OwnerScope, req models.IdentifyRequest) (*models.Identity, error)
}

// Handler serves the identify endpoint.
type Handler struct {
	contacts    Service
	logger      *slog.Logger
	diagnostics bool
}

// New creates a new contact Handler. With diagnostics enabled, server-side
// failures include the underlying error text in error_detail.
func New(contacts Service, logger *slog.Logger, diagnostics bool) *Handler {
	return &Handler{
		contacts:    contacts,
		logger:      logger,
		diagnostics: diagnostics,
	}
}

// Register registers the contact routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identify", h.HandleIdentify)
}

// HandleIdentify reconciles one partial identity for the authenticated owner.
func (h *Handler) HandleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	owner := requestcontext.OwnerScope(ctx)
	if owner.IsNil() {
		// Only reachable when the route is mounted without RequireOwnerScope.
		h.logger.ErrorContext(ctx, "owner scope missing from context",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing owner scope"))
		return
	}

	req, err := decodeIdentifyRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.WarnContext(ctx, "invalid identify request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	identity, err := h.contacts.Reconcile(ctx, owner, req)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, identity)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	requestID := middleware.GetRequestID(ctx)
	code := dErrors.CodeOf(err)

	if status := httputil.StatusFor(code); status < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, "identify rejected",
			"request_id", requestID,
			"code", string(code),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.ErrorContext(ctx, "identify failed",
		"request_id", requestID,
		"code", string(code),
		"error", err.Error(),
	)
	if !dErrors.IsDomain(err) {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
	if h.diagnostics {
		httputil.WriteErrorWithDetail(w, err)
		return
	}
	httputil.WriteError(w, err)
}

func decodeIdentifyRequest(body io.Reader) (models.IdentifyRequest, error) {
	var payload identifyPayload
	dec := json.NewDecoder(body)
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return models.IdentifyRequest{}, dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		var fieldErr *fragmentTypeError
		if errors.As(err, &fieldErr) {
			return models.IdentifyRequest{}, dErrors.New(dErrors.CodeBadRequest, fieldErr.Error())
		}
		return models.IdentifyRequest{}, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return payload.toModel(), nil
}
