package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const maxDeadLetterPage = 200

// DeadLetterDesk is the outbox remediation surface.
type DeadLetterDesk interface {
	ListDeadLetters(ctx context.Context, reason *enums.OutboxDLQErrorReason, limit int) ([]outbox.DeadLetter, error)
	Requeue(ctx context.Context, eventID uuid.UUID) (*outbox.DeadLetter, error)
}

// ListDeadLetters shows the newest dead-lettered events, optionally for one ?reason=.
func ListDeadLetters(desk DeadLetterDesk, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, maxDeadLetterPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var reason *enums.OutboxDLQErrorReason
		if raw := strings.TrimSpace(r.URL.Query().Get("reason")); raw != "" {
			parsed, err := enums.ParseOutboxDLQErrorReason(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason filter"))
				return
			}
			reason = &parsed
		}

		letters, err := desk.ListDeadLetters(r.Context(), reason, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"dead_letters": letters})
	}
}

// RequeueDeadLetter hands a dead-lettered event back to the dispatcher with a fresh attempt budget.
func RequeueDeadLetter(desk DeadLetterDesk, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "eventId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "event id must be a uuid"))
			return
		}
		requeued, err := desk.Requeue(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, requeued)
	}
}
