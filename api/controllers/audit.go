package controllers

import (
	"net/http"
	"strings"

	"github.com/jmucavele/pdv-backend/api/responses"
	"github.com/jmucavele/pdv-backend/api/validators"
	"github.com/jmucavele/pdv-backend/internal/audit"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/logger"
	"github.com/jmucavele/pdv-backend/pkg/pagination"
)

// ListAuditLog returns a filtered page of the audit ledger.
func ListAuditLog(repo *audit.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit repository unavailable"))
			return
		}

		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !actor.Role.Can(enums.CapViewAuditLog) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "audit log not allowed"))
			return
		}

		params := audit.ListParams{
			EntityType: validators.SanitizeString(r.URL.Query().Get("entity_type"), 60),
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		entityID, err := parseOptionalUUIDQuery(r, "entity_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.EntityID = entityID

		actorID, err := parseOptionalUUIDQuery(r, "actor_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.ActorID = actorID

		if raw := strings.TrimSpace(r.URL.Query().Get("action")); raw != "" {
			action, err := enums.ParseAuditAction(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
				return
			}
			params.Action = &action
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
			cursor, err := pagination.ParseCursor(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
				return
			}
			params.Cursor = cursor
		}

		entries, next, err := repo.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{"entries": entries}
		if next != nil {
			payload["next_cursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}
