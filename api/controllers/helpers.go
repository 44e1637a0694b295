package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmucavele/pdv-backend/api/middleware"
	"github.com/jmucavele/pdv-backend/internal/audit"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
)

// actorFromContext builds the audited actor from the identity seeded by the
// auth middleware.
func actorFromContext(r *http.Request) (audit.Actor, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return audit.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return audit.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}

	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return audit.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}

	return audit.Actor{UserID: uid, Role: role}, nil
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

func parseOptionalUUIDQuery(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return &id, nil
}
