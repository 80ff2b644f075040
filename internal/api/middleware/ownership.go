package middleware

import (
	"context"
	stdErrors "errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "estately/internal/api/context"
	"estately/internal/pkg/errors"
	"estately/internal/platform/auth"
	"estately/internal/platform/models"
	"estately/internal/platform/repositories"
)

type PropertyFinder interface {
	GetByID(ctx context.Context, id string) (*models.Property, error)
}

// PropertyOwnership allows the request only for the owner of the property
// named by the :property_id route parameter, or for admins.
type PropertyOwnership struct {
	properties PropertyFinder
}

func NewPropertyOwnership(properties PropertyFinder) *PropertyOwnership {
	return &PropertyOwnership{properties: properties}
}

func (m *PropertyOwnership) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
		propertyID := params.ByName("property_id")
		if propertyID == "" {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Missing property id", nil)
			return
		}

		property, err := m.properties.GetByID(r.Context(), propertyID)
		if err != nil {
			if stdErrors.Is(err, repositories.ErrNotFound) {
				errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Property not found", nil)
				return
			}
			log.Error().Err(err).Str("property_id", propertyID).Msg("failed to load property")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load property", nil)
			return
		}

		if property.OwnerID != claims.UserID && claims.Role != auth.RoleAdmin {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "You do not own this property", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Property, property)
		next(w, r.WithContext(ctx))
	}
}
