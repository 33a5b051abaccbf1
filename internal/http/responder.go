package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
	"github.com/crisferre80/gestion-politica-sub000/internal/logging"
)

var (
	errBadRequestBody   = errors.New("Formato de solicitud inválido.")
	errInvalidPointID   = errors.New("Identificador de punto inválido.")
	errInvalidClaimID   = errors.New("Identificador de reclamo inválido.")
	errInvalidQuery     = errors.New("Parámetros de consulta inválidos.")
	errMissingActor     = errors.New("Debe identificarse para realizar esta operación.")
	errInvalidActorRole = errors.New("Rol de usuario desconocido.")
	errRateLimited      = errors.New("Demasiadas solicitudes. Intente nuevamente en unos segundos.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var pErr *application.PenaltyError
	if errors.As(err, &pErr) {
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode:   "CLAIM_PENALTY",
			Message:     "Cancelaste este punto hace poco. Podrás volver a reclamarlo más tarde.",
			AvailableAt: pErr.AvailableAt.UTC().Format(time.RFC3339),
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "FORBIDDEN",
			Message:   "No tiene permiso para realizar esta operación.",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "El recurso solicitado no existe."})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "CLAIM_CONFLICT",
			Message:   "El punto ya no está disponible. Actualice la lista de puntos.",
		})
	case errors.Is(err, application.ErrAlreadyTerminal):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "CLAIM_TERMINAL",
			Message:   "El reclamo ya fue completado o cancelado.",
		})
	case errors.Is(err, application.ErrTransientStorage):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Message: "El servicio no está disponible temporalmente. Intente nuevamente."})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "Los datos ingresados no son válidos.",
				Errors:  localizeValidationErrors(vErr),
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "Ocurrió un error interno en el servidor."})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, r.logger)
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "La solicitud no es válida."
	case http.StatusUnauthorized:
		return "Debe identificarse para realizar esta operación."
	case http.StatusForbidden:
		return "No tiene permiso para realizar esta operación."
	case http.StatusNotFound:
		return "El recurso solicitado no existe."
	case http.StatusConflict:
		return "La solicitud entra en conflicto con el estado actual del recurso."
	case http.StatusUnprocessableEntity:
		return "Los datos ingresados no son válidos."
	case http.StatusTooManyRequests:
		return "Demasiadas solicitudes. Intente nuevamente en unos segundos."
	default:
		return "Ocurrió un error interno en el servidor."
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "owner is required":
		return "El dueño del punto es obligatorio."
	case "address is required":
		return "La dirección es obligatoria."
	case "type must be individual or colective_point":
		return "El tipo debe ser individual o colective_point."
	case "lat and lng must be provided together":
		return "La latitud y la longitud deben indicarse juntas."
	case "coordinates are out of range":
		return "Las coordenadas están fuera de rango."
	case "recycler is required":
		return "El reciclador es obligatorio."
	case "point is required":
		return "El punto de recolección es obligatorio."
	case "pickup time is required":
		return "El horario de retiro es obligatorio."
	case "owner does not match the point":
		return "El dueño indicado no corresponde al punto."
	case "owners cannot claim their own point":
		return "No puede reclamar su propio punto."
	case "max distance must not be negative":
		return "La distancia máxima no puede ser negativa."
	case "actor is required":
		return "El usuario es obligatorio."
	case "name is required":
		return "El nombre es obligatorio."
	case "email is invalid":
		return "El correo electrónico no es válido."
	case "violates a storage constraint":
		return "Los datos no cumplen las restricciones del sistema."
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode   string            `json:"error_code,omitempty"`
	Message     string            `json:"message"`
	Errors      map[string]string `json:"errors,omitempty"`
	AvailableAt string            `json:"available_at,omitempty"`
}
