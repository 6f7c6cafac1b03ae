package routes

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ledgergate/gateway/middleware"
	"ledgergate/gateway/params"
	"ledgergate/ledger"
)

// Fixed bodies for well-defined absences.
const (
	msgValidatorStateNotFound = "Validator state not found"
	msgEventNotFound          = "Event not found"
	msgProposalNotFound       = "Proposal not found"
)

// Failure classes, also used as metric labels.
const (
	classValidation = "validation"
	classNotFound   = "not_found"
	classQuery      = "query"
)

// notFoundError is a route-defined absence. It is an outcome, not a fault.
type notFoundError struct {
	message string
}

func (e *notFoundError) Error() string {
	return e.message
}

func errNotFound(message string) error {
	return &notFoundError{message: message}
}

type outcome struct {
	class       string
	status      int
	contentType string
	body        []byte
}

// classify maps a pipeline failure onto its HTTP response. Validation
// failures become 400, route-defined absences 404 with a fixed message, and
// everything else, remote query failures included, 500 with the failure
// detail in the body.
func classify(err error) outcome {
	if ve, ok := params.AsValidationError(err); ok {
		return jsonOutcome(classValidation, http.StatusBadRequest, map[string]string{
			"error": ve.Error(),
			"field": ve.Field,
			"kind":  ve.Kind.String(),
		})
	}
	var nf *notFoundError
	if errors.As(err, &nf) {
		return outcome{
			class:       classNotFound,
			status:      http.StatusNotFound,
			contentType: "text/plain; charset=utf-8",
			body:        []byte(nf.message),
		}
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(http.StatusInternalServerError)
	}
	return jsonOutcome(classQuery, http.StatusInternalServerError, map[string]string{"error": message})
}

func jsonOutcome(class string, status int, payload map[string]string) outcome {
	body, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		body = []byte(`{"error":"` + http.StatusText(status) + `"}`)
	}
	return outcome{class: class, status: status, contentType: "application/json", body: body}
}

func (lr *ledgerRoutes) writeError(w http.ResponseWriter, r *http.Request, route string, err error) {
	out := classify(err)
	lr.obs.ObserveFailure(route, out.class)
	attrs := []any{
		slog.String("route", route),
		slog.String("class", out.class),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	}
	switch {
	case out.class == classQuery && ledger.IsQueryError(err):
		lr.logger.Warn("ledger query failed", attrs...)
	case out.class == classQuery:
		lr.logger.Error("request failed", attrs...)
	default:
		lr.logger.Debug("request rejected", attrs...)
	}
	w.Header().Set("Content-Type", out.contentType)
	w.WriteHeader(out.status)
	_, _ = w.Write(out.body)
}
