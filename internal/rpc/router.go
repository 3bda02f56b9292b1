package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/metrics"
)

// HandlerFunc handles one decoded command payload. It returns a result to be
// JSON-encoded or an error; *domain.Error values are sent to the caller verbatim.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Router maps command tags to handlers. Registration happens at startup; the
// handler table is read-only afterwards and safe for concurrent Dispatch.
type Router struct {
	handlers map[domain.CommandTag]HandlerFunc
	validate *validator.Validate
	log      zerolog.Logger
}

func NewRouter(log zerolog.Logger) *Router {
	return &Router{
		handlers: make(map[domain.CommandTag]HandlerFunc),
		validate: validator.New(),
		log:      log,
	}
}

// Register binds tag to h. Registering a tag twice is a programming error and panics.
func (r *Router) Register(tag domain.CommandTag, h HandlerFunc) {
	if _, exists := r.handlers[tag]; exists {
		panic(fmt.Sprintf("rpc: handler for command %q already registered", tag))
	}
	r.handlers[tag] = h
}

// Handle registers a handler taking a typed payload. The payload is decoded
// strictly into T and validated; any mismatch is answered with BadRequest
// before fn runs.
func Handle[T any](r *Router, tag domain.CommandTag, fn func(ctx context.Context, in T) (any, error)) {
	r.Register(tag, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var in T
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return nil, domain.BadRequest("invalid payload: " + err.Error())
		}
		if err := r.validate.Struct(in); err != nil {
			return nil, domain.BadRequest(validationMessage(err))
		}
		return fn(ctx, in)
	})
}

// Has reports whether tag has a handler.
func (r *Router) Has(tag domain.CommandTag) bool {
	_, ok := r.handlers[tag]
	return ok
}

// Dispatch runs the handler for req and always returns a Reply.
func (r *Router) Dispatch(ctx context.Context, req Request) Reply {
	start := time.Now()
	log := r.log.With().Str("command", string(req.Command)).Str("correlation_id", req.ID).Logger()

	h, ok := r.handlers[req.Command]
	if !ok {
		// A command nobody handles is a deployment mismatch, not a user error.
		log.Error().Msg("no handler registered for command")
		metrics.CommandsHandledTotal.WithLabelValues("unknown", strconv.Itoa(http.StatusInternalServerError)).Inc()
		return errorReply(req.ID, domain.NewError(http.StatusInternalServerError,
			fmt.Sprintf("no handler registered for command %q", req.Command)))
	}

	defer func() {
		metrics.CommandDuration.WithLabelValues(string(req.Command)).Observe(time.Since(start).Seconds())
	}()

	result, err := r.invoke(ctx, h, req.Payload)
	if err != nil {
		de := asDomainError(err)
		if de.Code >= http.StatusInternalServerError {
			log.Error().Err(err).Int("status", de.Code).Msg("command failed")
		} else {
			log.Debug().Int("status", de.Code).Str("message", de.Message).Msg("command rejected")
		}
		metrics.CommandsHandledTotal.WithLabelValues(string(req.Command), strconv.Itoa(de.Code)).Inc()
		return errorReply(req.ID, de)
	}

	data, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Msg("encode command result")
		metrics.CommandsHandledTotal.WithLabelValues(string(req.Command), strconv.Itoa(http.StatusInternalServerError)).Inc()
		return errorReply(req.ID, domain.ErrInternal)
	}
	metrics.CommandsHandledTotal.WithLabelValues(string(req.Command), strconv.Itoa(http.StatusOK)).Inc()
	return Reply{ID: req.ID, Data: data}
}

func (r *Router) invoke(ctx context.Context, h HandlerFunc, payload json.RawMessage) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = domain.Internal(fmt.Errorf("handler panic: %v", p))
		}
	}()
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return h(ctx, payload)
}

func errorReply(id string, e *domain.Error) Reply {
	env := e.Envelope()
	return Reply{ID: id, Error: &env}
}

// asDomainError keeps typed errors intact and turns anything else into a
// generic internal error.
func asDomainError(err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.Internal(err)
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(field), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
