package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/identity-system/internal/core/domain"
)

type echoPayload struct {
	Name string `json:"name" validate:"required"`
}

func newEchoRouter(t *testing.T) *Router {
	t.Helper()
	r := NewRouter(zerolog.Nop())
	Handle(r, "echo", func(_ context.Context, in echoPayload) (any, error) {
		return map[string]string{"hello": in.Name}, nil
	})
	return r
}

func TestRouter_DispatchSuccess(t *testing.T) {
	r := newEchoRouter(t)

	reply := r.Dispatch(context.Background(), Request{ID: "1", Command: "echo", Payload: json.RawMessage(`{"name":"alice"}`)})

	require.Nil(t, reply.Error)
	require.Equal(t, "1", reply.ID)
	require.JSONEq(t, `{"hello":"alice"}`, string(reply.Data))
}

func TestRouter_UnknownCommandFailsLoudly(t *testing.T) {
	r := newEchoRouter(t)

	reply := r.Dispatch(context.Background(), Request{ID: "2", Command: "nope"})

	require.NotNil(t, reply.Error)
	require.Equal(t, http.StatusInternalServerError, reply.Error.StatusCode)
	require.Contains(t, reply.Error.Message, `"nope"`)
}

func TestRouter_PayloadShapeMismatchIsBadRequest(t *testing.T) {
	r := newEchoRouter(t)

	cases := map[string]string{
		"wrong type":    `{"name":42}`,
		"unknown field": `{"name":"a","extra":true}`,
		"not an object": `"just a string"`,
		"missing field": `{}`,
		"empty":         ``,
	}
	for name, payload := range cases {
		reply := r.Dispatch(context.Background(), Request{ID: name, Command: "echo", Payload: json.RawMessage(payload)})
		require.NotNil(t, reply.Error, name)
		require.Equal(t, http.StatusBadRequest, reply.Error.StatusCode, name)
	}
}

func TestRouter_DomainErrorsPassVerbatim(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	Handle(r, "conflict", func(context.Context, struct{}) (any, error) {
		return nil, domain.ErrUserExists
	})

	reply := r.Dispatch(context.Background(), Request{ID: "3", Command: "conflict", Payload: json.RawMessage(`{}`)})

	require.Equal(t, &domain.ErrorEnvelope{StatusCode: http.StatusConflict, Message: "Email already exists"}, reply.Error)
}

func TestRouter_UntypedErrorsBecomeInternal(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	Handle(r, "boom", func(context.Context, struct{}) (any, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	Handle(r, "panic", func(context.Context, struct{}) (any, error) {
		panic("unexpected")
	})

	for _, cmd := range []domain.CommandTag{"boom", "panic"} {
		reply := r.Dispatch(context.Background(), Request{ID: "4", Command: cmd, Payload: json.RawMessage(`{}`)})
		require.NotNil(t, reply.Error)
		require.Equal(t, http.StatusInternalServerError, reply.Error.StatusCode)
		require.Equal(t, "Internal server error", reply.Error.Message, "internal details must not leak")
	}
}

func TestRouter_DuplicateRegistrationPanics(t *testing.T) {
	r := newEchoRouter(t)
	require.Panics(t, func() {
		r.Register("echo", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	})
	require.True(t, r.Has("echo"))
	require.False(t, r.Has("other"))
}
