package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-system/internal/infrastructure/queue"
)

const (
	defaultHandlerTimeout = 10 * time.Second
	replyPublishTimeout   = 5 * time.Second
)

// Server consumes a command queue and replies to every decodable request
// exactly once.
type Server struct {
	broker         Broker
	queue          string
	router         *Router
	workers        int
	pollWait       time.Duration
	handlerTimeout time.Duration
	log            zerolog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWorkers sets the number of sharded workers.
func WithWorkers(n int) ServerOption {
	return func(s *Server) { s.workers = n }
}

// WithHandlerTimeout bounds a single handler run.
func WithHandlerTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.handlerTimeout = d
		}
	}
}

// WithServerPollWait sets how long a single broker receive may block.
func WithServerPollWait(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.pollWait = d
		}
	}
}

func NewServer(broker Broker, queue string, router *Router, log zerolog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		broker:         broker,
		queue:          queue,
		router:         router,
		pollWait:       defaultPollWait,
		handlerTimeout: defaultHandlerTimeout,
		log:            log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run receives requests until ctx is cancelled, then waits for in-flight
// handlers to finish and reply. Handlers run on a context that is not
// cancelled with ctx: a started command always completes.
func (s *Server) Run(ctx context.Context) error {
	handlerCtx := context.WithoutCancel(ctx)
	dispatcher := queue.NewDispatcher(s.workers, s.handle, s.log)
	dispatcher.Start(handlerCtx)
	defer dispatcher.Close()

	s.log.Info().Str("queue", s.queue).Msg("rpc server listening")
	for {
		body, ok, err := s.broker.Receive(ctx, s.queue, s.pollWait)
		if ctx.Err() != nil {
			s.log.Info().Msg("rpc server draining")
			return nil
		}
		if err != nil {
			s.log.Warn().Err(err).Str("queue", s.queue).Msg("request receive failed")
			sleep(ctx, retryBackoff)
			continue
		}
		if !ok {
			continue
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil || req.ID == "" || req.ReplyTo == "" {
			// Without a trustworthy reply address there is nobody to answer.
			s.log.Error().Err(err).Msg("dropping malformed request")
			continue
		}
		key := req.Key
		if key == "" {
			key = req.ID
		}
		if err := dispatcher.Enqueue(handlerCtx, queue.Job[Request]{Key: key, Payload: req}); err != nil {
			s.log.Error().Err(err).Str("correlation_id", req.ID).Msg("enqueue request")
		}
	}
}

func (s *Server) handle(ctx context.Context, req Request) {
	hctx, cancel := context.WithTimeout(ctx, s.handlerTimeout)
	reply := s.router.Dispatch(hctx, req)
	cancel()

	body, err := json.Marshal(reply)
	if err != nil {
		s.log.Error().Err(err).Str("correlation_id", req.ID).Msg("encode reply")
		return
	}
	pctx, cancel := context.WithTimeout(ctx, replyPublishTimeout)
	defer cancel()
	if err := s.broker.Publish(pctx, req.ReplyTo, body); err != nil {
		s.log.Error().Err(err).
			Str("command", string(req.Command)).
			Str("correlation_id", req.ID).
			Msg("publish reply")
	}
}
