package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/metrics"
)

// ReplyQueuePrefix prefixes every client's private reply queue.
const ReplyQueuePrefix = "rpc:reply:"

const (
	defaultCallTimeout = 5 * time.Second
	defaultPollWait    = time.Second
	retryBackoff       = 200 * time.Millisecond
)

// Client issues commands and matches replies by correlation id. One reply loop
// per Client reads the private reply queue; Call is safe for concurrent use.
type Client struct {
	broker      Broker
	queue       string
	replyTo     string
	timeout     time.Duration
	pollWait    time.Duration
	log         zerolog.Logger
	mu          sync.Mutex
	pending     map[string]chan Reply
	closed      bool
	stop        context.CancelFunc
	loopStopped chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCallTimeout sets the timeout used when Call is given a non-positive one.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPollWait sets how long a single broker receive may block.
func WithPollWait(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pollWait = d
		}
	}
}

// NewClient returns a Client that sends commands to queue. Start must be called
// before the first Call.
func NewClient(broker Broker, queue string, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		broker:   broker,
		queue:    queue,
		replyTo:  ReplyQueuePrefix + uuid.NewString(),
		timeout:  defaultCallTimeout,
		pollWait: defaultPollWait,
		log:      log,
		pending:  make(map[string]chan Reply),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReplyTo returns the name of the client's private reply queue.
func (c *Client) ReplyTo() string { return c.replyTo }

// Start launches the reply loop. The loop keeps values from ctx but not its
// cancellation: it runs until Close, so calls in flight during shutdown still
// receive their replies.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.stop = cancel
	c.loopStopped = make(chan struct{})
	c.mu.Unlock()
	go c.receiveLoop(ctx)
}

// Close stops the reply loop and fails every waiting call with ErrClientClosed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stop, stopped := c.stop, c.loopStopped
	pending := c.pending
	c.pending = make(map[string]chan Reply)
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-stopped
	}
	for _, ch := range pending {
		close(ch)
	}
}

// CallOption configures a single call.
type CallOption func(*Request)

// WithKey groups the call with others sharing key; the server runs such calls
// one at a time.
func WithKey(key string) CallOption {
	return func(r *Request) { r.Key = key }
}

// Call sends tag with payload and waits for its reply. A reply carrying an
// error envelope is returned as *domain.Error with the original status. When
// no reply arrives within timeout, Call returns ErrTimeout; the command may
// still be applied by the service.
func (c *Client) Call(ctx context.Context, tag domain.CommandTag, payload any, timeout time.Duration, opts ...CallOption) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	start := time.Now()
	data, err := c.call(ctx, tag, payload, timeout, opts)
	metrics.RPCCallDuration.WithLabelValues(string(tag)).Observe(time.Since(start).Seconds())
	metrics.RPCCallsTotal.WithLabelValues(string(tag), outcome(err)).Inc()
	return data, err
}

func (c *Client) call(ctx context.Context, tag domain.CommandTag, payload any, timeout time.Duration, opts []CallOption) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode %s payload: %w", tag, err)
	}
	req := Request{
		ID:      uuid.NewString(),
		Command: tag,
		ReplyTo: c.replyTo,
		Payload: raw,
		SentAt:  time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&req)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode request: %w", err)
	}

	ch := make(chan Reply, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer c.forget(req.ID)

	if err := c.broker.Publish(ctx, c.queue, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, ErrClientClosed
		}
		if reply.Error != nil {
			return nil, reply.Error.Err()
		}
		return reply.Data, nil
	case <-timer.C:
		c.log.Warn().
			Str("command", string(tag)).
			Str("correlation_id", req.ID).
			Dur("timeout", timeout).
			Msg("rpc call timed out")
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) receiveLoop(ctx context.Context) {
	defer close(c.loopStopped)
	for {
		body, ok, err := c.broker.Receive(ctx, c.replyTo, c.pollWait)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.Warn().Err(err).Str("queue", c.replyTo).Msg("reply receive failed")
			sleep(ctx, retryBackoff)
			continue
		}
		if !ok {
			continue
		}
		c.deliver(body)
	}
}

func (c *Client) deliver(body []byte) {
	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		c.log.Warn().Err(err).Msg("discarding undecodable reply")
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[reply.ID]
	delete(c.pending, reply.ID)
	c.mu.Unlock()

	if !ok {
		metrics.RPCLateRepliesTotal.Inc()
		c.log.Debug().Str("correlation_id", reply.ID).Msg("dropping reply without waiting caller")
		return
	}
	ch <- reply
}

func outcome(err error) string {
	var de *domain.Error
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &de):
		return "error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "transport"
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
