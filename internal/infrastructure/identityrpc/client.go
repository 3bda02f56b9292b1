package identityrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/ports"
	"github.com/99minutos/identity-system/internal/rpc"
)

// Client implements ports.IdentityService by sending commands to the identity
// service. Commands about the same user share an ordering key.
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
}

var _ ports.IdentityService = (*Client)(nil)

func NewClient(c *rpc.Client, timeout time.Duration) *Client {
	return &Client{rpc: c, timeout: timeout}
}

func userKey(id int64) string      { return "user:" + strconv.FormatInt(id, 10) }
func emailKey(email string) string { return "email:" + email }

func (c *Client) call(ctx context.Context, tag domain.CommandTag, payload, out any, key string) error {
	data, err := c.rpc.Call(ctx, tag, payload, c.timeout, rpc.WithKey(key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", tag, err)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, in domain.RegisterPayload) (*domain.User, error) {
	var out domain.User
	if err := c.call(ctx, domain.CmdRegister, in, &out, emailKey(in.Email)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, in domain.LoginPayload) (*domain.TokenPair, error) {
	var out domain.TokenPair
	if err := c.call(ctx, domain.CmdLogin, in, &out, emailKey(in.Email)); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh carries no trusted identity, so it is not ordered against other commands.
func (c *Client) Refresh(ctx context.Context, in domain.RefreshPayload) (*domain.AccessToken, error) {
	var out domain.AccessToken
	if err := c.call(ctx, domain.CmdRefresh, in, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProfile(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	var out domain.User
	if err := c.call(ctx, domain.CmdGetProfile, domain.ActorPayload{User: actor}, &out, userKey(actor.UserID)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUsers(ctx context.Context, actor domain.Actor) ([]*domain.User, error) {
	var out []*domain.User
	if err := c.call(ctx, domain.CmdGetUsers, domain.ActorPayload{User: actor}, &out, userKey(actor.UserID)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateUser(ctx context.Context, actor domain.Actor, update domain.UserUpdate) (*domain.User, error) {
	payload := domain.UpdateUserPayload{Data: update, User: actor}
	var out domain.User
	if err := c.call(ctx, domain.CmdUpdateUser, payload, &out, userKey(actor.UserID)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	var out domain.User
	if err := c.call(ctx, domain.CmdDeleteUser, domain.ActorPayload{User: actor}, &out, userKey(actor.UserID)); err != nil {
		return nil, err
	}
	return &out, nil
}
