// Package identityrpc binds the identity command set to the RPC transport:
// RegisterHandlers serves it, Client consumes it.
package identityrpc

import (
	"context"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/ports"
	"github.com/99minutos/identity-system/internal/rpc"
)

// RegisterHandlers binds every identity command to svc.
func RegisterHandlers(r *rpc.Router, svc ports.IdentityService) {
	rpc.Handle(r, domain.CmdRegister, func(ctx context.Context, in domain.RegisterPayload) (any, error) {
		return svc.Register(ctx, in)
	})
	rpc.Handle(r, domain.CmdLogin, func(ctx context.Context, in domain.LoginPayload) (any, error) {
		return svc.Login(ctx, in)
	})
	rpc.Handle(r, domain.CmdRefresh, func(ctx context.Context, in domain.RefreshPayload) (any, error) {
		return svc.Refresh(ctx, in)
	})
	rpc.Handle(r, domain.CmdGetProfile, func(ctx context.Context, in domain.ActorPayload) (any, error) {
		return svc.GetProfile(ctx, in.User)
	})
	rpc.Handle(r, domain.CmdGetUsers, func(ctx context.Context, in domain.ActorPayload) (any, error) {
		return svc.ListUsers(ctx, in.User)
	})
	rpc.Handle(r, domain.CmdUpdateUser, func(ctx context.Context, in domain.UpdateUserPayload) (any, error) {
		return svc.UpdateUser(ctx, in.User, in.Data)
	})
	rpc.Handle(r, domain.CmdDeleteUser, func(ctx context.Context, in domain.ActorPayload) (any, error) {
		return svc.DeleteUser(ctx, in.User)
	})
}
