package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/learning-center-api/internal/models"
)

// Actor identifies who triggered an operation.
type Actor struct {
	UserID    string
	IP        string
	UserAgent string
}

type actorKey struct{}

// WithActor stores actor on ctx for audit records written further down.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored on ctx, or the zero Actor.
func ActorFrom(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorKey{}).(Actor)
	return actor
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditTrail writes best-effort audit rows; failures are logged only.
type auditTrail struct {
	repo   auditWriter
	logger *zap.Logger
}

func (a auditTrail) record(ctx context.Context, action, resource, resourceID string, values interface{}) {
	if a.repo == nil {
		return
	}
	actor := ActorFrom(ctx)
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
	}
	if actor.UserID != "" {
		entry.UserID = &actor.UserID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if values != nil {
		if payload, err := json.Marshal(values); err == nil {
			entry.NewValues = payload
		}
	}
	if err := a.repo.CreateAuditLog(ctx, entry); err != nil && a.logger != nil {
		a.logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}
