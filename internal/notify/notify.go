// Package notify records notifications and pushes them to the recipient's
// own-user room.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/npezzotti/flashchat/internal/cache"
	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/server"
	"github.com/npezzotti/flashchat/internal/stats"
	"github.com/npezzotti/flashchat/internal/types"
)

const MetricNotificationsDispatched = "NumNotificationsDispatched"

var ErrInvalidType = errors.New("invalid notification type")

// Event is a domain action that may notify RecipientId.
type Event struct {
	Type        string
	ActorId     string
	RecipientId string
	PostId      string
	CommentId   string
	MessageId   string
}

type Dispatcher struct {
	log      *log.Logger
	db       database.Repository
	profiles *cache.ProfileResolver
	emitter  server.Emitter
	stats    stats.StatsProvider
}

func NewDispatcher(logger *log.Logger, db database.Repository, profiles *cache.ProfileResolver, emitter server.Emitter, su stats.StatsProvider) *Dispatcher {
	su.RegisterMetric(MetricNotificationsDispatched)

	return &Dispatcher{
		log:      logger,
		db:       db,
		profiles: profiles,
		emitter:  emitter,
		stats:    su,
	}
}

// Dispatch persists a notification for ev and emits it to the recipient. It
// returns (nil, nil) when the actor is the recipient. A persistence failure
// is returned and nothing is emitted. An empty recipient room is not an
// error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (*types.Notification, error) {
	if ev.ActorId == ev.RecipientId {
		return nil, nil
	}
	if !types.ValidNotificationType(ev.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, ev.Type)
	}
	if ev.RecipientId == "" {
		return nil, fmt.Errorf("notification without recipient")
	}

	n, err := d.db.CreateNotification(database.CreateNotificationParams{
		UserId:     ev.RecipientId,
		Type:       ev.Type,
		FromUserId: ev.ActorId,
		PostId:     ev.PostId,
		CommentId:  ev.CommentId,
		MessageId:  ev.MessageId,
	})
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	resolved := d.resolve(ctx, n)

	delivered := d.emitter.Emit(server.UserRoom(ev.RecipientId), server.EventNotification, resolved)
	d.stats.Incr(MetricNotificationsDispatched)
	if delivered == 0 {
		d.log.Printf("notification %s for %s stored, recipient offline", n.Id, ev.RecipientId)
	}

	return resolved, nil
}

// resolve attaches the actor's display fields. A lookup failure leaves only
// the actor id so the stored record is still delivered.
func (d *Dispatcher) resolve(ctx context.Context, n database.Notification) *types.Notification {
	out := toNotification(n)
	if n.FromUserId == "" {
		return out
	}

	actor, err := d.profiles.One(ctx, n.FromUserId)
	if err != nil {
		d.log.Printf("resolve actor %s: %v", n.FromUserId, err)
		out.FromUser = &types.PublicUser{Id: n.FromUserId}
		return out
	}
	out.FromUser = &actor
	return out
}

// List returns userId's notifications newest first with actors resolved.
func (d *Dispatcher) List(ctx context.Context, userId string) ([]types.Notification, error) {
	ns, err := d.db.ListNotifications(userId)
	if err != nil {
		return nil, err
	}

	var actorIds []string
	for _, n := range ns {
		if n.FromUserId != "" {
			actorIds = append(actorIds, n.FromUserId)
		}
	}

	actors, err := d.profiles.Resolve(ctx, actorIds...)
	if err != nil {
		return nil, err
	}

	out := make([]types.Notification, 0, len(ns))
	for _, n := range ns {
		r := toNotification(n)
		if n.FromUserId != "" {
			actor, ok := actors[n.FromUserId]
			if !ok {
				actor = types.PublicUser{Id: n.FromUserId}
			}
			r.FromUser = &actor
		}
		out = append(out, *r)
	}
	return out, nil
}

// MarkRead flips the read flag of a notification owned by userId.
func (d *Dispatcher) MarkRead(ctx context.Context, id, userId string) (*types.Notification, error) {
	n, err := d.db.MarkNotificationRead(id, userId)
	if err != nil {
		return nil, err
	}
	return d.resolve(ctx, n), nil
}

func toNotification(n database.Notification) *types.Notification {
	return &types.Notification{
		Id:        n.Id,
		User:      n.UserId,
		Type:      n.Type,
		Post:      n.PostId,
		Comment:   n.CommentId,
		Message:   n.MessageId,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
