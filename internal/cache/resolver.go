package cache

import (
	"context"
	"log"

	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/types"
)

// ProfileResolver looks up public profiles cache-aside. Cache failures are
// logged and the lookup falls through to the store.
type ProfileResolver struct {
	db    database.Repository
	cache ProfileCache
	log   *log.Logger
}

func NewProfileResolver(db database.Repository, cache ProfileCache, logger *log.Logger) *ProfileResolver {
	if cache == nil {
		cache = NopProfileCache{}
	}
	return &ProfileResolver{
		db:    db,
		cache: cache,
		log:   logger,
	}
}

func PublicProfile(u database.User) types.PublicUser {
	return types.PublicUser{
		Id:     u.Id,
		Name:   u.Name,
		Avatar: u.Avatar,
	}
}

// Resolve returns the profiles for ids that exist. Unknown ids are absent from
// the result.
func (r *ProfileResolver) Resolve(ctx context.Context, ids ...string) (map[string]types.PublicUser, error) {
	out := make(map[string]types.PublicUser, len(ids))

	var missing []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		u, ok, err := r.cache.Get(ctx, id)
		if err != nil {
			r.log.Printf("profile cache get %q: %v", id, err)
		}
		if ok {
			out[id] = u
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return out, nil
	}

	users, err := r.db.GetUsersByIds(missing)
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		p := PublicProfile(u)
		out[p.Id] = p
		if err := r.cache.Set(ctx, p); err != nil {
			r.log.Printf("profile cache set %q: %v", p.Id, err)
		}
	}

	return out, nil
}

// One resolves a single profile, returning database.ErrNotFound when the
// user does not exist.
func (r *ProfileResolver) One(ctx context.Context, id string) (types.PublicUser, error) {
	profiles, err := r.Resolve(ctx, id)
	if err != nil {
		return types.PublicUser{}, err
	}
	p, ok := profiles[id]
	if !ok {
		return types.PublicUser{}, database.ErrNotFound
	}
	return p, nil
}

// Invalidate drops a cached profile after the user record changes.
func (r *ProfileResolver) Invalidate(ctx context.Context, id string) {
	if err := r.cache.Delete(ctx, id); err != nil {
		r.log.Printf("profile cache delete %q: %v", id, err)
	}
}
