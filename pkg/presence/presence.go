// Package presence mirrors relay membership into Redis so other processes
// (the api service, other tooling) can read who is in which room. The relay's
// in-memory registry stays authoritative; Redis is written after the fact.
package presence

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/mahaj/room-relay/pkg/model"
)

const participantsKey = "participants"

// RoomKey is the Redis set holding the connection ids currently in room.
func RoomKey(room string) string {
	return "room:" + room + ":members"
}

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("presence: ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

type opKind int

const (
	opSAdd opKind = iota
	opSRem
	opHSet
	opHDel
)

type step struct {
	op    opKind
	key   string
	field string
	value string
}

// plan translates one activity into the Redis writes that mirror it.
func plan(a model.Activity) []step {
	switch a.Kind {
	case model.ActivityJoined:
		var steps []step
		if a.PrevRoom != "" && a.PrevRoom != a.Room {
			steps = append(steps, step{op: opSRem, key: RoomKey(a.PrevRoom), field: a.ConnID})
		}
		return append(steps,
			step{op: opSAdd, key: RoomKey(a.Room), field: a.ConnID},
			step{op: opHSet, key: participantsKey, field: a.ConnID, value: a.Name},
		)
	case model.ActivityRenamed:
		return []step{{op: opHSet, key: participantsKey, field: a.ConnID, value: a.Name}}
	case model.ActivityLeft:
		return []step{
			{op: opSRem, key: RoomKey(a.Room), field: a.ConnID},
			{op: opHDel, key: participantsKey, field: a.ConnID},
		}
	}
	return nil
}

type Mirror struct {
	rdb redis.Cmdable
}

func NewMirror(rdb redis.Cmdable) *Mirror {
	return &Mirror{rdb: rdb}
}

// Apply writes a presence activity to Redis. Non-presence activity is
// ignored. It has the sink.Handler signature.
func (m *Mirror) Apply(ctx context.Context, a model.Activity) error {
	if !a.IsPresence() {
		return nil
	}
	steps := plan(a)
	if len(steps) == 0 {
		return nil
	}
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, s := range steps {
			switch s.op {
			case opSAdd:
				pipe.SAdd(ctx, s.key, s.field)
			case opSRem:
				pipe.SRem(ctx, s.key, s.field)
			case opHSet:
				pipe.HSet(ctx, s.key, s.field, s.value)
			case opHDel:
				pipe.HDel(ctx, s.key, s.field)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence: mirror %s for %s: %w", a.Kind, a.ConnID, err)
	}
	return nil
}

// Reset removes every mirrored key. A gateway calls it on start, since
// connections from a previous run no longer exist.
func (m *Mirror) Reset(ctx context.Context) error {
	keys := []string{participantsKey}
	iter := m.rdb.Scan(ctx, 0, RoomKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("presence: scan room keys: %w", err)
	}
	if err := m.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("presence: reset: %w", err)
	}
	return nil
}

// Reader answers membership queries from the mirrored state.
type Reader struct {
	rdb redis.Cmdable
}

func NewReader(rdb redis.Cmdable) *Reader {
	return &Reader{rdb: rdb}
}

// Members returns the participants mirrored for room, ordered by username
// then id.
func (r *Reader) Members(ctx context.Context, room string) ([]model.Participant, error) {
	ids, err := r.rdb.SMembers(ctx, RoomKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: members of %s: %w", room, err)
	}
	out := make([]model.Participant, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	names, err := r.rdb.HMGet(ctx, participantsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: names for %s: %w", room, err)
	}
	for i, id := range ids {
		name := model.DefaultName
		if s, ok := names[i].(string); ok && s != "" {
			name = s
		}
		out = append(out, model.Participant{ID: id, Username: name, CurrentRoom: room})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
