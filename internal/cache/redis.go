package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Keys share the {communityID} hash tag so the generation and its views
// live in one cluster slot:
//
//	community:{<cid>}:gen               generation counter
//	community:{<cid>}:view:<gen>:<sid>  one view, with its own TTL
//
// Bumping the generation orphans every view of the old one; they expire on
// their own.
const redisKeyPrefix = "community:{"

// setIfCurrent writes the view only while the generation still matches the
// caller's ticket.
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Redis is the shared MembershipCache for multi-instance deployments.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// DialRedis parses a redis:// URL and pings the server once.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func genKey(communityID uuid.UUID) string {
	return redisKeyPrefix + communityID.String() + "}:gen"
}

func viewKey(communityID uuid.UUID, gen Ticket, subjectID uuid.UUID) string {
	return redisKeyPrefix + communityID.String() + "}:view:" +
		strconv.FormatUint(uint64(gen), 10) + ":" + subjectID.String()
}

func (r *Redis) generation(ctx context.Context, communityID uuid.UUID) (Ticket, error) {
	gen, err := r.client.Get(ctx, genKey(communityID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get view generation: %w", err)
	}
	return Ticket(gen), nil
}

func (r *Redis) Get(ctx context.Context, communityID, subjectID uuid.UUID) (View, Ticket, bool, error) {
	gen, err := r.generation(ctx, communityID)
	if err != nil {
		return View{}, 0, false, err
	}

	raw, err := r.client.Get(ctx, viewKey(communityID, gen, subjectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return View{}, gen, false, nil
	}
	if err != nil {
		return View{}, gen, false, fmt.Errorf("get membership view: %w", err)
	}

	var view View
	if err := json.Unmarshal(raw, &view); err != nil {
		return View{}, gen, false, fmt.Errorf("decode membership view: %w", err)
	}
	return view, gen, true, nil
}

func (r *Redis) Set(ctx context.Context, communityID, subjectID uuid.UUID, ticket Ticket, view View) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode membership view: %w", err)
	}

	keys := []string{genKey(communityID), viewKey(communityID, ticket, subjectID)}
	args := []any{strconv.FormatUint(uint64(ticket), 10), raw, r.ttl.Milliseconds()}
	if err := setIfCurrent.Run(ctx, r.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("set membership view: %w", err)
	}
	return nil
}

// bump moves the generation on. The counter outlives any view written
// under the previous generation, so an expired counter restarting at 1
// cannot revive one.
func (r *Redis) bump(ctx context.Context, communityID uuid.UUID) error {
	key := genKey(communityID)
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, 2*r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Invalidate moves the whole community to a new generation. Views of other
// subjects are reloaded on their next read.
func (r *Redis) Invalidate(ctx context.Context, communityID, subjectID uuid.UUID) error {
	if err := r.bump(ctx, communityID); err != nil {
		return fmt.Errorf("invalidate membership view: %w", err)
	}
	return nil
}

func (r *Redis) InvalidateCommunity(ctx context.Context, communityID uuid.UUID) error {
	if err := r.bump(ctx, communityID); err != nil {
		return fmt.Errorf("invalidate community views: %w", err)
	}
	return nil
}
