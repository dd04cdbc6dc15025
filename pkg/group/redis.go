package group

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"medfilt/internal/models"
)

// AutoRank asks NewRedis to claim the next free rank from the server.
const AutoRank = -1

// RedisOptions describes how a process joins a Redis-coordinated group.
type RedisOptions struct {
	// Addr is the Redis server address (host:port)
	Addr string

	// Password and DB select the Redis database
	Password string
	DB       int

	// Job namespaces every key; all processes of one run share it
	Job string

	// Size is the number of processes in the group
	Size int

	// Rank is this process's rank, or AutoRank to claim one with INCR
	Rank int

	// TTL bounds how long coordination keys outlive the run
	TTL time.Duration
}

// Redis is a Group whose members are separate processes that coordinate
// through lists and counters on a shared Redis server.
type Redis struct {
	client *redis.Client
	opts   RedisOptions
	rank   int
	id     string

	// gen numbers the run of the job this member joined; every
	// coordination key is scoped to it
	gen int64

	bcastSeq   uint64
	barrierSeq uint64
}

// NewRedis connects to Redis and joins the group described by opts.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Job == "" {
		return nil, fmt.Errorf("%w: redis group needs a job name", models.ErrInvalidArguments)
	}
	if opts.Size < 1 {
		return nil, fmt.Errorf("%w: group size must be positive, got %d", models.ErrInvalidArguments, opts.Size)
	}
	if opts.Rank != AutoRank && (opts.Rank < 0 || opts.Rank >= opts.Size) {
		return nil, fmt.Errorf("%w: rank %d outside group of %d", models.ErrInvalidArguments, opts.Rank, opts.Size)
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    opts.DB,
		MaxRetries:            3,
		DialTimeout:           5 * time.Second,
		ContextTimeoutEnabled: true,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	g := &Redis{
		client: client,
		opts:   opts,
		rank:   opts.Rank,
		id:     uuid.NewString(),
	}

	if err := g.join(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return g, nil
}

func (g *Redis) joinKey() string {
	return fmt.Sprintf("medfilt:%s:join", g.opts.Job)
}

func (g *Redis) broadcastKey(seq uint64) string {
	return fmt.Sprintf("medfilt:%s:%d:bcast:%d", g.opts.Job, g.gen, seq)
}

func (g *Redis) barrierKey(seq uint64) string {
	return fmt.Sprintf("medfilt:%s:%d:barrier:%d", g.opts.Job, g.gen, seq)
}

func (g *Redis) releaseKey(seq uint64) string {
	return fmt.Sprintf("medfilt:%s:%d:barrier:%d:release", g.opts.Job, g.gen, seq)
}

// join counts this member in with INCR on the job's join key. Every Size
// consecutive joins form one generation, so a job name can be reused once
// the previous run's members have all joined; an AutoRank member takes its
// position within the generation as its rank.
func (g *Redis) join(ctx context.Context) error {
	pipe := g.client.TxPipeline()
	incr := pipe.Incr(ctx, g.joinKey())
	pipe.Expire(ctx, g.joinKey(), g.opts.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to join group: %w", err)
	}

	n := incr.Val() - 1
	size := int64(g.opts.Size)
	g.gen = n / size
	if g.rank == AutoRank {
		g.rank = int(n % size)
	}
	return nil
}

// Generation returns the run number of the job this member joined.
func (g *Redis) Generation() int64 { return g.gen }

// ID returns a unique identifier for this member, used in logs.
func (g *Redis) ID() string { return g.id }

func (g *Redis) Rank() int { return g.rank }

func (g *Redis) Size() int { return g.opts.Size }

func (g *Redis) Close() error { return g.client.Close() }

// Broadcast has the root push one copy of value per receiver onto a list
// dedicated to this broadcast; each receiver pops exactly one copy.
func (g *Redis) Broadcast(ctx context.Context, value int, root int) (int, error) {
	if err := checkRoot(root, g.opts.Size); err != nil {
		return 0, err
	}

	key := g.broadcastKey(g.bcastSeq)
	g.bcastSeq++

	if g.rank == root {
		if g.opts.Size > 1 {
			if err := g.pushTokens(ctx, key, strconv.Itoa(value), g.opts.Size-1); err != nil {
				return 0, fmt.Errorf("broadcast failed: %w", err)
			}
		}
		return value, nil
	}

	raw, err := g.pop(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("broadcast failed: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("broadcast carried non-integer %q: %w", raw, err)
	}
	return v, nil
}

// Barrier counts arrivals with INCR; the last member to arrive pushes a
// release token for each of the others.
func (g *Redis) Barrier(ctx context.Context) error {
	seq := g.barrierSeq
	g.barrierSeq++

	pipe := g.client.TxPipeline()
	incr := pipe.Incr(ctx, g.barrierKey(seq))
	pipe.Expire(ctx, g.barrierKey(seq), g.opts.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("barrier failed: %w", err)
	}

	if int(incr.Val()) == g.opts.Size {
		if g.opts.Size > 1 {
			if err := g.pushTokens(ctx, g.releaseKey(seq), "1", g.opts.Size-1); err != nil {
				return fmt.Errorf("barrier release failed: %w", err)
			}
		}
		return nil
	}

	if _, err := g.pop(ctx, g.releaseKey(seq)); err != nil {
		return fmt.Errorf("barrier wait failed: %w", err)
	}
	return nil
}

func (g *Redis) pushTokens(ctx context.Context, key, token string, n int) error {
	values := make([]interface{}, n)
	for i := range values {
		values[i] = token
	}
	pipe := g.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.Expire(ctx, key, g.opts.TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// pop blocks until key has an element. The wait is bounded by ctx only.
func (g *Redis) pop(ctx context.Context, key string) (string, error) {
	for {
		res, err := g.client.BLPop(ctx, 5*time.Second, key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if err != nil {
			return "", err
		}
		// BLPOP replies with [key, value]
		return res[1], nil
	}
}
