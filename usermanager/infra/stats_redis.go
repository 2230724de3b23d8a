package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"user-manager/usermanager/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore guarda as mesmas contagens da MemoryStatsStore em hashes do
// Redis, para que várias instâncias do SDK somem no mesmo lugar.
//
// Layout (cada hash tem campos "<x>:allowed" e "<x>:denied", ou só
// "allowed"/"denied" no total):
//
//	<prefix>:total
//	<prefix>:stage:<stage>          campo por operação
//	<prefix>:app:<key>              campo por "<stage>.<operation>" (trackKeys, com TTL)
//	<prefix>:minute:YYYYMMDDhhmm    campo por estágio (bucket "minute", com TTL)
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	ttl    time.Duration
	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

var _ domain.StatsStore = (*RedisStatsStore)(nil)

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithStatsTTL vale para as chaves por app e por minuto; total e estágios são cumulativos.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "usermanager:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

// Record grava o evento em um único pipeline.
func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	res := outcome(ev.Allowed)
	stage := strings.TrimSpace(ev.Stage)
	op := strings.TrimSpace(ev.Operation)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.key("total"), res, 1)

	if stage != "" && op != "" {
		pipe.HIncrBy(ctx, s.key("stage", stage), op+":"+res, 1)
	}
	if s.trackKeys && ev.Key != "" {
		s.incrExpiring(ctx, pipe, s.key("app", string(ev.Key)), stage+"."+op+":"+res)
	}
	if s.bucket == "minute" && stage != "" {
		s.incrExpiring(ctx, pipe, s.key("minute", at.UTC().Format("200601021504")), stage+":"+res)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func (s *RedisStatsStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

// Total lê o contador geral.
func (s *RedisStatsStore) Total(ctx context.Context) (Counters, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key("total")).Result()
	if err != nil {
		return Counters{}, err
	}
	return Counters{Allowed: parseCount(fields["allowed"]), Denied: parseCount(fields["denied"])}, nil
}

// ByOperation lê as contagens de um estágio, por operação.
func (s *RedisStatsStore) ByOperation(ctx context.Context, stage string) (map[string]Counters, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key("stage", stage)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Counters)
	for field, v := range fields {
		i := strings.LastIndexByte(field, ':')
		if i <= 0 {
			continue
		}
		op, c := field[:i], out[field[:i]]
		switch field[i+1:] {
		case "allowed":
			c.Allowed += parseCount(v)
		case "denied":
			c.Denied += parseCount(v)
		}
		out[op] = c
	}
	return out, nil
}

func parseCount(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
