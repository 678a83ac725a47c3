package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jump/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore guarda contadores de decisões em hashes do Redis.
//
// Layout (prefix padrão "ratelimit:stats"):
//
//	{prefix}:total              allowed / denied (cumulativo, sem TTL)
//	{prefix}:class              {class}:allowed / {class}:denied
//	{prefix}:minute:YYYYMMDDHHMM allowed / denied (expira em ttl)
//	{prefix}:key:{digest}       allowed / denied (só com trackKeys, expira em ttl)
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	ttl time.Duration

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func field(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func (s *RedisStatsStore) minuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	f := field(ev.Allowed)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", f, 1)
	if ev.Class != "" {
		pipe.HIncrBy(ctx, s.prefix+":class", string(ev.Class)+":"+f, 1)
	}

	bucketKey := s.minuteKey(at)
	pipe.HIncrBy(ctx, bucketKey, f, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			keyKey := s.prefix + ":key:" + domain.Key(k).Digest()
			pipe.HIncrBy(ctx, keyKey, f, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// MinuteCounters é o contador de um minuto.
type MinuteCounters struct {
	Minute time.Time
	Counters
}

// Snapshot é a visão agregada usada pelo comando `jump stats`.
type Snapshot struct {
	Total   Counters
	ByClass map[domain.OperationClass]Counters
	Recent  []MinuteCounters
}

// Snapshot lê os totais e os últimos `minutes` minutos até `now` (mais antigo primeiro).
func (s *RedisStatsStore) Snapshot(ctx context.Context, now time.Time, minutes int) (Snapshot, error) {
	pipe := s.rdb.Pipeline()
	totalCmd := pipe.HGetAll(ctx, s.prefix+":total")
	classCmd := pipe.HGetAll(ctx, s.prefix+":class")

	start := now.UTC().Truncate(time.Minute).Add(-time.Duration(minutes-1) * time.Minute)
	minuteCmds := make([]*redis.MapStringStringCmd, 0, minutes)
	for i := 0; i < minutes; i++ {
		minuteCmds = append(minuteCmds, pipe.HGetAll(ctx, s.minuteKey(start.Add(time.Duration(i)*time.Minute))))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("read stats: %w", err)
	}

	out := Snapshot{
		Total:   parseCounters(totalCmd.Val(), ""),
		ByClass: make(map[domain.OperationClass]Counters),
	}
	classes := classCmd.Val()
	for _, c := range domain.Classes {
		out.ByClass[c] = parseCounters(classes, string(c)+":")
	}
	for i, cmd := range minuteCmds {
		out.Recent = append(out.Recent, MinuteCounters{
			Minute:   start.Add(time.Duration(i) * time.Minute),
			Counters: parseCounters(cmd.Val(), ""),
		})
	}
	return out, nil
}

func parseCounters(h map[string]string, prefix string) Counters {
	a, _ := strconv.ParseInt(h[prefix+"allowed"], 10, 64)
	d, _ := strconv.ParseInt(h[prefix+"denied"], 10, 64)
	return Counters{Allowed: a, Denied: d}
}
