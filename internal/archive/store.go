// Package archive mirrors room snapshots to durable storage. The relay core
// treats it as fire-and-forget: a full queue or a down store loses records,
// never moves.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/internal/relay"
)

const (
	queueBuffer  = 256
	writeTimeout = 3 * time.Second
)

// Store keeps the latest snapshot of every room in redis, keyed by room id,
// and forwards finished games to an optional SQL repository. A single worker
// drains the queue so snapshots of one room are written in order.
type Store struct {
	rdb  *redis.Client
	ttl  time.Duration
	repo *Repository

	queue chan relay.GameRecord
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewStore connects to redis at redisURL and starts the mirror worker. repo
// may be nil when no database is configured.
func NewStore(redisURL string, ttl time.Duration, repo *Repository) (*Store, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := &Store{
		rdb:   rdb,
		ttl:   ttl,
		repo:  repo,
		queue: make(chan relay.GameRecord, queueBuffer),
		stop:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.worker()
	return s, nil
}

// Record implements relay.Recorder. Never blocks; drops when the worker is
// behind.
func (s *Store) Record(rec relay.GameRecord) {
	select {
	case s.queue <- rec:
	default:
		obslog.L().Warn("archive_queue_full", zap.String("room", rec.Room))
	}
}

// Load returns the stored snapshot for a room, or nil when absent.
func (s *Store) Load(ctx context.Context, room string) (*relay.GameRecord, error) {
	raw, err := s.rdb.Get(ctx, gameKey(room)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec relay.GameRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close drains nothing further and releases the redis connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return s.rdb.Close()
}

func (s *Store) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case rec := <-s.queue:
			s.persist(rec)
		}
	}
}

func (s *Store) persist(rec relay.GameRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	raw, err := json.Marshal(&rec)
	if err != nil {
		obslog.L().Error("archive_marshal_error", zap.String("room", rec.Room), zap.Error(err))
		return
	}
	if err := s.rdb.Set(ctx, gameKey(rec.Room), raw, s.ttl).Err(); err != nil {
		obslog.L().Warn("archive_redis_error", zap.String("room", rec.Room), zap.Error(err))
		return
	}

	if rec.Status == relay.StatusFinished && s.repo != nil {
		if err := s.repo.SaveResult(ctx, &rec); err != nil {
			obslog.L().Warn("archive_db_error", zap.String("room", rec.Room), zap.Error(err))
		}
	}
}

func gameKey(room string) string { return "relay:game:" + strings.TrimSpace(room) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
