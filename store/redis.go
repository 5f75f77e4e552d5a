package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/preplens/preplens-api/utils"
)

const keyPrefix = "preplens"

// Redis is the networked backend. Each collection is one hash keyed by
// record id, and every write publishes the record id on the
// collection's pub/sub channel so live subscriptions re-read.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects and pings. Accepts both bare "host:port" addresses
// and full redis:// URLs.
func OpenRedis(redisURL string) (*Redis, error) {
	if !strings.Contains(redisURL, "://") {
		redisURL = "redis://" + redisURL
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	utils.LogStore("Connected to redis at %s", opt.Addr)
	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func collectionKey(collection string) string {
	return keyPrefix + ":" + collection
}

func changeChannel(collection string) string {
	return keyPrefix + ":changes:" + collection
}

func (r *Redis) Create(ctx context.Context, collection string, rec interface{}) (string, error) {
	id, data, err := prepareRecord(collection, rec)
	if err != nil {
		return "", err
	}
	if err := r.client.HSet(ctx, collectionKey(collection), id, data).Err(); err != nil {
		return "", fmt.Errorf("writing %s/%s: %w", collection, id, err)
	}
	// The record is durable at this point; a lost change signal only
	// delays subscribers until the next write.
	if err := r.client.Publish(ctx, changeChannel(collection), id).Err(); err != nil {
		utils.LogError("Publishing change for %s/%s failed: %v", collection, id, err)
	}
	return id, nil
}

func (r *Redis) GetAll(ctx context.Context, collection string, q Query) ([]Document, error) {
	values, err := r.client.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading collection %s: %w", collection, err)
	}
	records := make([]record, 0, len(values))
	for id, raw := range values {
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("collection %s, record %s: %w", collection, id, err)
		}
		records = append(records, rec)
	}
	return selectDocs(records, q), nil
}

func (r *Redis) Subscribe(collection string, q Query, onData DataFunc, onErr ErrFunc) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(context.Background())

	docs, err := r.GetAll(ctx, collection, q)
	if err != nil {
		cancel()
		return nil, err
	}

	pubsub := r.client.Subscribe(ctx, changeChannel(collection))
	sub := &redisSub{
		redis:      r,
		collection: collection,
		q:          q,
		onData:     onData,
		onErr:      onErr,
		cancel:     cancel,
		pubsub:     pubsub,
	}

	onData(docs)
	go sub.loop(ctx)
	return sub.stop, nil
}

type redisSub struct {
	redis      *Redis
	collection string
	q          Query
	onData     DataFunc
	onErr      ErrFunc
	cancel     context.CancelFunc
	pubsub     *redis.PubSub
	closed     atomic.Bool
	once       sync.Once
}

func (s *redisSub) loop(ctx context.Context) {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				if !s.closed.Load() {
					s.stop()
					s.onErr(fmt.Errorf("subscription to %s lost", s.collection))
				}
				return
			}
			if s.closed.Load() {
				return
			}
			docs, err := s.redis.GetAll(ctx, s.collection, s.q)
			if s.closed.Load() {
				return
			}
			if err != nil {
				s.stop()
				s.onErr(err)
				return
			}
			s.onData(docs)
		}
	}
}

func (s *redisSub) stop() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		if err := s.pubsub.Close(); err != nil {
			utils.LogError("Closing pubsub for %s: %v", s.collection, err)
		}
	})
}

var (
	_ Store = (*Local)(nil)
	_ Store = (*Redis)(nil)
)
