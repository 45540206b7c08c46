package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps each user's collection in one redis hash keyed by document ID.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

type redisEnvelope struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewRedisStore connects to the redis server at addr and verifies the connection.
func NewRedisStore(ctx context.Context, logger *zap.Logger, addr, password string, db int, prefix string) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	logger.Debug("redis store ready",
		zap.String("op", "store.NewRedisStore"),
		zap.String("addr", addr),
		zap.String("prefix", prefix),
	)
	return &RedisStore{client: client, prefix: prefix, logger: logger}, nil
}

func (s *RedisStore) hashKey(userID, collection string) string {
	return redisHashKey(s.prefix, userID, collection)
}

// redisHashKey joins the key segments with ':' after query-escaping the user
// and collection, so a ':' inside a segment cannot alias another key.
func redisHashKey(prefix, userID, collection string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, url.QueryEscape(userID), url.QueryEscape(collection))
}

// Get returns the document stored under key or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key Key) (Document, error) {
	if err := key.Validate(); err != nil {
		return Document{}, err
	}

	val, err := s.client.HGet(ctx, s.hashKey(key.UserID, key.Collection), key.ID).Result()
	if errors.Is(err, redis.Nil) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", key.ID, err)
	}
	return decodeEnvelope(key, val)
}

// List returns the documents of a user's collection ordered by ID.
func (s *RedisStore) List(ctx context.Context, userID, collection string) ([]Document, error) {
	if err := (Key{UserID: userID, Collection: collection, ID: "*"}).Validate(); err != nil {
		return nil, err
	}

	values, err := s.client.HGetAll(ctx, s.hashKey(userID, collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs := make([]Document, 0, len(values))
	for id, val := range values {
		doc, err := decodeEnvelope(Key{UserID: userID, Collection: collection, ID: id}, val)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Put writes doc into its collection hash and returns the stored copy.
func (s *RedisStore) Put(ctx context.Context, doc Document) (Document, error) {
	doc, err := prepareDocument(doc, now())
	if err != nil {
		return Document{}, err
	}

	encoded, err := encodeEnvelope(doc)
	if err != nil {
		return Document{}, err
	}
	if err := s.client.HSet(ctx, s.hashKey(doc.UserID, doc.Collection), doc.ID, encoded).Err(); err != nil {
		return Document{}, fmt.Errorf("put document %s: %w", doc.ID, err)
	}
	return doc, nil
}

// Delete removes the document under key or returns ErrNotFound.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	removed, err := s.client.HDel(ctx, s.hashKey(key.UserID, key.Collection), key.ID).Result()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", key.ID, err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// Commit applies the batch in a single MULTI/EXEC transaction.
func (s *RedisStore) Commit(ctx context.Context, batch *Batch) error {
	mutations, err := batch.prepare(now())
	if err != nil {
		return err
	}

	// Encode everything first so a bad document aborts before anything is sent.
	encoded := make([]string, len(mutations))
	for i, m := range mutations {
		if m.Op != OpSet {
			continue
		}
		if encoded[i], err = encodeEnvelope(m.Document); err != nil {
			return fmt.Errorf("mutation %d (%s): %w", i, m.Op, err)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range mutations {
			hash := s.hashKey(m.Document.UserID, m.Document.Collection)
			switch m.Op {
			case OpSet:
				pipe.HSet(ctx, hash, m.Document.ID, encoded[i])
			case OpDelete:
				pipe.HDel(ctx, hash, m.Document.ID)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	s.logger.Debug("batch committed",
		zap.String("op", "store.RedisStore.Commit"),
		zap.Int("mutations", len(mutations)),
	)
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeEnvelope(doc Document) (string, error) {
	b, err := json.Marshal(redisEnvelope{Data: doc.Data, UpdatedAt: doc.UpdatedAt})
	if err != nil {
		return "", fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	return string(b), nil
}

func decodeEnvelope(key Key, val string) (Document, error) {
	var env redisEnvelope
	if err := json.Unmarshal([]byte(val), &env); err != nil {
		return Document{}, fmt.Errorf("decode document %s: %w", key.ID, err)
	}
	return Document{Key: key, Data: env.Data, UpdatedAt: env.UpdatedAt}, nil
}
