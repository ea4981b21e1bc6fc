// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package claims

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces claim keys so the database can be shared with
// the broadcast broker.
const keyPrefix = "e2rt:claim:"

// confirmScript promotes a provisional claim to permanent, but only
// while the caller's token is still the live value. Prevents a stale
// process from confirming over a claim that expired and was retaken.
// KEYS[1] = claim key
// ARGV[1] = provisional value ("p:" .. token)
var confirmScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    redis.call("SET", KEYS[1], "c")
    return 1
end
return 0
`)

// releaseScript deletes a provisional claim only while the caller's
// token is still the live value, so a slow releaser can never drop a
// rival's fresh claim or a confirmed one.
// KEYS[1] = claim key
// ARGV[1] = provisional value ("p:" .. token)
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    redis.call("DEL", KEYS[1])
    return 1
end
return 0
`)

// RedisStore implements Store on Redis, the production backend when
// multiple api instances share the claim space. Provisional claims are
// SET NX PX; permanence is a plain value with no TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration

	// inflight maps fingerprint -> claim token for claims taken by
	// this instance, so Confirm/Release can prove ownership.
	mu       sync.Mutex
	inflight map[string]string
}

// NewRedisStore connects to Redis at addr and pings it. ttl <= 0
// selects DefaultTTL.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		client:   client,
		ttl:      ttl,
		inflight: make(map[string]string),
	}, nil
}

// Claim takes the provisional claim with SET NX PX. Exactly one caller
// across every connected process wins per TTL window.
func (s *RedisStore) Claim(ctx context.Context, fingerprint string) (Status, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, keyPrefix+fingerprint, "p:"+token, s.ttl).Result()
	if err != nil {
		return AlreadyClaimed, fmt.Errorf("redis claim: %w", err)
	}
	if !ok {
		return AlreadyClaimed, nil
	}

	s.mu.Lock()
	s.inflight[fingerprint] = token
	s.mu.Unlock()
	return Accepted, nil
}

// Confirm promotes this instance's provisional claim to permanent.
func (s *RedisStore) Confirm(ctx context.Context, fingerprint string) error {
	token, ok := s.takeToken(fingerprint)
	if !ok {
		return ErrNotClaimed
	}

	n, err := confirmScript.Run(ctx, s.client, []string{keyPrefix + fingerprint}, "p:"+token).Int()
	if err != nil {
		return fmt.Errorf("redis confirm: %w", err)
	}
	if n == 0 {
		return ErrNotClaimed
	}
	return nil
}

// Release drops this instance's provisional claim. Claims not held
// here, already confirmed, or already lapsed are left alone.
func (s *RedisStore) Release(ctx context.Context, fingerprint string) error {
	token, ok := s.takeToken(fingerprint)
	if !ok {
		return nil
	}

	if _, err := releaseScript.Run(ctx, s.client, []string{keyPrefix + fingerprint}, "p:"+token).Int(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}

// Contains reports whether any live claim exists for the fingerprint.
func (s *RedisStore) Contains(ctx context.Context, fingerprint string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// takeToken removes and returns the in-flight token for fingerprint.
func (s *RedisStore) takeToken(fingerprint string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.inflight[fingerprint]
	if ok {
		delete(s.inflight, fingerprint)
	}
	return token, ok
}

var _ Store = (*RedisStore)(nil)
