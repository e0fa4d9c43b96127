// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/zeebo/blake3"
)

var (
	rdb   *redis.Client
	cache *lru.Cache
)

// SetupCache creates the local LRU cache and, when cache.redis is set, the
// shared redis client. A cache.local_size of zero or less disables caching.
func SetupCache() error {
	rdb = nil
	cache = nil

	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return err
		}

		rdb = redis.NewClient(opt)
	}

	size := viper.GetInt("cache.local_size")
	if size <= 0 {
		log.Info().Msg("local cache disabled")
		return nil
	}

	var err error
	cache, err = lru.New(size)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		return err
	}

	return nil
}

// CacheKey hashes parts into a hex encoded blake3 digest. Each part is
// length-prefixed so that ("ab", "c") and ("a", "bc") hash differently.
func CacheKey(parts ...[]byte) string {
	h := blake3.New()
	for _, part := range parts {
		size := len(part)
		prefix := []byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)}
		if _, err := h.Write(prefix); err != nil {
			log.Error().Stack().Err(err).Msg("could not write length to blake3 hasher")
		}
		if _, err := h.Write(part); err != nil {
			log.Error().Stack().Err(err).Msg("could not write part to blake3 hasher")
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func cacheTTL() time.Duration {
	return time.Duration(viper.GetInt("cache.ttl")) * time.Second
}

// CacheSet compresses val and stores it locally and, if configured, in redis
func CacheSet(ctx context.Context, key string, val []byte) error {
	if cache == nil && rdb == nil {
		return nil
	}

	compressed, err := Compress(val)
	if err != nil {
		return err
	}

	if cache != nil {
		cache.Add(key, compressed)
	}

	if rdb != nil {
		return rdb.Set(ctx, key, compressed, cacheTTL()).Err()
	}
	return nil
}

// CacheGet returns the value stored under key. ok is false on a miss.
func CacheGet(ctx context.Context, key string) (val []byte, ok bool, err error) {
	if cache != nil {
		if v, hit := cache.Get(key); hit {
			val, err = Decompress(v.([]byte))
			return val, err == nil, err
		}
	}

	if rdb == nil {
		return nil, false, nil
	}

	compressed, err := rdb.GetEx(ctx, key, cacheTTL()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if cache != nil {
		cache.Add(key, compressed)
	}

	val, err = Decompress(compressed)
	return val, err == nil, err
}

// CachePurge drops every entry of the local cache
func CachePurge() {
	if cache != nil {
		cache.Purge()
	}
}
