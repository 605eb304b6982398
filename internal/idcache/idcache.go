// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package idcache records Mautic contact ids in Redis, keyed by Mixpanel
// distinct id. Without it, a profile whose Mautic id was never written back
// would be POSTed again on every sync, creating duplicate contacts.
package idcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces contact-id keys in Redis.
const keyPrefix = "mautic:contact:"

// Cache maps distinct ids to Mautic contact ids. Entries never expire —
// a contact id stays valid until Mautic deletes the contact, which the
// upserter detects via 404 and repairs with a fresh create.
type Cache struct {
	rdb *redis.Client
}

// New creates a contact-id cache backed by Redis.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Get returns the recorded Mautic id for a distinct id, or "" when none
// has been recorded.
func (c *Cache) Get(ctx context.Context, distinctID string) (string, error) {
	id, err := c.rdb.Get(ctx, keyPrefix+distinctID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("idcache GET: %w", err)
	}
	return id, nil
}

// Set records the Mautic id assigned to a distinct id.
func (c *Cache) Set(ctx context.Context, distinctID, mauticID string) error {
	if err := c.rdb.Set(ctx, keyPrefix+distinctID, mauticID, 0).Err(); err != nil {
		return fmt.Errorf("idcache SET: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
