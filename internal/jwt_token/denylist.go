package jwttoken

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "certtrace:jwt:revoked:"

// Denylist records revoked token IDs in Redis until they would have expired.
type Denylist struct {
	client redis.Cmdable
}

func NewDenylist(client redis.Cmdable) *Denylist {
	return &Denylist{client: client}
}

// Revoke marks jti revoked for ttl.
func (d *Denylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := d.client.Set(ctx, denylistPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (d *Denylist) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}
