package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/money"
)

const redisKeyPrefix = "atm:journal:v1:"

type redisEntry struct {
	Time    time.Time    `json:"time"`
	Kind    account.Kind `json:"kind"`
	Amount  money.Amount `json:"amount"`
	Balance money.Amount `json:"balance"`
}

// Redis stores each account's log as a Redis list, oldest entry first.
type Redis struct {
	client *redis.Client
}

// NewRedis builds a Redis-backed journal.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Append pushes the entry onto the tail of the account's list.
func (j *Redis) Append(ctx context.Context, username string, entry account.Entry) error {
	payload, err := json.Marshal(redisEntry{Time: entry.Time.UTC(), Kind: entry.Kind, Amount: entry.Amount, Balance: entry.Balance})
	if err != nil {
		return err
	}
	return j.client.RPush(ctx, redisKeyPrefix+username, payload).Err()
}

// Entries returns the full list in insertion order.
func (j *Redis) Entries(ctx context.Context, username string) ([]account.Entry, error) {
	raw, err := j.client.LRange(ctx, redisKeyPrefix+username, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]account.Entry, 0, len(raw))
	for i, item := range raw {
		var stored redisEntry
		if err := json.Unmarshal([]byte(item), &stored); err != nil {
			return nil, fmt.Errorf("decode journal entry %d for %s: %w", i, username, err)
		}
		out = append(out, account.Entry{Time: stored.Time.Local(), Kind: stored.Kind, Amount: stored.Amount, Balance: stored.Balance})
	}
	return out, nil
}
