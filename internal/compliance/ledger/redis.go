package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rwagate/internal/compliance/models"
	"rwagate/pkg/domain"
)

// sumScript totals the amounts of one user's entries scored at or after
// ARGV[1] in a single round trip.
var sumScript = redis.NewScript(`
local members = redis.call("ZRANGEBYSCORE", KEYS[1], ARGV[1], "+inf")
local total = 0
for _, m in ipairs(members) do
	total = total + cjson.decode(m).amount
end
return total
`)

// Redis stores each user's ledger as a sorted set scored by occurrence time
// in microseconds. Members are JSON encoded entries.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// redisEntry is the member encoding. ID keeps repeated trades with the same
// reference, amount and instant from collapsing into one member.
type redisEntry struct {
	Reference  string    `json:"ref"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"at"`
	ID         string    `json:"id"`
}

func NewRedis(client redis.UniversalClient) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Redis{client: client, prefix: "rwagate:ledger:"}, nil
}

func (r *Redis) key(userID domain.UserID) string {
	return r.prefix + string(userID)
}

func (r *Redis) Append(ctx context.Context, entry models.LedgerEntry) error {
	member, err := json.Marshal(redisEntry{
		Reference:  entry.Reference,
		Amount:     int64(entry.Amount),
		OccurredAt: entry.OccurredAt.UTC(),
		ID:         uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	err = r.client.ZAdd(ctx, r.key(entry.UserID), redis.Z{
		Score:  float64(entry.OccurredAt.UnixMicro()),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (r *Redis) SumSince(ctx context.Context, userID domain.UserID, since time.Time) (domain.Amount, error) {
	total, err := sumScript.Run(ctx, r.client, []string{r.key(userID)},
		strconv.FormatInt(since.UnixMicro(), 10)).Int64()
	if err != nil {
		return 0, fmt.Errorf("sum ledger window: %w", err)
	}
	return domain.Amount(total), nil
}

func (r *Redis) History(ctx context.Context, userID domain.UserID) ([]models.LedgerEntry, error) {
	members, err := r.client.ZRange(ctx, r.key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	out := make([]models.LedgerEntry, 0, len(members))
	for _, m := range members {
		var e redisEntry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		out = append(out, models.LedgerEntry{
			UserID:     userID,
			Amount:     domain.Amount(e.Amount),
			OccurredAt: e.OccurredAt,
			Reference:  e.Reference,
		})
	}
	return out, nil
}
