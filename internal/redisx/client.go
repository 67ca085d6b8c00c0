package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// setStatusScript overwrites the cached status only when the incoming event
// is not older than the one already cached.
const setStatusScript = `
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, doc = pcall(cjson.decode, cur)
	if ok and type(doc) == 'table' and tonumber(doc.ts) and tonumber(doc.ts) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1`

// SetStatus caches an order status as of at. It reports false when a newer
// status was already cached and the write was skipped.
func SetStatus(ctx context.Context, rdb *redis.Client, orderID, status string, at time.Time) (bool, error) {
	script, keys, args := SetStatusArgs(orderID, status, at)
	n, err := rdb.Eval(ctx, script, keys, args...).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func StatusBody(status string, at time.Time) string {
	return fmt.Sprintf(`{"status":%q,"updated_at":%q,"ts":%d}`, status, at.UTC().Format(time.RFC3339Nano), at.UnixMilli())
}

// SetStatusArgs are the EVAL arguments SetStatus sends, for tests that mock Redis.
func SetStatusArgs(orderID, status string, at time.Time) (script string, keys []string, args []any) {
	at = at.UTC()
	return setStatusScript, []string{fmt.Sprintf(KeyOrderStatus, orderID)},
		[]any{StatusBody(status, at), at.UnixMilli(), TTLStatusCache.Milliseconds()}
}
