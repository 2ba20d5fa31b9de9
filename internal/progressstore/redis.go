package progressstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dgallion1/lessonpage/internal/progress"
)

const redisKeyPrefix = "lessonpage:progress:"

// KEYS[1] record hash, KEYS[2] per-user lesson set.
// ARGV: furthest, total, updated_at, lesson_id.
var applyScript = goredis.NewScript(`
local prev = tonumber(redis.call('HGET', KEYS[1], 'furthest') or '-1')
local total = tonumber(redis.call('HGET', KEYS[1], 'total') or '0')
local idx = tonumber(ARGV[1])
local incoming = tonumber(ARGV[2])
if incoming > 0 and (idx > prev or total == 0) then
	total = incoming
end
local cur = prev
if idx > cur then cur = idx end
redis.call('HSET', KEYS[1], 'furthest', cur, 'total', total, 'updated_at', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[4])
return {cur, total}
`)

// RedisStore keeps one hash per (user, lesson) and a set of lesson ids per
// user. The merge runs as a Lua script so concurrent writers stay monotonic.
type RedisStore struct {
	rdb *goredis.Client
}

// OpenRedis connects to addr and pings it.
func OpenRedis(ctx context.Context, addr string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// Record hashes and the lesson set live under different second segments,
// so no lesson id can name the set. User ids never contain ':'.
func recordHashKey(userID, lessonID string) string {
	return redisKeyPrefix + userID + ":rec:" + lessonID
}

func lessonSetKey(userID string) string {
	return redisKeyPrefix + userID + ":lessons"
}

// Apply runs the merge script atomically and records the lesson id in the
// user's lesson set.
func (s *RedisStore) Apply(ctx context.Context, ev progress.Event) (Record, error) {
	now := time.Now().UTC()
	res, err := applyScript.Run(ctx, s.rdb,
		[]string{recordHashKey(ev.UserID, ev.LessonID), lessonSetKey(ev.UserID)},
		ev.FurthestPageIndex, ev.TotalPages, now.Format(time.RFC3339Nano), ev.LessonID,
	).Int64Slice()
	if err != nil {
		return Record{}, fmt.Errorf("apply progress: %w", err)
	}
	if len(res) != 2 {
		return Record{}, fmt.Errorf("apply progress: unexpected script result %v", res)
	}
	return Record{
		UserID:            ev.UserID,
		LessonID:          ev.LessonID,
		FurthestPageIndex: int(res[0]),
		TotalPages:        int(res[1]),
		UpdatedAt:         now,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, userID, lessonID string) (Record, bool, error) {
	vals, err := s.rdb.HMGet(ctx, recordHashKey(userID, lessonID), "furthest", "total", "updated_at").Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("get progress: %w", err)
	}
	if len(vals) != 3 || vals[0] == nil {
		return Record{}, false, nil
	}
	rec := Record{UserID: userID, LessonID: lessonID}
	rec.FurthestPageIndex = atoi(vals[0])
	rec.TotalPages = atoi(vals[1])
	if s, ok := vals[2].(string); ok {
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	return rec, true, nil
}

func (s *RedisStore) List(ctx context.Context, userID string) ([]Record, error) {
	ids, err := s.rdb.SMembers(ctx, lessonSetKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	sort.Strings(ids)

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := s.Get(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func atoi(v any) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
