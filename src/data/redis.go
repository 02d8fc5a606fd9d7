package data

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dashCodePrefix = "dashcode:"
	streamEvents   = "sumire.events"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// SetDashboardCode stores a one-time dashboard login code for five minutes.
// The code resolves to the guild and user it was issued for.
func SetDashboardCode(ctx context.Context, rdb *redis.Client, code, guildID, userID string) error {
	return rdb.Set(ctx, dashCodePrefix+code, guildID+":"+userID, 5*time.Minute).Err()
}

// GetAndDelDashboardCode consumes a one-time code, returning the guild and
// user it was issued for. A code can only be consumed once.
func GetAndDelDashboardCode(ctx context.Context, rdb *redis.Client, code string) (guildID, userID string, err error) {
	val, err := rdb.GetDel(ctx, dashCodePrefix+code).Result()
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(val, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed dashboard code value")
	}
	return parts[0], parts[1], nil
}

// PublishEvent appends a poll or giveaway state change to the event stream.
func PublishEvent(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamEvents,
		Values: payload,
	}).Result()
	return err
}

// EventStream is the Redis stream poll and giveaway events are published to.
func EventStream() string { return streamEvents }
