package redis

import (
	"context"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"os"
	"strconv"
	"time"
)

const (
	reportKeyPrefix  = "screening:report:"
	DefaultReportTTL = 24 * time.Hour
)

// IRedis caches finished screening reports by the sha256 of the uploaded
// video and analysis profile.
type IRedis interface {
	GetReport(ctx context.Context, contentHash string) ([]byte, bool, error)
	SetReport(ctx context.Context, contentHash string, report []byte, expiration time.Duration) error
	DeleteReport(ctx context.Context, contentHash string) error
	Ping(ctx context.Context) error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return NewWithClient(client)
}

func NewWithClient(client *redis.Client) IRedis {
	return &redisClient{client: client}
}

func ReportKey(contentHash string) string {
	return reportKeyPrefix + contentHash
}

func (r *redisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClient) SetReport(ctx context.Context, contentHash string, report []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = DefaultReportTTL
	}

	key := ReportKey(contentHash)
	if err := r.client.Set(ctx, key, report, expiration).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error caching report for key %s: %v", key, err))
		return err
	}
	logrus.Debug(fmt.Sprintf("Cached report for key %s with expiration %v", key, expiration))
	return nil
}

// GetReport returns the cached report. A miss is reported through the bool,
// not as an error.
func (r *redisClient) GetReport(ctx context.Context, contentHash string) ([]byte, bool, error) {
	key := ReportKey(contentHash)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Report not cached for key %s", key))
		return nil, false, nil
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting report for key %s: %v", key, err))
		return nil, false, err
	}
	return val, true, nil
}

func (r *redisClient) DeleteReport(ctx context.Context, contentHash string) error {
	key := ReportKey(contentHash)
	result, err := r.client.Del(ctx, key).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting report for key %s: %v", key, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Report key %s not found for deletion", key))
	}
	return nil
}
