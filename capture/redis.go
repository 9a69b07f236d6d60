package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-redis/redis/v8"
)

// RedisClient is the part of *redis.Client the sink uses.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisSink publishes every record, CBOR encoded, on a Redis channel and
// keeps the last frame of each pipe under "<channel>:pipe:<n>".
type RedisSink struct {
	client  RedisClient
	enc     cbor.EncMode
	channel string
	timeout time.Duration
}

// NewRedisSink publishes on channel through client. Each record is given
// timeout to reach the server.
func NewRedisSink(client RedisClient, channel string, timeout time.Duration) (*RedisSink, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("capture: failed to initialize encoder: %w", err)
	}
	return &RedisSink{client: client, enc: enc, channel: channel, timeout: timeout}, nil
}

// DialRedis connects to the server at addr and returns a sink on channel.
func DialRedis(addr, channel string) (*RedisSink, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("capture: redis %s: %w", addr, err)
	}
	s, err := NewRedisSink(client, channel, time.Second)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return s, client, nil
}

// PipeKey is where the last frame of pipe is kept.
func (s *RedisSink) PipeKey(pipe int) string {
	return fmt.Sprintf("%s:pipe:%d", s.channel, pipe)
}

func (s *RedisSink) Write(r Record) error {
	b, err := s.enc.Marshal(r)
	if err != nil {
		return fmt.Errorf("capture: failed to encode record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Publish(ctx, s.channel, b).Err(); err != nil {
		return fmt.Errorf("capture: publish: %w", err)
	}
	if err := s.client.Set(ctx, s.PipeKey(r.Pipe), b, 0).Err(); err != nil {
		return fmt.Errorf("capture: set %s: %w", s.PipeKey(r.Pipe), err)
	}
	return nil
}

// Decode reads one record from a message published by RedisSink.
func Decode(b []byte) (Record, error) {
	var r Record
	mode, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return r, fmt.Errorf("capture: failed to initialize decoder: %w", err)
	}
	if err := mode.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("capture: failed to decode record: %w", err)
	}
	return r, nil
}
