package redisinfra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storefront-api/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Hash fields of a phone verification record.
const (
	fieldPhoneNumber = "phoneNumber"
	fieldCode        = "code"
)

// Script results.
const (
	consumeNotFound = 0
	consumeMatched  = 1
	consumeMismatch = -1
)

// consumeCodeScript deletes KEYS[1] only when its value equals ARGV[1].
var consumeCodeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
if v ~= ARGV[1] then return -1 end
redis.call('DEL', KEYS[1])
return 1
`)

// consumeVerificationScript deletes the hash KEYS[1] only when its code equals
// ARGV[1] and, if ARGV[2] is non-empty, its phone number equals ARGV[2].
// Returns {status, phoneNumber}.
var consumeVerificationScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'phoneNumber', 'code')
local phone, code = f[1], f[2]
if not code or not phone then return {0, ''} end
if code ~= ARGV[1] then return {-1, ''} end
if ARGV[2] ~= '' and phone ~= ARGV[2] then return {-1, ''} end
redis.call('DEL', KEYS[1])
return {1, phone}
`)

// CodeStore keeps short-lived verification codes in Redis. Every key carries
// a TTL set at write time; consumption is an atomic compare-and-delete.
type CodeStore struct {
	client redis.Cmdable
	tracer trace.Tracer
}

func NewCodeStore(client redis.Cmdable) *CodeStore {
	return &CodeStore{client: client, tracer: otel.Tracer("redis")}
}

// PutCode stores code under key, replacing any previous value.
func (s *CodeStore) PutCode(ctx context.Context, key, code string, ttl time.Duration) (err error) {
	ctx, span := s.start(ctx, "set", key)
	defer func() { finish(span, err) }()

	if err = s.client.Set(ctx, key, code, ttl).Err(); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	return nil
}

// PutVerification stores a {phoneNumber, code} hash under key, replacing any previous record.
func (s *CodeStore) PutVerification(ctx context.Context, key, phoneNumber, code string, ttl time.Duration) (err error) {
	ctx, span := s.start(ctx, "hset", key)
	defer func() { finish(span, err) }()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldPhoneNumber, phoneNumber, fieldCode, code)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store verification: %w", err)
	}
	return nil
}

// ConsumeCode deletes key if it holds code. A missing or expired key yields
// domain.ErrCodeNotFound; a different value yields domain.ErrCodeMismatch and
// leaves the key untouched.
func (s *CodeStore) ConsumeCode(ctx context.Context, key, code string) (err error) {
	ctx, span := s.start(ctx, "consume", key)
	defer func() { finish(span, err) }()

	n, err := consumeCodeScript.Run(ctx, s.client, []string{key}, code).Int()
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return statusErr(n)
}

// ConsumeVerification deletes the phone verification record under key when
// both code and (if given) phoneNumber match, returning the stored phone number.
func (s *CodeStore) ConsumeVerification(ctx context.Context, key, phoneNumber, code string) (phone string, err error) {
	ctx, span := s.start(ctx, "consume_verification", key)
	defer func() { finish(span, err) }()

	res, err := consumeVerificationScript.Run(ctx, s.client, []string{key}, code, phoneNumber).Slice()
	if err != nil {
		return "", fmt.Errorf("consume verification: %w", err)
	}
	if len(res) != 2 {
		return "", fmt.Errorf("consume verification: unexpected reply %v", res)
	}
	n, _ := res[0].(int64)
	if err := statusErr(int(n)); err != nil {
		return "", err
	}
	phone, _ = res[1].(string)
	return phone, nil
}

// Ping reports whether the store is reachable.
func (s *CodeStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func statusErr(n int) error {
	switch n {
	case consumeMatched:
		return nil
	case consumeMismatch:
		return domain.ErrCodeMismatch
	default:
		return domain.ErrCodeNotFound
	}
}

func (s *CodeStore) start(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "redis."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("redis.operation", op),
			attribute.String("redis.key_prefix", keyPrefix(key)),
		),
	)
}

func finish(span trace.Span, err error) {
	if err != nil && err != domain.ErrCodeMismatch && err != domain.ErrCodeNotFound {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// keyPrefix strips the identifier so emails never land in trace attributes.
func keyPrefix(key string) string {
	if prefix, _, ok := strings.Cut(key, ":"); ok {
		return prefix + ":"
	}
	return key
}
