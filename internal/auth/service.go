package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultTTL       = 24 * 7 * time.Hour
	TokenHeader      = "X-FITCOACH-TOKEN"
	sessionKeyPrefix = "fitcoach-session||"
	tokensSetKey     = "fitcoach-sessions"

	tokenLength   = 35
	scanBatchSize = 100

	fieldUserID    = "user_id"
	fieldRole      = "role"
	fieldCreatedAt = "created_at"
)

// Service issues and revokes session tokens. A session is a redis hash that expires on its
// own after the TTL; the tokens set only exists so stale entries can be swept.
type Service struct {
	redisClient *redis.Client
	ttl         time.Duration
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
}

func NewAuthService(
	ttl time.Duration,
	redisClient *redis.Client,
) *Service {
	return &Service{
		ttl:            ttl,
		redisClient:    redisClient,
		RandStringFunc: pkg.GenerateRandomString,
	}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

// Login creates a new session for an already authenticated user and returns its token.
func (as *Service) Login(ctx context.Context, userID int64, role string, createdAt time.Time) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.auth.login")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	token, err := as.RandStringFunc(tokenLength)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	key := sessionKey(token)
	if _, err := as.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUserID, strconv.FormatInt(userID, 10),
			fieldRole, role,
			fieldCreatedAt, strconv.FormatInt(createdAt.Unix(), 10),
		)
		pipe.Expire(ctx, key, as.ttl)
		pipe.SAdd(ctx, tokensSetKey, token)
		return nil
	}); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return token, nil
}

// Logout reports whether a session existed for the token.
func (as *Service) Logout(ctx context.Context, token string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.auth.logout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var deleted *redis.IntCmd
	if _, err := as.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, sessionKey(token))
		pipe.SRem(ctx, tokensSetKey, token)
		return nil
	}); err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	return deleted.Val() > 0, nil
}

// ScanAndClean walks the tokens set and drops sessions that are older than the TTL or whose
// hash already expired. Returns the number of removed tokens.
func (as *Service) ScanAndClean(ctx context.Context) int {
	var (
		cursor  uint64
		removed int
	)
	for {
		tokens, next, err := as.redisClient.SScan(ctx, tokensSetKey, cursor, "", scanBatchSize).Result()
		if err != nil {
			log.Errorf("auth service, scan sessions: %s", err)
			return removed
		}

		for _, token := range tokens {
			stale, err := as.isStale(ctx, token)
			if err != nil {
				log.Errorf("auth service, check session %s: %s", token, err)
				continue
			}
			if !stale {
				continue
			}
			if err := as.removeSession(ctx, token); err != nil {
				log.Errorf("auth service, clean session %s: %s", token, err)
				continue
			}
			removed++
		}

		if next == 0 {
			break
		}
		cursor = next
	}

	log.Debugf("auth service, scan and clean done, %d sessions removed", removed)
	return removed
}

func (as *Service) isStale(ctx context.Context, token string) (bool, error) {
	createdAtStr, err := as.redisClient.HGet(ctx, sessionKey(token), fieldCreatedAt).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// the hash expired, only the set entry is left
			return true, nil
		}
		return false, err
	}

	createdAtUnix, err := strconv.ParseInt(createdAtStr, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse created at: %w", err)
	}
	return time.Since(time.Unix(createdAtUnix, 0)) > as.ttl, nil
}

func (as *Service) removeSession(ctx context.Context, token string) error {
	_, err := as.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(token))
		pipe.SRem(ctx, tokensSetKey, token)
		return nil
	})
	return err
}
