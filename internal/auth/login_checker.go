package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
)

type LoginChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
}

func NewLoginChecker(ttl time.Duration, redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		ttl:         ttl,
		redisClient: redisClient,
	}
}

// Session resolves the token to a live session.
// Returns ErrSessionNotFound for unknown tokens and ErrSessionExpired for sessions older than TTL.
func (lc *LoginChecker) Session(ctx context.Context, token string) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.checker.session")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cmd := lc.redisClient.HGetAll(ctx, sessionKey(token))
	if err := cmd.Err(); err != nil {
		return nil, err
	}

	fields := cmd.Val()
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	userID, err := strconv.ParseInt(fields[fieldUserID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session user id: %w", err)
	}
	createdAtUnix, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session created at: %w", err)
	}

	createdAt := time.Unix(createdAtUnix, 0)
	if time.Since(createdAt) > lc.ttl {
		return nil, ErrSessionExpired
	}

	return &Session{
		Token:     token,
		UserID:    userID,
		Role:      fields[fieldRole],
		CreatedAt: createdAt,
	}, nil
}

func (lc *LoginChecker) IsLogged(ctx context.Context, token string) (bool, error) {
	_, err := lc.Session(ctx, token)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
		return false, nil
	}
	return false, err
}
