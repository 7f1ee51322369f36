// Package session implements the server-side session store. Session payloads
// live in Redis as JSON blobs; the browser cookie carries a signed token whose
// subject is the session id, so session ids cannot be forged or guessed.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bulletinboard/internal/cache"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "bb_session"
	// DefaultTTL bounds both the Redis payload and the cookie lifetime.
	DefaultTTL = 7 * 24 * time.Hour

	tokenIssuer   = "bulletinboard-api"
	tokenAudience = "bulletinboard-client"
)

// ErrNoRedis is returned when the store has no Redis backend.
var ErrNoRedis = errors.New("session store requires a redis client")

// Store issues and resolves sessions.
type Store struct {
	rdb    *redis.Client
	secret string
	ttl    time.Duration
}

// NewStore creates a session store backed by the given Redis client.
func NewStore(rdb *redis.Client, secret string) *Store {
	return &Store{rdb: rdb, secret: secret, ttl: DefaultTTL}
}

// Session is a unit of per-caller server-side state. Values are JSON-encoded
// so arbitrary snapshot structs can be stored.
type Session struct {
	ID     string
	values map[string]json.RawMessage
	store  *Store
	fresh  bool
}

// Load resolves the session referenced by the request cookie, or issues a
// fresh one when the cookie is absent, invalid, or expired in Redis.
func (s *Store) Load(c *fiber.Ctx) (*Session, error) {
	if s.rdb == nil {
		return nil, ErrNoRedis
	}

	if token := c.Cookies(CookieName); token != "" {
		sid, err := s.parseToken(token)
		if err == nil {
			data, err := s.rdb.Get(c.Context(), cache.SessionKey(sid)).Bytes()
			switch {
			case err == nil:
				var values map[string]json.RawMessage
				if jsonErr := json.Unmarshal(data, &values); jsonErr == nil {
					if values == nil {
						values = map[string]json.RawMessage{}
					}
					return &Session{ID: sid, values: values, store: s}, nil
				}
			case errors.Is(err, redis.Nil):
				// Expired server side; fall through and issue a new session.
			default:
				return nil, err
			}
		}
	}

	return s.issue(c)
}

func (s *Store) issue(c *fiber.Ctx) (*Session, error) {
	sid := uuid.NewString()
	token, err := s.signToken(sid)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return &Session{ID: sid, values: map[string]json.RawMessage{}, store: s, fresh: true}, nil
}

func (s *Store) signToken(sid string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sid,
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"exp": now.Add(s.ttl).Unix(),
		"iat": now.Unix(),
		"jti": fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8]),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

func (s *Store) parseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
	)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid session token claims")
	}
	sid, ok := claims["sub"].(string)
	if !ok || sid == "" {
		return "", errors.New("invalid session subject")
	}
	return sid, nil
}

// Get unmarshals the value stored under key into dest. Returns false when the
// key is absent.
func (sess *Session) Get(key string, dest any) bool {
	raw, ok := sess.values[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Set stores v under key. The change is not visible to other requests until
// Save is called.
func (sess *Session) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sess.values[key] = raw
	return nil
}

// Delete removes the value stored under key.
func (sess *Session) Delete(key string) {
	delete(sess.values, key)
}

// Save persists the session payload to Redis with the store TTL.
func (sess *Session) Save(ctx context.Context) error {
	data, err := json.Marshal(sess.values)
	if err != nil {
		return err
	}
	return sess.store.rdb.Set(ctx, cache.SessionKey(sess.ID), data, sess.store.ttl).Err()
}

// Destroy removes the session payload and expires the cookie.
func (sess *Session) Destroy(ctx context.Context, c *fiber.Ctx) error {
	if err := sess.store.rdb.Del(ctx, cache.SessionKey(sess.ID)).Err(); err != nil {
		return err
	}
	sess.values = map[string]json.RawMessage{}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return nil
}

// UserID returns the authenticated user id carried by the session.
func (sess *Session) UserID() (uint, bool) {
	var id uint
	if !sess.Get("user_id", &id) || id == 0 {
		return 0, false
	}
	return id, true
}

// SetUserID marks the session as authenticated for the given user.
func (sess *Session) SetUserID(id uint) {
	_ = sess.Set("user_id", id)
}
