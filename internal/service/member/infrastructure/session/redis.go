package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"membermall/internal/service/member/domain"
)

const redisKeyPrefix = "member-mall:session:"

// RedisStore 在 redis 中保存会员快照，cookie 中只有随机会话 id
type RedisStore struct {
	client redis.UniversalClient
	cookie *CookieStore
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, cookieName string, ttl time.Duration, secure bool) *RedisStore {
	return &RedisStore{
		client: client,
		cookie: NewCookieStore(cookieName+"_sid", ttl, secure),
		ttl:    ttl,
	}
}

func (s *RedisStore) Bind(w http.ResponseWriter, r *http.Request) domain.Session {
	rs := &redisSession{store: s, w: w}
	if ck, err := r.Cookie(s.cookie.name); err == nil {
		if _, err := uuid.Parse(ck.Value); err == nil {
			rs.id = ck.Value
		}
	}
	return rs
}

type redisSession struct {
	store *RedisStore
	w     http.ResponseWriter
	id    string
}

func (s *redisSession) Load(ctx context.Context) (*domain.Member, error) {
	if s.id == "" {
		return nil, nil
	}
	raw, err := s.store.client.Get(ctx, redisKeyPrefix+s.id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	var m domain.Member
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	return &m, nil
}

func (s *redisSession) Save(ctx context.Context, m *domain.Member) error {
	if m == nil {
		if s.id != "" {
			if err := s.store.client.Del(ctx, redisKeyPrefix+s.id).Err(); err != nil {
				return errors.Wrap(err, "clear session")
			}
		}
		s.id = ""
		http.SetCookie(s.w, s.store.cookie.cookie("", -1))
		return nil
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if err := s.store.client.Set(ctx, redisKeyPrefix+s.id, raw, s.store.ttl).Err(); err != nil {
		return errors.Wrap(err, "save session")
	}
	// 每次写入都续期 cookie
	http.SetCookie(s.w, s.store.cookie.cookie(s.id, int(s.store.ttl.Seconds())))
	return nil
}
