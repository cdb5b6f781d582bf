// Package session 提供会员会话的几种后端：浏览器 cookie（默认，与前端组件兼容）、
// redis（cookie 中只保存会话 id）以及用于测试的内存实现。
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"membermall/internal/pkg/logger"
	"membermall/internal/service/member/domain"
)

// Binder 把一次 HTTP 请求绑定成一个会话
type Binder interface {
	Bind(w http.ResponseWriter, r *http.Request) domain.Session
}

// CookieStore 把会员快照以 URL 编码的 JSON 直接存放在 cookie 中
type CookieStore struct {
	name   string
	ttl    time.Duration
	secure bool
}

func NewCookieStore(name string, ttl time.Duration, secure bool) *CookieStore {
	return &CookieStore{name: name, ttl: ttl, secure: secure}
}

func (s *CookieStore) Bind(w http.ResponseWriter, r *http.Request) domain.Session {
	return &cookieSession{store: s, w: w, r: r}
}

type cookieSession struct {
	store *CookieStore
	w     http.ResponseWriter
	r     *http.Request

	// 同一请求内 Save 之后的 Load 读到新值
	written bool
	current *domain.Member
}

func (c *cookieSession) Load(ctx context.Context) (*domain.Member, error) {
	if c.written {
		return copyMember(c.current), nil
	}
	ck, err := c.r.Cookie(c.store.name)
	if err != nil {
		return nil, nil
	}
	m, err := DecodeMember(ck.Value)
	if err != nil {
		// 无法解析的 cookie 视为未登录
		logger.Ctx(ctx).Debug().Err(err).Msg("Ignoring malformed session cookie")
		return nil, nil
	}
	return m, nil
}

func (c *cookieSession) Save(ctx context.Context, m *domain.Member) error {
	c.written = true
	c.current = copyMember(m)

	if m == nil {
		http.SetCookie(c.w, c.store.cookie("", -1))
		return nil
	}
	value, err := EncodeMember(m)
	if err != nil {
		return err
	}
	http.SetCookie(c.w, c.store.cookie(value, int(c.store.ttl.Seconds())))
	return nil
}

func (s *CookieStore) cookie(value string, maxAge int) *http.Cookie {
	ck := &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		ck.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	return ck
}

// EncodeMember 与前端 js-cookie 的编码方式兼容（encodeURIComponent）
func EncodeMember(m *domain.Member) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "encode session")
	}
	return url.PathEscape(string(raw)), nil
}

func DecodeMember(value string) (*domain.Member, error) {
	raw, err := url.PathUnescape(value)
	if err != nil {
		return nil, errors.Wrap(err, "unescape session")
	}
	var m domain.Member
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	if m.Number == "" {
		return nil, errors.New("session has no membership number")
	}
	return &m, nil
}

func copyMember(m *domain.Member) *domain.Member {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}
