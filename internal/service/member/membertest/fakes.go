// Package membertest 提供端口的内存实现，供各层测试组装服务使用。
package membertest

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

// Dec 是 decimal.RequireFromString 的简写
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func DecPtr(s string) *decimal.Decimal {
	v := Dec(s)
	return &v
}

// Update 是一次记录库写入
type Update struct {
	DocumentID string
	Update     port.MembershipUpdate
}

// Store 同时实现 MembershipStore 与 ProductCatalog
type Store struct {
	mu sync.Mutex

	Records   map[string]*domain.MembershipRecord // 以会员号为 key
	Passwords map[string]string
	Allowed   map[string][]domain.Product
	Public    []domain.Product

	// 注入的错误，非 nil 时对应方法直接返回
	FindErr    error
	UpdateErr  error
	VerifyErr  error
	AllowedErr error
	PublicErr  error

	Updates []Update
	Calls   int
}

var (
	_ port.MembershipStore = (*Store)(nil)
	_ port.ProductCatalog  = (*Store)(nil)
)

func NewStore(records ...*domain.MembershipRecord) *Store {
	s := &Store{
		Records:   map[string]*domain.MembershipRecord{},
		Passwords: map[string]string{},
		Allowed:   map[string][]domain.Product{},
	}
	for _, r := range records {
		s.Records[r.MembershipNumber] = r
	}
	return s
}

func (s *Store) FindByNumber(_ context.Context, number string) (*domain.MembershipRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	r, ok := s.Records[number]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return cloneRecord(r), nil
}

func (s *Store) FindByNumberAndEmail(ctx context.Context, number, email string) (*domain.MembershipRecord, error) {
	r, err := s.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if domain.NormalizeEmail(r.Email) != domain.NormalizeEmail(email) {
		return nil, domain.ErrMemberNotFound
	}
	return r, nil
}

func (s *Store) Get(_ context.Context, documentID string) (*domain.MembershipRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	for _, r := range s.Records {
		if r.DocumentID == documentID {
			return cloneRecord(r), nil
		}
	}
	return nil, domain.ErrMemberNotFound
}

// Update 把部分更新应用到内存记录上
func (s *Store) Update(_ context.Context, documentID string, u port.MembershipUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	s.Updates = append(s.Updates, Update{DocumentID: documentID, Update: u})
	for _, r := range s.Records {
		if r.DocumentID != documentID {
			continue
		}
		if u.Name != nil {
			r.Name = *u.Name
		}
		if u.Email != nil {
			r.Email = *u.Email
		}
		if u.Status != nil {
			r.Status = *u.Status
		}
		if u.Password != nil {
			s.Passwords[r.MembershipNumber] = *u.Password
		}
		if u.Phone != nil {
			r.Phone = *u.Phone
		}
		if u.Cash != nil {
			v := *u.Cash
			r.Cash = &v
		}
		if u.DiscountPoint != nil {
			v := *u.DiscountPoint
			r.DiscountPoint = &v
		}
		if u.CouponIDs != nil {
			r.CouponIDs = append([]string(nil), u.CouponIDs...)
		}
		return nil
	}
	return domain.ErrMemberNotFound
}

func (s *Store) VerifyPassword(_ context.Context, number, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.VerifyErr != nil {
		return s.VerifyErr
	}
	if _, ok := s.Records[number]; !ok {
		return domain.ErrMemberNotFound
	}
	if s.Passwords[number] != password {
		return domain.ErrWrongPassword
	}
	return nil
}

func (s *Store) AllowedProducts(_ context.Context, number string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AllowedErr != nil {
		return nil, s.AllowedErr
	}
	return append([]domain.Product(nil), s.Allowed[number]...), nil
}

func (s *Store) PublicProducts(context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PublicErr != nil {
		return nil, s.PublicErr
	}
	return append([]domain.Product(nil), s.Public...), nil
}

// Record 返回内存记录的副本
func (s *Store) Record(number string) *domain.MembershipRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecord(s.Records[number])
}

// Writes 返回 Update 的次数
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Updates)
}

func cloneRecord(r *domain.MembershipRecord) *domain.MembershipRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.CouponIDs = append([]string(nil), r.CouponIDs...)
	return &c
}

// Coupons 是券服务的内存实现，默认返回 active 券
type Coupons struct {
	mu       sync.Mutex
	Result   *port.Coupon
	Err      error
	NotReady error // Ready 返回的错误
	Requests []port.CouponRequest
}

var (
	_ port.CouponIssuer = (*Coupons)(nil)
	_ port.Mailer       = (*Mailer)(nil)
)

func (c *Coupons) Ready(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.NotReady
}

func (c *Coupons) Issue(_ context.Context, req port.CouponRequest) (*port.Coupon, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Result != nil {
		return c.Result, nil
	}
	return &port.Coupon{ID: "coupon-1", Status: port.CouponStatusActive, QRData: "QR-1"}, nil
}

func (c *Coupons) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// Mailer 记录所有发送过的邮件
type Mailer struct {
	mu       sync.Mutex
	Err      error
	NotReady error
	Mails    []port.CouponMail
}

func (m *Mailer) Ready(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.NotReady
}

func (m *Mailer) SendCoupon(_ context.Context, mail port.CouponMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Mails = append(m.Mails, mail)
	return m.Err
}

func (m *Mailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Mails)
}

// Journal 是 RedemptionRepository 的内存实现，保存每次 Save 时的快照
type Journal struct {
	mu      sync.Mutex
	Err     error
	byID    map[string]domain.Redemption
	History []domain.RedemptionState
}

var _ domain.RedemptionRepository = (*Journal)(nil)

func NewJournal() *Journal {
	return &Journal{byID: map[string]domain.Redemption{}}
}

func (j *Journal) Save(_ context.Context, r *domain.Redemption) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Err != nil {
		return j.Err
	}
	j.byID[r.ID] = *r
	j.History = append(j.History, r.State)
	return nil
}

func (j *Journal) FindByID(_ context.Context, id string) (*domain.Redemption, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	r, ok := j.byID[id]
	if !ok {
		return nil, domain.ErrRedemptionNotFound
	}
	return &r, nil
}

func (j *Journal) ListByState(_ context.Context, state domain.RedemptionState, limit int) ([]*domain.Redemption, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*domain.Redemption
	for _, r := range j.byID {
		if r.State == state {
			out = append(out, &r)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Support 收集发布的人工介入事件
type Support struct {
	mu     sync.Mutex
	Events []domain.NeedsSupportEvent
}

func (s *Support) NotifyNeedsSupport(_ context.Context, event domain.NeedsSupportEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, event)
	return nil
}

// Lock 是进程内的 RedemptionLock
type Lock struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *Lock) Acquire(_ context.Context, memberNumber string) (func(context.Context), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[memberNumber] {
		return nil, domain.ErrRedemptionInProgress
	}
	l.held[memberNumber] = true
	return func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, memberNumber)
	}, nil
}
