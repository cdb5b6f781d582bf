package session

import (
	"context"
	"sync"

	"membermall/internal/service/member/domain"
)

// Memory 是进程内会话，用于测试与命令行工具
type Memory struct {
	mu sync.Mutex
	m  *domain.Member
}

func NewMemory(m *domain.Member) *Memory {
	return &Memory{m: copyMember(m)}
}

func (s *Memory) Load(context.Context) (*domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMember(s.m), nil
}

func (s *Memory) Save(_ context.Context, m *domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = copyMember(m)
	return nil
}
