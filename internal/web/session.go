package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"hugime/common"
	"hugime/internal/controller"

	"github.com/google/uuid"
)

const sessionCookie = "hugime_session"

type session struct {
	ctrl     *controller.Controller
	lastSeen time.Time
}

// Sessions 每个浏览器会话一个 Controller，仅保存在内存中
type Sessions struct {
	gen controller.Generator
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions 创建会话表，ttl 为空闲过期时间
func NewSessions(gen controller.Generator, ttl time.Duration) *Sessions {
	return &Sessions{
		gen:      gen,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Lookup 返回已有会话的控制器，不会创建新会话
func (s *Sessions) Lookup(r *http.Request) (*controller.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(r)
}

func (s *Sessions) lookupLocked(r *http.Request) (*controller.Controller, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	sess, ok := s.sessions[c.Value]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess.ctrl, true
}

// Controller 返回请求对应的控制器，没有会话时创建并写入 cookie。
// 只在会修改状态的请求中使用
func (s *Sessions) Controller(w http.ResponseWriter, r *http.Request) *controller.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctrl, ok := s.lookupLocked(r); ok {
		return ctrl
	}

	id := uuid.New().String()
	sess := &session{
		ctrl:     controller.New(s.gen),
		lastSeen: s.now(),
	}
	s.sessions[id] = sess
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	common.WithField("session", id).Debug("Session created")
	return sess.ctrl
}

// Sweep 清理空闲超过 ttl 的会话，返回清理数量
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len 当前会话数
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunSweeper 周期性清理，直到 ctx 结束
func (s *Sessions) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				common.WithFields(map[string]interface{}{
					"removed": n,
					"active":  s.Len(),
				}).Info("Idle sessions swept")
			}
		}
	}
}
