package ws

import (
	"sync"
	"sync/atomic"
)

// sessionPool 在线会话表
// 连接数在握手前预留，握手失败时释放，避免升级后才发现超限。
type sessionPool struct {
	sessions sync.Map     // connID -> *Session
	count    atomic.Int64 // 已预留的连接数
	maxConns int
}

func newSessionPool(maxConns int) *sessionPool {
	return &sessionPool{maxConns: maxConns}
}

// reserve 预留一个连接名额
func (p *sessionPool) reserve() error {
	if int(p.count.Add(1)) > p.maxConns {
		p.count.Add(-1)
		return ErrTooManyConnections
	}
	return nil
}

// release 释放预留名额
func (p *sessionPool) release() {
	p.count.Add(-1)
}

func (p *sessionPool) add(s *Session) {
	p.sessions.Store(s.ConnID(), s)
}

// remove 移除会话并释放名额
func (p *sessionPool) remove(s *Session) {
	if _, loaded := p.sessions.LoadAndDelete(s.ConnID()); loaded {
		p.release()
	}
}

func (p *sessionPool) get(connID string) (*Session, bool) {
	v, ok := p.sessions.Load(connID)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

func (p *sessionPool) len() int {
	return int(p.count.Load())
}

func (p *sessionPool) rangeSessions(f func(*Session) bool) {
	p.sessions.Range(func(_, v any) bool {
		s, ok := v.(*Session)
		if !ok {
			return true
		}
		return f(s)
	})
}
