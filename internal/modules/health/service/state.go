package service

import (
	"sync/atomic"
	"time"
)

// State — живость движка для healthz: готовность после бутстрапа, статус
// поточного соединения и момент последнего закрытого бара.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	streamUp    atomic.Bool
	lastBarUnix atomic.Int64 // unix-секунды закрытия бара
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetStreamUp(v bool) { s.streamUp.Store(v) }
func (s *State) StreamUp() bool     { return s.streamUp.Load() }

// TouchBar фиксирует закрытие бара из kline-потока.
func (s *State) TouchBar(closedAt time.Time) { s.lastBarUnix.Store(closedAt.Unix()) }

func (s *State) LastBar() time.Time {
	u := s.lastBarUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
