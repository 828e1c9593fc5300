package link

import (
	"context"
	"sync/atomic"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Static is a link that is always associated, for wired hosts or when the OS
// manages the radio on its own.
type Static struct {
	down atomic.Bool
}

func NewStatic() *Static { return &Static{} }

func (s *Static) Connect(context.Context) error {
	s.down.Store(false)
	return nil
}

func (s *Static) Disconnect(context.Context) error {
	s.down.Store(true)
	return nil
}

func (s *Static) IsConnected(context.Context) bool { return !s.down.Load() }

func (s *Static) Name() string { return "static" }

var _ ports.Link = (*Static)(nil)
