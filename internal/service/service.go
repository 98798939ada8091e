// Package service implements the login flow around an authorization code
// exchanger: issuing authorization URLs, remembering the state each one
// carries, and exchanging the returned code once that state comes back.
package service

import (
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"git.sr.ht/~jakintosh/authcode/pkg/authcode"
)

const DefaultStateTTL = 10 * time.Minute

var (
	ErrStateInvalid = errors.New("state invalid")
	ErrInternal     = errors.New("internal error")
)

// Service coordinates the login flow. The exchanger can be replaced at any
// time with SetConfig; calls already in flight finish on the exchanger they
// started with.
type Service struct {
	exchanger atomic.Pointer[authcode.Exchanger]
	options   []authcode.Option
	states    StateStore
	stateTTL  time.Duration
	logger    *zap.Logger
}

func New(
	states StateStore,
	cfg authcode.Config,
	stateTTL time.Duration,
	logger *zap.Logger,
	opts ...authcode.Option,
) *Service {
	if stateTTL <= 0 {
		stateTTL = DefaultStateTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		options:  append([]authcode.Option{authcode.WithLogger(logger)}, opts...),
		states:   states,
		stateTTL: stateTTL,
		logger:   logger,
	}
	s.SetConfig(cfg)
	return s
}

// SetConfig builds a new exchanger from cfg, keeping the options the Service
// was constructed with, and swaps it in.
func (s *Service) SetConfig(cfg authcode.Config) {
	s.exchanger.Store(authcode.New(cfg, s.options...))
}

func (s *Service) Exchanger() *authcode.Exchanger {
	return s.exchanger.Load()
}
