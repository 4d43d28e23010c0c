// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"

	"github.com/mia-platform/devboard/internal/server"
)

var _ server.Server = &Server{}

// Server is a server.Server that blocks in Start until Stop is called.
type Server struct {
	tb testing.TB

	startErr    error
	startedChan chan struct{}
	closedChan  chan struct{}
	startOnce   sync.Once
	closeOnce   sync.Once
}

func NewFakeServer(tb testing.TB) *Server {
	tb.Helper()

	return &Server{
		tb:          tb,
		startedChan: make(chan struct{}),
		closedChan:  make(chan struct{}),
	}
}

// NewFakeServerWithError returns a server whose Start fails immediately with err.
func NewFakeServerWithError(tb testing.TB, err error) *Server {
	tb.Helper()

	s := NewFakeServer(tb)
	s.startErr = err
	return s
}

func (s *Server) Start() error {
	s.tb.Helper()
	s.startOnce.Do(func() { close(s.startedChan) })
	if s.startErr != nil {
		return s.startErr
	}
	<-s.closedChan
	return nil
}

func (s *Server) Stop() error {
	s.tb.Helper()
	s.closeOnce.Do(func() { close(s.closedChan) })
	return nil
}

func (s *Server) StartAsync(_ context.Context) {
	s.tb.Helper()
	go func() { _ = s.Start() }()
}

// StartedServer is closed once Start has been called.
func (s *Server) StartedServer() <-chan struct{} {
	s.tb.Helper()
	return s.startedChan
}

// Stopped reports whether Stop has been called.
func (s *Server) Stopped() bool {
	select {
	case <-s.closedChan:
		return true
	default:
		return false
	}
}
