// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"

	"github.com/mia-platform/devboard/internal/destination"
)

var _ destination.Sender = &FakeDestination{}

// FakeDestination keeps every sent document in memory, or fails with Err when set.
type FakeDestination struct {
	tb testing.TB

	lock     sync.Mutex
	SentData []*destination.Data
	Err      error
}

func NewFakeDestination(tb testing.TB) *FakeDestination {
	tb.Helper()
	return &FakeDestination{tb: tb}
}

func (f *FakeDestination) Send(_ context.Context, data *destination.Data) error {
	f.tb.Helper()

	f.lock.Lock()
	defer f.lock.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.SentData = append(f.SentData, data)
	return nil
}
