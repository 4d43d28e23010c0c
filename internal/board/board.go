// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package board

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/mia-platform/devboard/internal/config"
	"github.com/mia-platform/devboard/internal/logger"
	"github.com/mia-platform/devboard/internal/poller"
	"github.com/mia-platform/devboard/internal/source"
	"github.com/mia-platform/devboard/internal/view"
)

const (
	loggerName = "devboard:board"
)

// Recorder receives the synchronizer metrics and the size of every fetched collection.
type Recorder interface {
	poller.Recorder
	RecordItems(ctx context.Context, source string, count int)
}

// Option customizes a Board.
type Option func(*Board)

// WithClock sets the clock shared by the synchronizers and the snapshot timestamps.
func WithClock(c clock.WithTicker) Option {
	return func(b *Board) {
		b.clock = c
	}
}

// WithRecorder attaches a metrics recorder. A nil recorder is ignored.
func WithRecorder(recorder Recorder) Option {
	return func(b *Board) {
		if recorder != nil {
			b.recorder = recorder
		}
	}
}

type synchronizer interface {
	Start(ctx context.Context, interval time.Duration) error
	Stop()
	RefreshNow() bool
}

// states holds the last state received from every synchronizer.
type states struct {
	pullRequests poller.State[source.PullRequest]
	builds       poller.State[source.Build]
	releases     poller.State[source.Release]
	workItems    poller.State[source.WorkItem]
}

// Snapshot is an immutable rendering of the board.
type Snapshot struct {
	GeneratedAt  time.Time        `json:"generatedAt" yaml:"generatedAt"`
	Sources      []SourceStatus   `json:"sources" yaml:"sources"`
	PullRequests PullRequestsCard `json:"pullrequests" yaml:"pullrequests"`
	Pipelines    PipelinesCard    `json:"pipelines" yaml:"pipelines"`
	Environments EnvironmentsCard `json:"environments" yaml:"environments"`
	Tasks        TasksCard        `json:"tasks" yaml:"tasks"`

	layout *config.Board
	states states
}

// Board renders the dashboard cards from four synchronized sources.
type Board struct {
	layout   *config.Board
	source   source.DevOps
	clock    clock.WithTicker
	recorder Recorder

	synchronizers map[string]synchronizer
	unsubscribe   []func()

	lock    sync.Mutex
	started bool
	current states
	ready   chan struct{}
	log     logger.Logger

	snapshot atomic.Pointer[Snapshot]
}

// New returns a stopped Board reading from devOps with the given layout.
func New(layout *config.Board, devOps source.DevOps, opts ...Option) *Board {
	b := &Board{
		layout:   layout,
		source:   devOps,
		clock:    clock.RealClock{},
		recorder: noopRecorder{},
		ready:    make(chan struct{}),
		log:      logger.FromContext(context.Background()),
	}
	for _, opt := range opts {
		opt(b)
	}

	pollerOptions := []poller.Option{
		poller.WithClock(b.clock),
		poller.WithDebounce(layout.Debounce),
		poller.WithRecorder(b.recorder),
	}

	pullRequests := poller.New(config.SourcePullRequests, devOps.PullRequests, pollerOptions...)
	builds := poller.New(config.SourceBuilds, devOps.Builds, pollerOptions...)
	releases := poller.New(config.SourceReleases, devOps.Releases, pollerOptions...)
	workItems := poller.New(config.SourceWorkItems, devOps.WorkItems, pollerOptions...)

	b.synchronizers = map[string]synchronizer{
		config.SourcePullRequests: pullRequests,
		config.SourceBuilds:       builds,
		config.SourceReleases:     releases,
		config.SourceWorkItems:    workItems,
	}

	b.unsubscribe = []func(){
		subscribe(b, pullRequests, func(s *states, state poller.State[source.PullRequest]) { s.pullRequests = state }),
		subscribe(b, builds, func(s *states, state poller.State[source.Build]) { s.builds = state }),
		subscribe(b, releases, func(s *states, state poller.State[source.Release]) { s.releases = state }),
		subscribe(b, workItems, func(s *states, state poller.State[source.WorkItem]) { s.workItems = state }),
	}

	b.current = idleStates()
	b.snapshot.Store(b.render(b.current))
	return b
}

func subscribe[T any](b *Board, s *poller.Synchronizer[T], set func(*states, poller.State[T])) func() {
	name := s.Name()
	return s.Subscribe(func(state poller.State[T]) {
		b.update(name, len(state.Data), state.Phase, func(current *states) {
			set(current, state)
		})
	})
}

// Start runs every synchronizer with its configured interval. If one of them cannot start,
// the ones already running are stopped.
func (b *Board) Start(ctx context.Context) error {
	b.lock.Lock()
	if b.started {
		b.lock.Unlock()
		return nil
	}

	log := logger.FromContext(ctx).WithName(loggerName)
	b.log = log
	b.started = true
	b.current = idleStates()
	b.ready = make(chan struct{})
	b.snapshot.Store(b.render(b.current))
	b.lock.Unlock()

	log.Debug("starting board", "sources", len(config.SourceNames))
	for index, name := range config.SourceNames {
		if err := b.synchronizers[name].Start(ctx, b.layout.Interval(name)); err != nil {
			for _, started := range config.SourceNames[:index] {
				b.synchronizers[started].Stop()
			}

			b.lock.Lock()
			b.started = false
			b.lock.Unlock()
			return fmt.Errorf("starting %s: %w", name, err)
		}
	}
	return nil
}

// Stop stops every synchronizer. The last snapshot stays available.
func (b *Board) Stop() {
	b.lock.Lock()
	if !b.started {
		b.lock.Unlock()
		return
	}
	b.started = false
	log := b.log
	b.lock.Unlock()

	for _, name := range config.SourceNames {
		b.synchronizers[name].Stop()
	}
	log.Debug("board stopped")
}

// Close stops the board and releases the source, when it holds any resource.
func (b *Board) Close(ctx context.Context, timeout time.Duration) error {
	b.Stop()

	for _, unsubscribe := range b.unsubscribe {
		unsubscribe()
	}
	b.unsubscribe = nil

	b.lock.Lock()
	log := b.log
	b.lock.Unlock()

	closableSource, ok := b.source.(source.ClosableSource)
	if !ok {
		log.Debug("source does not implement ClosableSource, skipping close")
		return nil
	}

	log.Debug("closing source")
	return closableSource.Close(ctx, timeout)
}

// RefreshNow requests a manual refresh of the named source. It reports false when the
// request has been dropped.
func (b *Board) RefreshNow(name string) (bool, error) {
	target, found := b.synchronizers[name]
	if !found {
		return false, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	b.lock.Lock()
	started := b.started
	b.lock.Unlock()
	if !started {
		return false, ErrNotStarted
	}

	return target.RefreshNow(), nil
}

// Ready reports whether every source completed at least one fetch.
func (b *Board) Ready() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.started && b.current.settled()
}

// WaitReady blocks until every source completed at least one fetch or ctx is done.
func (b *Board) WaitReady(ctx context.Context) error {
	b.lock.Lock()
	started := b.started
	ready := b.ready
	b.lock.Unlock()

	if !started {
		return ErrNotStarted
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the last rendered snapshot.
func (b *Board) Snapshot() *Snapshot {
	return b.snapshot.Load()
}

// Card returns the named card of the last snapshot. A non empty query keeps only the items
// fuzzily matching it: pull request and task titles, pipeline definitions and environment names.
func (b *Board) Card(name, query string) (any, error) {
	return b.Snapshot().Card(name, query)
}

// Reviewers returns the reviewers of a pull request straight from the source.
func (b *Board) Reviewers(ctx context.Context, repositoryID string, pullRequestID int) ([]source.Reviewer, error) {
	return b.source.Reviewers(ctx, repositoryID, pullRequestID)
}

// update applies a transition of one synchronizer and publishes a new snapshot.
func (b *Board) update(name string, items int, phase poller.Phase, set func(*states)) {
	b.lock.Lock()
	defer b.lock.Unlock()

	set(&b.current)
	b.snapshot.Store(b.render(b.current))

	if phase == poller.PhaseReady {
		b.recorder.RecordItems(context.Background(), name, items)
	}

	if b.started && b.current.settled() {
		select {
		case <-b.ready:
		default:
			b.log.Debug("every source completed its first fetch")
			close(b.ready)
		}
	}
}

func (b *Board) render(current states) *Snapshot {
	snapshot := &Snapshot{
		GeneratedAt: b.clock.Now(),
		layout:      b.layout,
		states:      current,
	}
	snapshot.Sources = current.statuses()
	snapshot.PullRequests = snapshot.pullRequestsCard("")
	snapshot.Pipelines = snapshot.pipelinesCard()
	snapshot.Environments = snapshot.environmentsCard()
	snapshot.Tasks = snapshot.tasksCard("")
	return snapshot
}

// Card returns the named card, filtered by query when it is not empty.
func (s *Snapshot) Card(name, query string) (any, error) {
	switch name {
	case CardPullRequests:
		if query == "" {
			return s.PullRequests, nil
		}
		return s.pullRequestsCard(query), nil
	case CardPipelines:
		card := s.Pipelines
		card.Items = view.Search(card.Items, pipelineDefinition, query)
		return card, nil
	case CardEnvironments:
		card := s.Environments
		card.Environments = view.Search(card.Environments, environmentName, query)
		return card, nil
	case CardTasks:
		if query == "" {
			return s.Tasks, nil
		}
		return s.tasksCard(query), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCard, name)
	}
}

// SourceStatus returns the status of the named source.
func (s *Snapshot) SourceStatus(name string) (SourceStatus, bool) {
	for _, status := range s.Sources {
		if status.Name == name {
			return status, true
		}
	}
	return SourceStatus{}, false
}

func (s *Snapshot) pullRequestsCard(query string) PullRequestsCard {
	status := statusOf(config.SourcePullRequests, s.states.pullRequests)
	return renderPullRequests(status, view.Search(s.states.pullRequests.Data, pullRequestTitle, query))
}

func (s *Snapshot) pipelinesCard() PipelinesCard {
	status := statusOf(config.SourceBuilds, s.states.builds)
	return renderPipelines(status, s.states.builds.Data, s.layout.PipelinesLimit)
}

func (s *Snapshot) environmentsCard() EnvironmentsCard {
	statuses := []SourceStatus{
		statusOf(config.SourceBuilds, s.states.builds),
		statusOf(config.SourceReleases, s.states.releases),
	}
	return renderEnvironments(s.layout, statuses, s.states.builds.Data, s.states.releases.Data)
}

func (s *Snapshot) tasksCard(query string) TasksCard {
	status := statusOf(config.SourceWorkItems, s.states.workItems)
	return renderTasks(status, view.Search(s.states.workItems.Data, workItemTitle, query))
}

func idleStates() states {
	return states{
		pullRequests: poller.State[source.PullRequest]{Phase: poller.PhaseIdle},
		builds:       poller.State[source.Build]{Phase: poller.PhaseIdle},
		releases:     poller.State[source.Release]{Phase: poller.PhaseIdle},
		workItems:    poller.State[source.WorkItem]{Phase: poller.PhaseIdle},
	}
}

func (s states) statuses() []SourceStatus {
	return []SourceStatus{
		statusOf(config.SourcePullRequests, s.pullRequests),
		statusOf(config.SourceBuilds, s.builds),
		statusOf(config.SourceReleases, s.releases),
		statusOf(config.SourceWorkItems, s.workItems),
	}
}

func (s states) settled() bool {
	return s.pullRequests.Phase.Settled() &&
		s.builds.Phase.Settled() &&
		s.releases.Phase.Settled() &&
		s.workItems.Phase.Settled()
}

type noopRecorder struct{}

func (noopRecorder) RecordFetch(context.Context, string, time.Duration, error) {}
func (noopRecorder) RecordDropped(context.Context, string, string)             {}
func (noopRecorder) RecordItems(context.Context, string, int)                  {}
