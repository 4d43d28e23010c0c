// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mia-platform/devboard/internal/board"
	"github.com/mia-platform/devboard/internal/config"
	"github.com/mia-platform/devboard/internal/destination"
	"github.com/mia-platform/devboard/internal/logger"
	"github.com/mia-platform/devboard/internal/poller"
	"github.com/mia-platform/devboard/internal/server"
	"github.com/mia-platform/devboard/internal/telemetry"
)

const (
	serveLoggerName = "devboard:serve"
	syncLoggerName  = "devboard:sync"

	boardDocumentName = "board"
)

// serveOptions holds the options set for the serve command.
type serveOptions struct {
	boardPath       string
	sourceGetter    sourceGetterFunc
	serverGetter    serverGetterFunc
	shutdownTimeout time.Duration

	lock sync.Mutex
}

// validate validates the serve options and returns an error if something is wrong.
func (o *serveOptions) validate() error {
	if o.shutdownTimeout <= 0 {
		return errInvalidTimeout
	}
	return nil
}

// execute polls the sources and serves the board until ctx is cancelled or the server fails.
func (o *serveOptions) execute(ctx context.Context) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	log := logger.FromContext(ctx).WithName(serveLoggerName)

	layout, err := config.NewBoardFromPath(o.boardPath)
	if err != nil {
		return err
	}

	serverConfig, err := server.LoadServerConfig()
	if err != nil {
		return err
	}

	provider, err := telemetry.NewProvider(serverConfig.MetricsEnabled)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("error shutting down meter provider", "error", err.Error())
		}
	}()

	syncMetrics, err := telemetry.NewSyncMetrics(provider)
	if err != nil {
		return err
	}

	devOps, err := o.sourceGetter(ctx)
	if err != nil {
		return err
	}

	dashboard := board.New(layout, devOps, board.WithRecorder(syncMetrics))
	srv, err := o.serverGetter(ctx, serverConfig, dashboard, provider)
	if err != nil {
		return errors.Join(err, dashboard.Close(context.WithoutCancel(ctx), o.shutdownTimeout))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if err := dashboard.Start(groupCtx); err != nil {
		return errors.Join(err, dashboard.Close(context.WithoutCancel(ctx), o.shutdownTimeout))
	}

	log.Info("serving board", "host", serverConfig.HTTPHost, "port", serverConfig.HTTPPort)
	group.Go(srv.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down server")
		return srv.Stop()
	})

	err = group.Wait()
	closeErr := dashboard.Close(context.WithoutCancel(ctx), o.shutdownTimeout)
	return errors.Join(err, closeErr)
}

// syncOptions holds the options set for the sync command.
type syncOptions struct {
	boardPath       string
	cards           []string
	timeout         time.Duration
	destination     destination.Sender
	sourceGetter    sourceGetterFunc
	shutdownTimeout time.Duration

	lock sync.Mutex
}

// validate validates the sync options and returns an error if something is wrong.
func (o *syncOptions) validate() error {
	for _, card := range o.cards {
		if _, ok := availableCards[card]; !ok {
			return fmt.Errorf("%w: %s", errInvalidCard, card)
		}
	}

	if o.timeout <= 0 {
		return errInvalidTimeout
	}

	return nil
}

// execute waits for the first fetch of every source and sends the rendered cards to the
// destination.
func (o *syncOptions) execute(ctx context.Context) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	log := logger.FromContext(ctx).WithName(syncLoggerName)

	layout, err := config.NewBoardFromPath(o.boardPath)
	if err != nil {
		return err
	}

	devOps, err := o.sourceGetter(ctx)
	if err != nil {
		return err
	}

	dashboard := board.New(layout, devOps)
	defer func() {
		if err := dashboard.Close(context.WithoutCancel(ctx), o.shutdownTimeout); err != nil {
			log.Warn("error closing source", "error", err.Error())
		}
	}()

	if err := dashboard.Start(ctx); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := dashboard.WaitReady(waitCtx); err != nil {
		dashboard.Stop()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", errSyncTimeout, o.timeout)
		}
		return err
	}
	dashboard.Stop()

	snapshot := dashboard.Snapshot()
	if err := o.send(ctx, snapshot); err != nil {
		return err
	}

	failed := make([]string, 0)
	for _, status := range snapshot.Sources {
		if status.Phase != poller.PhaseFailed {
			continue
		}
		failed = append(failed, status.Name)
		log.Error("source failed", "source", status.Name, "error", status.Error.Message)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", errSourcesFailed, strings.Join(failed, ", "))
	}

	log.Debug("sync completed", "cards", len(o.cards))
	return nil
}

func (o *syncOptions) send(ctx context.Context, snapshot *board.Snapshot) error {
	if len(o.cards) == 0 {
		return o.destination.Send(ctx, destination.NewData(destination.KindBoard, boardDocumentName, snapshot.GeneratedAt, snapshot))
	}

	for _, name := range o.cards {
		card, err := snapshot.Card(name, "")
		if err != nil {
			return err
		}

		if err := o.destination.Send(ctx, destination.NewData(destination.KindCard, name, snapshot.GeneratedAt, card)); err != nil {
			return err
		}
	}
	return nil
}
