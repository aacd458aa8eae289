// Package scheduler runs schedule-trigger workflows on a cron/interval basis
// using the hardloop library, the same way the teacher's workflow scheduler
// does. Because hardloop's cron runner does not support dynamic add/remove
// of jobs, the scheduler stops and recreates the whole runner on Reload.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/worldline-go/hardloop"

	"github.com/rakunlabs/atbot/internal/cluster"
	"github.com/rakunlabs/atbot/internal/event"
	"github.com/rakunlabs/atbot/internal/store"
)

// cronRunner is satisfied by hardloop's unexported *cronJob type (returned
// by hardloop.NewCron), letting us store it without naming the unexported
// type directly.
type cronRunner interface {
	Start(ctx context.Context) error
	Stop()
}

// Dispatcher is the subset of dispatch.Dispatcher the scheduler fans events
// into. Kept as an interface so this package never imports dispatch
// directly (avoiding an import cycle; dispatch does not need the
// scheduler).
type Dispatcher interface {
	Dispatch(ctx context.Context, ev event.Event) error
}

// Scheduler manages schedule-trigger workflows, one hardloop cron job per
// workflow, and fans a synthetic event.ScheduledEvent out to the bot named
// on each enabled subscription to the workflow when it fires. Other bots
// owned by a subscribing user receive nothing unless they have their own
// subscription.
type Scheduler struct {
	Workflows     store.WorkflowStorer
	Subscriptions store.UserWorkflowStorer
	Bots          store.BotStorer
	Dispatch      Dispatcher

	// Timezone is applied to any schedule that doesn't already carry its
	// own CRON_TZ= prefix or workflow-level Timezone.
	Timezone string

	// Cluster, if set, gates the cron runner behind leader election so
	// only one instance in a multi-instance deployment fires schedules.
	// Nil means single-instance mode: the runner starts immediately.
	Cluster *cluster.Cluster

	mu     sync.Mutex
	cron   cronRunner
	cancel context.CancelFunc
	ctx    context.Context
}

// Start loads every enabled schedule-trigger workflow and starts the cron
// runner. Call once during process startup.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx

	if s.Cluster != nil {
		go s.runLockLoop(ctx)
		return nil
	}

	return s.reload()
}

// runLockLoop blocks acquiring the scheduler leader lock, runs the cron
// runner while held, and when ctx is cancelled stops the runner and
// releases the lock.
func (s *Scheduler) runLockLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		slog.Info("scheduler: attempting to acquire leader lock")
		if err := s.Cluster.LockScheduler(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("scheduler: failed to acquire lock, retrying", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		slog.Info("scheduler: acquired leader lock, starting schedule triggers")

		s.mu.Lock()
		if err := s.reload(); err != nil {
			slog.Error("scheduler: failed to start cron runner", "error", err)
		}
		s.mu.Unlock()

		<-ctx.Done()

		slog.Info("scheduler: releasing leader lock")
		s.Stop()
		_ = s.Cluster.UnlockScheduler()
		return
	}
}

// Reload stops the current cron runner, if any, and rebuilds it from the
// current set of enabled schedule-trigger workflows. Call after a workflow
// with a schedule trigger is created, updated, or deleted.
func (s *Scheduler) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reload()
}

// Stop stops the scheduler. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

func (s *Scheduler) reload() error {
	s.stopLocked()

	if s.ctx == nil {
		return nil
	}

	workflows, err := s.Workflows.ListEnabledWorkflows(s.ctx)
	if err != nil {
		return fmt.Errorf("scheduler: list enabled workflows: %w", err)
	}

	crons := make([]hardloop.Cron, 0, len(workflows))
	for _, wf := range workflows {
		if wf.TriggerType != store.TriggerSchedule {
			continue
		}
		if wf.Schedule == "" {
			slog.Warn("scheduler: schedule-trigger workflow has no schedule, skipping", "workflow_id", wf.ID)
			continue
		}

		spec, err := s.toCronSpec(wf)
		if err != nil {
			slog.Warn("scheduler: invalid schedule, skipping", "workflow_id", wf.ID, "schedule", wf.Schedule, "error", err)
			continue
		}

		wf := wf
		crons = append(crons, hardloop.Cron{
			Name:  fmt.Sprintf("workflow_%s", wf.ID),
			Specs: []string{spec},
			Func:  s.fireFunc(wf),
		})
	}

	if len(crons) == 0 {
		slog.Info("scheduler: no schedule-trigger workflows to run")
		return nil
	}

	cronJob, err := hardloop.NewCron(crons...)
	if err != nil {
		return fmt.Errorf("scheduler: create cron runner: %w", err)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.cron = cronJob

	if err := cronJob.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("scheduler: start cron runner: %w", err)
	}

	slog.Info("scheduler: started schedule triggers", "count", len(crons))
	return nil
}

// toCronSpec translates a Workflow's Schedule field into a hardloop cron
// spec: "@every <n>" intervals pass through as-is (hardloop understands the
// standard @every duration syntax natively), expressions that already start
// with CRON_TZ= pass through unchanged, and other cron expressions get a
// CRON_TZ= prefix from the workflow's own Timezone, falling back to the
// scheduler's configured default.
func (s *Scheduler) toCronSpec(wf store.Workflow) (string, error) {
	schedule := strings.TrimSpace(wf.Schedule)
	if strings.HasPrefix(schedule, "@every") {
		if _, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(schedule, "@every"))); err != nil {
			return "", fmt.Errorf("parse interval: %w", err)
		}
		return schedule, nil
	}
	if strings.HasPrefix(schedule, "CRON_TZ=") {
		return schedule, nil
	}

	tz := wf.Timezone
	if tz == "" {
		tz = s.Timezone
	}
	if tz != "" {
		return "CRON_TZ=" + tz + " " + schedule, nil
	}
	return schedule, nil
}

// fireFunc returns the function hardloop calls on each tick: it loads the
// workflow's subscribers, builds a synthetic scheduled event per subscribed
// bot, and dispatches each one. A bot lookup or dispatch failure for one
// subscriber never stops the cron loop or blocks the others.
func (s *Scheduler) fireFunc(wf store.Workflow) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		firedAt := time.Now().UTC()
		slog.Info("scheduler: schedule triggered", "workflow_id", wf.ID, "schedule", wf.Schedule)

		subs, err := s.Subscriptions.ListEnabledSubscriptions(ctx, wf.ID)
		if err != nil {
			slog.Error("scheduler: list subscriptions failed", "workflow_id", wf.ID, "error", err)
			return nil
		}

		sev := event.ScheduledEvent{
			WorkflowID: wf.ID,
			Schedule:   wf.Schedule,
			Timezone:   wf.Timezone,
			FiredAt:    firedAt,
		}

		handled := 0
		for _, sub := range subs {
			if sub.BotID == "" {
				continue
			}

			bot, err := s.Bots.GetBot(ctx, sub.BotID)
			if err != nil {
				slog.Error("scheduler: get bot failed", "workflow_id", wf.ID, "bot_id", sub.BotID, "error", err)
				continue
			}
			if bot == nil || !bot.Enabled {
				continue
			}

			ev := sev.ToEvent(bot.ID)
			ev.Protocol = bot.Protocol
			if err := s.Dispatch.Dispatch(ctx, ev); err != nil {
				slog.Error("scheduler: dispatch failed", "workflow_id", wf.ID, "bot_id", bot.ID, "error", err)
				continue
			}
			handled++
		}

		slog.Info("scheduler: schedule fan-out complete", "workflow_id", wf.ID, "bots_handled", strconv.Itoa(handled))
		return nil
	}
}
