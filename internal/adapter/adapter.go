// Package adapter defines the protocol adapter contract and the manager
// that owns one adapter instance per running bot.
package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rakunlabs/atbot/internal/event"
)

// Handler is invoked once per event an adapter parses off the wire.
type Handler func(ctx context.Context, ev event.Event)

// Adapter is the protocol-specific component that translates between wire
// bytes and the core Event/Message model for a single bot.
type Adapter interface {
	// Start connects/registers the adapter for its bot and begins
	// delivering events to the handler set via SetMessageHandler.
	Start(ctx context.Context) error
	// Stop tears the adapter down; best-effort.
	Stop(ctx context.Context) error
	// CallAPI dispatches an outbound protocol action (e.g. send a message).
	CallAPI(ctx context.Context, action string, params map[string]any) (any, error)
	// ProtocolName identifies the wire protocol this adapter speaks.
	ProtocolName() string
	// CacheKeyField names the bot config field (if any) that webhook
	// adapters use to route an inbound request to this bot.
	CacheKeyField() string
	// SetMessageHandler attaches the per-event handler. Calling it again
	// while already running is a no-op if a handler is already attached.
	SetMessageHandler(h Handler)
}

// Constructor builds an Adapter for one bot from its stored config.
type Constructor func(botID string, config map[string]any, secrets map[string]string) (Adapter, error)

// WebhookReceiver is implemented by adapters that deliver events over an
// inbound HTTP push (webhook) rather than an outbound connection. The HTTP
// server looks the bot up by CacheKeyField, type-asserts its Adapter to this
// interface, and hands the raw request over.
type WebhookReceiver interface {
	// HandleWebhook processes one inbound HTTP request body and returns the
	// JSON body and status code to answer it with.
	HandleWebhook(ctx context.Context, raw []byte, headers map[string]string) (response []byte, status int)
}

// Manager is the process-wide registry of protocol constructors and the
// runtime map of bot_id -> running adapter. Re-entrant start is idempotent;
// two adapter instances for the same bot are forbidden.
type Manager struct {
	constructors map[string]Constructor

	mapMu     sync.Mutex
	running   map[string]Adapter
	botLocks  map[string]*sync.Mutex
}

func NewManager() *Manager {
	return &Manager{
		constructors: make(map[string]Constructor),
		running:      make(map[string]Adapter),
		botLocks:     make(map[string]*sync.Mutex),
	}
}

// Register associates a protocol name with its adapter constructor.
func (m *Manager) Register(protocol string, ctor Constructor) {
	m.constructors[protocol] = ctor
}

func (m *Manager) botLock(botID string) *sync.Mutex {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()

	lock, ok := m.botLocks[botID]
	if !ok {
		lock = &sync.Mutex{}
		m.botLocks[botID] = lock
	}
	return lock
}

// StartAdapter constructs (if necessary) and starts the adapter for botID.
// Guarded by a per-bot mutex obtained under the map-protecting lock, so two
// concurrent start calls for the same bot serialize rather than race.
func (m *Manager) StartAdapter(ctx context.Context, botID, protocol string, config map[string]any, secrets map[string]string, handler Handler) error {
	lock := m.botLock(botID)
	lock.Lock()
	defer lock.Unlock()

	m.mapMu.Lock()
	existing, ok := m.running[botID]
	m.mapMu.Unlock()

	if ok {
		// Idempotent re-entry: attach the handler if none was set yet,
		// otherwise this is a no-op success.
		existing.SetMessageHandler(handler)
		return nil
	}

	ctor, ok := m.constructors[protocol]
	if !ok {
		return fmt.Errorf("adapter: no constructor registered for protocol %q", protocol)
	}

	a, err := ctor(botID, config, secrets)
	if err != nil {
		return fmt.Errorf("adapter: construct %q adapter for bot %s: %w", protocol, botID, err)
	}
	a.SetMessageHandler(handler)

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("adapter: start %q adapter for bot %s: %w", protocol, botID, err)
	}

	m.mapMu.Lock()
	m.running[botID] = a
	m.mapMu.Unlock()

	return nil
}

// StopAdapter stops and forgets the adapter for botID, if one is running.
func (m *Manager) StopAdapter(ctx context.Context, botID string) error {
	lock := m.botLock(botID)
	lock.Lock()
	defer lock.Unlock()

	m.mapMu.Lock()
	a, ok := m.running[botID]
	if ok {
		delete(m.running, botID)
	}
	m.mapMu.Unlock()

	if !ok {
		return nil
	}
	return a.Stop(ctx)
}

// Get returns the running adapter for botID, if any.
func (m *Manager) Get(botID string) (Adapter, bool) {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	a, ok := m.running[botID]
	return a, ok
}

// CallAPI is a convenience passthrough used by the endpoint node: look the
// bot's running adapter up and dispatch the action to it.
func (m *Manager) CallAPI(ctx context.Context, botID, action string, params map[string]any) (any, error) {
	a, ok := m.Get(botID)
	if !ok {
		return nil, fmt.Errorf("adapter: no running adapter for bot %s", botID)
	}
	return a.CallAPI(ctx, action, params)
}
