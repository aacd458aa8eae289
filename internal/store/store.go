// Package store defines the persisted-state collaborator the core consumes
// from: bots, workflows, per-user workflow subscriptions, and global
// variables. The admin console and migrations that populate these tables
// are an external system; this package only reads what the core needs at
// dispatch and schedule time.
package store

import (
	"context"
)

// Bot is a configured protocol endpoint: one adapter instance, one set of
// credentials, owned by exactly one user.
type Bot struct {
	ID          string
	OwnerID     string
	Protocol    string // "webhook", "websocket", "discord", "telegram"
	Name        string
	Enabled     bool
	Secrets     map[string]string // protocol-specific, values may be "enc:"-prefixed
	Settings    map[string]any
	CreatedAt   string
	UpdatedAt   string
}

// TriggerType enumerates how a Workflow is entered.
type TriggerType string

const (
	TriggerMessage   TriggerType = "message"
	TriggerSchedule  TriggerType = "schedule"
	TriggerKeyword   TriggerType = "keyword"
	TriggerEndpoint  TriggerType = "endpoint"
)

// Workflow is a stored step graph plus the routing metadata dispatch and the
// scheduler use to decide whether it applies to a given event.
type Workflow struct {
	ID          string
	Name        string
	Description string
	Enabled     bool
	TriggerType TriggerType
	Protocols   []string // empty = all protocols
	EventFilter map[string]any
	Schedule    string // cron expression or "@every 5m"-style interval
	Timezone    string
	Steps       []byte // JSON-encoded step list, decoded by the workflow package
	CreatedAt   string
	UpdatedAt   string
}

// UserWorkflow records that a user has subscribed one of their bots to a
// workflow, the unit dispatch and the scheduler fan out against.
type UserWorkflow struct {
	ID         string
	UserID     string
	WorkflowID string
	BotID      string
	Enabled    bool
}

// GlobalVariable is a named value visible to every workflow template via the
// `global.*` namespace.
type GlobalVariable struct {
	Key   string
	Value any
}

// BotStorer is the read surface dispatch and the adapter manager need over
// bot records.
type BotStorer interface {
	ListEnabledBots(ctx context.Context) ([]Bot, error)
	GetBot(ctx context.Context, id string) (*Bot, error)
}

// WorkflowStorer is the read surface the workflow cache needs to build its
// in-memory snapshot.
type WorkflowStorer interface {
	ListEnabledWorkflows(ctx context.Context) ([]Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
}

// UserWorkflowStorer resolves which bots are subscribed to which workflows,
// the join dispatch and the scheduler both need.
type UserWorkflowStorer interface {
	ListEnabledSubscriptions(ctx context.Context, workflowID string) ([]UserWorkflow, error)
}

// GlobalVariableStorer is the read surface the template engine's `global.*`
// namespace is backed by.
type GlobalVariableStorer interface {
	ListGlobalVariables(ctx context.Context) ([]GlobalVariable, error)
}

// Store bundles every storer the core depends on plus lifecycle.
//
// Backend selection (postgres, sqlite, in-memory) lives in cmd/atbot, which
// imports both this package (for the types and the interface) and the
// chosen backend package directly — keeping store free of a dependency on
// any one backend.
type Store interface {
	BotStorer
	WorkflowStorer
	UserWorkflowStorer
	GlobalVariableStorer
	Close() error
}
