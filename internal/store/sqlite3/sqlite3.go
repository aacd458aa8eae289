// Package sqlite3 implements a store.Store backend against a SQLite file,
// built on the same goqu query-builder + ULID-id idiom the Postgres backend
// uses, via modernc.org/sqlite (a cgo-free driver).
package sqlite3

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	_ "modernc.org/sqlite"

	"github.com/rakunlabs/atbot/internal/config"
	"github.com/rakunlabs/atbot/internal/store"
)

var DefaultTablePrefix = "atbot_"

type SQLite struct {
	db   *sql.DB
	goqu *goqu.Database

	tableBots          exp.IdentifierExpression
	tableWorkflows     exp.IdentifierExpression
	tableSubscriptions exp.IdentifierExpression
	tableGlobals       exp.IdentifierExpression
}

func New(ctx context.Context, cfg *config.StoreSQLite) (*SQLite, error) {
	if cfg == nil {
		return nil, errors.New("sqlite configuration is nil")
	}
	if cfg.Datasource == "" {
		return nil, errors.New("sqlite datasource is required")
	}

	prefix := DefaultTablePrefix
	if cfg.TablePrefix != nil {
		prefix = *cfg.TablePrefix
	}

	db, err := sql.Open("sqlite", cfg.Datasource)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer per file handle

	s := &SQLite{
		db:                 db,
		goqu:               goqu.New("sqlite3", db),
		tableBots:          goqu.T(prefix + "bots"),
		tableWorkflows:     goqu.T(prefix + "workflows"),
		tableSubscriptions: goqu.T(prefix + "user_workflows"),
		tableGlobals:       goqu.T(prefix + "global_variables"),
	}

	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY, owner_id TEXT, protocol TEXT, name TEXT,
			enabled INTEGER, secrets TEXT, settings TEXT,
			created_at TEXT, updated_at TEXT
		)`, s.tableBots.GetTable()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY, name TEXT, description TEXT, enabled INTEGER,
			trigger_type TEXT, protocols TEXT, event_filter TEXT,
			schedule TEXT, timezone TEXT, steps TEXT,
			created_at TEXT, updated_at TEXT
		)`, s.tableWorkflows.GetTable()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY, user_id TEXT, workflow_id TEXT, bot_id TEXT, enabled INTEGER
		)`, s.tableSubscriptions.GetTable()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY, value TEXT
		)`, s.tableGlobals.GetTable()),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type botRow struct {
	ID        string `db:"id"`
	OwnerID   string `db:"owner_id"`
	Protocol  string `db:"protocol"`
	Name      string `db:"name"`
	Enabled   bool   `db:"enabled"`
	Secrets   string `db:"secrets"`
	Settings  string `db:"settings"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (s *SQLite) ListEnabledBots(ctx context.Context) ([]store.Bot, error) {
	query, _, err := s.goqu.From(s.tableBots).
		Select("id", "owner_id", "protocol", "name", "enabled", "secrets", "settings", "created_at", "updated_at").
		Where(goqu.I("enabled").Eq(true)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list bots query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var out []store.Bot
	for rows.Next() {
		var row botRow
		if err := rows.Scan(&row.ID, &row.OwnerID, &row.Protocol, &row.Name, &row.Enabled, &row.Secrets, &row.Settings, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan bot row: %w", err)
		}
		b, err := botRowToRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *SQLite) GetBot(ctx context.Context, id string) (*store.Bot, error) {
	query, _, err := s.goqu.From(s.tableBots).
		Select("id", "owner_id", "protocol", "name", "enabled", "secrets", "settings", "created_at", "updated_at").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get bot query: %w", err)
	}

	var row botRow
	err = s.db.QueryRowContext(ctx, query).Scan(&row.ID, &row.OwnerID, &row.Protocol, &row.Name, &row.Enabled, &row.Secrets, &row.Settings, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bot %q: %w", id, err)
	}
	return botRowToRecord(row)
}

func botRowToRecord(row botRow) (*store.Bot, error) {
	var secrets map[string]string
	if row.Secrets != "" {
		if err := json.Unmarshal([]byte(row.Secrets), &secrets); err != nil {
			return nil, fmt.Errorf("unmarshal bot secrets for %q: %w", row.ID, err)
		}
	}
	var settings map[string]any
	if row.Settings != "" {
		if err := json.Unmarshal([]byte(row.Settings), &settings); err != nil {
			return nil, fmt.Errorf("unmarshal bot settings for %q: %w", row.ID, err)
		}
	}

	return &store.Bot{
		ID: row.ID, OwnerID: row.OwnerID, Protocol: row.Protocol, Name: row.Name,
		Enabled: row.Enabled, Secrets: secrets, Settings: settings,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}, nil
}

type workflowRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Enabled     bool   `db:"enabled"`
	TriggerType string `db:"trigger_type"`
	Protocols   string `db:"protocols"`
	EventFilter string `db:"event_filter"`
	Schedule    string `db:"schedule"`
	Timezone    string `db:"timezone"`
	Steps       string `db:"steps"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (s *SQLite) ListEnabledWorkflows(ctx context.Context) ([]store.Workflow, error) {
	query, _, err := s.goqu.From(s.tableWorkflows).
		Select("id", "name", "description", "enabled", "trigger_type", "protocols", "event_filter", "schedule", "timezone", "steps", "created_at", "updated_at").
		Where(goqu.I("enabled").Eq(true)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list workflows query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []store.Workflow
	for rows.Next() {
		var row workflowRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Description, &row.Enabled, &row.TriggerType, &row.Protocols, &row.EventFilter, &row.Schedule, &row.Timezone, &row.Steps, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow row: %w", err)
		}
		w, err := workflowRowToRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (s *SQLite) GetWorkflow(ctx context.Context, id string) (*store.Workflow, error) {
	query, _, err := s.goqu.From(s.tableWorkflows).
		Select("id", "name", "description", "enabled", "trigger_type", "protocols", "event_filter", "schedule", "timezone", "steps", "created_at", "updated_at").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get workflow query: %w", err)
	}

	var row workflowRow
	err = s.db.QueryRowContext(ctx, query).Scan(&row.ID, &row.Name, &row.Description, &row.Enabled, &row.TriggerType, &row.Protocols, &row.EventFilter, &row.Schedule, &row.Timezone, &row.Steps, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow %q: %w", id, err)
	}
	return workflowRowToRecord(row)
}

func workflowRowToRecord(row workflowRow) (*store.Workflow, error) {
	var protocols []string
	if row.Protocols != "" {
		if err := json.Unmarshal([]byte(row.Protocols), &protocols); err != nil {
			return nil, fmt.Errorf("unmarshal workflow protocols for %q: %w", row.ID, err)
		}
	}
	var eventFilter map[string]any
	if row.EventFilter != "" {
		if err := json.Unmarshal([]byte(row.EventFilter), &eventFilter); err != nil {
			return nil, fmt.Errorf("unmarshal workflow event_filter for %q: %w", row.ID, err)
		}
	}

	return &store.Workflow{
		ID: row.ID, Name: row.Name, Description: row.Description, Enabled: row.Enabled,
		TriggerType: store.TriggerType(row.TriggerType), Protocols: protocols, EventFilter: eventFilter,
		Schedule: row.Schedule, Timezone: row.Timezone, Steps: []byte(row.Steps),
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *SQLite) ListEnabledSubscriptions(ctx context.Context, workflowID string) ([]store.UserWorkflow, error) {
	query, _, err := s.goqu.From(s.tableSubscriptions).
		Select("id", "user_id", "workflow_id", "bot_id", "enabled").
		Where(goqu.I("workflow_id").Eq(workflowID), goqu.I("enabled").Eq(true)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list subscriptions query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []store.UserWorkflow
	for rows.Next() {
		var sub store.UserWorkflow
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.WorkflowID, &sub.BotID, &sub.Enabled); err != nil {
			return nil, fmt.Errorf("scan subscription row: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLite) ListGlobalVariables(ctx context.Context) ([]store.GlobalVariable, error) {
	query, _, err := s.goqu.From(s.tableGlobals).Select("key", "value").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list global variables query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list global variables: %w", err)
	}
	defer rows.Close()

	var out []store.GlobalVariable
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan global variable row: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		out = append(out, store.GlobalVariable{Key: key, Value: value})
	}
	return out, rows.Err()
}
