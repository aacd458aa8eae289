package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// DataDir is the base directory data_storage nodes persist their
// per-storage JSON files under. Set from cmd/atbot at startup.
var DataDir = "./data"

var storageNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var storageMutexes sync.Map // map[string]*sync.Mutex

func storageMutex(name string) *sync.Mutex {
	v, _ := storageMutexes.LoadOrStore(name, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// dataStorageNode persists a JSON object per named storage, one file per
// storage under DataDir, guarded by a per-storage-name mutex so concurrent
// workflow runs touching the same storage don't race on the file.
//
// Config: storage (name, [A-Za-z0-9_] only, required), operation
// (get|set|delete|exists|list_keys|get_all|clear, required), key, value.
type dataStorageNode struct {
	storage   string
	operation string
}

func init() {
	workflow.RegisterNodeType("data_storage", newDataStorageNode)
}

func newDataStorageNode(config map[string]any) (workflow.Noder, error) {
	storage := str(config, "storage", "")
	if !storageNamePattern.MatchString(storage) {
		return nil, fmt.Errorf("data_storage: storage name %q must match [A-Za-z0-9_]+", storage)
	}
	op := str(config, "operation", "")
	if op == "" {
		return nil, fmt.Errorf("data_storage: 'operation' is required")
	}
	return &dataStorageNode{storage: storage, operation: op}, nil
}

func (n *dataStorageNode) Type() string { return "data_storage" }

func (n *dataStorageNode) path() string {
	return filepath.Join(DataDir, n.storage+".json")
}

func (n *dataStorageNode) load() (map[string]any, error) {
	raw, err := os.ReadFile(n.path())
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (n *dataStorageNode) save(m map[string]any) error {
	if err := os.MkdirAll(DataDir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(n.path(), raw, 0o644)
}

func (n *dataStorageNode) Run(_ context.Context, _ *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	mu := storageMutex(n.storage)
	mu.Lock()
	defer mu.Unlock()

	m, err := n.load()
	if err != nil {
		return workflow.StepResult{}, fmt.Errorf("data_storage: load %q: %w", n.storage, err)
	}

	key, _ := inputs["key"].(string)

	switch n.operation {
	case "get":
		return workflow.StepResult{Data: map[string]any{"value": m[key]}}, nil
	case "set":
		m[key] = inputs["value"]
		if err := n.save(m); err != nil {
			return workflow.StepResult{}, fmt.Errorf("data_storage: save %q: %w", n.storage, err)
		}
		return workflow.StepResult{Data: map[string]any{"success": true}}, nil
	case "delete":
		delete(m, key)
		if err := n.save(m); err != nil {
			return workflow.StepResult{}, fmt.Errorf("data_storage: save %q: %w", n.storage, err)
		}
		return workflow.StepResult{Data: map[string]any{"success": true}}, nil
	case "exists":
		_, ok := m[key]
		return workflow.StepResult{Data: map[string]any{"exists": ok}}, nil
	case "list_keys":
		keys := make([]any, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		return workflow.StepResult{Data: map[string]any{"keys": keys}}, nil
	case "get_all":
		return workflow.StepResult{Data: map[string]any{"data": m}}, nil
	case "clear":
		if err := n.save(map[string]any{}); err != nil {
			return workflow.StepResult{}, fmt.Errorf("data_storage: clear %q: %w", n.storage, err)
		}
		return workflow.StepResult{Data: map[string]any{"success": true}}, nil
	default:
		return workflow.StepResult{}, fmt.Errorf("data_storage: unknown operation %q", n.operation)
	}
}

func (n *dataStorageNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
