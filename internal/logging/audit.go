package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEventType names one kind of pipeline event.
type AuditEventType string

const (
	AuditStageStart    AuditEventType = "stage_start"
	AuditStageComplete AuditEventType = "stage_complete"
	AuditStageError    AuditEventType = "stage_error"

	AuditToolInvoke   AuditEventType = "tool_invoke"
	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"

	AuditBreadcrumbWrite AuditEventType = "breadcrumb_write"
)

// AuditFileName is the JSON-lines file written under the audit directory.
const AuditFileName = "audit.jsonl"

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Timestamp  time.Time         `json:"ts"`
	RunID      string            `json:"run_id"`
	Type       AuditEventType    `json:"type"`
	Stage      string            `json:"stage,omitempty"`
	Command    string            `json:"command,omitempty"`
	ExitCode   int               `json:"exit_code,omitempty"`
	DurationMs int64             `json:"duration_ms,omitempty"`
	Message    string            `json:"message,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// AuditLog appends AuditEvents to a JSON-lines file. A nil *AuditLog is a
// valid no-op sink.
type AuditLog struct {
	mu    sync.Mutex
	runID string
	path  string
	file  *os.File
	enc   *json.Encoder
}

// OpenAudit opens (creating if needed) dir/audit.jsonl for appending and
// assigns a fresh run id.
func OpenAudit(dir string) (*AuditLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	path := filepath.Join(dir, AuditFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}
	return &AuditLog{
		runID: uuid.New().String(),
		path:  path,
		file:  f,
		enc:   json.NewEncoder(f),
	}, nil
}

// RunID returns the identifier stamped on every event of this invocation.
func (a *AuditLog) RunID() string {
	if a == nil {
		return ""
	}
	return a.runID
}

// Path returns the audit file location.
func (a *AuditLog) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Record appends an event. Failures are logged, never returned.
func (a *AuditLog) Record(ev AuditEvent) {
	if a == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.RunID = a.runID

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enc == nil {
		return
	}
	if err := a.enc.Encode(ev); err != nil {
		Get(CategoryBoot).Warn("audit write failed: %v", err)
	}
}

// Close closes the underlying file.
func (a *AuditLog) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	a.enc = nil
	return err
}

// ReadAudit loads all events from an audit file, oldest first. A missing
// file yields no events.
func ReadAudit(path string) ([]AuditEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ev AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}
