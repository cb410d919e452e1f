package registry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// auditFile is the append-only JSONL file within a session directory.
const auditFile = "claims.jsonl"

// auditLog persists audit records as JSONL, one record per line, append-only.
// With an empty dir the log is memory-only, which tests and single-process
// runs use. Writes are serialized by the registry's writer lock; each line is
// small enough that O_APPEND keeps concurrent readers consistent.
type auditLog struct {
	path    string // empty for memory-only
	records []AuditRecord
}

// newAuditLog opens (or creates) the audit log under dir, replaying any
// existing records so a registry can be reopened across processes.
func newAuditLog(dir string) (*auditLog, error) {
	if dir == "" {
		return &auditLog{}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: create session directory: %w", err)
	}
	l := &auditLog{path: filepath.Join(dir, auditFile)}

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("registry: open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec AuditRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("registry: malformed audit record: %w", err)
		}
		l.records = append(l.records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("registry: scan audit log: %w", err)
	}
	return l, nil
}

// append durably records rec. The record is written to disk before being
// added to the in-memory history, so a crash can lose at most the projection,
// never an acknowledged audit entry.
func (l *auditLog) append(rec AuditRecord) error {
	if l.path != "" {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("registry: marshal audit record: %w", err)
		}
		data = append(data, '\n')

		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("registry: open audit log for append: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return fmt.Errorf("registry: append audit record: %w", err)
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("registry: sync audit log: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("registry: close audit log: %w", err)
		}
	}

	l.records = append(l.records, rec)
	return nil
}

// all returns the full ordered history.
func (l *auditLog) all() []AuditRecord {
	out := make([]AuditRecord, len(l.records))
	copy(out, l.records)
	return out
}

// nextSeq returns the sequence number for the next record.
func (l *auditLog) nextSeq() uint64 {
	if len(l.records) == 0 {
		return 1
	}
	return l.records[len(l.records)-1].Seq + 1
}
