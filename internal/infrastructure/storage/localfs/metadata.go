package localfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const metadataFile = "documents.json"

// metadataEntry is one value of documents.json. Timestamps stay strings so
// files written by older tooling load even when they are not RFC 3339.
type metadataEntry struct {
	Name       string `json:"name"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploaded_at"`
	UpdatedAt  string `json:"updated_at"`
}

func readMetadata(domainDir string) (map[string]metadataEntry, error) {
	data, err := os.ReadFile(filepath.Join(domainDir, metadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]metadataEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read document metadata: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid document metadata: %w", err)
	}
	out := make(map[string]metadataEntry, len(raw))
	for id, value := range raw {
		var entry metadataEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			continue
		}
		out[id] = entry
	}
	return out, nil
}

// writeMetadata replaces documents.json through a temp file and rename.
func writeMetadata(domainDir string, entries map[string]metadataEntry) error {
	if err := os.MkdirAll(domainDir, 0o775); err != nil {
		return fmt.Errorf("create domain dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode document metadata: %w", err)
	}

	tmp, err := os.CreateTemp(domainDir, ".documents-*.json")
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write metadata temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close metadata temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(domainDir, metadataFile)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace document metadata: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// domainLocks serialises metadata read-modify-write cycles per domain within
// one process.
type domainLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *domainLocks) lock(domainName string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[domainName]
	if !ok {
		m = &sync.Mutex{}
		l.locks[domainName] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
