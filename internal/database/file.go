package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"cryptofolio/internal/models"

	"github.com/google/renameio/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// FileStore keeps the ledger in a single JSON document:
//
//	{"portfolio": {"bitcoin": 2, "ethereum": 0.5}}
type FileStore struct {
	path string
	log  *logrus.Logger
}

func NewFileStore(path string, log *logrus.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

func (s *FileStore) Path() string {
	return s.path
}

type ledgerDoc struct {
	Portfolio map[string]json.Number `json:"portfolio"`
}

// Load returns the stored ledger. A missing or unreadable document yields an
// empty ledger; the problem is logged, never returned.
func (s *FileStore) Load(ctx context.Context) (models.Ledger, error) {
	l := models.Ledger{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Debugf("ledger %s does not exist yet, starting empty", s.path)
		} else {
			s.log.Warnf("read ledger %s: %v, starting empty", s.path, err)
		}
		return l, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warnf("ledger %s is corrupt: %v, starting empty", s.path, err)
		return l, nil
	}
	raw, ok := doc["portfolio"]
	if !ok {
		s.log.Warnf("ledger %s has no portfolio object, starting empty", s.path)
		return l, nil
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.log.Warnf("ledger %s portfolio is not an object: %v, starting empty", s.path, err)
		return l, nil
	}

	for id, v := range entries {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			s.log.Warnf("ledger %s: skipping %q with null quantity", s.path, id)
			continue
		}
		var q decimal.Decimal
		if err := q.UnmarshalJSON(v); err != nil {
			s.log.Warnf("ledger %s: skipping %q: %v", s.path, id, err)
			continue
		}
		if q.IsNegative() {
			s.log.Warnf("ledger %s: skipping %q with negative quantity %s", s.path, id, q)
			continue
		}
		key := models.NormalizeID(id)
		if key == "" {
			s.log.Warnf("ledger %s: skipping entry with empty id", s.path)
			continue
		}
		if key != id {
			s.log.Warnf("ledger %s: reading %q as %q", s.path, id, key)
		}
		l[key] = l.Quantity(key).Add(q)
	}
	return l, nil
}

// Save replaces the stored ledger with l.
func (s *FileStore) Save(ctx context.Context, l models.Ledger) error {
	doc := ledgerDoc{Portfolio: make(map[string]json.Number, len(l))}
	for id, q := range l {
		doc.Portfolio[id] = json.Number(q.String())
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, append(data, '\n'))
}

// writeFileAtomic writes data next to path and renames it into place, so
// readers see either the old or the new document.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0644)
}
