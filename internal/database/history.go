package database

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"cryptofolio/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TimestampLayout is how history entries are stamped on disk.
const TimestampLayout = "2006-01-02 15:04:05"

// HistoryLog is an append-only list of price snapshots kept in one JSON
// document:
//
//	{"history": [{"timestamp": "2025-01-02 10:00:00", "data": {"bitcoin": {"usd": 1}}}]}
//
// Every append rewrites the whole document and nothing is ever pruned.
type HistoryLog struct {
	path     string
	currency string
	log      *logrus.Logger
}

func NewHistoryLog(path, currency string, log *logrus.Logger) *HistoryLog {
	return &HistoryLog{path: path, currency: currency, log: log}
}

type historyWrite struct {
	Timestamp string                            `json:"timestamp"`
	Data      map[string]map[string]json.Number `json:"data"`
}

type historyRead struct {
	Timestamp string                                    `json:"timestamp"`
	Data      map[string]map[string]decimal.NullDecimal `json:"data"`
}

// raw returns the stored entries untouched so that appending never rewrites
// what earlier runs recorded. Anything unreadable counts as an empty log.
func (h *HistoryLog) raw() []json.RawMessage {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.log.Warnf("read history %s: %v, starting a new log", h.path, err)
		}
		return nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		h.log.Warnf("history %s is corrupt: %v, starting a new log", h.path, err)
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(doc["history"], &entries); err != nil {
		h.log.Warnf("history %s has no history list, starting a new log", h.path)
		return nil
	}
	return entries
}

// Append adds one snapshot to the log.
func (h *HistoryLog) Append(ctx context.Context, entry models.HistoryEntry) error {
	rec, err := json.Marshal(historyWrite{
		Timestamp: entry.Timestamp.Format(TimestampLayout),
		Data:      entry.Quotes.Raw(h.currency),
	})
	if err != nil {
		return err
	}
	entries := append(h.raw(), rec)
	data, err := json.MarshalIndent(map[string][]json.RawMessage{"history": entries}, "", "    ")
	if err != nil {
		return err
	}
	return writeFileAtomic(h.path, append(data, '\n'))
}

// Entries returns the recorded snapshots, oldest first. Entries that cannot
// be parsed, bad timestamps included, are skipped.
func (h *HistoryLog) Entries(ctx context.Context) ([]models.HistoryEntry, error) {
	res := []models.HistoryEntry{}
	for i, raw := range h.raw() {
		var rec historyRead
		if err := json.Unmarshal(raw, &rec); err != nil {
			h.log.Warnf("history %s: skipping entry %d: %v", h.path, i, err)
			continue
		}
		ts, err := time.ParseInLocation(TimestampLayout, rec.Timestamp, time.Local)
		if err != nil {
			h.log.Warnf("history %s: skipping entry %d with bad timestamp %q", h.path, i, rec.Timestamp)
			continue
		}
		res = append(res, models.HistoryEntry{
			Timestamp: ts,
			Quotes:    models.QuoteSetFromRaw(h.currency, rec.Data),
		})
	}
	return res, nil
}
