package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/tidwall/buntdb"
)

const (
	snapshotVersion = 1

	snapshotPrefix = "snapshot:"
	segmentPrefix  = "segment:"
	sequencePrefix = "sequence:"

	savedIndex = "snapshot_saved"
)

var (
	ErrNotFound        = errors.New("storage: not found")
	ErrConfigMismatch  = errors.New("storage: snapshot was taken with a different reversal configuration")
	ErrUnknownVersion  = errors.New("storage: unsupported snapshot version")
	ErrInvalidChartKey = errors.New("storage: invalid chart key")
)

// ChartKey identifies one chart: an instrument on a timeframe
type ChartKey struct {
	Pair      string `json:"pair"`
	Timeframe string `json:"timeframe"`
}

func (k ChartKey) String() string {
	return k.Pair + ":" + k.Timeframe
}

func (k ChartKey) validate() error {
	if k.Pair == "" || k.Timeframe == "" || strings.ContainsAny(k.Pair+k.Timeframe, ":*?") {
		return fmt.Errorf("%w: %q", ErrInvalidChartKey, k.String())
	}
	return nil
}

// SnapshotRecord is the stored form of a chart snapshot
type SnapshotRecord struct {
	Version  int                 `json:"version"`
	Chart    ChartKey            `json:"chart"`
	Config   kagi.ReversalConfig `json:"config"`
	Snapshot kagi.Snapshot       `json:"snapshot"`
	SavedAt  time.Time           `json:"saved_at"`
}

// SegmentRecord is one journaled segment
type SegmentRecord struct {
	Chart   ChartKey     `json:"chart"`
	Seq     int64        `json:"seq"`
	Segment kagi.Segment `json:"segment"`
}

// SegmentFilter selects journaled segments
type SegmentFilter func(SegmentRecord) bool

// WithKind keeps segments of the given kinds
func WithKind(kinds ...kagi.Kind) SegmentFilter {
	return func(record SegmentRecord) bool {
		for _, kind := range kinds {
			if record.Segment.Kind == kind {
				return true
			}
		}
		return false
	}
}

// Since keeps segments ending at or after t
func Since(t time.Time) SegmentFilter {
	return func(record SegmentRecord) bool {
		return !record.Segment.To.Time.Before(t)
	}
}

// BuntStorage persists chart snapshots and the segment journal in BuntDB.
// It is safe for concurrent use.
type BuntStorage struct {
	db  *buntdb.DB
	now func() time.Time
}

// FromMemory creates an in-memory storage
func FromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:")
}

// FromFile creates a file-based storage
func FromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file)
}

func NewBuntStorage(sourceFile string) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	err = db.CreateIndex(savedIndex, snapshotPrefix+"*", buntdb.IndexJSON("saved_at"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BuntStorage{db: db, now: time.Now}, nil
}

func (b *BuntStorage) Close() error {
	return b.db.Close()
}

// SaveSnapshot stores the latest snapshot of a chart, replacing the previous one
func (b *BuntStorage) SaveSnapshot(key ChartKey, config kagi.ReversalConfig, snapshot kagi.Snapshot) error {
	if err := key.validate(); err != nil {
		return err
	}

	record := SnapshotRecord{
		Version:  snapshotVersion,
		Chart:    key,
		Config:   config,
		Snapshot: snapshot,
		SavedAt:  b.now().UTC(),
	}

	content, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(snapshotPrefix+key.String(), string(content), nil); err != nil {
			return fmt.Errorf("failed to store snapshot: %w", err)
		}
		return nil
	})
}

// Snapshot loads the stored snapshot of a chart. A snapshot taken with another
// reversal configuration is rejected with ErrConfigMismatch.
func (b *BuntStorage) Snapshot(key ChartKey, config kagi.ReversalConfig) (kagi.Snapshot, error) {
	var content string
	err := b.db.View(func(tx *buntdb.Tx) error {
		var err error
		content, err = tx.Get(snapshotPrefix + key.String())
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return kagi.Snapshot{}, fmt.Errorf("%w: snapshot %s", ErrNotFound, key)
	}
	if err != nil {
		return kagi.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var record SnapshotRecord
	if err := json.Unmarshal([]byte(content), &record); err != nil {
		return kagi.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if record.Version != snapshotVersion {
		return kagi.Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownVersion, record.Version)
	}
	if !record.Config.Equal(config) {
		return kagi.Snapshot{}, fmt.Errorf("%w: stored %s, requested %s", ErrConfigMismatch, record.Config, config)
	}
	return record.Snapshot, nil
}

// Charts lists stored snapshots, least recently saved first
func (b *BuntStorage) Charts() ([]SnapshotRecord, error) {
	records := make([]SnapshotRecord, 0)
	err := b.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.Ascend(savedIndex, func(_, value string) bool {
			var record SnapshotRecord
			if decodeErr = json.Unmarshal([]byte(value), &record); decodeErr != nil {
				return false
			}
			records = append(records, record)
			return true
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	return records, nil
}

// AppendSegments journals segments after the ones already stored for the chart
func (b *BuntStorage) AppendSegments(key ChartKey, segments []kagi.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	if err := key.validate(); err != nil {
		return err
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		seq, err := nextSequence(tx, key)
		if err != nil {
			return err
		}

		for _, segment := range segments {
			seq++
			content, err := json.Marshal(SegmentRecord{Chart: key, Seq: seq, Segment: segment})
			if err != nil {
				return fmt.Errorf("failed to marshal segment: %w", err)
			}
			if _, _, err := tx.Set(segmentKey(key, seq), string(content), nil); err != nil {
				return fmt.Errorf("failed to store segment: %w", err)
			}
		}

		_, _, err = tx.Set(sequencePrefix+key.String(), strconv.FormatInt(seq, 10), nil)
		return err
	})
}

// Segments returns the journal of a chart in emission order
func (b *BuntStorage) Segments(key ChartKey, filters ...SegmentFilter) ([]SegmentRecord, error) {
	records := make([]SegmentRecord, 0)
	err := b.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.AscendKeys(segmentPrefix+key.String()+":*", func(_, value string) bool {
			var record SegmentRecord
			if decodeErr = json.Unmarshal([]byte(value), &record); decodeErr != nil {
				return false
			}
			for _, filter := range filters {
				if !filter(record) {
					return true
				}
			}
			records = append(records, record)
			return true
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read segments: %w", err)
	}
	return records, nil
}

// Reset removes the snapshot and journal of a chart
func (b *BuntStorage) Reset(key ChartKey) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		var keys []string
		err := tx.AscendKeys(segmentPrefix+key.String()+":*", func(k, _ string) bool {
			keys = append(keys, k)
			return true
		})
		if err != nil {
			return err
		}
		keys = append(keys, snapshotPrefix+key.String(), sequencePrefix+key.String())

		for _, k := range keys {
			if _, err := tx.Delete(k); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
				return fmt.Errorf("failed to delete %s: %w", k, err)
			}
		}
		return nil
	})
}

func nextSequence(tx *buntdb.Tx, key ChartKey) (int64, error) {
	value, err := tx.Get(sequencePrefix + key.String())
	if errors.Is(err, buntdb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

// segmentKey zero-pads the sequence so key order is emission order
func segmentKey(key ChartKey, seq int64) string {
	return fmt.Sprintf("%s%s:%012d", segmentPrefix, key, seq)
}
