package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/vjranagit/gaitmetrics/pkg/series"
	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// Repository is the persistent source of metric records
type Repository interface {
	// Append persists a record at the end of a subject's history
	Append(ctx context.Context, subject string, rec types.MetricRecord) error

	// Delete removes a record; unknown ids yield a series.NotFoundError
	Delete(ctx context.Context, subject, id string) error

	// Load returns a subject's records in insertion order
	Load(ctx context.Context, subject string) ([]types.MetricRecord, error)

	// Subjects lists subjects that have at least one record
	Subjects(ctx context.Context) ([]string, error)

	// Close closes the storage
	Close() error
}

// Config holds storage configuration
type Config struct {
	Path             string
	InMemory         bool
	CompressionLevel int
	SyncWrites       bool
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		Path:             "./data",
		CompressionLevel: 3,
		SyncWrites:       true,
	}
}

const (
	recordPrefix = "rec/"
	idPrefix     = "id/"
	sequenceKey  = "seq/records"
)

// badgerRepository implements Repository using BadgerDB
type badgerRepository struct {
	cfg   *Config
	db    *badger.DB
	seq   *badger.Sequence
	codec *Codec
}

// NewRepository opens the record store
func NewRepository(cfg *Config) (Repository, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open BadgerDB")
	}

	seq, err := db.GetSequence([]byte(sequenceKey), 100)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to acquire record sequence")
	}

	codec, err := NewCodec(cfg.CompressionLevel)
	if err != nil {
		seq.Release()
		db.Close()
		return nil, errors.Wrap(err, "failed to create codec")
	}

	return &badgerRepository{
		cfg:   cfg,
		db:    db,
		seq:   seq,
		codec: codec,
	}, nil
}

// Append implements Repository.Append
func (r *badgerRepository) Append(ctx context.Context, subject string, rec types.MetricRecord) error {
	if err := validateSubject(subject); err != nil {
		return err
	}
	if rec.ID == "" {
		return series.NewValidationError("id", "must not be empty")
	}
	if rec.Metrics == nil {
		return series.NewValidationError("metrics", "must be a mapping of metric name to value")
	}

	payload, err := r.codec.Encode(&rec)
	if err != nil {
		return errors.Wrap(err, "failed to encode record")
	}

	n, err := r.seq.Next()
	if err != nil {
		return errors.Wrap(err, "failed to allocate sequence")
	}
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, n)

	err = r.db.Update(func(txn *badger.Txn) error {
		idk := idKey(subject, rec.ID)
		if _, err := txn.Get(idk); err == nil {
			return series.NewValidationError("id", "duplicate record id "+rec.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(recordKey(subject, seqBytes), payload); err != nil {
			return err
		}
		return txn.Set(idk, seqBytes)
	})
	if err != nil && !series.IsValidation(err) {
		return errors.Wrapf(err, "failed to write record %s", rec.ID)
	}
	return err
}

// Delete implements Repository.Delete
func (r *badgerRepository) Delete(ctx context.Context, subject, id string) error {
	if err := validateSubject(subject); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		idk := idKey(subject, id)
		item, err := txn.Get(idk)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return series.NewNotFoundError(id)
		}
		if err != nil {
			return err
		}

		seqBytes, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if err := txn.Delete(recordKey(subject, seqBytes)); err != nil {
			return err
		}
		return txn.Delete(idk)
	})
	if err != nil && !series.IsNotFound(err) {
		return errors.Wrapf(err, "failed to delete record %s", id)
	}
	return err
}

// Load implements Repository.Load
func (r *badgerRepository) Load(ctx context.Context, subject string) ([]types.MetricRecord, error) {
	if err := validateSubject(subject); err != nil {
		return nil, err
	}

	var records []types.MetricRecord
	prefix := []byte(recordPrefix + subject + "/")

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			payload, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			rec, err := r.codec.Decode(payload)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load records of %s", subject)
	}

	return records, nil
}

// Subjects implements Repository.Subjects
func (r *badgerRepository) Subjects(ctx context.Context) ([]string, error) {
	var subjects []string
	prefix := []byte(recordPrefix)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		last := ""
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := bytes.TrimPrefix(it.Item().Key(), prefix)
			slash := bytes.IndexByte(rest, '/')
			if slash < 0 {
				continue
			}
			subject := string(rest[:slash])
			if subject != last {
				subjects = append(subjects, subject)
				last = subject
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list subjects")
	}

	return subjects, nil
}

// Close implements Repository.Close
func (r *badgerRepository) Close() error {
	if r.seq != nil {
		r.seq.Release()
	}
	if r.codec != nil {
		r.codec.Close()
	}
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// recordKey orders records by sequence within a subject
func recordKey(subject string, seq []byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(recordPrefix)
	buf.WriteString(subject)
	buf.WriteByte('/')
	buf.Write(seq)
	return buf.Bytes()
}

func idKey(subject, id string) []byte {
	return []byte(idPrefix + subject + "/" + id)
}

func validateSubject(subject string) error {
	if subject == "" {
		return series.NewValidationError("subject", "must not be empty")
	}
	if strings.Contains(subject, "/") {
		return series.NewValidationError("subject", "must not contain '/'")
	}
	return nil
}
