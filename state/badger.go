package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/go-msgpack/codec"
	"github.com/rs/zerolog"
	"github.com/tarungka/wirecore/stream"
)

// ErrBackendClosed is returned by a BadgerStateBackend after Close.
var ErrBackendClosed = errors.New("state: backend is closed")

const keyPrefix = "state/"

// BadgerConfig configures a BadgerStateBackend.
type BadgerConfig struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps everything in memory; used in tests.
	InMemory bool
}

// BadgerStateBackend stores msgpack-encoded operator state in badger.
// Keys are state/<operator>/<big endian epoch> so the epochs of one
// operator sort in order.
type BadgerStateBackend struct {
	open   atomic.Bool
	db     *badger.DB
	logger zerolog.Logger
	handle *codec.MsgpackHandle
}

// NewBadgerStateBackend opens a badger database.
func NewBadgerStateBackend(c BadgerConfig, logger zerolog.Logger) (*BadgerStateBackend, error) {
	opts := badger.DefaultOptions(c.Dir)
	if c.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", c.Dir, err)
	}
	handle := &codec.MsgpackHandle{}
	handle.RawToString = true

	b := &BadgerStateBackend{
		db:     db,
		logger: logger,
		handle: handle,
	}
	b.open.Store(true)
	logger.Debug().Str("dir", c.Dir).Bool("in_memory", c.InMemory).Msg("opened badger state backend")
	return b, nil
}

func stateKeyBytes(operatorID string, epoch stream.Epoch) []byte {
	key := operatorPrefix(operatorID)
	return binary.BigEndian.AppendUint64(key, uint64(epoch))
}

func operatorPrefix(operatorID string) []byte {
	return []byte(keyPrefix + operatorID + "/")
}

// Save saves the state of an operator.
func (b *BadgerStateBackend) Save(operatorID string, epoch stream.Epoch, state stream.State) error {
	if !b.open.Load() {
		return ErrBackendClosed
	}
	if !epoch.Valid() {
		return fmt.Errorf("save operator %s: invalid epoch %d", operatorID, int64(epoch))
	}

	var buf []byte
	if err := codec.NewEncoderBytes(&buf, b.handle).Encode(state); err != nil {
		return fmt.Errorf("encode state of operator %s: %w", operatorID, err)
	}

	b.logger.Trace().Str("operator_id", operatorID).Int64("epoch", int64(epoch)).Int("bytes", len(buf)).Msg("saving state")
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKeyBytes(operatorID, epoch), buf)
	})
	if err != nil {
		b.logger.Err(err).Str("operator_id", operatorID).Int64("epoch", int64(epoch)).Msg("err saving state")
		return err
	}
	return nil
}

// Load loads the state of an operator.
func (b *BadgerStateBackend) Load(operatorID string, epoch stream.Epoch) (stream.State, error) {
	if !b.open.Load() {
		return nil, ErrBackendClosed
	}

	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKeyBytes(operatorID, epoch))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("operator %s epoch %s: %w", operatorID, epoch, ErrStateNotFound)
	}
	if err != nil {
		return nil, err
	}

	state := make(stream.State)
	if err := codec.NewDecoderBytes(val, b.handle).Decode(&state); err != nil {
		return nil, fmt.Errorf("decode state of operator %s: %w", operatorID, err)
	}
	return state, nil
}

// Latest returns the highest epoch saved for the operator.
func (b *BadgerStateBackend) Latest(operatorID string) (stream.Epoch, error) {
	if !b.open.Load() {
		return stream.NoEpoch, ErrBackendClosed
	}

	prefix := operatorPrefix(operatorID)
	latest := stream.NoEpoch
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte(nil), prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			// keys of operators whose id extends this one share the prefix
			if len(key) != len(prefix)+8 {
				continue
			}
			latest = stream.Epoch(binary.BigEndian.Uint64(key[len(prefix):]))
			break
		}
		return nil
	})
	if err != nil {
		return stream.NoEpoch, err
	}
	if latest == stream.NoEpoch {
		return stream.NoEpoch, fmt.Errorf("operator %s: %w", operatorID, ErrStateNotFound)
	}
	return latest, nil
}

// Epochs returns every epoch saved for the operator, ascending.
func (b *BadgerStateBackend) Epochs(operatorID string) ([]stream.Epoch, error) {
	if !b.open.Load() {
		return nil, ErrBackendClosed
	}

	prefix := operatorPrefix(operatorID)
	var epochs []stream.Epoch
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			if len(key) != len(prefix)+8 {
				continue
			}
			epochs = append(epochs, stream.Epoch(binary.BigEndian.Uint64(key[len(prefix):])))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return epochs, nil
}

// Close closes the database. Subsequent calls return nil.
func (b *BadgerStateBackend) Close() error {
	if !b.open.CompareAndSwap(true, false) {
		return nil
	}
	return b.db.Close()
}

// badgerLogger routes badger's logs through zerolog.
type badgerLogger struct {
	l zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.l.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.l.Warn().Msgf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.l.Debug().Msgf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.l.Trace().Msgf(f, v...) }
