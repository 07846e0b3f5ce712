//go:generate go run go.uber.org/mock/mockgen -source=journal_repository.go -destination=../../mocks/mock_journal_repository.go -package=mocks
package storage

import (
	"chat-relay/domain"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	journalPrefix      = "journal:session:"
	journalIndexPrefix = "idx:journal:"
)

var ErrCorruptedEntry = errors.New("corrupted journal entry")

type IJournalRepository interface {
	Record(entry domain.JournalEntry) error
	List(limit int) ([]domain.JournalEntry, error)
	ListSession(sessionID string, limit int) ([]domain.JournalEntry, error)
}

// JournalRepository stores session lifecycle entries in BadgerDB.
// Primary keys are ordered by time; a secondary index groups them per session.
type JournalRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewJournalRepository(db *badger.DB, log *slog.Logger) *JournalRepository {
	return &JournalRepository{db: db, log: log}
}

// Record persists the entry and its session index atomically.
func (j JournalRepository) Record(entry domain.JournalEntry) error {
	key := JournalKey(entry)
	indexKey := fmt.Sprintf("%s%s:%019d", journalIndexPrefix, entry.SessionID, entry.At.UnixNano())

	return j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), MarshalJournalEntry(entry)); err != nil {
			return err
		}
		return txn.Set([]byte(indexKey), []byte(key))
	})
}

// List returns the most recent entries, newest first.
func (j JournalRepository) List(limit int) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(journalPrefix)
		seek := append([]byte(journalPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && (limit <= 0 || len(entries) < limit); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				entry, err := UnmarshalJournalEntry(v)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during journal scan: %w", err)
	}
	return entries, nil
}

// ListSession returns the entries of one session in chronological order.
func (j JournalRepository) ListSession(sessionID string, limit int) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(journalIndexPrefix + sessionID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix) && (limit <= 0 || len(entries) < limit); it.Next() {
			primaryKey, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(primaryKey)
			if errors.Is(err, badger.ErrKeyNotFound) {
				j.log.Warn("Dangling journal index", "key", string(it.Item().Key()))
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(v []byte) error {
				entry, err := UnmarshalJournalEntry(v)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during journal scan of %s: %w", sessionID, err)
	}
	return entries, nil
}

// JournalKey lays out namespace, timestamp and entity like every other inspected key.
func JournalKey(entry domain.JournalEntry) string {
	return fmt.Sprintf("%s%019d:%s", journalPrefix, entry.At.UnixNano(), entry.SessionID)
}

const (
	fieldSessionID  protowire.Number = 1
	fieldRemoteAddr protowire.Number = 2
	fieldState      protowire.Number = 3
	fieldCode       protowire.Number = 4
	fieldAt         protowire.Number = 5
)

// MarshalJournalEntry encodes an entry in protobuf wire format.
func MarshalJournalEntry(entry domain.JournalEntry) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSessionID, protowire.BytesType)
	b = protowire.AppendString(b, entry.SessionID)
	b = protowire.AppendTag(b, fieldRemoteAddr, protowire.BytesType)
	b = protowire.AppendString(b, entry.RemoteAddr)
	b = protowire.AppendTag(b, fieldState, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(entry.State))
	b = protowire.AppendTag(b, fieldCode, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(entry.Code))
	b = protowire.AppendTag(b, fieldAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(entry.At.UnixNano()))
	return b
}

// UnmarshalJournalEntry decodes an entry, skipping fields it does not know.
func UnmarshalJournalEntry(b []byte) (domain.JournalEntry, error) {
	var entry domain.JournalEntry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.JournalEntry{}, fmt.Errorf("%w: %v", ErrCorruptedEntry, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case (num == fieldSessionID || num == fieldRemoteAddr) && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.JournalEntry{}, fmt.Errorf("%w: %v", ErrCorruptedEntry, protowire.ParseError(n))
			}
			if num == fieldSessionID {
				entry.SessionID = v
			} else {
				entry.RemoteAddr = v
			}
			b = b[n:]
		case (num == fieldState || num == fieldCode || num == fieldAt) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.JournalEntry{}, fmt.Errorf("%w: %v", ErrCorruptedEntry, protowire.ParseError(n))
			}
			switch num {
			case fieldState:
				entry.State = domain.SessionState(v)
			case fieldCode:
				entry.Code = domain.StatusCode(v)
			case fieldAt:
				entry.At = time.Unix(0, int64(v)).UTC()
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.JournalEntry{}, fmt.Errorf("%w: %v", ErrCorruptedEntry, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return entry, nil
}
