// Package statuspub implements the CCU-side status publication stream
// (spec §6): a line-delimited TCP feed that broadcasts per-link state and
// Warning/LinkStatus events to any number of connected monitors, replaying
// recent history to a monitor that (re)connects mid-session.
package statuspub

import (
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// journal is the append-only, replayable backing store for the event
// stream. Two implementations exist: an in-memory ring (default) and a
// badger-backed one, selected by whether StatusPublisherConfig.JournalPath
// is set.
type journal interface {
	append(line string) error
	replay(maxLines int) ([]string, error)
	close() error
}

// memoryJournal is a fixed-capacity ring kept entirely in process memory.
type memoryJournal struct {
	mu    sync.Mutex
	lines []string
	cap   int
}

func newMemoryJournal(capacity int) *memoryJournal {
	if capacity <= 0 {
		capacity = 1
	}
	return &memoryJournal{cap: capacity}
}

func (j *memoryJournal) append(line string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lines = append(j.lines, line)
	if over := len(j.lines) - j.cap; over > 0 {
		j.lines = j.lines[over:]
	}
	return nil
}

func (j *memoryJournal) replay(maxLines int) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if maxLines <= 0 || maxLines > len(j.lines) {
		maxLines = len(j.lines)
	}
	out := make([]string, maxLines)
	copy(out, j.lines[len(j.lines)-maxLines:])
	return out, nil
}

func (j *memoryJournal) close() error { return nil }

// badgerJournal persists event lines to an embedded badger database keyed
// by a monotonically increasing sequence number, so a reconnecting monitor
// can be caught up even across a CCU process restart (§C's reconnect
// tolerance, grounded on the teacher's badger transaction idiom in
// pkg/metadata/store/badger/shares.go: db.Update/db.View wrapping
// txn.Set/txn.Get).
type badgerJournal struct {
	db      *badgerdb.DB
	seqMu   sync.Mutex
	nextSeq uint64
	retain  int
}

const journalKeyPrefix = "j:"

func journalKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", journalKeyPrefix, seq))
}

func openBadgerJournal(path string, retainLines int) (*badgerJournal, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger journal at %s: %w", path, err)
	}

	j := &badgerJournal{db: db, retain: retainLines}

	var last uint64
	err = db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(journalKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var seq uint64
			key := it.Item().Key()
			if _, err := fmt.Sscanf(string(key[len(prefix):]), "%d", &seq); err == nil {
				last = seq + 1
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("scan badger journal: %w", err)
	}
	j.nextSeq = last

	return j, nil
}

func (j *badgerJournal) append(line string) error {
	j.seqMu.Lock()
	defer j.seqMu.Unlock()

	seq := j.nextSeq
	j.nextSeq++

	err := j.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(journalKey(seq), []byte(line))
	})
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}

	if j.retain > 0 && seq >= uint64(j.retain)*2 {
		j.prune(seq - uint64(j.retain))
	}
	return nil
}

// prune deletes every entry at or below the given sequence, keeping the
// journal's on-disk size bounded instead of growing without end.
func (j *badgerJournal) prune(uptoSeq uint64) {
	_ = j.db.Update(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(journalKeyPrefix)
		var toDelete [][]byte
		for seq := uint64(0); seq <= uptoSeq; seq++ {
			key := journalKey(seq)
			it.Seek(key)
			if it.ValidForPrefix(prefix) {
				toDelete = append(toDelete, append([]byte(nil), key...))
			}
		}
		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *badgerJournal) replay(maxLines int) ([]string, error) {
	j.seqMu.Lock()
	last := j.nextSeq
	j.seqMu.Unlock()

	if maxLines <= 0 {
		maxLines = int(last)
	}
	start := uint64(0)
	if uint64(maxLines) < last {
		start = last - uint64(maxLines)
	}

	var out []string
	err := j.db.View(func(txn *badgerdb.Txn) error {
		for seq := start; seq < last; seq++ {
			item, err := txn.Get(journalKey(seq))
			if err == badgerdb.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				out = append(out, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	return out, nil
}

func (j *badgerJournal) close() error {
	return j.db.Close()
}
