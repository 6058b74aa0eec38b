package simnode

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Klingon-tech/tipwatch/internal/storage"
	"github.com/zeebo/blake3"
)

const (
	tipKey        = "tip"
	headerPrefix  = "hdr/"
	defaultRetain = 512
)

// chainStore persists the node's own chain position and a window of
// recent headers so a restarted node resumes where it left off.
type chainStore struct {
	db      storage.DB
	headers *storage.PrefixDB
	retain  int
	count   int
}

func openChainStore(path string) (*chainStore, error) {
	db, err := storage.NewBadger(path)
	if err != nil {
		return nil, err
	}
	cs, err := newChainStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return cs, nil
}

func newChainStore(db storage.DB) (*chainStore, error) {
	cs := &chainStore{
		db:      db,
		headers: storage.NewPrefixDB(db, []byte(headerPrefix)),
		retain:  defaultRetain,
	}
	err := cs.headers.ForEach(nil, func(_, _ []byte) error {
		cs.count++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count headers: %w", err)
	}
	return cs, nil
}

// Tip returns the stored tip. ok is false when nothing has been stored.
func (cs *chainStore) Tip() (slot uint64, hash string, ok bool, err error) {
	data, err := cs.db.Get([]byte(tipKey))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, err
	}
	if len(data) < 8 {
		return 0, "", false, fmt.Errorf("corrupt tip record (%d bytes)", len(data))
	}
	return binary.BigEndian.Uint64(data[:8]), string(data[8:]), true, nil
}

// Append stores a header and moves the tip to it in one batch.
func (cs *chainStore) Append(slot uint64, hash string) error {
	tip := make([]byte, 8+len(hash))
	binary.BigEndian.PutUint64(tip, slot)
	copy(tip[8:], hash)

	hdrKey := append([]byte(headerPrefix), slotKey(slot)...)

	if b, ok := cs.db.(storage.Batcher); ok {
		batch := b.NewBatch()
		if err := batch.Put(hdrKey, []byte(hash)); err != nil {
			batch.Cancel()
			return err
		}
		if err := batch.Put([]byte(tipKey), tip); err != nil {
			batch.Cancel()
			return err
		}
		if err := batch.Commit(); err != nil {
			return err
		}
	} else {
		if err := cs.db.Put(hdrKey, []byte(hash)); err != nil {
			return err
		}
		if err := cs.db.Put([]byte(tipKey), tip); err != nil {
			return err
		}
	}
	cs.count++

	if cs.count > cs.retain {
		return cs.prune()
	}
	return nil
}

// Header returns the stored hash for slot.
func (cs *chainStore) Header(slot uint64) (string, error) {
	h, err := cs.headers.Get(slotKey(slot))
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// prune drops the oldest headers beyond the retention window.
func (cs *chainStore) prune() error {
	excess := cs.count - cs.retain
	var stale [][]byte
	err := cs.headers.ForEach(nil, func(key, _ []byte) error {
		if len(stale) >= excess {
			return errStopIteration
		}
		stale = append(stale, key)
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return fmt.Errorf("scan headers: %w", err)
	}

	batch := cs.headers.NewBatch()
	for _, k := range stale {
		if err := batch.Delete(k); err != nil {
			return err
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("prune headers: %w", err)
	}
	cs.count -= len(stale)
	return nil
}

func (cs *chainStore) Close() error {
	return cs.db.Close()
}

var errStopIteration = errors.New("stop iteration")

func slotKey(slot uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, slot)
	return k
}

// nextHash derives the hash of the header at slot from its parent.
func nextHash(parent string, slot uint64) string {
	buf := make([]byte, 0, len(parent)+8)
	buf = append(buf, parent...)
	buf = binary.BigEndian.AppendUint64(buf, slot)
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
