package sandbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"roomkit/contract"
	"roomkit/domain"
	"roomkit/errors"
	"roomkit/serial"
	"roomkit/wire"
)

const defaultPageLimit = 50

// historyStore persists the latest snapshot of every message in
// BadgerDB. The key is "msg:{room}:{timestamp_padded}:{counter_padded}"
// derived from the creation serial, so a reverse prefix scan yields
// newest-first chronological order and edits overwrite their create in
// place. The zero-padding keeps lexicographic order equal to numeric
// order.
type historyStore struct {
	db        *badger.DB
	log       *slog.Logger
	pageLimit int
}

func newHistoryStore(db *badger.DB, log *slog.Logger, pageLimit int) *historyStore {
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	return &historyStore{db: db, log: log, pageLimit: pageLimit}
}

func messageKey(roomID string, s serial.Serial) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%09d", roomID, s.Timestamp, s.Counter))
}

func roomPrefix(roomID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", roomID))
}

// put stores the message under its creation serial, replacing any
// earlier version of the same identity.
func (s *historyStore) put(roomID string, msg domain.Message) error {
	const op = "store message"
	parsed, err := serial.Parse(msg.Serial)
	if err != nil {
		return err
	}
	value, err := wire.Encode(wire.FromMessage(msg, ""))
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(roomID, parsed), value)
	})
	if err != nil {
		return errors.Wrap(errors.KindInternal, op, err)
	}
	return nil
}

// get resolves one creation serial to its latest stored snapshot.
func (s *historyStore) get(roomID, serialStr string) (domain.Message, error) {
	const op = "fetch message"
	parsed, err := serial.Parse(serialStr)
	if err != nil {
		return domain.Message{}, err
	}
	var payload wire.MessagePayload
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(roomID, parsed))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return wire.Decode(value, &payload)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, errors.New(errors.KindNotFound, op, "unknown serial %q in room %q", serialStr, roomID)
	}
	if err != nil {
		return domain.Message{}, errors.Wrap(errors.KindInternal, op, err)
	}
	return payload.ToMessage(), nil
}

// page runs one bounded newest-first scan. cursor, when non-empty, is
// the key suffix of the last item of the previous page; the scan
// resumes strictly after it.
func (s *historyStore) page(roomID string, query contract.HistoryQuery, cursor string) (*historyPage, error) {
	const op = "fetch history page"

	limit := query.Limit
	if limit <= 0 || limit > s.pageLimit {
		limit = s.pageLimit
	}

	var (
		items      []domain.Message
		lastSuffix string
		more       bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(roomID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		if cursor == "" {
			// Seek past the newest possible key, then walk backwards.
			seekKey = append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		} else {
			seekKey = append(append([]byte{}, prefix...), []byte(cursor)...)
		}
		it.Seek(seekKey)
		if cursor != "" && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var payload wire.MessagePayload
			if err := item.Value(func(value []byte) error {
				return wire.Decode(value, &payload)
			}); err != nil {
				return err
			}
			msg := payload.ToMessage()

			keep, stop, err := matchesQuery(msg, query)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
			if !keep {
				continue
			}
			if len(items) == limit {
				more = true
				return nil
			}
			items = append(items, msg)
			lastSuffix = string(item.Key()[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, op, err)
	}
	return &historyPage{
		store:  s,
		roomID: roomID,
		query:  query,
		items:  items,
		cursor: lastSuffix,
		more:   more,
	}, nil
}

// matchesQuery applies the query bounds to one message during a
// newest-first scan. stop reports that every remaining (older) message
// falls below the Start bound, so the scan can end early.
func matchesQuery(msg domain.Message, query contract.HistoryQuery) (keep, stop bool, err error) {
	if !query.Start.IsZero() && msg.CreatedAt.Before(query.Start) {
		return false, true, nil
	}
	if !query.End.IsZero() && !msg.CreatedAt.Before(query.End) {
		return false, false, nil
	}
	if query.EndSerial != "" {
		c, err := serial.CompareStrings(msg.Serial, query.EndSerial)
		if err != nil {
			return false, false, err
		}
		if c > 0 {
			return false, false, nil
		}
	}
	return true, false, nil
}

// historyPage is one newest-first page plus the cursor to continue.
type historyPage struct {
	store  *historyStore
	roomID string
	query  contract.HistoryQuery
	items  []domain.Message
	cursor string
	more   bool
}

func (p *historyPage) Items() []domain.Message { return p.items }

func (p *historyPage) HasNext() bool { return p.more }

func (p *historyPage) Next(ctx context.Context) (contract.HistoryPage, error) {
	if !p.more {
		return nil, errors.New(errors.KindNotFound, "next history page", "no further pages")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.KindOperationTimeout, "next history page", err)
	}
	return p.store.page(p.roomID, p.query, p.cursor)
}
