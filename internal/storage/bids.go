package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/klingon-exchange/swapapi/internal/engine"
)

// Bid errors
var (
	ErrBidNotFound = errors.New("bid not found")
)

const bidColumns = `id, offer_id, coin_from, amount, state, created_at, expire_at,
	was_sent, was_received, addr_from, debug_ind, initiate_txid, participate_txid`

// CreateBid inserts a bid, its adaptor-signature state when set, and an
// initial history event.
func (s *Storage) CreateBid(b *engine.Bid, xs *engine.XmrSwap, ev *engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO bids (`+bidColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID[:], b.OfferID[:], b.CoinFrom, b.Amount, b.State, b.CreatedAt, b.ExpireAt,
		boolToInt(b.WasSent), boolToInt(b.WasReceived), b.AddrFrom, b.DebugInd,
		b.InitiateTxID, b.ParticipateTxID,
	)
	if err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}

	if xs != nil {
		_, err = tx.Exec(`
			INSERT INTO xmr_swaps (bid_id, script_lock_txid, script_lock_spend_txid,
				script_lock_refund_txid, noscript_lock_txid)
			VALUES (?, ?, ?, ?, ?)
		`, b.ID[:], xs.ScriptLockTxID, xs.ScriptLockSpendTxID, xs.ScriptLockRefundTxID, xs.NoScriptLockTxID)
		if err != nil {
			return fmt.Errorf("failed to create xmr swap: %w", err)
		}
	}

	if ev != nil {
		if err := insertEvent(tx, b.ID, ev); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetBid retrieves a bid by id.
func (s *Storage) GetBid(id engine.ID) (*engine.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+bidColumns+` FROM bids WHERE id = ?`, id[:])
	b, err := scanBid(row)
	if err == sql.ErrNoRows {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return b, nil
}

// GetXmrSwap retrieves the adaptor-signature state of a bid. It returns nil
// without error for secret-hash bids.
func (s *Storage) GetXmrSwap(id engine.ID) (*engine.XmrSwap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var xs engine.XmrSwap
	var lock, spend, refund, noscript sql.NullString
	err := s.db.QueryRow(`
		SELECT script_lock_txid, script_lock_spend_txid, script_lock_refund_txid, noscript_lock_txid
		FROM xmr_swaps WHERE bid_id = ?
	`, id[:]).Scan(&lock, &spend, &refund, &noscript)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get xmr swap: %w", err)
	}
	xs.ScriptLockTxID = lock.String
	xs.ScriptLockSpendTxID = spend.String
	xs.ScriptLockRefundTxID = refund.String
	xs.NoScriptLockTxID = noscript.String
	return &xs, nil
}

// ListBids returns bids newest first. With sent set only bids made by this
// node are returned, otherwise only bids received by it.
func (s *Storage) ListBids(sent bool) ([]*engine.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	column := "was_received"
	if sent {
		column = "was_sent"
	}

	rows, err := s.db.Query(`
		SELECT `+bidColumns+` FROM bids
		WHERE `+column+` = 1
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	bids := make([]*engine.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// UpdateBidState sets a bid's state and records the transition.
func (s *Storage) UpdateBidState(id engine.ID, state engine.BidState, ev *engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE bids SET state = ? WHERE id = ?`, state, id[:])
	if err != nil {
		return fmt.Errorf("failed to update bid state: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrBidNotFound
	}

	if ev != nil {
		if err := insertEvent(tx, id, ev); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SetBidDebugInd sets a bid's debug indicator.
func (s *Storage) SetBidDebugInd(id engine.ID, value int, ev *engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE bids SET debug_ind = ? WHERE id = ?`, value, id[:])
	if err != nil {
		return fmt.Errorf("failed to set debug indicator: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrBidNotFound
	}

	if ev != nil {
		if err := insertEvent(tx, id, ev); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetBidEvents returns the history of a bid, oldest first.
func (s *Storage) GetBidEvents(id engine.ID) ([]engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT created_at, event_type, description
		FROM bid_events WHERE bid_id = ?
		ORDER BY created_at ASC, id ASC
	`, id[:])
	if err != nil {
		return nil, fmt.Errorf("failed to get bid events: %w", err)
	}
	defer rows.Close()

	events := make([]engine.Event, 0)
	for rows.Next() {
		var ev engine.Event
		var desc sql.NullString
		if err := rows.Scan(&ev.CreatedAt, &ev.Type, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan bid event: %w", err)
		}
		ev.Description = desc.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountBids returns the number of received and sent bids, and how many bids
// are in an active swap state.
func (s *Storage) CountBids() (received, sent, active int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(`
		SELECT COALESCE(SUM(was_received), 0), COALESCE(SUM(was_sent), 0) FROM bids
	`).Scan(&received, &sent)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count bids: %w", err)
	}

	rows, err := s.db.Query(`SELECT state FROM bids`)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count bids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state engine.BidState
		if err := rows.Scan(&state); err != nil {
			return 0, 0, 0, fmt.Errorf("failed to scan bid state: %w", err)
		}
		if state.IsActive() {
			active++
		}
	}
	return received, sent, active, rows.Err()
}

func insertEvent(tx *sql.Tx, id engine.ID, ev *engine.Event) error {
	_, err := tx.Exec(`
		INSERT INTO bid_events (bid_id, created_at, event_type, description)
		VALUES (?, ?, ?, ?)
	`, id[:], ev.CreatedAt, ev.Type, ev.Description)
	if err != nil {
		return fmt.Errorf("failed to record bid event: %w", err)
	}
	return nil
}

func scanBid(row rowScanner) (*engine.Bid, error) {
	var b engine.Bid
	var id, offerID []byte
	var addrFrom, initiate, participate sql.NullString
	var wasSent, wasReceived int

	err := row.Scan(
		&id, &offerID, &b.CoinFrom, &b.Amount, &b.State, &b.CreatedAt, &b.ExpireAt,
		&wasSent, &wasReceived, &addrFrom, &b.DebugInd, &initiate, &participate,
	)
	if err != nil {
		return nil, err
	}

	copy(b.ID[:], id)
	copy(b.OfferID[:], offerID)
	b.WasSent = wasSent == 1
	b.WasReceived = wasReceived == 1
	b.AddrFrom = addrFrom.String
	b.InitiateTxID = initiate.String
	b.ParticipateTxID = participate.String
	return &b, nil
}
