package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/engine"
)

// Offer errors
var (
	ErrOfferNotFound = errors.New("offer not found")
)

var offerSortColumns = map[string]string{
	engine.SortCreatedAt: "created_at",
	engine.SortRate:      "rate",
}

const offerColumns = `id, coin_from, coin_to, amount_from, rate, min_bid_amount, swap_type,
	addr_from, lock_seconds, created_at, expire_at, was_sent, active, auto_accept`

// CreateOffer inserts an offer and, when set, its adaptor-signature extension.
func (s *Storage) CreateOffer(o *engine.Offer, xo *engine.XmrOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO offers (`+offerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID[:], o.CoinFrom, o.CoinTo, o.AmountFrom, o.Rate, o.MinBidAmount, o.SwapType,
		o.AddrFrom, o.LockSeconds, o.CreatedAt, o.ExpireAt,
		boolToInt(o.WasSent), boolToInt(o.Active), boolToInt(o.AutoAccept),
	)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}

	if xo != nil {
		_, err = tx.Exec(`
			INSERT INTO xmr_offers (offer_id, lock_time_1, lock_time_2, a_fee_rate, b_fee_rate)
			VALUES (?, ?, ?, ?, ?)
		`, o.ID[:], xo.LockTime1, xo.LockTime2, xo.AFeeRate, xo.BFeeRate)
		if err != nil {
			return fmt.Errorf("failed to create xmr offer: %w", err)
		}
	}

	return tx.Commit()
}

// GetOffer retrieves an offer by id.
func (s *Storage) GetOffer(id engine.ID) (*engine.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+offerColumns+` FROM offers WHERE id = ?`, id[:])
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return o, nil
}

// GetXmrOffer retrieves the adaptor-signature extension of an offer. It
// returns nil without error when the offer has none.
func (s *Storage) GetXmrOffer(id engine.ID) (*engine.XmrOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var xo engine.XmrOffer
	err := s.db.QueryRow(`
		SELECT lock_time_1, lock_time_2, a_fee_rate, b_fee_rate
		FROM xmr_offers WHERE offer_id = ?
	`, id[:]).Scan(&xo.LockTime1, &xo.LockTime2, &xo.AFeeRate, &xo.BFeeRate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get xmr offer: %w", err)
	}
	return &xo, nil
}

// ListOffers returns active, unexpired offers matching f. With sentOnly set
// only offers created by this node are returned.
func (s *Storage) ListOffers(f *engine.ListingFilter, sentOnly bool, now int64) ([]*engine.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conditions []string
	var args []interface{}

	conditions = append(conditions, "active = 1", "expire_at > ?")
	args = append(args, now)

	if sentOnly {
		conditions = append(conditions, "was_sent = 1")
	}
	if f.OfferID != nil {
		conditions = append(conditions, "id = ?")
		args = append(args, f.OfferID[:])
	}
	if f.CoinFrom != coins.Any {
		conditions = append(conditions, "coin_from = ?")
		args = append(args, f.CoinFrom)
	}
	if f.CoinTo != coins.Any {
		conditions = append(conditions, "coin_to = ?")
		args = append(args, f.CoinTo)
	}

	column, ok := offerSortColumns[f.SortBy]
	if !ok {
		return nil, fmt.Errorf("invalid sort column: %s", f.SortBy)
	}
	dir := "DESC"
	if f.SortDir == engine.SortAsc {
		dir = "ASC"
	}

	offset := 0
	if f.Offset != nil {
		offset = *f.Offset
	} else if f.PageNo > 1 {
		offset = (f.PageNo - 1) * f.Limit
	}

	query := `SELECT ` + offerColumns + ` FROM offers WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY ` + column + ` ` + dir + `, id ASC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	offers := make([]*engine.Offer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// RevokeOffer deactivates an offer.
func (s *Storage) RevokeOffer(id engine.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`UPDATE offers SET active = 0 WHERE id = ?`, id[:])
	if err != nil {
		return fmt.Errorf("failed to revoke offer: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOfferNotFound
	}
	return nil
}

// CountOffers returns the number of active, unexpired offers, and how many of
// those were created by this node.
func (s *Storage) CountOffers(now int64) (total, sent int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(was_sent), 0)
		FROM offers WHERE active = 1 AND expire_at > ?
	`, now).Scan(&total, &sent)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count offers: %w", err)
	}
	return total, sent, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOffer(row rowScanner) (*engine.Offer, error) {
	var o engine.Offer
	var id []byte
	var addrFrom sql.NullString
	var wasSent, active, autoAccept int

	err := row.Scan(
		&id, &o.CoinFrom, &o.CoinTo, &o.AmountFrom, &o.Rate, &o.MinBidAmount, &o.SwapType,
		&addrFrom, &o.LockSeconds, &o.CreatedAt, &o.ExpireAt, &wasSent, &active, &autoAccept,
	)
	if err != nil {
		return nil, err
	}

	copy(o.ID[:], id)
	o.AddrFrom = addrFrom.String
	o.WasSent = wasSent == 1
	o.Active = active == 1
	o.AutoAccept = autoAccept == 1
	return &o, nil
}
