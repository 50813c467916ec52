package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/klingon-exchange/swapapi/internal/coins"
)

// Balance errors
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Withdrawal is a recorded outgoing transaction.
type Withdrawal struct {
	TxID        string
	Coin        coins.ID
	TypeFrom    string
	TypeTo      string
	Amount      int64
	Address     string
	SubtractFee bool
	CreatedAt   int64
}

// SetBalance sets the balance of a coin and balance type.
func (s *Storage) SetBalance(coin coins.ID, balanceType string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO balances (coin, balance_type, amount) VALUES (?, ?, ?)
		ON CONFLICT(coin, balance_type) DO UPDATE SET amount = excluded.amount
	`, coin, balanceType, amount)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// SeedBalance sets a balance only if none is stored yet.
func (s *Storage) SeedBalance(coin coins.ID, balanceType string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO balances (coin, balance_type, amount) VALUES (?, ?, ?)
	`, coin, balanceType, amount)
	if err != nil {
		return fmt.Errorf("failed to seed balance: %w", err)
	}
	return nil
}

// GetBalance returns the balance of a coin and balance type. Unknown balances
// are zero.
func (s *Storage) GetBalance(coin coins.ID, balanceType string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var amount int64
	err := s.db.QueryRow(`
		SELECT amount FROM balances WHERE coin = ? AND balance_type = ?
	`, coin, balanceType).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount, nil
}

// GetBalances returns all balance types of a coin.
func (s *Storage) GetBalances(coin coins.ID) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT balance_type, amount FROM balances WHERE coin = ?
	`, coin)
	if err != nil {
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]int64)
	for rows.Next() {
		var balanceType string
		var amount int64
		if err := rows.Scan(&balanceType, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances[balanceType] = amount
	}
	return balances, rows.Err()
}

// RecordWithdrawal debits the source balance by amount plus fee and records
// the withdrawal, atomically.
func (s *Storage) RecordWithdrawal(w *Withdrawal, fee int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	debit := w.Amount + fee
	if w.SubtractFee {
		debit = w.Amount
	}

	var balance int64
	err = tx.QueryRow(`
		SELECT amount FROM balances WHERE coin = ? AND balance_type = ?
	`, w.Coin, w.TypeFrom).Scan(&balance)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to get balance: %w", err)
	}
	if balance < debit {
		return ErrInsufficientBalance
	}

	_, err = tx.Exec(`
		UPDATE balances SET amount = amount - ? WHERE coin = ? AND balance_type = ?
	`, debit, w.Coin, w.TypeFrom)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	if w.TypeTo != "" && w.TypeTo != w.TypeFrom {
		// Conversions between native balance types land in our own wallet.
		_, err = tx.Exec(`
			INSERT INTO balances (coin, balance_type, amount) VALUES (?, ?, ?)
			ON CONFLICT(coin, balance_type) DO UPDATE SET amount = amount + excluded.amount
		`, w.Coin, w.TypeTo, debit-fee)
		if err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO withdrawals (txid, coin, type_from, type_to, amount, address, subtract_fee, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.TxID, w.Coin, w.TypeFrom, w.TypeTo, w.Amount, w.Address, boolToInt(w.SubtractFee), w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record withdrawal: %w", err)
	}

	return tx.Commit()
}

// ListWithdrawals returns the withdrawals of a coin, newest first.
func (s *Storage) ListWithdrawals(coin coins.ID) ([]*Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT txid, coin, type_from, type_to, amount, address, subtract_fee, created_at
		FROM withdrawals WHERE coin = ?
		ORDER BY created_at DESC, txid ASC
	`, coin)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []*Withdrawal
	for rows.Next() {
		var w Withdrawal
		var typeFrom, typeTo sql.NullString
		var subfee int
		if err := rows.Scan(&w.TxID, &w.Coin, &typeFrom, &typeTo, &w.Amount, &w.Address, &subfee, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		w.TypeFrom = typeFrom.String
		w.TypeTo = typeTo.String
		w.SubtractFee = subfee == 1
		out = append(out, &w)
	}
	return out, rows.Err()
}
