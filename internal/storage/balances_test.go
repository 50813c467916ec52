package storage

import (
	"errors"
	"testing"

	"github.com/klingon-exchange/swapapi/internal/coins"
)

func TestBalances(t *testing.T) {
	store := newTestStorage(t)

	if err := store.SeedBalance(coins.BTC, coins.BalancePlain, 100); err != nil {
		t.Fatalf("SeedBalance() error = %v", err)
	}
	// A second seed must not overwrite.
	if err := store.SeedBalance(coins.BTC, coins.BalancePlain, 999); err != nil {
		t.Fatalf("SeedBalance() error = %v", err)
	}
	got, err := store.GetBalance(coins.BTC, coins.BalancePlain)
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if got != 100 {
		t.Errorf("GetBalance() = %d, want 100", got)
	}

	if err := store.SetBalance(coins.BTC, coins.BalancePlain, 250); err != nil {
		t.Fatalf("SetBalance() error = %v", err)
	}
	got, _ = store.GetBalance(coins.BTC, coins.BalancePlain)
	if got != 250 {
		t.Errorf("GetBalance() after set = %d, want 250", got)
	}

	got, err = store.GetBalance(coins.LTC, coins.BalancePlain)
	if err != nil || got != 0 {
		t.Errorf("GetBalance() unknown = %d, %v, want 0, nil", got, err)
	}
}

func TestRecordWithdrawal(t *testing.T) {
	tests := []struct {
		name        string
		amount      int64
		subtractFee bool
		wantErr     error
		wantBalance int64
	}{
		{"fee added", 400, false, nil, 590},
		{"fee subtracted", 400, true, nil, 600},
		{"exact balance", 990, false, nil, 0},
		{"insufficient", 995, false, ErrInsufficientBalance, 1000},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStorage(t)
			store.SetBalance(coins.LTC, coins.BalancePlain, 1000)

			w := &Withdrawal{
				TxID:        string(rune('a' + i)),
				Coin:        coins.LTC,
				TypeFrom:    coins.BalancePlain,
				Amount:      tt.amount,
				Address:     "ltc1qaddr",
				SubtractFee: tt.subtractFee,
				CreatedAt:   1000,
			}
			err := store.RecordWithdrawal(w, 10)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RecordWithdrawal() error = %v, want %v", err, tt.wantErr)
			}

			got, _ := store.GetBalance(coins.LTC, coins.BalancePlain)
			if got != tt.wantBalance {
				t.Errorf("balance = %d, want %d", got, tt.wantBalance)
			}

			list, err := store.ListWithdrawals(coins.LTC)
			if err != nil {
				t.Fatalf("ListWithdrawals() error = %v", err)
			}
			wantN := 1
			if tt.wantErr != nil {
				wantN = 0
			}
			if len(list) != wantN {
				t.Errorf("ListWithdrawals() returned %d, want %d", len(list), wantN)
			}
		})
	}
}

func TestRecordWithdrawalBalanceTypes(t *testing.T) {
	store := newTestStorage(t)
	store.SetBalance(coins.PART, coins.BalancePlain, 1000)

	w := &Withdrawal{
		TxID:     "conv",
		Coin:     coins.PART,
		TypeFrom: coins.BalancePlain,
		TypeTo:   coins.BalanceBlind,
		Amount:   500,
		Address:  "pself",
	}
	if err := store.RecordWithdrawal(w, 10); err != nil {
		t.Fatalf("RecordWithdrawal() error = %v", err)
	}

	balances, err := store.GetBalances(coins.PART)
	if err != nil {
		t.Fatalf("GetBalances() error = %v", err)
	}
	if balances[coins.BalancePlain] != 490 {
		t.Errorf("plain = %d, want 490", balances[coins.BalancePlain])
	}
	if balances[coins.BalanceBlind] != 500 {
		t.Errorf("blind = %d, want 500", balances[coins.BalanceBlind])
	}
}
