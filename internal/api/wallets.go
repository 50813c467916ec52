package api

import (
	"context"

	"github.com/klingon-exchange/swapapi/internal/apierr"
	"github.com/klingon-exchange/swapapi/internal/coins"
)

// WithdrawResult is returned by a withdrawal.
type WithdrawResult struct {
	TxID string `json:"txid"`
}

// handleWallets serves:
//
//	/wallets                     info for all wallets
//	/wallets/{ticker}            info for one wallet
//	/wallets/{ticker}/withdraw   send coins
func (s *Server) handleWallets(ctx context.Context, req *Request) (interface{}, error) {
	if req.Seg3 == "" {
		return s.engine.WalletsInfo(ctx)
	}

	ci, ok := s.coins.Lookup(req.Seg3)
	if !ok {
		return nil, apierr.UnknownCoin(req.Seg3)
	}

	if req.Seg4 != "" {
		if req.Seg4 == "withdraw" {
			return s.withdraw(ctx, ci, req)
		}
		return nil, apierr.UnknownCommand(req.Seg4)
	}

	return s.engine.WalletInfo(ctx, ci.ID())
}

// withdraw sends coins. It is not idempotent: every call broadcasts a new
// transaction.
func (s *Server) withdraw(ctx context.Context, ci coins.Interface, req *Request) (interface{}, error) {
	if err := req.requirePost("withdraw"); err != nil {
		return nil, err
	}
	p, err := req.Payload()
	if err != nil {
		return nil, err
	}

	value, err := p.String("value")
	if err != nil {
		return nil, err
	}
	address, err := p.String("address")
	if err != nil {
		return nil, err
	}
	subfee, err := p.Bool("subfee")
	if err != nil {
		return nil, err
	}

	var txid string
	if ci.IsNative() {
		typeFrom := p.StringOr("type_from", coins.BalancePlain)
		typeTo := p.StringOr("type_to", coins.BalancePlain)
		txid, err = s.engine.WithdrawParticl(ctx, typeFrom, typeTo, value, address, subfee)
	} else {
		txid, err = s.engine.WithdrawCoin(ctx, ci.ID(), value, address, subfee)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Withdrawal sent", "coin", ci.Ticker(), "value", value, "txid", txid, "request_id", RequestID(ctx))
	s.wsHub.Broadcast(EventWithdrawalSent, map[string]string{"coin": ci.Ticker(), "txid": txid})

	return &WithdrawResult{TxID: txid}, nil
}
