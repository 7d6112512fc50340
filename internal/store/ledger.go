package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/pkg/model"
)

const upsertOrderSQL = `
	INSERT INTO activity.t_external_order (
		s_id_order,
		s_maker,
		s_order_type,
		n_chain_id,
		s_sell_token,
		s_buy_token,
		s_sell_amount_raw,
		s_buy_amount_raw,
		n_slippage_bps,
		s_status,
		s_protocol_address,
		s_tx_hash,
		dt_created,
		dt_expires,
		s_source,
		dt_updated
	)
	VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8,
		$9, $10, $11, $12, $13, $14, $15, NOW()
	)
	ON CONFLICT (s_id_order)
	DO UPDATE SET
		s_status = EXCLUDED.s_status,
		s_buy_amount_raw = EXCLUDED.s_buy_amount_raw,
		s_tx_hash = EXCLUDED.s_tx_hash,
		s_source = EXCLUDED.s_source,
		dt_updated = NOW();
`

// RecordOrder upserts the order into the local ledger table. A no-op when
// Postgres is not configured.
func (s *HybridStore) RecordOrder(ctx context.Context, order *model.ExternalOrder) error {
	if s.pg == nil || order == nil {
		return nil
	}

	_, err := s.pg.Exec(ctx, upsertOrderSQL,
		order.OrderID,             // s_id_order
		order.Maker(),             // s_maker
		string(order.OrderType),   // s_order_type
		order.ChainID,             // n_chain_id
		order.SellToken.Address,   // s_sell_token
		order.BuyToken.Address,    // s_buy_token
		rawOf(order.SellAmount),   // s_sell_amount_raw
		rawOf(order.BuyAmount),    // s_buy_amount_raw
		order.SlippageBps,         // n_slippage_bps
		string(order.Status),      // s_status
		order.VerifyingContract(), // s_protocol_address
		order.TxHash,              // s_tx_hash
		unixTime(order.CreatedAt), // dt_created
		unixTime(order.ExpiresAt), // dt_expires
		s.source,                  // s_source
	)
	if err != nil {
		s.logger.Error("store.ledger_upsert_failed",
			zap.String("order_id", order.OrderID),
			zap.String("maker", order.Maker()),
			zap.Error(err))
		return err
	}

	s.logger.Debug("store.ledger_upsert",
		zap.String("order_id", order.OrderID),
		zap.String("status", string(order.Status)))
	return nil
}

func rawOf(a *model.Amount) *string {
	if a == nil || a.Raw == "" {
		return nil
	}
	return &a.Raw
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
