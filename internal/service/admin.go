package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// SetFeePercent updates the platform fee applied to future bids. Bids
// already recorded keep the fee they were charged.
func (s *RoundService) SetFeePercent(ctx context.Context, actor string, percent int64) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if percent < 0 || percent > 100 {
		return fmt.Errorf("service: fee percent %d out of range [0,100]", percent)
	}

	return s.withLock(ctx, func() error {
		old := s.feePercent
		s.feePercent = percent

		s.logger.InfoContext(ctx, "service: fee updated",
			slog.Int64("old_percent", old),
			slog.Int64("new_percent", percent),
		)
		s.emit(ctx, domain.EventFeeUpdated, map[string]any{
			"old_percent": old,
			"new_percent": percent,
		})
		return nil
	})
}

// TransferAuthority hands the authority capability to a new account. The
// previous authority loses it in the same step.
func (s *RoundService) TransferAuthority(ctx context.Context, actor, newAuthority string) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if newAuthority == "" {
		return fmt.Errorf("service: new authority must not be empty")
	}

	return s.withLock(ctx, func() error {
		old := s.authority
		s.authority = newAuthority

		s.logger.InfoContext(ctx, "service: authority transferred",
			slog.String("old_authority", old),
			slog.String("new_authority", newAuthority),
		)
		s.emit(ctx, domain.EventAuthorityTransferred, map[string]any{
			"old_authority": old,
			"new_authority": newAuthority,
		})
		return nil
	})
}

// Withdraw pays part of the retained balance out to a receiver. The amount
// must be strictly below the retained balance, which already excludes stake
// held in the open round's pools, so a withdrawal can never touch funds owed
// to bettors.
func (s *RoundService) Withdraw(ctx context.Context, actor, receiver string, amount int64) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("service: withdrawal amount must be positive")
	}

	return s.withLock(ctx, func() error {
		total, err := s.treasury.Balance(ctx)
		if err != nil {
			return fmt.Errorf("service: treasury balance: %w", err)
		}
		var held int64
		if s.current != nil {
			held = s.current.HeldStake()
		}
		if amount >= total-held {
			return domain.ErrInsufficientBalance
		}

		err = s.treasury.Transact(ctx, func(tx domain.TreasuryTx) error {
			return tx.Pay(ctx, receiver, amount)
		})
		if err != nil {
			return fmt.Errorf("service: withdraw: %w: %w", domain.ErrPaymentFailed, err)
		}

		s.logger.InfoContext(ctx, "service: withdrawal",
			slog.String("receiver", receiver),
			slog.Int64("amount", amount),
		)
		s.emit(ctx, domain.EventWithdrawal, map[string]any{
			"receiver": receiver,
			"amount":   amount,
		})
		return nil
	})
}
