package service

import (
	"context"
	"time"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/models"

	"gorm.io/gorm"
)

const defaultSweepBatchSize = 200

// DeleteExpiredCheckouts 删除超过 expire_after_hours 未变更的结算单，返回删除数量
func (s *CheckoutService) DeleteExpiredCheckouts(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	settings, err := s.settings.GetCheckoutSettings()
	if err != nil {
		logger.Warnw("checkout_settings_fetch_failed", "error", err)
	}
	if settings.ExpireAfterHours <= 0 {
		return 0, nil
	}
	before := s.now().Add(-time.Duration(settings.ExpireAfterHours) * time.Hour)
	tokens, err := s.checkoutRepo.ListExpiredTokens(before, batchSize)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, token := range tokens {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		err := models.DB.Transaction(func(tx *gorm.DB) error {
			return s.checkoutRepo.WithTx(tx).Delete(token)
		})
		if err != nil {
			logger.Warnw("checkout_expired_delete_failed", "token", token, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		logger.Infow("checkout_expired_deleted", "count", deleted, "before", before)
	}
	return deleted, nil
}

// DeactivateExpiredGiftCards 停用已过期的礼品卡并记录流水
func (s *CheckoutService) DeactivateExpiredGiftCards(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	now := s.now()
	cards, err := s.giftCardRepo.ListExpiredActive(now, batchSize)
	if err != nil {
		return 0, err
	}
	deactivated := 0
	for i := range cards {
		if err := ctx.Err(); err != nil {
			return deactivated, err
		}
		card := cards[i]
		changed := false
		err := models.DB.Transaction(func(tx *gorm.DB) error {
			repo := s.giftCardRepo.WithTx(tx)
			ok, err := repo.Deactivate(card.ID)
			if err != nil || !ok {
				return err
			}
			changed = true
			return repo.CreateEvents([]models.GiftCardEvent{{
				GiftCardID:    card.ID,
				Type:          constants.GiftCardEventDeactivated,
				BalanceBefore: card.CurrentBalance,
				BalanceAfter:  card.CurrentBalance,
				CreatedAt:     now,
			}})
		})
		if err != nil {
			logger.Warnw("gift_card_deactivate_failed", "gift_card_id", card.ID, "error", err)
			continue
		}
		if changed {
			deactivated++
		}
	}
	if deactivated > 0 {
		logger.Infow("gift_card_expired_deactivated", "count", deactivated)
	}
	return deactivated, nil
}
