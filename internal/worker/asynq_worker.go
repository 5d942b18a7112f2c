package worker

import (
	"context"
	"encoding/json"

	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/provider"
	"github.com/checkout-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCheckoutCompleted, c.handleCheckoutCompleted)
	mux.HandleFunc(queue.TaskCheckoutDeleteExpired, c.handleCheckoutDeleteExpired)
	mux.HandleFunc(queue.TaskGiftCardDeactivateExpired, c.handleGiftCardDeactivateExpired)
}

// handleCheckoutCompleted 记录订单及其礼品卡使用流水
func (c *Consumer) handleCheckoutCompleted(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_checkout_completed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CheckoutCompletedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_checkout_completed_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_checkout_completed_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	order, err := c.OrderRepo.GetByID(payload.OrderID)
	if err != nil {
		logger.Warnw("worker_checkout_completed_fetch_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_checkout_completed_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	}
	for _, id := range payload.GiftCardIDs {
		events, err := c.GiftCardRepo.ListEvents(id)
		if err != nil {
			logger.Warnw("worker_gift_card_events_fetch_failed", "order_id", order.ID, "gift_card_id", id, "error", err)
			return err
		}
		for _, event := range events {
			if event.OrderID == nil || *event.OrderID != order.ID {
				continue
			}
			logger.Infow("gift_card_order_event",
				"order_id", order.ID,
				"order_no", order.OrderNo,
				"gift_card_id", id,
				"type", event.Type,
				"amount", event.Amount.String(),
				"balance_after", event.BalanceAfter.String(),
			)
		}
	}
	logger.Infow("worker_checkout_completed_processed",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"checkout_token", payload.CheckoutToken,
		"email", order.Email,
		"total", order.TotalGross.String(),
	)
	return nil
}

func (c *Consumer) handleCheckoutDeleteExpired(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.CheckoutService == nil {
		logger.Debugw("worker_checkout_delete_expired_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := decodeSweepPayload(task)
	if err != nil {
		logger.Warnw("worker_checkout_delete_expired_unmarshal_failed", "error", err)
		return err
	}
	deleted, err := c.CheckoutService.DeleteExpiredCheckouts(ctx, payload.BatchSize)
	if err != nil {
		logger.Warnw("worker_checkout_delete_expired_failed", "deleted", deleted, "error", err)
		return err
	}
	logger.Debugw("worker_checkout_delete_expired_done", "deleted", deleted)
	return nil
}

func (c *Consumer) handleGiftCardDeactivateExpired(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.CheckoutService == nil {
		logger.Debugw("worker_gift_card_deactivate_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := decodeSweepPayload(task)
	if err != nil {
		logger.Warnw("worker_gift_card_deactivate_unmarshal_failed", "error", err)
		return err
	}
	deactivated, err := c.CheckoutService.DeactivateExpiredGiftCards(ctx, payload.BatchSize)
	if err != nil {
		logger.Warnw("worker_gift_card_deactivate_failed", "deactivated", deactivated, "error", err)
		return err
	}
	logger.Debugw("worker_gift_card_deactivate_done", "deactivated", deactivated)
	return nil
}

// decodeSweepPayload 空载荷按默认批量处理
func decodeSweepPayload(task *asynq.Task) (queue.SweepPayload, error) {
	var payload queue.SweepPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
