package queue

import (
	"encoding/json"

	"github.com/checkout-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCheckoutCompleted 结算完成后的异步处理任务
	TaskCheckoutCompleted = constants.TaskCheckoutCompleted
	// TaskCheckoutDeleteExpired 清理过期结算单任务
	TaskCheckoutDeleteExpired = constants.TaskCheckoutDeleteExpired
	// TaskGiftCardDeactivateExpired 停用过期礼品卡任务
	TaskGiftCardDeactivateExpired = constants.TaskGiftCardDeactivateExpired
)

// CheckoutCompletedPayload 结算完成任务载荷
type CheckoutCompletedPayload struct {
	OrderID       uint   `json:"order_id"`
	CheckoutToken string `json:"checkout_token"`
	GiftCardIDs   []uint `json:"gift_card_ids,omitempty"`
}

// SweepPayload 周期清理任务载荷
type SweepPayload struct {
	BatchSize int `json:"batch_size"`
}

// NewCheckoutCompletedTask 创建结算完成任务
func NewCheckoutCompletedTask(payload CheckoutCompletedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCheckoutCompleted, body), nil
}

// NewCheckoutDeleteExpiredTask 创建过期结算单清理任务
func NewCheckoutDeleteExpiredTask(payload SweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCheckoutDeleteExpired, body), nil
}

// NewGiftCardDeactivateExpiredTask 创建过期礼品卡停用任务
func NewGiftCardDeactivateExpiredTask(payload SweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGiftCardDeactivateExpired, body), nil
}
