package service

import (
	"fmt"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/repository"
)

// StockRequest 单个规格的数量校验请求
type StockRequest struct {
	VariantID                uint
	Quantity                 int
	TrackInventory           bool
	QuantityLimitPerCustomer *int
}

// StockService 库存与购买数量校验
type StockService struct {
	repo repository.StockRepository
}

// NewStockService 创建库存服务
func NewStockService(repo repository.StockRepository) *StockService {
	return &StockService{repo: repo}
}

// CheckAvailable 校验数量上限与可用库存，返回全部不满足的规格
func (s *StockService) CheckAvailable(requests []StockRequest, maxLineQuantity int) (CheckoutErrors, error) {
	var errs CheckoutErrors
	tracked := make([]uint, 0, len(requests))
	for _, req := range requests {
		if req.Quantity <= 0 {
			continue
		}
		limit := maxLineQuantity
		if req.QuantityLimitPerCustomer != nil && *req.QuantityLimitPerCustomer > 0 && (limit <= 0 || *req.QuantityLimitPerCustomer < limit) {
			limit = *req.QuantityLimitPerCustomer
		}
		if limit > 0 && req.Quantity > limit {
			errs = append(errs, newCheckoutError(constants.FieldQuantity, constants.ErrorCodeQuantityGreaterThanLimit,
				fmt.Sprintf("cannot buy more than %d units of this item", limit), req.VariantID))
			continue
		}
		if req.TrackInventory {
			tracked = append(tracked, req.VariantID)
		}
	}
	if len(tracked) == 0 {
		return errs, nil
	}

	available, err := s.repo.SumAvailable(tracked)
	if err != nil {
		return nil, err
	}
	for _, req := range requests {
		if req.Quantity <= 0 || !req.TrackInventory || errs.hasVariant(req.VariantID) {
			continue
		}
		if available[req.VariantID] < req.Quantity {
			errs = append(errs, newCheckoutError(constants.FieldQuantity, constants.ErrorCodeInsufficientStock,
				fmt.Sprintf("only %d units of this item are available", available[req.VariantID]), req.VariantID))
		}
	}
	return errs, nil
}

// Decrease 提交订单时扣减库存
func (s *StockService) Decrease(repo repository.StockRepository, requests []StockRequest) error {
	if repo == nil {
		repo = s.repo
	}
	for _, req := range requests {
		if req.Quantity <= 0 || !req.TrackInventory {
			continue
		}
		if err := repo.Decrease(req.VariantID, req.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func stockRequestsFromLines(lines []LineSnapshot) []StockRequest {
	requests := make([]StockRequest, 0, len(lines))
	for _, line := range lines {
		requests = append(requests, StockRequest{
			VariantID:                line.VariantID,
			Quantity:                 line.Quantity,
			TrackInventory:           line.TrackInventory,
			QuantityLimitPerCustomer: line.QuantityLimitPerCustomer,
		})
	}
	return requests
}
