package service

import (
	"context"
	"time"

	"github.com/checkout-next/internal/cache"
	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/repository"

	"github.com/shopspring/decimal"
)

// DiscountInfo 一个生效中的促销在某渠道下的描述
type DiscountInfo struct {
	SaleID        uint            `json:"sale_id"`
	Name          string          `json:"name"`
	ValueType     string          `json:"value_type"`
	Value         decimal.Decimal `json:"value"`
	Currency      string          `json:"currency"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	ProductIDs    []uint          `json:"product_ids"`
	CategoryIDs   []uint          `json:"category_ids"`
	CollectionIDs []uint          `json:"collection_ids"`
	VariantIDs    []uint          `json:"variant_ids"`
}

// ActiveAt 判断促销在指定时间是否生效
func (d DiscountInfo) ActiveAt(now time.Time) bool {
	if d.StartDate.After(now) {
		return false
	}
	return d.EndDate == nil || d.EndDate.After(now)
}

// AppliesTo 规格、商品、分类或集合任一命中即适用
func (d DiscountInfo) AppliesTo(line LineSnapshot) bool {
	if models.UintArray(d.VariantIDs).Contains(line.VariantID) {
		return true
	}
	if models.UintArray(d.ProductIDs).Contains(line.ProductID) {
		return true
	}
	if line.CategoryID != 0 && models.UintArray(d.CategoryIDs).Contains(line.CategoryID) {
		return true
	}
	return models.UintArray(d.CollectionIDs).Intersects(line.CollectionIDs)
}

// Apply 计算单价折后价，不低于零
func (d DiscountInfo) Apply(unit models.Price) models.Price {
	switch d.ValueType {
	case constants.DiscountValueTypePercentage:
		return unit.SubFloor(unit.Percentage(d.Value))
	default:
		return unit.SubFloor(models.NewPrice(d.Value, unit.Currency))
	}
}

// DiscountedUnitPrice 取所有命中促销中折后价最低者（不叠加），并列时取输入顺序中的第一个
func DiscountedUnitPrice(line LineSnapshot, infos []DiscountInfo) (models.Price, *DiscountInfo) {
	best := line.UnitPrice
	var chosen *DiscountInfo
	for i := range infos {
		info := &infos[i]
		if models.NormalizeCurrency(info.Currency) != line.UnitPrice.Currency || !info.AppliesTo(line) {
			continue
		}
		candidate := info.Apply(line.UnitPrice)
		if candidate.LessThan(best) {
			best = candidate
			chosen = info
		}
	}
	return best, chosen
}

// DiscountService 从促销表加载渠道内生效的 DiscountInfo，Redis 可用时缓存
type DiscountService struct {
	repo repository.SaleRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewDiscountService 创建促销加载服务
func NewDiscountService(repo repository.SaleRepository, ttl time.Duration) *DiscountService {
	return &DiscountService{repo: repo, ttl: ttl, now: time.Now}
}

// ActiveDiscounts 获取渠道当前生效的促销
func (s *DiscountService) ActiveDiscounts(ctx context.Context, channel string) ([]DiscountInfo, error) {
	now := s.now()
	var cached []DiscountInfo
	hit, err := cache.GetChannelDiscounts(ctx, channel, &cached)
	if err != nil {
		logger.Warnw("discount_cache_read_failed", "channel", channel, "error", err)
	}
	if hit {
		return filterActiveDiscounts(cached, now), nil
	}

	sales, err := s.repo.ListActiveByChannel(channel, now)
	if err != nil {
		return nil, err
	}
	infos := make([]DiscountInfo, 0, len(sales))
	for i := range sales {
		info, ok := discountInfoFromSale(&sales[i], channel)
		if ok {
			infos = append(infos, info)
		}
	}
	if err := cache.SetChannelDiscounts(ctx, channel, infos, s.ttl); err != nil {
		logger.Warnw("discount_cache_write_failed", "channel", channel, "error", err)
	}
	return infos, nil
}

func discountInfoFromSale(sale *models.Sale, channel string) (DiscountInfo, bool) {
	for _, listing := range sale.ChannelListings {
		if listing.Channel != channel {
			continue
		}
		return DiscountInfo{
			SaleID:        sale.ID,
			Name:          sale.Name,
			ValueType:     sale.DiscountValueType,
			Value:         listing.DiscountValue.Decimal,
			Currency:      models.NormalizeCurrency(listing.Currency),
			StartDate:     sale.StartDate,
			EndDate:       sale.EndDate,
			ProductIDs:    sale.ProductIDs,
			CategoryIDs:   sale.CategoryIDs,
			CollectionIDs: sale.CollectionIDs,
			VariantIDs:    sale.VariantIDs,
		}, true
	}
	return DiscountInfo{}, false
}

func filterActiveDiscounts(infos []DiscountInfo, now time.Time) []DiscountInfo {
	result := make([]DiscountInfo, 0, len(infos))
	for _, info := range infos {
		if info.ActiveAt(now) {
			result = append(result, info)
		}
	}
	return result
}
