package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultDiscountCacheTTL = time.Minute

func channelDiscountsKey(channel string) string {
	return fmt.Sprintf("discounts:channel:%s", strings.ToLower(strings.TrimSpace(channel)))
}

// GetChannelDiscounts 读取渠道促销快照
func GetChannelDiscounts(ctx context.Context, channel string, dest interface{}) (bool, error) {
	return GetJSON(ctx, channelDiscountsKey(channel), dest)
}

// SetChannelDiscounts 写入渠道促销快照
func SetChannelDiscounts(ctx context.Context, channel string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultDiscountCacheTTL
	}
	return SetJSON(ctx, channelDiscountsKey(channel), value, ttl)
}

// InvalidateChannelDiscounts 删除渠道促销快照
func InvalidateChannelDiscounts(ctx context.Context, channel string) error {
	return Del(ctx, channelDiscountsKey(channel))
}
