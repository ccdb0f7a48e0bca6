package cache

import (
	"context"
	"errors"
	"fmt"

	"event-ticketing/internal/model"
	apperrors "event-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisEventInventory INVENTORY_BACKEND=redis 時，活動剩餘票數以 Redis 為準。
// 扣減與回補都以 Lua 腳本在 Redis 端原子執行。
type RedisEventInventory interface {
	// 預熱：建立或更新活動的庫存資訊，已存在時保留目前庫存
	WarmUp(ctx context.Context, event *model.Event) error
	// 獲取：活動目前剩餘票數
	GetStock(ctx context.Context, eventID uuid.UUID) (int, error)
	// 減少：已核准且庫存足夠時扣減，回傳票價
	DecrementTickets(ctx context.Context, eventID uuid.UUID, quantity int) (decimal.Decimal, error)
	// 回補：不得超過活動原始容量
	IncrementTickets(ctx context.Context, eventID uuid.UUID, quantity int) error
}

type RedisEventInventoryImpl struct {
	client *redis.Client
}

func NewRedisEventInventory(client *redis.Client) RedisEventInventory {
	return &RedisEventInventoryImpl{
		client: client,
	}
}

// 庫存 key
func inventoryKey(eventID uuid.UUID) string {
	return fmt.Sprintf("event:%s:inventory", eventID)
}

const warmUpScript = `
	local key = KEYS[1]
	if redis.call('EXISTS', key) == 1 then
		redis.call('HSET', key, 'price', ARGV[2], 'status', ARGV[3])
	else
		redis.call('HSET', key, 'stock', ARGV[1], 'price', ARGV[2], 'status', ARGV[3], 'capacity', ARGV[4])
	end
	return 1
`

const decrementScript = `
	local key = KEYS[1]
	local request_qty = tonumber(ARGV[1])

	local info = redis.call('HMGET', key, 'stock', 'price', 'status')
	local stock = info[1]
	local price = info[2]
	local status = info[3]

	-- 未預熱
	if not stock or not price or not status then
		return {-3, '0'}
	end

	if status ~= 'approved' then
		return {-2, '0'}
	end

	if tonumber(stock) < request_qty then
		return {-1, '0'}
	end

	redis.call('HINCRBY', key, 'stock', -request_qty)
	return {1, price}
`

const incrementScript = `
	local key = KEYS[1]
	local qty = tonumber(ARGV[1])

	local info = redis.call('HMGET', key, 'stock', 'capacity')
	if not info[1] or not info[2] then
		return -3
	end

	if tonumber(info[1]) + qty > tonumber(info[2]) then
		return -4
	end

	redis.call('HINCRBY', key, 'stock', qty)
	return 1
`

func (m *RedisEventInventoryImpl) WarmUp(ctx context.Context, event *model.Event) error {
	key := inventoryKey(event.ID)
	return m.client.Eval(ctx, warmUpScript, []string{key},
		event.TicketsAvailable, event.TicketPrice.String(), string(event.Status), event.Capacity,
	).Err()
}

func (m *RedisEventInventoryImpl) GetStock(ctx context.Context, eventID uuid.UUID) (int, error) {
	stock, err := m.client.HGet(ctx, inventoryKey(eventID), "stock").Int()
	if errors.Is(err, redis.Nil) {
		return -1, apperrors.ErrEventNotFound
	}
	return stock, err
}

func (m *RedisEventInventoryImpl) DecrementTickets(ctx context.Context, eventID uuid.UUID, quantity int) (decimal.Decimal, error) {
	if quantity < 1 {
		return decimal.Zero, apperrors.ErrInvalidQuantity
	}

	result, err := m.client.Eval(ctx, decrementScript, []string{inventoryKey(eventID)}, quantity).Slice()
	if err != nil {
		return decimal.Zero, err
	}
	if len(result) != 2 {
		return decimal.Zero, fmt.Errorf("unexpected decrement result: %v", result)
	}

	code, ok := result[0].(int64) // Redis 數字回傳 int64
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected decrement code: %v", result[0])
	}

	switch code {
	case 1:
		priceStr, _ := result[1].(string)
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid price %q: %w", priceStr, err)
		}
		return price, nil
	case -1:
		return decimal.Zero, apperrors.ErrInsufficientTickets
	case -2:
		return decimal.Zero, apperrors.ErrEventNotBookable
	case -3:
		return decimal.Zero, apperrors.ErrEventNotFound
	default:
		return decimal.Zero, fmt.Errorf("unexpected decrement code: %d", code)
	}
}

func (m *RedisEventInventoryImpl) IncrementTickets(ctx context.Context, eventID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return apperrors.ErrInvalidQuantity
	}

	code, err := m.client.Eval(ctx, incrementScript, []string{inventoryKey(eventID)}, quantity).Int64()
	if err != nil {
		return err
	}

	switch code {
	case 1:
		return nil
	case -3:
		return apperrors.ErrEventNotFound
	case -4:
		return apperrors.ErrCapacityExceeded
	default:
		return fmt.Errorf("unexpected increment code: %d", code)
	}
}
