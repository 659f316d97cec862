package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pharmadesk/pharmadesk/internal/sales"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// CartStore keeps the per-session cart, the parked cart and the last committed sale.
type CartStore interface {
	Load(ctx context.Context, sessionID string) (Cart, error)
	Save(ctx context.Context, sessionID string, cart Cart) error
	Clear(ctx context.Context, sessionID string) error
	Hold(ctx context.Context, sessionID string, cart Cart) error
	TakeHeld(ctx context.Context, sessionID string) (Cart, error)
	SaveLastInvoice(ctx context.Context, sessionID string, sale sales.Sale) error
	LastInvoice(ctx context.Context, sessionID string) (sales.Sale, error)
}

// RedisCartStore stores carts as JSON documents.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCartStore constructs the store. Keys expire after ttl of inactivity.
func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func cartKey(sessionID string) string    { return "cart:" + sessionID }
func heldKey(sessionID string) string    { return "cart:temp:" + sessionID }
func invoiceKey(sessionID string) string { return "invoice:last:" + sessionID }

// Load returns the active cart, or an empty cart when none is stored.
func (s *RedisCartStore) Load(ctx context.Context, sessionID string) (Cart, error) {
	var cart Cart
	found, err := s.get(ctx, cartKey(sessionID), &cart)
	if err != nil || !found {
		return Cart{}, err
	}
	return cart, nil
}

func (s *RedisCartStore) Save(ctx context.Context, sessionID string, cart Cart) error {
	return s.set(ctx, cartKey(sessionID), cart)
}

func (s *RedisCartStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: clear cart: %v", shared.ErrRemoteFailure, err)
	}
	return nil
}

// Hold parks cart in the single temporary slot, replacing whatever was there.
func (s *RedisCartStore) Hold(ctx context.Context, sessionID string, cart Cart) error {
	return s.set(ctx, heldKey(sessionID), cart)
}

// TakeHeld returns the parked cart and empties the slot.
func (s *RedisCartStore) TakeHeld(ctx context.Context, sessionID string) (Cart, error) {
	data, err := s.client.GetDel(ctx, heldKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, fmt.Errorf("held cart: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Cart{}, fmt.Errorf("%w: take held cart: %v", shared.ErrRemoteFailure, err)
	}
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return Cart{}, fmt.Errorf("decode held cart: %w", err)
	}
	return cart, nil
}

func (s *RedisCartStore) SaveLastInvoice(ctx context.Context, sessionID string, sale sales.Sale) error {
	return s.set(ctx, invoiceKey(sessionID), sale)
}

func (s *RedisCartStore) LastInvoice(ctx context.Context, sessionID string) (sales.Sale, error) {
	var sale sales.Sale
	found, err := s.get(ctx, invoiceKey(sessionID), &sale)
	if err != nil {
		return sales.Sale{}, err
	}
	if !found {
		return sales.Sale{}, fmt.Errorf("last invoice: %w", shared.ErrNotFound)
	}
	return sale, nil
}

func (s *RedisCartStore) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", shared.ErrRemoteFailure, key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisCartStore) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: write %s: %v", shared.ErrRemoteFailure, key, err)
	}
	return nil
}
