package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

var ErrInvalidQty = errors.New("qty must be >= 0")

type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// Store keeps carts as Redis hashes (product -> qty) and wishlists as sets.
// Both expire after TTLCart of inactivity.
type Store struct {
	Redis *redis.Client
}

func New(rdb *redis.Client) *Store { return &Store{Redis: rdb} }

func cartKey(userID string) string     { return fmt.Sprintf(redisx.KeyCart, userID) }
func wishlistKey(userID string) string { return fmt.Sprintf(redisx.KeyWishlist, userID) }

func (s *Store) Items(ctx context.Context, userID string) ([]Line, error) {
	m, err := s.Redis.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	out := make([]Line, 0, len(m))
	for pid, v := range m {
		qty, err := strconv.Atoi(v)
		if err != nil || qty <= 0 {
			continue
		}
		out = append(out, Line{ProductID: pid, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// SetQty replaces the quantity of one line; zero removes it.
func (s *Store) SetQty(ctx context.Context, userID, productID string, qty int) error {
	if qty < 0 {
		return ErrInvalidQty
	}
	key := cartKey(userID)
	if qty == 0 {
		return s.Redis.HDel(ctx, key, productID).Err()
	}
	if err := s.Redis.HSet(ctx, key, productID, qty).Err(); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	return s.Redis.Expire(ctx, key, redisx.TTLCart).Err()
}

func (s *Store) Remove(ctx context.Context, userID, productID string) error {
	return s.Redis.HDel(ctx, cartKey(userID), productID).Err()
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, cartKey(userID)).Err()
}

func (s *Store) Wishlist(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.Redis.SMembers(ctx, wishlistKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read wishlist: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Wish(ctx context.Context, userID, productID string) error {
	key := wishlistKey(userID)
	if err := s.Redis.SAdd(ctx, key, productID).Err(); err != nil {
		return fmt.Errorf("write wishlist: %w", err)
	}
	return s.Redis.Expire(ctx, key, redisx.TTLCart).Err()
}

func (s *Store) Unwish(ctx context.Context, userID, productID string) error {
	return s.Redis.SRem(ctx, wishlistKey(userID), productID).Err()
}
