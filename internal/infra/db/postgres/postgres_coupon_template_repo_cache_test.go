//go:build !integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"
	"coupon-marketplace/internal/domain/promotion"
	red "coupon-marketplace/internal/infra/redis"
)

func sampleTemplate() *model.CouponTemplate {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &model.CouponTemplate{
		ID:                "tpl-123",
		MerchantID:        "merchant-1",
		Name:              "Lunch deal",
		Promotion:         promotion.FullReduction{Threshold: 500, Amount: 50},
		DiscountType:      promotion.DiscountFixed,
		DiscountValue:     50,
		PointsPrice:       100,
		TotalQuantity:     10,
		RemainingQuantity: 7,
		StartDate:         now,
		EndDate:           now.Add(48 * time.Hour),
		Status:            model.TemplateStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestTemplateRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	tpl := sampleTemplate()
	cached, err := encodeTemplate(tpl)
	if err != nil {
		t.Fatalf("encodeTemplate: %v", err)
	}

	t.Run("FindByID should return from cache on hit", func(t *testing.T) {
		// Arrange
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if key != "coupon_template:tpl-123" {
					t.Errorf("unexpected key %q", key)
				}
				return string(cached), nil
			},
		}
		innerRepoCalled := false
		mockInnerRepo := &mockInnerTemplateRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.CouponTemplate, error) {
				innerRepoCalled = true
				return nil, nil
			},
		}
		decorator := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, nil)

		// Act
		result, err := decorator.FindByID(ctx, nil, "tpl-123")

		// Assert
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerRepoCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if result.RemainingQuantity != 7 {
			t.Errorf("remaining = %d, want 7", result.RemainingQuantity)
		}
		fr, ok := result.Promotion.(promotion.FullReduction)
		if !ok || fr.Threshold != 500 || fr.Amount != 50 {
			t.Errorf("promotion not restored: %#v", result.Promotion)
		}
	})

	t.Run("FindByID should fill the cache on miss", func(t *testing.T) {
		var stored string
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", red.Nil },
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				if expiration != time.Minute {
					t.Errorf("ttl = %v, want 1m", expiration)
				}
				stored = string(value.([]byte))
				return nil
			},
		}
		mockInnerRepo := &mockInnerTemplateRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.CouponTemplate, error) {
				return tpl, nil
			},
		}
		decorator := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, nil)

		if _, err := decorator.FindByID(ctx, nil, "tpl-123"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stored == "" {
			t.Fatal("expected the template to be cached")
		}
	})

	t.Run("transactional reads bypass the cache", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				t.Error("cache must not be consulted inside a transaction")
				return "", red.Nil
			},
		}
		mockInnerRepo := &mockInnerTemplateRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.CouponTemplate, error) {
				return tpl, nil
			},
		}
		decorator := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, nil)

		if _, err := decorator.FindByID(ctx, struct{}{}, "tpl-123"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("DecrementRemaining should invalidate only on success", func(t *testing.T) {
		var deletedKeys []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deletedKeys = append(deletedKeys, keys...)
				return nil
			},
		}
		soldOut := errors.New("sold out")
		calls := 0
		mockInnerRepo := &mockInnerTemplateRepo{
			DecrementRemainingFunc: func(ctx context.Context, tx repository.Tx, id string) error {
				calls++
				if calls > 1 {
					return soldOut
				}
				return nil
			},
		}
		decorator := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, nil)

		if err := decorator.DecrementRemaining(ctx, nil, "tpl-123"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := decorator.DecrementRemaining(ctx, nil, "tpl-123"); !errors.Is(err, soldOut) {
			t.Fatalf("expected inner error, got %v", err)
		}
		if len(deletedKeys) != 1 || deletedKeys[0] != "coupon_template:tpl-123" {
			t.Fatalf("unexpected invalidations: %v", deletedKeys)
		}
	})

	t.Run("UpdateStatus invalidates when the status changed", func(t *testing.T) {
		deleted := 0
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted += len(keys)
				return nil
			},
		}
		mockInnerRepo := &mockInnerTemplateRepo{
			UpdateStatusFunc: func(ctx context.Context, tx repository.Tx, id string, from, to model.TemplateStatus) (bool, error) {
				return from == model.TemplateStatusActive, nil
			},
		}
		decorator := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, nil)

		_, _ = decorator.UpdateStatus(ctx, nil, "tpl-123", model.TemplateStatusActive, model.TemplateStatusInactive)
		_, _ = decorator.UpdateStatus(ctx, nil, "tpl-123", model.TemplateStatusInactive, model.TemplateStatusActive)
		if deleted != 1 {
			t.Fatalf("expected 1 invalidation, got %d", deleted)
		}
	})

	t.Run("transactional writes invalidate only after commit", func(t *testing.T) {
		store := map[string]string{}
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if v, ok := store[key]; ok {
					return v, nil
				}
				return "", red.Nil
			},
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				store[key] = string(value.([]byte))
				return nil
			},
			DelFunc: func(ctx context.Context, keys ...string) error {
				for _, k := range keys {
					delete(store, k)
				}
				return nil
			},
		}
		committed := *tpl // remaining 7 until the decrement commits
		mockInnerRepo := &mockInnerTemplateRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.CouponTemplate, error) {
				cp := committed
				return &cp, nil
			},
			DecrementRemainingFunc: func(ctx context.Context, tx repository.Tx, id string) error { return nil },
		}
		decorator := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, nil)

		txCtx, runAfterCommit := repository.WithAfterCommit(ctx)
		if err := decorator.DecrementRemaining(txCtx, struct{}{}, "tpl-123"); err != nil {
			t.Fatalf("DecrementRemaining: %v", err)
		}

		// a concurrent reader sees the old committed row and caches it
		before, err := decorator.FindByID(ctx, nil, "tpl-123")
		if err != nil || before.RemainingQuantity != 7 {
			t.Fatalf("pre-commit read = %+v, %v", before, err)
		}

		committed.RemainingQuantity = 6
		runAfterCommit(ctx)

		after, err := decorator.FindByID(ctx, nil, "tpl-123")
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if after.RemainingQuantity != 6 {
			t.Fatalf("remaining = %d after commit, want 6 (stale cache entry survived)", after.RemainingQuantity)
		}
	})

	t.Run("rolled back status change keeps the cache", func(t *testing.T) {
		deleted := 0
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted += len(keys)
				return nil
			},
		}
		mockInnerRepo := &mockInnerTemplateRepo{
			UpdateStatusFunc: func(ctx context.Context, tx repository.Tx, id string, from, to model.TemplateStatus) (bool, error) {
				return true, nil
			},
		}
		decorator := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, nil)

		txCtx, _ := repository.WithAfterCommit(ctx)
		if _, err := decorator.UpdateStatus(txCtx, struct{}{}, "tpl-123", model.TemplateStatusActive, model.TemplateStatusInactive); err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
		if deleted != 0 {
			t.Fatalf("expected no invalidation without a commit, got %d", deleted)
		}
	})
}
