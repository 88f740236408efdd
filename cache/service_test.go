package cache

import (
	"context"
	"errors"
	"testing"
)

// mockCacheService returns canned values for testing the generic wrapper.
type mockCacheService struct {
	result any
	err    error
}

func (m *mockCacheService) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	return m.result, m.err
}

func (m *mockCacheService) Get(ctx context.Context, key string) (any, bool) {
	return nil, false
}

func (m *mockCacheService) Set(ctx context.Context, key string, value any) error {
	return nil
}

func (m *mockCacheService) Delete(ctx context.Context, key string) error {
	return nil
}

func (m *mockCacheService) DeleteAll(ctx context.Context) error {
	return nil
}

func TestGetOrFetch_ValidResult(t *testing.T) {
	mock := &mockCacheService{result: "test-value"}

	result, err := GetOrFetch(context.Background(), mock, "test-key", func(ctx context.Context) (string, error) {
		return "test-value", nil
	})
	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if result != "test-value" {
		t.Errorf("expected %q but got: %q", "test-value", result)
	}
}

func TestGetOrFetch_NilInterfaceResult(t *testing.T) {
	// A nil interface{} from the service must become the zero value of T,
	// not a panic.
	mock := &mockCacheService{result: nil}

	result, err := GetOrFetch(context.Background(), mock, "test-key", func(ctx context.Context) (*string, error) {
		return nil, nil
	})
	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_TypeAssertionFailure(t *testing.T) {
	// Two callers sharing a key with different types is a programming
	// error and must surface as ErrInvalidResultType.
	mock := &mockCacheService{result: "wrong-type"}

	result, err := GetOrFetch(context.Background(), mock, "test-key", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("expected ErrInvalidResultType but got: %v", err)
	}
	if result != 0 {
		t.Errorf("expected zero value (0) but got: %v", result)
	}
}

func TestGetOrFetch_FetchError(t *testing.T) {
	wantErr := errors.New("store down")
	mock := &mockCacheService{err: wantErr}

	_, err := GetOrFetch(context.Background(), mock, "test-key", func(ctx context.Context) (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected fetch error to pass through, got: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}

	cfg.TTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero TTL")
	}
}
