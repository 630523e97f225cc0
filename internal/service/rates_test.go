package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/models"
)

func newTestRateService(api *fakeAPI) *RateService {
	return NewRateService(context.Background(), api, newMemoryKV(), common.NewSilentLogger())
}

func TestRateService_IdentityConversionSkipsNetwork(t *testing.T) {
	api := newFakeAPI()
	api.ratesErr = transportErr()
	rates := newTestRateService(api)

	got, err := rates.Convert(context.Background(), 100, "usd", "USD")
	if err != nil {
		t.Fatalf("identity conversion failed: %v", err)
	}
	if got != 100 {
		t.Errorf("expected 100, got %f", got)
	}
	if api.ratesCalls != 0 {
		t.Errorf("identity conversion must not call the backend, got %d calls", api.ratesCalls)
	}
}

func TestRateService_ConvertViaBase(t *testing.T) {
	api := newFakeAPI()
	table := models.NewRateTable("USD", map[string]float64{"EUR": 0.9, "GBP": 0.8})
	api.rates = &table
	rates := newTestRateService(api)

	// 90 EUR -> USD -> GBP
	got, err := rates.Convert(context.Background(), 90, "EUR", "GBP")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if math.Abs(got-80) > 1e-9 {
		t.Errorf("expected 80 GBP, got %f", got)
	}
}

func TestRateService_ConvertRoundTrip(t *testing.T) {
	api := newFakeAPI()
	rates := newTestRateService(api)
	ctx := context.Background()

	eur, err := rates.Convert(ctx, 250, "USD", "EUR")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	back, err := rates.Convert(ctx, eur, "EUR", "USD")
	if err != nil {
		t.Fatalf("Convert back failed: %v", err)
	}
	if math.Abs(back-250) > 1e-9 {
		t.Errorf("round trip drifted: 250 -> %f -> %f", eur, back)
	}
}

func TestRateService_UnknownCurrency(t *testing.T) {
	api := newFakeAPI()
	rates := newTestRateService(api)

	_, err := rates.Convert(context.Background(), 10, "USD", "XXX")
	if !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestRateService_CachesWithinTTL(t *testing.T) {
	api := newFakeAPI()
	rates := newTestRateService(api)
	ctx := context.Background()

	if _, err := rates.Convert(ctx, 10, "USD", "EUR"); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if _, err := rates.Convert(ctx, 20, "EUR", "GBP"); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if api.ratesCalls != 1 {
		t.Errorf("expected a single backend call within TTL, got %d", api.ratesCalls)
	}
	if !rates.HasFresh() {
		t.Error("expected a fresh rate table after conversion")
	}
}

func TestRateService_RateBetween(t *testing.T) {
	api := newFakeAPI()
	rates := newTestRateService(api)
	ctx := context.Background()

	same, err := rates.RateBetween(ctx, "EUR", "eur")
	if err != nil {
		t.Fatalf("RateBetween failed: %v", err)
	}
	if same != 1 {
		t.Errorf("expected identity rate 1, got %f", same)
	}

	cross, err := rates.RateBetween(ctx, "EUR", "GBP")
	if err != nil {
		t.Fatalf("RateBetween failed: %v", err)
	}
	if math.Abs(cross-0.8/0.9) > 1e-9 {
		t.Errorf("expected %f, got %f", 0.8/0.9, cross)
	}
}

func TestRateService_ServesStaleOnBackendFailure(t *testing.T) {
	api := newFakeAPI()
	kv := newMemoryKV()
	ctx := context.Background()

	warm := NewRateService(ctx, api, kv, common.NewSilentLogger())
	if _, err := warm.EnsureFresh(ctx, false); err != nil {
		t.Fatalf("warm fetch failed: %v", err)
	}

	// New service over the same store, backend now down: the persisted
	// table still answers conversions
	api.ratesErr = transportErr()
	cold := NewRateService(ctx, api, kv, common.NewSilentLogger())
	got, err := cold.Convert(ctx, 90, "EUR", "USD")
	if err != nil {
		t.Fatalf("expected stale table to serve, got %v", err)
	}
	if math.Abs(got-100) > 1e-9 {
		t.Errorf("expected 100 USD, got %f", got)
	}
}
