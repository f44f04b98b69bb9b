package pricing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"45,90 €", 45.90, true},
		{"€1,234.56", 1234.56, true},
		{"1.234,56 €", 1234.56, true},
		{"1 234,56 €", 1234.56, true},
		{"Total: 1.234.567 EUR", 1234567, true},
		{"12.50", 12.50, true},
		{"1,234", 1.234, true},
		{"£ 30", 30, true},
		{"sem preço", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestFormatEURRoundTrip(t *testing.T) {
	assert.Equal(t, "1.234,56 €", FormatEUR(1234.56))
	assert.Equal(t, "45,90 €", FormatEUR(45.9))
	assert.Equal(t, "0,00 €", FormatEUR(0))
	assert.Equal(t, "1.234.567,80 €", FormatEUR(1234567.8))

	for _, v := range []float64{0, 0.5, 9.99, 45.9, 123.45, 999.99, 1000, 1234.56, 98765.43} {
		got, ok := ParseAmount(FormatEUR(v))
		require.True(t, ok, "format of %v must parse", v)
		assert.InDelta(t, Round2(v), got, 0.0001)
	}
}

func TestDetectCurrency(t *testing.T) {
	assert.Equal(t, "EUR", DetectCurrency("45,90 €"))
	assert.Equal(t, "EUR", DetectCurrency("100 eur"))
	assert.Equal(t, "GBP", DetectCurrency("£30.00"))
	assert.Equal(t, "USD", DetectCurrency("US$ 12"))
	assert.Equal(t, "USD", DetectCurrency("$12"))
	assert.Equal(t, "BRL", DetectCurrency("R$ 100"))
	assert.Equal(t, "CHF", DetectCurrency("CHF 90"))
	assert.Equal(t, "", DetectCurrency("45,90"))
	assert.Equal(t, "", DetectCurrency("Europcar"))
}

type stubRateSource struct {
	rate  float64
	err   error
	calls int
}

func (s *stubRateSource) Rate(ctx context.Context, base, quote string) (float64, error) {
	s.calls++
	return s.rate, s.err
}

func TestFXConverterCachesForTTL(t *testing.T) {
	src := &stubRateSource{rate: 1.17}
	conv := NewFXConverter(src)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	conv.now = func() time.Time { return now }

	got, err := conv.ToEUR(context.Background(), 100, "gbp")
	require.NoError(t, err)
	assert.Equal(t, 117.0, got)

	now = now.Add(59 * time.Minute)
	_, err = conv.ToEUR(context.Background(), 10, "GBP")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	_, err = conv.ToEUR(context.Background(), 10, "GBP")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	eur, err := conv.ToEUR(context.Background(), 42.5, "EUR")
	require.NoError(t, err)
	assert.Equal(t, 42.5, eur)
	assert.Equal(t, 2, src.calls)
}

// blockingRateSource holds GBP requests until release is closed
type blockingRateSource struct {
	release chan struct{}
	mu      sync.Mutex
	calls   map[string]int
}

func (s *blockingRateSource) Rate(ctx context.Context, base, quote string) (float64, error) {
	s.mu.Lock()
	s.calls[base]++
	s.mu.Unlock()
	if base == "GBP" {
		<-s.release
		return 1.17, nil
	}
	return 0.92, nil
}

func (s *blockingRateSource) Calls(base string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[base]
}

func TestFXConverterSlowCurrencyDoesNotBlockOthers(t *testing.T) {
	src := &blockingRateSource{release: make(chan struct{}), calls: map[string]int{}}
	conv := NewFXConverter(src)

	var wg sync.WaitGroup
	gbp := make([]float64, 3)
	for i := range gbp {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gbp[i], _ = conv.ToEUR(context.Background(), 100, "GBP")
		}(i)
	}
	require.Eventually(t, func() bool { return src.Calls("GBP") == 1 }, time.Second, 5*time.Millisecond)

	usd := make(chan float64, 1)
	go func() {
		v, _ := conv.ToEUR(context.Background(), 100, "USD")
		usd <- v
	}()
	select {
	case v := <-usd:
		assert.Equal(t, 92.0, v)
	case <-time.After(time.Second):
		t.Fatal("USD conversion waited on the GBP request")
	}

	close(src.release)
	wg.Wait()
	assert.Equal(t, []float64{117, 117, 117}, gbp)
	assert.Equal(t, 1, src.Calls("GBP"), "concurrent requests share one source call")
}

func TestFXConverterFallback(t *testing.T) {
	src := &stubRateSource{err: fmt.Errorf("connection refused")}
	conv := NewFXConverter(src)

	got, err := conv.ToEUR(context.Background(), 100, "GBP")
	require.NoError(t, err)
	assert.Equal(t, Round2(100*DefaultFallbackRates["GBP"]), got)

	_, err = conv.ToEUR(context.Background(), 100, "JPY")
	assert.Error(t, err)
}

func TestHTTPRateSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GBP", r.URL.Query().Get("base"))
		assert.Equal(t, "EUR", r.URL.Query().Get("quote"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rate": 1.17}`))
	}))
	defer server.Close()

	rate, err := NewHTTPRateSource(server.URL).Rate(context.Background(), "GBP", "EUR")
	require.NoError(t, err)
	assert.Equal(t, 1.17, rate)
}

func TestAdjustmentPolicy(t *testing.T) {
	policy := AdjustmentPolicy{
		Default:   Adjustment{Pct: 10, Flat: 2},
		Allowed:   []string{"Goldcar", "Centauro", "AutoPrudente"},
		Overrides: map[string]Adjustment{"autoprudente": {Pct: 50}, "centauro": {Flat: -1}, "sixt": {Pct: 20}},
	}

	assert.Equal(t, 112.0, policy.Apply("Goldcar", 100))
	assert.Equal(t, 99.0, policy.Apply("centauro", 100))
	assert.Equal(t, 100.0, policy.Apply("Hertz", 100))
	assert.Equal(t, 100.0, policy.Apply("Sixt", 100), "override without allowance is ignored")
	assert.True(t, policy.For("AutoPrudente").IsZero())
	assert.Equal(t, 100.0, policy.Apply("AutoPrudente", 100))

	wildcard := AdjustmentPolicy{Default: Adjustment{Pct: 10, Flat: 5}, Allowed: []string{"*"}}
	assert.Equal(t, 115.0, wildcard.Apply("Hertz", 100))
	assert.Equal(t, 100.0, wildcard.Apply(" autoprudente ", 100))

	var empty AdjustmentPolicy
	assert.Equal(t, 100.0, empty.Apply("Goldcar", 100))
}

func TestBookingType(t *testing.T) {
	assert.Equal(t, BookingShortTermWeekend, BookingType(1))
	assert.Equal(t, BookingShortTermWeekend, BookingType(3))
	assert.Equal(t, BookingWeekRental, BookingType(7))
	assert.Equal(t, BookingExtendedRental, BookingType(14))
	assert.Equal(t, BookingLongTermAdvance, BookingType(30))
}

func TestAnalyze(t *testing.T) {
	competitors := []float64{40, 45, 60, 70}

	t.Run("maintain", func(t *testing.T) {
		rec := Analyze(AnalysisInput{Group: "B1", Days: 7, CurrentPrice: 50, Competitors: competitors})
		assert.Equal(t, ActionMaintain, rec.Strategy)
		assert.Equal(t, PositionOptimal, rec.Position)
		assert.Equal(t, 50.0, rec.RecommendedPrice)
		assert.Equal(t, 50.0, rec.Percentile)
		assert.Equal(t, 4, rec.Competitors)
		assert.Equal(t, 52.5, rec.Median)
		assert.Equal(t, 60, rec.Confidence)
	})

	t.Run("increase margin", func(t *testing.T) {
		rec := Analyze(AnalysisInput{Group: "B1", Days: 7, CurrentPrice: 30, Competitors: competitors})
		assert.Equal(t, ActionIncreaseMargin, rec.Strategy)
		assert.Equal(t, PositionTooCheap, rec.Position)
		assert.Equal(t, 44.0, rec.RecommendedPrice)
		assert.Equal(t, 14.0, rec.PriceChange)
	})

	t.Run("decrease", func(t *testing.T) {
		rec := Analyze(AnalysisInput{Group: "B1", Days: 7, CurrentPrice: 80, Competitors: competitors})
		assert.Equal(t, ActionDecrease, rec.Strategy)
		assert.Equal(t, PositionTooExpensive, rec.Position)
		assert.Equal(t, 51.06, rec.RecommendedPrice)
		assert.InDelta(t, -28.94, rec.PriceChange, 0.001)
	})

	t.Run("no competitors", func(t *testing.T) {
		rec := Analyze(AnalysisInput{Group: "B1", Days: 7, CurrentPrice: 50, Competitors: []float64{0}})
		assert.Equal(t, ActionMaintain, rec.Strategy)
		assert.Equal(t, 0, rec.Confidence)
		assert.Equal(t, 50.0, rec.RecommendedPrice)
	})
}

func TestApplyFloor(t *testing.T) {
	floor := Floor{Daily: 50, Monthly: 900}

	rec := Analyze(AnalysisInput{Group: "D", Days: 7, CurrentPrice: 30, Competitors: []float64{40, 45, 60, 70}, Floor: floor})
	assert.True(t, rec.FloorApplied)
	assert.Equal(t, 44.0, rec.OriginalPrice)
	assert.Equal(t, 50.0, rec.AppliedMinimum)
	assert.Equal(t, MinimumDaily, rec.MinimumType)
	assert.Equal(t, 50.0, rec.RecommendedPrice)
	assert.Equal(t, 20.0, rec.PriceChange)
	assert.Contains(t, rec.Reasoning, "Price floor applied: suggested 44,00 € is below the daily minimum of 50,00 €")

	again := ApplyFloor(rec, 7, floor)
	assert.Equal(t, rec, again)

	monthly := ApplyFloor(Recommendation{CurrentPrice: 700, RecommendedPrice: 750}, 30, floor)
	assert.True(t, monthly.FloorApplied)
	assert.Equal(t, MinimumMonthly, monthly.MinimumType)
	assert.Equal(t, 900.0, monthly.RecommendedPrice)
	assert.Equal(t, "Price floor applied: suggested 750,00 € is below the monthly minimum of 900,00 €", monthly.Reasoning)

	dailyOnly := ApplyFloor(Recommendation{RecommendedPrice: 10}, 60, Floor{Daily: 20})
	assert.Equal(t, MinimumDaily, dailyOnly.MinimumType)

	untouched := ApplyFloor(Recommendation{RecommendedPrice: 10}, 7, Floor{})
	assert.False(t, untouched.FloorApplied)
	assert.Empty(t, untouched.Reasoning)
	assert.Equal(t, 10.0, untouched.RecommendedPrice)
}

func TestStrategyPrice(t *testing.T) {
	price, ok := DefaultStrategy.Price([]float64{50, 45.2, 0})
	require.True(t, ok)
	assert.Equal(t, 45.7, price)

	pct := Strategy{Type: StrategyFollowLowest, DiffType: DiffPercent, DiffValue: 10}
	price, ok = pct.Price([]float64{40, 60})
	require.True(t, ok)
	assert.Equal(t, 44.0, price)

	avg := Strategy{Type: StrategyFollowAverage, DiffType: DiffEuros, DiffValue: -1}
	price, ok = avg.Price([]float64{40, 60})
	require.True(t, ok)
	assert.Equal(t, 49.0, price)

	_, ok = DefaultStrategy.Price(nil)
	assert.False(t, ok)
	_, ok = Strategy{Type: "unknown"}.Price([]float64{1})
	assert.False(t, ok)
}
