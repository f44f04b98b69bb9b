package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sjsage522/carpriceworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "Faro Aeroporto (FAO)", NormalizeLocation("  faro "))
	assert.Equal(t, "Albufeira Cidade", NormalizeLocation("Albufeira"))
	assert.Equal(t, "Lisboa Aeroporto (LIS)", NormalizeLocation("Lisbon"))
	assert.Equal(t, "Porto Aeroporto (OPO)", NormalizeLocation("porto"))
	assert.Equal(t, "Vilamoura Marina", NormalizeLocation("Vilamoura   Marina"))
}

func TestSearchURLAndTokens(t *testing.T) {
	assert.Equal(t, "https://www.carjet.com/do/list/pt", SearchURL("https://www.carjet.com/", "pt-PT"))
	assert.Equal(t, "https://www.carjet.com/do/list/en", SearchURL("https://www.carjet.com", "EN"))
	assert.Equal(t, "https://www.carjet.com/do/list/pt", SearchURL("https://www.carjet.com", ""))

	assert.True(t, HasSessionTokens("https://www.carjet.com/do/list/pt?s=abc&b=def"))
	assert.True(t, HasSessionTokens("https://www.carjet.com/do/list/en?_=1718000000"))
	assert.False(t, HasSessionTokens("https://www.carjet.com/do/list/pt"))
	assert.False(t, HasSessionTokens("https://www.carjet.com/pt?s=abc"))
	assert.False(t, HasSessionTokens("::not a url"))
}

func TestLocaleVariant(t *testing.T) {
	got, ok := LocaleVariant("https://www.carjet.com/do/list/pt?s=abc&b=def", "en")
	require.True(t, ok)
	assert.Equal(t, "https://www.carjet.com/do/list/en?s=abc&b=def", got)

	_, ok = LocaleVariant("https://www.carjet.com/do/list/pt?s=abc", "pt")
	assert.False(t, ok)
	_, ok = LocaleVariant("https://www.carjet.com/pt", "en")
	assert.False(t, ok)
}

func TestRequestDaysAndKey(t *testing.T) {
	req := testRequest()
	assert.Equal(t, 7, req.Days())

	req.Dropoff = req.Pickup.Add(30 * time.Hour)
	assert.Equal(t, 2, req.Days())
	req.Dropoff = req.Pickup
	assert.Equal(t, 1, req.Days())

	a := testRequest()
	b := testRequest()
	b.Location = "  FARO"
	b.ForceRefresh = true
	b.URLs = []string{"https://www.carjet.com/do/list/pt?s=x"}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "carjet:faro_aeroporto_(fao):202507011000:202507081000:pt:EUR", a.Key())

	b.Currency = "gbp"
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestFormValues(t *testing.T) {
	v := FormValues(testRequest())
	assert.Equal(t, "Faro Aeroporto (FAO)", v.Get("pickup"))
	assert.Equal(t, "01/07/2025", v.Get("pickup_date"))
	assert.Equal(t, "10:00", v.Get("pickup_time"))
	assert.Equal(t, "08/07/2025", v.Get("dropoff_date"))
	assert.Equal(t, "EUR", v.Get("currency"))
	assert.Equal(t, "pt", v.Get("lang"))
}

func TestLandingDetector(t *testing.T) {
	d := NewLandingDetector(nil)

	landing, reason := d.Detect(&Page{Body: landingPage})
	assert.True(t, landing)
	assert.Contains(t, reason, "landing marker")

	landing, _ = d.Detect(&Page{Body: offersPage})
	assert.False(t, landing)

	landing, reason = d.Detect(&Page{
		URL:      "https://www.carjet.com/do/list/pt?s=abc",
		FinalURL: "https://www.carjet.com/pt",
		Body:     "<html><body><p>Bem-vindo</p></body></html>",
	})
	assert.True(t, landing)
	assert.Contains(t, reason, "redirected")

	landing, reason = d.Detect(&Page{Body: "   "})
	assert.True(t, landing)
	assert.Equal(t, "empty body", reason)

	custom := NewLandingDetector([]string{"Bem-vindo"})
	landing, _ = custom.Detect(&Page{Body: "<html><body><p>Bem-vindo</p></body></html>"})
	assert.True(t, landing)
	landing, _ = custom.Detect(&Page{Body: landingPage})
	assert.False(t, landing, "custom markers replace the defaults")
}

func TestRaceURLsFirstSuccessWins(t *testing.T) {
	var cancelled int64
	page, err := RaceURLs(context.Background(), []string{"slow", "fast"}, func(ctx context.Context, u string) (*Page, error) {
		if u == "slow" {
			select {
			case <-ctx.Done():
				atomic.AddInt64(&cancelled, 1)
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
				return &Page{URL: u}, nil
			}
		}
		return &Page{URL: u}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fast", page.URL)
	assert.Equal(t, int64(1), atomic.LoadInt64(&cancelled))
}

func TestRaceURLsAllFail(t *testing.T) {
	_, err := RaceURLs(context.Background(), []string{"a", "b"}, func(ctx context.Context, u string) (*Page, error) {
		return nil, errors.NewTransient("test", fmt.Sprintf("%s down", u), nil)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeTransientFetch))
	assert.True(t, strings.Contains(err.Error(), "down"))

	_, err = RaceURLs(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, errors.ErrorTypeValidation))
}
