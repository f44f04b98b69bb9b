package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sjsage522/carpriceworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormStrategyReplaysBookingForm(t *testing.T) {
	var gotForm map[string]string
	var gotCookies map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/do/list/pt" {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"pickup":      r.PostForm.Get("pickup"),
			"pickup_date": r.PostForm.Get("pickup_date"),
		}
		gotCookies = map[string]string{}
		for _, c := range r.Cookies() {
			gotCookies[c.Name] = c.Value
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(offersPage))
	}))
	defer server.Close()

	s := NewFormStrategy(HTTPOptions{BaseURL: server.URL})
	page, err := s.Fetch(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Contains(t, page.Body, "var cars")
	assert.Equal(t, "Faro Aeroporto (FAO)", gotForm["pickup"])
	assert.Equal(t, "01/07/2025", gotForm["pickup_date"])
	assert.Equal(t, "pt", gotCookies[LocaleCookie])
	assert.Equal(t, "EUR", gotCookies[CurrencyCookie])
}

func TestFormStrategyClassifiesStatus(t *testing.T) {
	status := http.StatusServiceUnavailable
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	s := NewFormStrategy(HTTPOptions{BaseURL: server.URL})
	_, err := s.Fetch(context.Background(), testRequest())
	assert.True(t, errors.Is(err, errors.ErrorTypeTransientFetch))

	status = http.StatusNotFound
	_, err = s.Fetch(context.Background(), testRequest())
	assert.True(t, errors.Is(err, errors.ErrorTypeStructuralParse))

	_, err = NewFormStrategy(HTTPOptions{}).Fetch(context.Background(), testRequest())
	assert.True(t, errors.Is(err, errors.ErrorTypeConfiguration))
}

func TestAPIStrategyRacesLocaleVariant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/do/list/pt":
			_, _ = w.Write([]byte(landingPage))
		case "/do/list/en":
			_, _ = w.Write([]byte(offersPage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := NewAPIStrategy(HTTPOptions{BaseURL: server.URL}, nil)
	req := testRequest()
	assert.False(t, s.Applicable(req))

	req.Locale = "en"
	req.URLs = []string{server.URL + "/do/list/pt?s=abc&b=def"}
	require.True(t, s.Applicable(req))

	page, err := s.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, page.URL, "/do/list/en")
	assert.Contains(t, page.Body, "var cars")
}

func TestAPIStrategyEmptyResultsDoNotWinRace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/do/list/pt":
			_, _ = w.Write([]byte(emptyResultsPage))
		case "/do/list/en":
			time.Sleep(50 * time.Millisecond)
			_, _ = w.Write([]byte(offersPage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	budget := &MockBudget{}
	s := NewAPIStrategy(HTTPOptions{BaseURL: server.URL, Budget: budget}, nil)
	req := testRequest()
	req.Locale = "en"
	req.URLs = []string{server.URL + "/do/list/pt?s=abc&b=def"}

	page, err := s.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, page.URL, "/do/list/en")
	assert.Contains(t, page.Body, "var cars")
	assert.Equal(t, 1, budget.Acquired(), "the locale variant is paced")
}

func TestAPIStrategyOnlyEmptyResultsIsSemanticEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(emptyResultsPage))
	}))
	defer server.Close()

	s := NewAPIStrategy(HTTPOptions{BaseURL: server.URL}, nil)
	req := testRequest()
	req.Locale = "en"
	req.URLs = []string{server.URL + "/do/list/pt?s=abc"}

	_, err := s.Fetch(context.Background(), req)
	assert.True(t, errors.Is(err, errors.ErrorTypeSemanticEmpty))
}

func TestAPIStrategyAllLandingIsSemanticEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(landingPage))
	}))
	defer server.Close()

	s := NewAPIStrategy(HTTPOptions{BaseURL: server.URL}, nil)
	req := testRequest()
	req.URLs = []string{server.URL + "/do/list/pt?s=abc"}

	_, err := s.Fetch(context.Background(), req)
	assert.True(t, errors.Is(err, errors.ErrorTypeSemanticEmpty))
}

func TestChainOverHTTPFixture(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(offersPage))
			return
		}
		_, _ = w.Write([]byte(landingPage))
	}))
	defer server.Close()

	opts := HTTPOptions{BaseURL: server.URL}
	detector := NewLandingDetector(nil)
	c, _ := newTestChain(&MockBudget{}, NewAPIStrategy(opts, detector), NewFormStrategy(opts))

	req := testRequest()
	req.URLs = []string{server.URL + "/do/list/pt?s=abc"}
	res := c.Run(context.Background(), req)

	require.True(t, res.OK())
	assert.Equal(t, StrategyForm, res.Strategy)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, OutcomeEmpty, res.Attempts[0].Outcome)
	assert.Len(t, res.Offers, 2)
}
