package crawler

import (
	"context"
	"sync/atomic"
)

const offersPage = `<html><body><script>
var cars = [
  {car: 'Fiat 500 ou similar', prv: 'GMO', priceStr: '70,00 €', grp: 'B2'},
  {car: 'Renault Clio', prv: 'CEN', priceStr: '84,50 €', grp: 'D'}
];
</script></body></html>`

const landingPage = `<html><head><title>Aluguer de carros baratos</title></head>
<body><h1>Compare car rental prices</h1><form id="booking"></form></body></html>`

const emptyResultsPage = `<html><body><section class="newcarlist"></section></body></html>`

// MockStrategy is a scripted Strategy. respond gets the 1-based call number.
type MockStrategy struct {
	name       string
	respond    func(ctx context.Context, call int) (*Page, error)
	applicable func(req Request) bool
	calls      int64
}

func NewMockStrategy(name string, respond func(ctx context.Context, call int) (*Page, error)) *MockStrategy {
	return &MockStrategy{name: name, respond: respond}
}

func (m *MockStrategy) Name() string { return m.name }

func (m *MockStrategy) Fetch(ctx context.Context, req Request) (*Page, error) {
	call := int(atomic.AddInt64(&m.calls, 1))
	return m.respond(ctx, call)
}

func (m *MockStrategy) Calls() int {
	return int(atomic.LoadInt64(&m.calls))
}

// MockApplicableStrategy adds Applicable to MockStrategy
type MockApplicableStrategy struct {
	*MockStrategy
}

func (m MockApplicableStrategy) Applicable(req Request) bool {
	return m.applicable(req)
}

// MockGatedStrategy only runs after the named strategy yielded no records
type MockGatedStrategy struct {
	*MockStrategy
	after string
}

func (m MockGatedStrategy) After() string { return m.after }

// MockBudget counts dispatches
type MockBudget struct {
	acquired int64
}

func (b *MockBudget) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	atomic.AddInt64(&b.acquired, 1)
	return nil
}

func (b *MockBudget) Acquired() int {
	return int(atomic.LoadInt64(&b.acquired))
}

func page(body string) func(ctx context.Context, call int) (*Page, error) {
	return func(ctx context.Context, call int) (*Page, error) {
		return &Page{URL: "https://www.carjet.com/do/list/pt?s=abc", Body: body}, nil
	}
}

func fail(err error) func(ctx context.Context, call int) (*Page, error) {
	return func(ctx context.Context, call int) (*Page, error) {
		return nil, err
	}
}
