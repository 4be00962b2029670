package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/tradingdesk/internal/domain"
)

// MockGateway is an in-memory MarketGateway for testing.
// Prices and positions are set directly; submitted orders are recorded.
type MockGateway struct {
	mu         sync.RWMutex
	quotes     map[string]*domain.Quote
	bars       map[string][]domain.Bar
	account    domain.AccountSnapshot
	positions  []domain.Position
	marketOpen bool
	orders     []domain.OrderResult
	err        error
	orderErr   error
}

// NewMockGateway creates a mock gateway with an open market and empty account.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		quotes:     make(map[string]*domain.Quote),
		bars:       make(map[string][]domain.Bar),
		marketOpen: true,
	}
}

// SetPrice sets the quote price for a symbol
func (m *MockGateway) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[symbol] = &domain.Quote{Symbol: symbol, Price: price, PreviousClose: price, Timestamp: time.Now()}
}

// SetBars sets the bars returned for a symbol
func (m *MockGateway) SetBars(symbol string, bars []domain.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = bars
}

// SetAccount sets the account snapshot
func (m *MockGateway) SetAccount(account domain.AccountSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = account
}

// SetPositions sets the positions to return
func (m *MockGateway) SetPositions(positions []domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = positions
}

// SetMarketOpen sets the market status
func (m *MockGateway) SetMarketOpen(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketOpen = open
}

// SetError makes every call fail with err
func (m *MockGateway) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetOrderError makes SubmitOrder fail with err
func (m *MockGateway) SetOrderError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderErr = err
}

// Orders returns the orders submitted so far
func (m *MockGateway) Orders() []domain.OrderResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.OrderResult, len(m.orders))
	copy(out, m.orders)
	return out
}

// GetQuote returns the configured quote
func (m *MockGateway) GetQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	q, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s: %w", symbol, domain.ErrGatewayUnavailable)
	}
	cp := *q
	return &cp, nil
}

// GetBars returns the configured bars
func (m *MockGateway) GetBars(_ context.Context, symbol string, _ domain.BarRange) ([]domain.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.bars[symbol], nil
}

// GetAccountSnapshot returns the configured account
func (m *MockGateway) GetAccountSnapshot(_ context.Context) (*domain.AccountSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	a := m.account
	return &a, nil
}

// GetPositions returns the configured positions
func (m *MockGateway) GetPositions(_ context.Context) ([]domain.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.positions, nil
}

// SubmitOrder records the order
func (m *MockGateway) SubmitOrder(_ context.Context, symbol string, quantity int, side domain.TradeAction) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.orderErr != nil {
		return nil, m.orderErr
	}
	res := domain.OrderResult{
		OrderID:     fmt.Sprintf("mock-%d", len(m.orders)+1),
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Status:      "filled",
		SubmittedAt: time.Now(),
	}
	m.orders = append(m.orders, res)
	return &res, nil
}

// IsMarketOpen returns the configured market status
func (m *MockGateway) IsMarketOpen(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return false, m.err
	}
	return m.marketOpen, nil
}

// MockTextGenerator replies from a script, one reply per call. When the script
// runs out the last reply repeats.
type MockTextGenerator struct {
	mu       sync.Mutex
	provider domain.ProviderName
	replies  []string
	errs     []error
	calls    [][]domain.ChatMessage
}

// NewMockTextGenerator creates a generator for provider scripted with replies.
func NewMockTextGenerator(provider domain.ProviderName, replies ...string) *MockTextGenerator {
	return &MockTextGenerator{provider: provider, replies: replies}
}

// FailNext queues errors returned before any scripted reply.
func (m *MockTextGenerator) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

// Calls returns the conversations received so far
func (m *MockTextGenerator) Calls() [][]domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate returns the next scripted reply
func (m *MockTextGenerator) Generate(ctx context.Context, messages []domain.ChatMessage, _ domain.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, messages)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", err
	}
	if len(m.replies) == 0 {
		return "", fmt.Errorf("mock generator has no replies")
	}
	idx := len(m.calls) - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	return m.replies[idx], nil
}

// Provider returns the configured provider name
func (m *MockTextGenerator) Provider() domain.ProviderName {
	return m.provider
}
