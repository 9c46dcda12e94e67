package checkout

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const mockSessionPrefix = "cs_mock_"

// MockProvider fabricates session ids locally and points at a mock page.
type MockProvider struct {
	BaseURL string
	NewID   func() string
}

func NewMockProvider(baseURL string) *MockProvider {
	return &MockProvider{BaseURL: baseURL}
}

func (*MockProvider) Name() string {
	return ProviderNameMock
}

func (p *MockProvider) CreateSession(_ context.Context, _ SessionInput) (Session, error) {
	id := p.newID()
	return Session{
		ID:  id,
		URL: strings.TrimRight(p.BaseURL, "/") + "/" + id,
	}, nil
}

func (p *MockProvider) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return mockSessionPrefix + hex[:24]
}
