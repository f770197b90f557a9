package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lumenlend/tvlscan/pkg/lendmarket"
	"github.com/lumenlend/tvlscan/pkg/suirpc"
)

// --- Sui RPC Mock ---

type mockRPCClient struct {
	mock.Mock
}

func (m *mockRPCClient) QueryEvents(ctx context.Context, filter suirpc.EventFilter, cursor *suirpc.EventCursor, limit int, descending bool) (*suirpc.EventPage, error) {
	args := m.Called(ctx, filter, cursor, limit, descending)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*suirpc.EventPage), args.Error(1)
}

func (m *mockRPCClient) GetObject(ctx context.Context, id string, opts suirpc.ObjectDataOptions) (*suirpc.ObjectData, error) {
	args := m.Called(ctx, id, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*suirpc.ObjectData), args.Error(1)
}

func (m *mockRPCClient) MultiGetObjects(ctx context.Context, ids []string, opts suirpc.ObjectDataOptions) ([]*suirpc.ObjectData, error) {
	args := m.Called(ctx, ids, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*suirpc.ObjectData), args.Error(1)
}

// --- Market Mock ---

type mockMarketClient struct {
	mock.Mock
}

func (m *mockMarketClient) Initialize(ctx context.Context, marketID, marketType string) error {
	args := m.Called(ctx, marketID, marketType)
	return args.Error(0)
}

func (m *mockMarketClient) GetObligation(ctx context.Context, positionID string) (*lendmarket.Obligation, error) {
	args := m.Called(ctx, positionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lendmarket.Obligation), args.Error(1)
}
