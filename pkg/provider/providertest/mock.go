package providertest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"replicafs/pkg/provider"
)

// Mock is a testify mock implementation of provider.Provider.
type Mock struct {
	mock.Mock
}

func (m *Mock) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *Mock) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Mock) Store(ctx context.Context, data []byte, filename, credential string) (provider.Receipt, error) {
	args := m.Called(ctx, data, filename, credential)
	return args.Get(0).(provider.Receipt), args.Error(1)
}

func (m *Mock) Retrieve(ctx context.Context, filename, credential string) ([]byte, error) {
	args := m.Called(ctx, filename, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *Mock) Delete(ctx context.Context, filename string) error {
	args := m.Called(ctx, filename)
	return args.Error(0)
}

func (m *Mock) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *Mock) Exists(ctx context.Context, filename string) bool {
	args := m.Called(ctx, filename)
	return args.Bool(0)
}

func (m *Mock) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}
