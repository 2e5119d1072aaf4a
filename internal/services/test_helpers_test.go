package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"salesforecast/internal/model"
)

// MockModelSource is a mock for the ModelSource interface
type MockModelSource struct {
	mock.Mock
}

func (m *MockModelSource) Get(ctx context.Context) (model.Model, error) {
	args := m.Called(ctx)
	if mdl := args.Get(0); mdl != nil {
		return mdl.(model.Model), args.Error(1)
	}
	return nil, args.Error(1)
}
