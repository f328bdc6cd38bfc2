package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/callgrind-analysis/internal/repository"
	"github.com/callgrind-analysis/pkg/model"
)

// MockProfileRepository is a mock implementation of the ProfileRepository interface.
type MockProfileRepository struct {
	mock.Mock
}

// SaveProfile mocks the SaveProfile method.
func (m *MockProfileRepository) SaveProfile(ctx context.Context, meta repository.ProfileMeta, summary *model.ProfileSummary) (*repository.ProfileRecord, error) {
	args := m.Called(ctx, meta, summary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ProfileRecord), args.Error(1)
}

// GetProfile mocks the GetProfile method.
func (m *MockProfileRepository) GetProfile(ctx context.Context, uuid string) (*repository.ProfileRecord, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ProfileRecord), args.Error(1)
}

// ListProfiles mocks the ListProfiles method.
func (m *MockProfileRepository) ListProfiles(ctx context.Context, limit int) ([]*repository.ProfileRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.ProfileRecord), args.Error(1)
}

// TopFunctions mocks the TopFunctions method.
func (m *MockProfileRepository) TopFunctions(ctx context.Context, profileID uint64, limit int) ([]*repository.FunctionRecord, error) {
	args := m.Called(ctx, profileID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.FunctionRecord), args.Error(1)
}

// LoadSummary mocks the LoadSummary method.
func (m *MockProfileRepository) LoadSummary(ctx context.Context, uuid string) (*model.ProfileSummary, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProfileSummary), args.Error(1)
}

// DeleteProfile mocks the DeleteProfile method.
func (m *MockProfileRepository) DeleteProfile(ctx context.Context, uuid string) error {
	args := m.Called(ctx, uuid)
	return args.Error(0)
}

// ExpectSaveProfile sets up an expectation for SaveProfile with the given UUID.
func (m *MockProfileRepository) ExpectSaveProfile(uuid string, err error) *mock.Call {
	matcher := mock.MatchedBy(func(meta repository.ProfileMeta) bool { return meta.UUID == uuid })
	var record *repository.ProfileRecord
	if err == nil {
		record = &repository.ProfileRecord{UUID: uuid}
	}
	return m.On("SaveProfile", mock.Anything, matcher, mock.Anything).Return(record, err)
}

var _ repository.ProfileRepository = (*MockProfileRepository)(nil)
