// Package mocks provides test doubles for the youtube client.
package mocks

import (
	"context"

	youtube "github.com/sells-group/creator-credit/pkg/youtube"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Channel provides a mock function with given fields: ctx, channelID, maxVideos
func (_m *MockClient) Channel(ctx context.Context, channelID string, maxVideos int) (*youtube.Channel, error) {
	ret := _m.Called(ctx, channelID, maxVideos)

	if len(ret) == 0 {
		panic("no return value specified for Channel")
	}

	var r0 *youtube.Channel
	if rf, ok := ret.Get(0).(func(context.Context, string, int) *youtube.Channel); ok {
		r0 = rf(ctx, channelID, maxVideos)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*youtube.Channel)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, int) error); ok {
		r1 = rf(ctx, channelID, maxVideos)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
