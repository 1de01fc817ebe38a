package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/resource-catalogue/internal/logging"
)

type mockConn struct {
	mock.Mock
}

func (m *mockConn) Publish(subject string, data []byte) error {
	return m.Called(subject, data).Error(0)
}

func (m *mockConn) FlushTimeout(timeout time.Duration) error {
	return m.Called(timeout).Error(0)
}

func (m *mockConn) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *mockConn) Close() {
	m.Called()
}

func newPublisher(nc Conn) *NATSPublisher {
	p := NewNATSPublisher(nc, "transformed", logging.Discard())
	p.backoff = time.Millisecond
	return p
}

func TestOrderEvent(t *testing.T) {
	e := OrderEvent("ws", "bucket", []string{"a", "b"})
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "ws/order_item",
		"workspace": "ws",
		"bucket_name": "bucket",
		"added_keys": ["a", "b"],
		"updated_keys": [],
		"deleted_keys": [],
		"source": "/",
		"target": "/"
	}`, string(data))
}

func TestDatasetEvent(t *testing.T) {
	e := DatasetEvent("ws", "bucket", "delete_item", nil, nil, []string{"ws/saved-data/x.json"})
	assert.Equal(t, "ws/delete_item", e.ID)
	assert.Equal(t, "user-datasets/ws", e.Target)
	assert.Equal(t, "ws", e.Source)
	assert.NotNil(t, e.AddedKeys)
	assert.Equal(t, []string{"ws/saved-data/x.json"}, e.DeletedKeys)
}

func TestNATSPublisher_Publish(t *testing.T) {
	nc := new(mockConn)
	nc.On("Publish", "transformed", mock.MatchedBy(func(data []byte) bool {
		var e Event
		return json.Unmarshal(data, &e) == nil && e.ID == "ws/order_item"
	})).Return(nil).Once()
	nc.On("FlushTimeout", 2*time.Second).Return(nil).Once()

	err := newPublisher(nc).Publish(context.Background(), OrderEvent("ws", "b", nil))
	require.NoError(t, err)
	nc.AssertExpectations(t)
}

func TestNATSPublisher_RetriesThenSucceeds(t *testing.T) {
	nc := new(mockConn)
	nc.On("Publish", "transformed", mock.Anything).Return(errors.New("boom")).Once()
	nc.On("Publish", "transformed", mock.Anything).Return(nil).Once()
	nc.On("FlushTimeout", mock.Anything).Return(nil).Once()

	require.NoError(t, newPublisher(nc).Publish(context.Background(), OrderEvent("ws", "b", nil)))
	nc.AssertNumberOfCalls(t, "Publish", 2)
}

func TestNATSPublisher_GivesUp(t *testing.T) {
	nc := new(mockConn)
	nc.On("Publish", "transformed", mock.Anything).Return(errors.New("boom"))

	err := newPublisher(nc).Publish(context.Background(), OrderEvent("ws", "b", nil))
	assert.Error(t, err)
	nc.AssertNumberOfCalls(t, "Publish", publishAttempts)
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	nc := new(mockConn)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newPublisher(nc).Publish(ctx, OrderEvent("ws", "b", nil))
	assert.ErrorIs(t, err, context.Canceled)
	nc.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestNATSPublisher_Close(t *testing.T) {
	nc := new(mockConn)
	nc.On("IsConnected").Return(true)
	nc.On("Close").Return()

	newPublisher(nc).Close()
	nc.AssertExpectations(t)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(logging.Discard())
	assert.NoError(t, p.Publish(context.Background(), OrderEvent("ws", "b", nil)))
	p.Close()
}
