package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sand/solnests/backend/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuditDispatcherWritesInBackground(t *testing.T) {
	recorder := new(mockRecorder)
	record := entities.TransferRecord{Signature: "sig-1", PlanLabel: goldenNest}
	recorder.On("Append", mock.Anything, record).Return(nil).Once()

	dispatcher := NewAuditDispatcher(testLogger(), recorder, time.Second)
	dispatcher.Record(record)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, dispatcher.Wait(ctx))
	recorder.AssertExpectations(t)
}

func TestAuditDispatcherSwallowsErrors(t *testing.T) {
	recorder := new(mockRecorder)
	recorder.On("Append", mock.Anything, mock.Anything).Return(errors.New("duplicate key"))

	dispatcher := NewAuditDispatcher(testLogger(), recorder, 0)
	dispatcher.Record(entities.TransferRecord{Signature: "sig-2"})
	dispatcher.Record(entities.TransferRecord{Signature: "sig-3"})

	require.NoError(t, dispatcher.Wait(context.Background()))
	recorder.AssertNumberOfCalls(t, "Append", 2)
}

func TestAuditDispatcherWithoutRecorder(t *testing.T) {
	dispatcher := NewAuditDispatcher(testLogger(), nil, time.Second)
	dispatcher.Record(entities.TransferRecord{Signature: "sig-4"})

	assert.NoError(t, dispatcher.Wait(context.Background()))
}

func TestAuditDispatcherWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	recorder := new(mockRecorder)
	recorder.On("Append", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		<-release
	})

	dispatcher := NewAuditDispatcher(testLogger(), recorder, time.Minute)
	dispatcher.Record(entities.TransferRecord{Signature: "sig-5"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, dispatcher.Wait(ctx), context.DeadlineExceeded)
}
