package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceSight/internal/domain/models"
	domsvc "PriceSight/internal/domain/service"
)

func TestStoreLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	s := NewStore(LoaderFunc(func(context.Context) (domsvc.Model, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &fakeModel{window: 60, features: 1}, nil
	}))
	assert.False(t, s.Loaded())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := s.Model(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, m)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	assert.True(t, s.Loaded())

	_, err := s.Model(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads.Load())
}

func TestStoreRetriesAfterFailure(t *testing.T) {
	var loads atomic.Int32
	s := NewStore(LoaderFunc(func(context.Context) (domsvc.Model, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("disk not ready")
		}
		return &fakeModel{window: 60, features: 1}, nil
	}))

	_, err := s.Model(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrModelLoad))
	assert.False(t, s.Loaded())

	m, err := s.Model(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Equal(t, int32(2), loads.Load())
}

func TestStoreFileLoaderMissing(t *testing.T) {
	s := NewStore(FileLoader{Path: "/nonexistent/model.json"})
	_, err := s.Model(context.Background())
	assert.True(t, errors.Is(err, models.ErrModelLoad))
}

func TestStoreFailedLoadSharedAcrossWaiters(t *testing.T) {
	s := NewStore(LoaderFunc(func(context.Context) (domsvc.Model, error) {
		time.Sleep(20 * time.Millisecond)
		return nil, errors.New("disk not ready")
	}))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Model(context.Background())
			var fe *models.ForecastError
			if assert.True(t, errors.As(err, &fe)) {
				errs[i] = fe.WithStage(models.StagePredictTest)
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		var fe *models.ForecastError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, models.StagePredictTest, fe.Stage)
	}
	_, err := s.Model(context.Background())
	var fe *models.ForecastError
	require.True(t, errors.As(err, &fe))
	assert.Empty(t, fe.Stage)
}
