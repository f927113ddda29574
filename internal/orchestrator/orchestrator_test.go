package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/valpere/translateme/internal"
	"github.com/valpere/translateme/internal/metrics"
	"github.com/valpere/translateme/internal/store"
	"github.com/valpere/translateme/internal/translator"
)

type mockService struct {
	nameVal       string
	translateFunc func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error)
	callCount     atomic.Int32
}

func (m *mockService) Name() string { return m.nameVal }

func (m *mockService) Translate(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	m.callCount.Add(1)
	if m.translateFunc != nil {
		return m.translateFunc(ctx, req)
	}
	return &translator.ServiceResult{ServiceName: m.nameVal, TranslatedText: "mock result"}, nil
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SubscribeOrdered(ctx context.Context, onUpdate func([]internal.TranslationRecord), onError func(error)) (internal.Subscription, error) {
	args := m.Called(ctx, onUpdate, onError)
	sub, _ := args.Get(0).(internal.Subscription)
	return sub, args.Error(1)
}

func (m *mockStore) Insert(ctx context.Context, rec internal.TranslationRecord) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

func (m *mockStore) DeleteAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockSubscription struct {
	closed atomic.Int32
}

func (s *mockSubscription) Close() error {
	s.closed.Add(1)
	return nil
}

var (
	t0        = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	enToEs    = Config{SourceLang: "en", TargetLang: "es"}
	fixedTime = WithClock(func() time.Time { return t0 })
)

func TestOrchestrator_New_DerivesLabels(t *testing.T) {
	o := New(&mockService{nameVal: "mock"}, &mockStore{}, enToEs)

	assert.Equal(t, "English", o.config.FromLabel)
	assert.Equal(t, "Spanish", o.config.ToLabel)
	assert.Equal(t, "mock", o.service.Name())
}

func TestOrchestrator_New_KeepsExplicitLabels(t *testing.T) {
	o := New(&mockService{}, &mockStore{}, Config{SourceLang: "en", TargetLang: "es", FromLabel: "EN", ToLabel: "ES"})

	assert.Equal(t, "EN", o.config.FromLabel)
	assert.Equal(t, "ES", o.config.ToLabel)
}

func TestOrchestrator_Submit_TranslatesAndInsertsOnce(t *testing.T) {
	svc := &mockService{
		nameVal: "mock",
		translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
			assert.Equal(t, "hello", req.Text)
			assert.Equal(t, "en", req.SourceLang)
			assert.Equal(t, "es", req.TargetLang)
			return &translator.ServiceResult{ServiceName: "mock", TranslatedText: "hola"}, nil
		},
	}
	st := &mockStore{}
	st.On("Insert", mock.Anything, internal.TranslationRecord{
		OriginalText:   "hello",
		TranslatedText: "hola",
		FromLanguage:   "English",
		ToLanguage:     "Spanish",
		Timestamp:      t0,
	}).Return("id-1", nil).Once()

	o := New(svc, st, enToEs, fixedTime)
	res, err := o.Submit(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, int32(1), svc.callCount.Load())
	st.AssertNumberOfCalls(t, "Insert", 1)
	st.AssertExpectations(t)

	assert.Equal(t, "hola", res.Display)
	assert.False(t, res.Stale)
	assert.Equal(t, StateIdle, res.State)
	require.NotNil(t, res.Record)
	assert.Equal(t, "hello", res.Record.OriginalText)
	assert.Empty(t, res.Record.ID)

	snap := o.State()
	assert.Equal(t, "hola", snap.Display)
	assert.False(t, snap.Loading)
}

func TestOrchestrator_Submit_EmptyIsNoop(t *testing.T) {
	svc := &mockService{}
	st := &mockStore{}

	o := New(svc, st, enToEs)
	res, err := o.Submit(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, svc.callCount.Load())
	st.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestOrchestrator_Submit_LoadingFlag(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "success"},
		{name: "network failure", err: fmt.Errorf("%w: connection refused", translator.ErrNetwork), wantErr: translator.ErrNetwork},
		{name: "decode failure", err: fmt.Errorf("%w: invalid character", translator.ErrDecoding), wantErr: translator.ErrDecoding},
		{name: "validation failure", err: translator.ErrEmptyText, wantErr: translator.ErrEmptyText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o *Orchestrator
			var loadingDuring bool

			svc := &mockService{
				nameVal: "mock",
				translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
					loadingDuring = o.State().Loading
					result := &translator.ServiceResult{ServiceName: "mock", TranslatedText: "hola"}
					if tt.err != nil {
						result.TranslatedText = ""
						result.Error = tt.err.Error()
						return result, tt.err
					}
					return result, nil
				},
			}
			st := &mockStore{}
			st.On("Insert", mock.Anything, mock.Anything).Return("id-1", nil).Maybe()

			o = New(svc, st, enToEs)

			var mu sync.Mutex
			var seen []bool
			unsubscribe := o.Subscribe(func(s Snapshot) {
				mu.Lock()
				seen = append(seen, s.Loading)
				mu.Unlock()
			})
			defer unsubscribe()

			res, err := o.Submit(context.Background(), "hello")

			assert.True(t, loadingDuring, "loading must be set while translating")
			assert.False(t, o.State().Loading, "loading must be cleared after return")

			mu.Lock()
			require.NotEmpty(t, seen)
			assert.True(t, seen[0])
			assert.False(t, seen[len(seen)-1])
			mu.Unlock()

			if tt.wantErr == nil {
				require.NoError(t, err)
				st.AssertNumberOfCalls(t, "Insert", 1)
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, "Error: "+tt.err.Error(), res.Display)
			assert.Equal(t, res.Display, o.State().Display)
			assert.Nil(t, res.Record)
			assert.Equal(t, StateIdle, res.State)
			st.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
		})
	}
}

func TestOrchestrator_Submit_PersistFailure(t *testing.T) {
	svc := &mockService{
		translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
			return &translator.ServiceResult{TranslatedText: "hola"}, nil
		},
	}
	st := &mockStore{}
	st.On("Insert", mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: disk full", store.ErrPersistence)).Once()

	o := New(svc, st, enToEs)
	res, err := o.Submit(context.Background(), "hello")

	assert.ErrorIs(t, err, store.ErrPersistence)
	assert.Equal(t, "hola", res.Display)
	assert.Equal(t, StateIdle, res.State)
	assert.False(t, o.State().Loading)
	st.AssertExpectations(t)
}

func TestOrchestrator_Submit_StaleResultKeepsNewerDisplay(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	svc := &mockService{
		translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
			if req.Text == "first" {
				close(started)
				<-release
				return &translator.ServiceResult{TranslatedText: "primero"}, nil
			}
			return &translator.ServiceResult{TranslatedText: "segundo"}, nil
		},
	}
	st := &mockStore{}
	st.On("Insert", mock.Anything, mock.Anything).Return("id", nil).Twice()

	o := New(svc, st, enToEs)

	type outcome struct {
		res Result
		err error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		res, err := o.Submit(context.Background(), "first")
		firstDone <- outcome{res, err}
	}()

	<-started
	second, err := o.Submit(context.Background(), "second")
	require.NoError(t, err)
	assert.False(t, second.Stale)
	assert.True(t, o.State().Loading, "first request is still in flight")

	close(release)
	first := <-firstDone

	require.NoError(t, first.err)
	assert.True(t, first.res.Stale)
	assert.Equal(t, "primero", first.res.Display)
	assert.Equal(t, "segundo", o.State().Display)
	assert.False(t, o.State().Loading)
	st.AssertNumberOfCalls(t, "Insert", 2)
}

func TestOrchestrator_Submit_NewerRequestWinsAfterTranslate(t *testing.T) {
	svc := &mockService{
		translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
			return &translator.ServiceResult{TranslatedText: "T(" + req.Text + ")"}, nil
		},
	}
	st := &mockStore{}
	st.On("Insert", mock.Anything, mock.Anything).Return("id", nil).Twice()

	// The clock is read after translating and before the result is shown,
	// so blocking it holds the first request in that window.
	paused := make(chan struct{})
	release := make(chan struct{})
	var clockCalls atomic.Int32
	clock := WithClock(func() time.Time {
		if clockCalls.Add(1) == 1 {
			close(paused)
			<-release
		}
		return t0
	})

	o := New(svc, st, enToEs, clock)

	type outcome struct {
		res Result
		err error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		res, err := o.Submit(context.Background(), "first")
		firstDone <- outcome{res, err}
	}()

	<-paused
	second, err := o.Submit(context.Background(), "second")
	require.NoError(t, err)
	assert.False(t, second.Stale)
	assert.Equal(t, "T(second)", o.State().Display)

	close(release)
	first := <-firstDone

	require.NoError(t, first.err)
	assert.True(t, first.res.Stale)
	assert.Equal(t, "T(second)", o.State().Display)
	st.AssertNumberOfCalls(t, "Insert", 2)
}

func TestOrchestrator_Submit_StaleErrorKeepsNewerDisplay(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	svc := &mockService{
		translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
			if req.Text == "first" {
				close(started)
				<-release
				return &translator.ServiceResult{}, fmt.Errorf("%w: timeout", translator.ErrNetwork)
			}
			return &translator.ServiceResult{TranslatedText: "segundo"}, nil
		},
	}
	st := &mockStore{}
	st.On("Insert", mock.Anything, mock.Anything).Return("id", nil).Once()

	o := New(svc, st, enToEs)

	firstErr := make(chan Result, 1)
	go func() {
		res, _ := o.Submit(context.Background(), "first")
		firstErr <- res
	}()

	<-started
	_, err := o.Submit(context.Background(), "second")
	require.NoError(t, err)

	close(release)
	first := <-firstErr

	assert.True(t, first.Stale)
	assert.Contains(t, first.Display, "Error: ")
	assert.Equal(t, "segundo", o.State().Display)
}

func TestOrchestrator_Start_MirrorsSubscription(t *testing.T) {
	sub := &mockSubscription{}
	st := &mockStore{}

	var onUpdate func([]internal.TranslationRecord)
	var onError func(error)
	st.On("SubscribeOrdered", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			onUpdate = args.Get(1).(func([]internal.TranslationRecord))
			onError = args.Get(2).(func(error))
		}).
		Return(sub, nil).Once()

	o := New(&mockService{}, st, enToEs)
	require.NoError(t, o.Start(context.Background()))
	require.NotNil(t, onUpdate)
	require.NotNil(t, onError)

	records := []internal.TranslationRecord{
		{ID: "b", OriginalText: "bye", TranslatedText: "adiós", Timestamp: t0.Add(time.Minute)},
		{ID: "a", OriginalText: "hello", TranslatedText: "hola", Timestamp: t0},
	}
	onUpdate(records)
	assert.Equal(t, records, o.State().Records)

	onError(fmt.Errorf("%w: connection reset", store.ErrPersistence))
	assert.Equal(t, records, o.State().Records, "errors keep the held list")

	assert.ErrorIs(t, o.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.Equal(t, int32(1), sub.closed.Load())
}

func TestOrchestrator_Start_FailureDoesNotBlock(t *testing.T) {
	st := &mockStore{}
	st.On("SubscribeOrdered", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, store.ErrPersistence).Once()
	st.On("Insert", mock.Anything, mock.Anything).Return("id-1", nil).Once()

	o := New(&mockService{}, st, enToEs)

	err := o.Start(context.Background())
	assert.ErrorIs(t, err, store.ErrPersistence)

	_, err = o.Submit(context.Background(), "hello")
	assert.NoError(t, err)
	assert.NoError(t, o.Close())
	st.AssertExpectations(t)
}

func TestOrchestrator_Close_BeforeStart(t *testing.T) {
	o := New(&mockService{}, &mockStore{}, enToEs)
	assert.NoError(t, o.Close())
}

func TestOrchestrator_ClearHistory(t *testing.T) {
	st := &mockStore{}
	st.On("DeleteAll", mock.Anything).Return(3, nil).Once()

	o := New(&mockService{}, st, enToEs)
	n, err := o.ClearHistory(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	st.AssertExpectations(t)
}

func TestOrchestrator_ClearHistory_Failure(t *testing.T) {
	st := &mockStore{}
	st.On("DeleteAll", mock.Anything).Return(0, fmt.Errorf("%w: database is locked", store.ErrPersistence)).Once()

	o := New(&mockService{}, st, enToEs)
	_, err := o.ClearHistory(context.Background())

	assert.ErrorIs(t, err, store.ErrPersistence)
}

func TestOrchestrator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	calls := 0
	svc := &mockService{
		nameVal: "mock",
		translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
			calls++
			if calls == 2 {
				return &translator.ServiceResult{}, translator.ErrEmptyResponse
			}
			return &translator.ServiceResult{TranslatedText: "hola"}, nil
		},
	}
	st := &mockStore{}
	st.On("Insert", mock.Anything, mock.Anything).Return("id-1", nil)

	o := New(svc, st, enToEs, WithMetrics(m))
	_, _ = o.Submit(context.Background(), "hello")
	_, _ = o.Submit(context.Background(), "hello")

	expected := `
# HELP translateme_translations_total Total number of translate calls by service and outcome.
# TYPE translateme_translations_total counter
translateme_translations_total{outcome="error",service="mock"} 1
translateme_translations_total{outcome="success",service="mock"} 1
# HELP translateme_history_operations_total Total number of history store operations by kind and outcome.
# TYPE translateme_history_operations_total counter
translateme_history_operations_total{op="insert",outcome="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"translateme_translations_total", "translateme_history_operations_total"))
}

func TestOrchestrator_WithStore(t *testing.T) {
	s, err := store.New(t.TempDir()+"/history.db", store.WithPollInterval(0))
	require.NoError(t, err)
	defer s.Close()

	translations := map[string]string{"hello": "hola", "bye": "adiós"}
	svc := &mockService{
		translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
			out, ok := translations[req.Text]
			if !ok {
				return &translator.ServiceResult{}, errors.New("unknown text")
			}
			return &translator.ServiceResult{TranslatedText: out}, nil
		},
	}

	var tick atomic.Int64
	clock := WithClock(func() time.Time {
		return t0.Add(time.Duration(tick.Add(1)) * time.Second)
	})

	o := New(svc, s, enToEs, clock)
	require.NoError(t, o.Start(context.Background()))
	defer o.Close()

	_, err = o.Submit(context.Background(), "hello")
	require.NoError(t, err)
	_, err = o.Submit(context.Background(), "bye")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(o.State().Records) == 2
	}, 2*time.Second, 10*time.Millisecond)

	records := o.State().Records
	assert.Equal(t, "bye", records[0].OriginalText)
	assert.Equal(t, "adiós", records[0].TranslatedText)
	assert.Equal(t, "hello", records[1].OriginalText)
	assert.Equal(t, "Spanish", records[1].ToLanguage)
	assert.NotEmpty(t, records[0].ID)
	assert.NotEqual(t, records[0].ID, records[1].ID)

	n, err := o.ClearHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Eventually(t, func() bool {
		return len(o.State().Records) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
