package orchestrator

import (
	"context"

	"github.com/qmuntal/stateless"

	"github.com/valpere/translateme/internal/logger"
)

// RequestState is the lifecycle position of a single translate-and-save request.
type RequestState string

const (
	StateIdle       RequestState = "Idle"
	StateLoading    RequestState = "Loading"
	StatePersisting RequestState = "Persisting"
)

type requestTrigger string

const (
	triggerSubmit          requestTrigger = "Submit"
	triggerTranslated      requestTrigger = "Translated"
	triggerTranslateFailed requestTrigger = "TranslateFailed"
	triggerPersisted       requestTrigger = "Persisted"
	triggerPersistFailed   requestTrigger = "PersistFailed"
)

// newRequestMachine builds the state machine of one request:
//
//	Idle -Submit-> Loading -Translated-> Persisting -Persisted|PersistFailed-> Idle
//	               Loading -TranslateFailed-> Idle
func newRequestMachine(generation uint64) *stateless.StateMachine {
	sm := stateless.NewStateMachine(StateIdle)

	sm.Configure(StateIdle).
		Permit(triggerSubmit, StateLoading)

	sm.Configure(StateLoading).
		Permit(triggerTranslated, StatePersisting).
		Permit(triggerTranslateFailed, StateIdle)

	sm.Configure(StatePersisting).
		Permit(triggerPersisted, StateIdle).
		Permit(triggerPersistFailed, StateIdle)

	sm.OnTransitioned(func(ctx context.Context, t stateless.Transition) {
		logger.L.Debug("request transition",
			"generation", generation,
			"trigger", t.Trigger,
			"from", t.Source,
			"to", t.Destination)
	})

	return sm
}

// fire moves sm along trigger. The transitions above are fixed, so a failure
// here is a programming error and is only logged.
func fire(ctx context.Context, sm *stateless.StateMachine, trigger requestTrigger) {
	if err := sm.FireCtx(ctx, trigger); err != nil {
		logger.L.Error("request state machine", "trigger", trigger, "error", err)
	}
}

func currentState(sm *stateless.StateMachine) RequestState {
	st, ok := sm.MustState().(RequestState)
	if !ok {
		return StateIdle
	}
	return st
}
