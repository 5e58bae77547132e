package events

import (
	"context"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"

	"github.com/crontabber/crontabber/internal/corelog"
)

type recordingEmitter struct {
	events []cloudevents.Event
}

func (r *recordingEmitter) Emit(_ context.Context, event cloudevents.Event) error {
	r.events = append(r.events, event)
	return nil
}

func TestNew_SetsTypeSourceAndData(t *testing.T) {
	event := New(TypeJobStarted, map[string]any{"job": "a"})
	assert.Equal(t, TypeJobStarted, event.Type())
	assert.Equal(t, Source, event.Source())
	assert.NotEmpty(t, event.ID())
}

func TestEmit_NoopOnNilEmitter(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, corelog.Nop{}, TypeJobSucceeded, nil)
	})
}

func TestEmit_DeliversToEmitter(t *testing.T) {
	rec := &recordingEmitter{}
	Emit(context.Background(), rec, corelog.Nop{}, TypeJobSucceeded, map[string]any{"job": "a"})
	assert.Len(t, rec.events, 1)
	assert.Equal(t, TypeJobSucceeded, rec.events[0].Type())
}

func TestLogSink_Emit(t *testing.T) {
	sink := LogSink{Logger: corelog.Nop{}}
	event := New(TypeInvocation, map[string]any{"jobs": 3})
	assert.NoError(t, sink.Emit(context.Background(), event))
}
