// Package events emits job lifecycle events as CloudEvents, mirroring the
// teacher's reverse-DNS event-type convention (com.modular.scheduler.* there,
// com.crontabber.* here). Emission is optional: a nil Emitter is valid and the
// runner simply skips it, so a bare CLI invocation with no configured sink
// needs nothing extra.
package events

import (
	"context"
	"encoding/json"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/crontabber/crontabber/internal/corelog"
)

const (
	TypeJobStarted   = "com.crontabber.job.started"
	TypeJobSucceeded = "com.crontabber.job.succeeded"
	TypeJobFailed    = "com.crontabber.job.failed"
	TypeJobSkipped   = "com.crontabber.job.skipped"
	TypeGateAcquired = "com.crontabber.lock.gate_acquired"
	TypeGateDenied   = "com.crontabber.lock.gate_denied"
	TypeRowDenied    = "com.crontabber.lock.row_denied"
	TypeInvocation   = "com.crontabber.invocation.finished"
)

// Emitter emits a single CloudEvent. Implementations typically ship it to a
// log sink, webhook, or message bus; the core never blocks meaningfully on
// delivery failure.
type Emitter interface {
	Emit(ctx context.Context, event cloudevents.Event) error
}

// Source is the CloudEvents source attribute stamped on every event emitted
// by this invocation.
const Source = "crontabber"

// New builds a CloudEvent of the given type carrying data as its JSON body.
func New(eventType string, data map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetType(eventType)
	event.SetSource(Source)
	event.SetID(uuid.New().String())
	event.SetTime(time.Now())
	_ = event.SetData(cloudevents.ApplicationJSON, data)
	return event
}

// Emit emits event via emitter if non-nil, logging (not failing) delivery
// errors — event emission is an observability aid, never load-bearing for the
// runner's own correctness.
func Emit(ctx context.Context, emitter Emitter, logger corelog.Logger, eventType string, data map[string]any) {
	if emitter == nil {
		return
	}
	event := New(eventType, data)
	if err := emitter.Emit(ctx, event); err != nil && logger != nil {
		logger.Warn("failed to emit event", "type", eventType, "error", err)
	}
}

// LogSink is an Emitter that writes a one-line JSON summary through a Logger;
// the simplest usable sink for a one-shot CLI invocation.
type LogSink struct {
	Logger corelog.Logger
}

func (s LogSink) Emit(_ context.Context, event cloudevents.Event) error {
	body, _ := json.Marshal(event)
	s.Logger.Info("event", "cloudevent", string(body))
	return nil
}
