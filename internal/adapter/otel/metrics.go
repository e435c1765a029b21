package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "aegis"

// Metrics holds all Aegis metric instruments.
type Metrics struct {
	DecisionsExecuted metric.Int64Counter
	DecisionsDeferred metric.Int64Counter
	DecisionsBlocked  metric.Int64Counter
	ApprovalsResolved metric.Int64Counter
	ApprovalsExpired  metric.Int64Counter
	ExecutionFailures metric.Int64Counter
	DecisionLatency   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.DecisionsExecuted, err = meter.Int64Counter("aegis.decisions.executed",
		metric.WithDescription("Proposals executed unattended"))
	if err != nil {
		return nil, err
	}

	m.DecisionsDeferred, err = meter.Int64Counter("aegis.decisions.deferred",
		metric.WithDescription("Proposals deferred for approval"))
	if err != nil {
		return nil, err
	}

	m.DecisionsBlocked, err = meter.Int64Counter("aegis.decisions.blocked",
		metric.WithDescription("Proposals hard-blocked by an override window"))
	if err != nil {
		return nil, err
	}

	m.ApprovalsResolved, err = meter.Int64Counter("aegis.approvals.resolved",
		metric.WithDescription("Approval requests reaching approved or rejected"))
	if err != nil {
		return nil, err
	}

	m.ApprovalsExpired, err = meter.Int64Counter("aegis.approvals.expired",
		metric.WithDescription("Approval requests expired by the sweep or lazy guard"))
	if err != nil {
		return nil, err
	}

	m.ExecutionFailures, err = meter.Int64Counter("aegis.executions.failed",
		metric.WithDescription("External executor failures"))
	if err != nil {
		return nil, err
	}

	m.DecisionLatency, err = meter.Float64Histogram("aegis.decision.duration_seconds",
		metric.WithDescription("Policy evaluation duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
