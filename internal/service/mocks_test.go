package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lexpay-backend/internal/gateway"
)

// fakeGateway scripts charge outcomes and records every request so tests can
// assert on idempotency keys and charge counts.
type fakeGateway struct {
	requests []gateway.ChargeRequest
	// results are consumed in order; when exhausted every charge succeeds.
	results []gateway.ChargeResult
	err     error
}

func (g *fakeGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	if len(g.results) > 0 {
		result := g.results[0]
		g.results = g.results[1:]
		return &result, nil
	}
	return &gateway.ChargeResult{
		Success:       true,
		TransactionID: fmt.Sprintf("txn-%d", len(g.requests)),
	}, nil
}

func (g *fakeGateway) declineNext(code, message string) {
	g.results = append(g.results, gateway.ChargeResult{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: message,
	})
}

// fakeEmail records outbound notices.
type fakeEmail struct {
	failureNotices   []string
	completedNotices []string
	decisionNotices  []string
}

func (e *fakeEmail) SendPaymentFailureNotice(ctx context.Context, email string, amount decimal.Decimal, reason string, nextRetry time.Time) error {
	e.failureNotices = append(e.failureNotices, email)
	return nil
}

func (e *fakeEmail) SendPlanCompletedNotice(ctx context.Context, email string, totalPaid decimal.Decimal) error {
	e.completedNotices = append(e.completedNotices, email)
	return nil
}

func (e *fakeEmail) SendFinancingDecisionNotice(ctx context.Context, email, decision, detail string) error {
	e.decisionNotices = append(e.decisionNotices, decision)
	return nil
}
