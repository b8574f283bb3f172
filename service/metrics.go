package service

import (
	"context"
	"errors"
	"time"
)

// Ledger operation results used as metric labels
const (
	resultOK                 = "ok"
	resultInvalidAmount      = "invalid_amount"
	resultInvalidInput       = "invalid_input"
	resultNotFound           = "not_found"
	resultExists             = "exists"
	resultInsufficientFunds  = "insufficient_funds"
	resultConflictExceeded   = "conflict_exceeded"
	resultStorageUnavailable = "storage_unavailable"
	resultError              = "error"
)

type noopMetrics struct{}

func (noopMetrics) RecordLedgerOperation(string, string, time.Duration) {}
func (noopMetrics) RecordLeaderboardSyncFailure(string)                 {}
func (noopMetrics) RecordRetentionPruned(string, int64)                 {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrInvalidAmount):
		return resultInvalidAmount
	case errors.Is(err, ErrInvalidAccountID):
		return resultInvalidInput
	case errors.Is(err, ErrAccountNotFound):
		return resultNotFound
	case errors.Is(err, ErrAccountExists):
		return resultExists
	case errors.Is(err, ErrInsufficientFunds):
		return resultInsufficientFunds
	case errors.Is(err, ErrConcurrentModificationExceeded):
		return resultConflictExceeded
	case errors.Is(err, ErrStorageUnavailable):
		return resultStorageUnavailable
	}
	return resultError
}

func syncFailureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
