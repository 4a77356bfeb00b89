package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
)

// PostgreSQL の SQLSTATE
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
)

// isConflictCode は再実行すれば成功しうる競合エラーかを返す
func isConflictCode(code pq.ErrorCode) bool {
	switch code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

func pqCode(err error) (pq.ErrorCode, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code, true
	}
	return "", false
}

// wrapError は競合系のエラーを transaction.ErrConcurrencyConflict に変換し、それ以外は msg で包む
func wrapError(err error, msg string) error {
	if code, ok := pqCode(err); ok && isConflictCode(code) {
		return fmt.Errorf("%s: %w: %v", msg, transaction.ErrConcurrencyConflict, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
