package ledger

import (
	"context"

	"github.com/restopos/backend/internal/domain/ledger"
)

// TransactionScope provides transactional access to ledger repositories.
// When a function is executed within a transaction scope, all repository
// operations will be part of the same database transaction and will be
// committed or rolled back atomically. Every mutation path in the ledger runs
// through it: batch decrements, the consumption record, and the summary
// reprojection either all land or none do.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories within
// a transaction. All repositories returned share the same underlying database
// transaction.
type TransactionalRepositories interface {
	// BatchRepo returns the batch repository scoped to the current transaction
	BatchRepo() ledger.BatchRepository
	// RecordRepo returns the consumption record repository scoped to the current transaction
	RecordRepo() ledger.ConsumptionRecordRepository
	// SummaryRepo returns the summary repository scoped to the current transaction
	SummaryRepo() ledger.SummaryRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing or when transaction support is
// not required.
type NoOpTransactionScope struct {
	batchRepo   ledger.BatchRepository
	recordRepo  ledger.ConsumptionRecordRepository
	summaryRepo ledger.SummaryRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	batchRepo ledger.BatchRepository,
	recordRepo ledger.ConsumptionRecordRepository,
	summaryRepo ledger.SummaryRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		batchRepo:   batchRepo,
		recordRepo:  recordRepo,
		summaryRepo: summaryRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// BatchRepo returns the batch repository.
func (s *NoOpTransactionScope) BatchRepo() ledger.BatchRepository {
	return s.batchRepo
}

// RecordRepo returns the consumption record repository.
func (s *NoOpTransactionScope) RecordRepo() ledger.ConsumptionRecordRepository {
	return s.recordRepo
}

// SummaryRepo returns the summary repository.
func (s *NoOpTransactionScope) SummaryRepo() ledger.SummaryRepository {
	return s.summaryRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
