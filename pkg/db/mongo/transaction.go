package mongo

import (
	"context"
	"fmt"
	"time"

	apperrors "agenda/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// maxCommitTime bounds the commit of a booking transaction. The conflict
// check and the insert touch a handful of documents, so a slow commit means
// the primary is struggling and the caller should see an error.
const maxCommitTime = 5 * time.Second

type TransactionFunc func(ctx mongo.SessionContext) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
	opts   *options.TransactionOptions
}

func NewTransactionManager(client *mongo.Client) TransactionManager {
	commit := maxCommitTime
	return &mongoTransactionManager{
		client: client,
		opts: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()).
			SetMaxCommitTime(&commit),
	}
}

// ExecuteTransaction runs fn in a snapshot transaction committed with majority
// write concern. Called from inside a transaction it joins the outer one. An
// AppError returned by fn aborts the transaction and reaches the caller
// unchanged; driver failures are wrapped.
func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	if sessCtx, ok := ctx.(mongo.SessionContext); ok {
		return fn(sessCtx)
	}

	err := m.client.UseSession(ctx, func(sessCtx mongo.SessionContext) error {
		_, err := sessCtx.WithTransaction(sessCtx, func(txCtx mongo.SessionContext) (any, error) {
			return nil, fn(txCtx)
		}, m.opts)
		return err
	})
	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	default:
		return fmt.Errorf("transaction failed: %w", err)
	}
}

// WithTimeout bounds ctx by timeout unless ctx is a transaction session, which
// cannot be wrapped without losing the session binding.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
