package unitofwork

import (
	"context"
	"fmt"
)

type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

// Transact runs fn inside one transaction. A failing fn rolls back and its
// error is returned as is, so callers can still match it with errors.Is.
func Transact(ctx context.Context, factory RepositoryFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
