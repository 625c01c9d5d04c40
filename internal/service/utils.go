package service

import (
	"errors"
	"fmt"

	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/repository"
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// storeError converts a storage failure into a domain error. Errors that are
// already typed pass through unchanged.
func storeError(resource string, err error) error {
	var derr *domain.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &derr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return domain.NotFound(resource)
	case errors.Is(err, repository.ErrDuplicateAccount):
		return domain.Conflict("account already exists")
	case errors.Is(err, repository.ErrNegativeBalance):
		return domain.InsufficientFunds()
	case errors.Is(err, repository.ErrBalanceOverflow):
		return domain.InvalidArgument("deposit would exceed the maximum balance")
	default:
		return domain.Internal("storage failure", err)
	}
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
