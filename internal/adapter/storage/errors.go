package storage

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
)

// unavailable marks a driver failure as domain.ErrStorageUnavailable while
// keeping the cause reachable through errors.Is/As.
func unavailable(op string, err error) error {
	return pkgerrors.WithStack(fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err))
}
