package app

import (
	"errors"
	"fmt"

	"github.com/pscheid92/chatlabels/internal/domain"
)

func engineErr(op string, err error) error {
	if errors.Is(err, domain.ErrFactoryFailure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrFactoryFailure, err)
}

func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrStoreFailure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreFailure, err)
}
