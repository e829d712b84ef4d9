package extdedup

import (
	"errors"
	"fmt"
)

// ErrConfig marks failures caused by the options given rather than the data or the system.
var ErrConfig = errors.New("invalid configuration")

var ErrCompressedInput = errors.New("input is snappy compressed, decompress it first")

func configError(err error) error {
	if errors.Is(err, ErrConfig) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConfig, err)
}
