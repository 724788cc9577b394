package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dispatcher.
var (
	ErrUnknownTool     = errors.New("tool not recognized")
	ErrMissingArgument = errors.New("missing argument")
)

func missingArg(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingArgument, name)
}
