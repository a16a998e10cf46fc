package utils

import (
	"fmt"

	"go.uber.org/zap"
)

// NewSugaredLogger returns a development logger when verbose is set and a
// production JSON logger otherwise. Optional key/value pairs are attached to
// every entry.
func NewSugaredLogger(verbose bool, keysAndValues ...any) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if verbose {
		l, err = zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to create development logger: %w", err)
		}
	} else {
		l, err = zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("failed to create production logger: %w", err)
		}
	}

	sugar := l.Sugar()
	if len(keysAndValues) > 0 {
		sugar = sugar.With(keysAndValues...)
	}
	return sugar, nil
}
