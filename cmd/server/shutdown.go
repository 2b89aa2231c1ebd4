package main

import (
	"context"
	"errors"
	"fmt"
	"io"
)

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownAll stops the widgets first, so pending replies still reach their pages and failures still
// reach the journal. The HTTP server goes next and the journal is closed last. Every step runs even if
// an earlier one fails. The journal may be nil.
func shutdownAll(ctx context.Context, widgets, srv shutdowner, journal io.Closer) error {
	var errs []error

	if err := widgets.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("error shutting down widgets: %w", err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("error shutting down server: %w", err))
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing journal: %w", err))
		}
	}

	return errors.Join(errs...)
}
