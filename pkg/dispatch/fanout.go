// Package dispatch hands routed tickets to downstream systems.
package dispatch

import (
	"context"
	"errors"

	"github.com/flowbaker/triage/pkg/domain"
)

// Fanout delivers every batch to each dispatcher in turn. One failing
// dispatcher does not stop the others.
type Fanout []domain.RouteDispatcher

func (f Fanout) Dispatch(ctx context.Context, tickets []domain.RoutedTicket) error {
	var errs []error

	for _, dispatcher := range f {
		if err := dispatcher.Dispatch(ctx, tickets); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
