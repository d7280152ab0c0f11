package eventsourcing

import "context"

// Observer is notified of every event after it has been saved.
type Observer interface {
	// WillObserve filters the events passed to Observe
	WillObserve(aggregate Aggregate, event Event) bool

	// Observe handles a saved event; a failure is reported to OnObserveFailed and does
	// not undo the save
	Observe(ctx context.Context, aggregate Aggregate, event Event) error

	// OnObserveFailed receives errors returned by Observe
	OnObserveFailed(err error)
}

func notify(ctx context.Context, observers []Observer, aggregate Aggregate, events []Event) {
	for _, event := range events {
		for _, observer := range observers {
			if !observer.WillObserve(aggregate, event) {
				continue
			}
			if err := observer.Observe(ctx, aggregate, event); err != nil {
				observer.OnObserveFailed(err)
			}
		}
	}
}
