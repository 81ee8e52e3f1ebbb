package chaos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bloodlink/internal/compatibility"
	"bloodlink/internal/membership"
	"bloodlink/internal/requests"

	"github.com/google/uuid"
)

// ConcurrentAcceptExperiment races donors to accept one request while the
// journal drops a share of appends. Afterwards the request must have at most
// one donor, that donor must be the only one with a donation record, and the
// journal must hold exactly one event per applied transition.
func ConcurrentAcceptExperiment(store *FaultyStore, svc requests.Service, requestor *membership.Person, donors []*membership.Person, failureRate float64) Experiment {
	var requestID uuid.UUID

	return Experiment{
		Name:       "concurrent-accept-journal-failures",
		Hypothesis: "a request is never assigned to more than one donor, even when journal writes fail",
		Inject: func(ctx context.Context) error {
			req, err := svc.CreateRequest(ctx, requestor, string(compatibility.ABPositive), 1)
			if err != nil {
				return err
			}
			requestID = req.ID
			store.Inject(Fault{FailureRate: failureRate})
			return nil
		},
		Workload: func(ctx context.Context) error {
			var wg sync.WaitGroup
			for _, d := range donors {
				wg.Add(1)
				go func(d *membership.Person) {
					defer wg.Done()
					_, _ = svc.AcceptRequest(ctx, d, requestID)
				}(d)
			}
			wg.Wait()
			return nil
		},
		Rollback: func(context.Context) error {
			store.Clear()
			return nil
		},
		Assertions: []Assertion{
			{Name: "single-donor", Check: func(ctx context.Context) error {
				req, err := svc.GetRequest(ctx, requestID)
				if err != nil {
					return err
				}
				records := 0
				for _, d := range donors {
					log, err := svc.DonationsFor(ctx, d.Email)
					if err != nil {
						return err
					}
					records += len(log)
					if len(log) > 0 && d.Email != req.DonorEmail {
						return fmt.Errorf("%s has a donation record but the request names %q", d.Email, req.DonorEmail)
					}
				}
				switch req.Status {
				case requests.StatusAccepted:
					if records != 1 {
						return fmt.Errorf("accepted request has %d donation records", records)
					}
				case requests.StatusRequested:
					if req.DonorEmail != "" || records != 0 {
						return fmt.Errorf("unaccepted request has donor %q and %d records", req.DonorEmail, records)
					}
				default:
					return fmt.Errorf("unexpected status %s", req.Status)
				}
				return nil
			}},
			{Name: "journal-matches-state", Check: func(ctx context.Context) error {
				req, err := svc.GetRequest(ctx, requestID)
				if err != nil {
					return err
				}
				history, err := svc.History(ctx, requestID)
				if err != nil {
					return err
				}
				if len(history) != req.Version {
					return fmt.Errorf("journal has %d events, request is at version %d", len(history), req.Version)
				}
				return nil
			}},
		},
	}
}

// SlowJournalExperiment runs a full lifecycle while every append is delayed
// and checks that it completes.
func SlowJournalExperiment(store *FaultyStore, svc requests.Service, requestor, donor *membership.Person, latency time.Duration) Experiment {
	var final *requests.BloodRequest

	return Experiment{
		Name:       "slow-journal",
		Hypothesis: "the lifecycle completes when journal writes are slow",
		Inject: func(context.Context) error {
			store.Inject(Fault{Latency: latency})
			return nil
		},
		Workload: func(ctx context.Context) error {
			req, err := svc.CreateRequest(ctx, requestor, string(donor.BloodGroup), 1)
			if err != nil {
				return err
			}
			if _, err := svc.AcceptRequest(ctx, donor, req.ID); err != nil {
				return err
			}
			final, err = svc.ConfirmRequest(ctx, requestor, req.ID)
			return err
		},
		Rollback: func(context.Context) error {
			store.Clear()
			return nil
		},
		Assertions: []Assertion{
			{Name: "confirmed", Check: func(context.Context) error {
				if final == nil || final.Status != requests.StatusConfirmed {
					return fmt.Errorf("lifecycle did not reach %s", requests.StatusConfirmed)
				}
				return nil
			}},
		},
	}
}
