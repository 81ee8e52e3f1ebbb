package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bloodlink/internal/chaos"
	"bloodlink/internal/compatibility"
	"bloodlink/internal/membership"
	"bloodlink/internal/platform/config"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/requests"
	"bloodlink/pkg/eventstore"

	"github.com/google/uuid"
)

// chaos runs the journal fault experiments against in-process services and
// exits non-zero when a hypothesis does not hold.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat).With("service", cfg.ServiceName+"-chaos")
	ctx := context.Background()

	store := chaos.NewFaultyStore(eventstore.NewMemoryStore(), uint64(time.Now().UnixNano()))
	svc := requests.NewService(store, requests.WithLogger(log))

	requestor := &membership.Person{ID: uuid.New(), Email: "chaos-requestor@bloodlink.local", Name: "Chaos Requestor", Role: membership.RoleRequestor}
	donors := make([]*membership.Person, 0, 16)
	for i := 0; i < 16; i++ {
		donors = append(donors, &membership.Person{
			ID:         uuid.New(),
			Email:      fmt.Sprintf("chaos-donor-%d@bloodlink.local", i),
			Name:       fmt.Sprintf("Chaos Donor %d", i),
			Role:       membership.RoleDonor,
			BloodGroup: compatibility.ValidBloodGroups()[i%8],
		})
	}

	engine := chaos.NewEngine()
	experiments := []chaos.Experiment{
		chaos.ConcurrentAcceptExperiment(store, svc, requestor, donors, 0.5),
		chaos.SlowJournalExperiment(store, svc, requestor, donors[1], 50*time.Millisecond),
	}

	failed := false
	for _, exp := range experiments {
		log.Info("running experiment", "name", exp.Name, "hypothesis", exp.Hypothesis)
		result, err := engine.Run(ctx, exp)
		if err != nil {
			log.Error("experiment aborted", "name", exp.Name, "error", err)
			failed = true
			continue
		}
		if !result.HypothesisHeld {
			failed = true
			for _, v := range result.Violations {
				log.Error("hypothesis violated", "name", exp.Name, "assertion", v.Assertion, "error", v.Error)
			}
			continue
		}
		log.Info("hypothesis held", "name", exp.Name, "duration", result.Duration, "injected_failures", store.Failed())
	}

	if failed {
		os.Exit(1)
	}
}
