// Package check provides the environment doctor and the interactive
// init wizard. The doctor validates configuration and probes every
// external dependency so problems surface before the server starts.
package check

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/internal/database"
	"github.com/patchlens/patchlens/internal/llm"
	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/internal/notify"
	"github.com/patchlens/patchlens/internal/scm"
	"github.com/patchlens/patchlens/internal/store"
)

// probeTimeout bounds each connectivity probe
const probeTimeout = 10 * time.Second

// Status classifies a single check outcome
type Status int

const (
	// StatusOK means the check passed
	StatusOK Status = iota
	// StatusWarn means the check found a non-blocking issue
	StatusWarn
	// StatusFail means the check found a startup-blocking problem
	StatusFail
)

// Result is the outcome of one environment check
type Result struct {
	Name   string
	Status Status
	Detail string
}

// Checker runs the non-interactive environment doctor: configuration
// validation plus live probes against the store, the source-control
// server, the LLM provider and the mail endpoint.
type Checker struct {
	cfg     *config.Config
	timeout time.Duration
}

// NewChecker creates a checker for the given configuration snapshot
func NewChecker(cfg *config.Config) *Checker {
	return &Checker{
		cfg:     cfg,
		timeout: probeTimeout,
	}
}

// Run executes all checks and collects them into a report. Later probes
// run even when earlier checks fail so a single pass surfaces every
// problem at once.
func (c *Checker) Run(ctx context.Context) *Report {
	report := NewReport()
	report.Add(c.checkConfig())
	report.Add(c.checkStore())
	report.Add(c.checkSCM(ctx))
	report.Add(c.checkLLM(ctx))
	report.Add(c.checkNotifier(ctx))
	return report
}

// checkConfig validates the configuration snapshot
func (c *Checker) checkConfig() Result {
	if err := config.Validate(c.cfg); err != nil {
		return Result{Name: "configuration", Status: StatusFail, Detail: err.Message}
	}
	return Result{Name: "configuration", Status: StatusOK, Detail: "all settings valid"}
}

// errWriteProbe forces the probe transaction to roll back after the insert
var errWriteProbe = stderrors.New("write probe rollback")

// checkStore opens the database and verifies it accepts writes. The probe
// row is inserted inside a transaction that always rolls back, so the
// check leaves no residue.
func (c *Checker) checkStore() Result {
	if err := database.Init(c.cfg.Store.URL); err != nil {
		return Result{Name: "store", Status: StatusFail, Detail: err.Error()}
	}
	defer database.Close()

	if err := database.HealthCheck(); err != nil {
		return Result{Name: "store", Status: StatusFail, Detail: err.Error()}
	}

	s := store.NewStore(database.Get())
	err := s.Transaction(func(tx store.Store) error {
		probe := &model.FailureLog{
			EventType:    model.EventTypeManual,
			FailureStage: model.StagePersistence,
			ErrorType:    "probe",
			ErrorMessage: "environment check write probe",
		}
		if err := tx.Failures().Create(probe); err != nil {
			return err
		}
		return errWriteProbe
	})
	if err != nil && !stderrors.Is(err, errWriteProbe) {
		return Result{Name: "store", Status: StatusFail, Detail: err.Error()}
	}

	return Result{
		Name:   "store",
		Status: StatusOK,
		Detail: fmt.Sprintf("%s opened, write probe ok", c.cfg.Store.URL),
	}
}

// checkSCM pings the source-control server
func (c *Checker) checkSCM(ctx context.Context) Result {
	client, err := scm.NewClient(&c.cfg.SCM)
	if err != nil {
		return Result{Name: "source-control", Status: StatusFail, Detail: err.Error()}
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := client.Ping(probeCtx); err != nil {
		return Result{Name: "source-control", Status: StatusFail, Detail: err.Error()}
	}
	return Result{
		Name:   "source-control",
		Status: StatusOK,
		Detail: fmt.Sprintf("%s reachable", c.cfg.SCM.BaseURL),
	}
}

// checkLLM sends a minimal completion request to the provider
func (c *Checker) checkLLM(ctx context.Context) Result {
	client, err := llm.NewClient(&c.cfg.LLM)
	if err != nil {
		return Result{Name: "llm", Status: StatusFail, Detail: err.Error()}
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	probe := client.Probe(probeCtx)
	if !probe.OK {
		return Result{Name: "llm", Status: StatusFail, Detail: probe.Detail}
	}
	return Result{
		Name:   "llm",
		Status: StatusOK,
		Detail: fmt.Sprintf("%s model %s responded", probe.Provider, probe.Model),
	}
}

// checkNotifier pings the mail endpoint. An unset endpoint is a warning,
// not a failure: notifications are optional and reviews persist either way.
func (c *Checker) checkNotifier(ctx context.Context) Result {
	if strings.TrimSpace(c.cfg.Notifier.Endpoint) == "" {
		return Result{
			Name:   "notifier",
			Status: StatusWarn,
			Detail: "NOTIFIER_ENDPOINT not set, notifications disabled",
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := notify.New(&c.cfg.Notifier).Ping(probeCtx); err != nil {
		return Result{Name: "notifier", Status: StatusFail, Detail: err.Error()}
	}
	return Result{
		Name:   "notifier",
		Status: StatusOK,
		Detail: fmt.Sprintf("%s reachable", c.cfg.Notifier.Endpoint),
	}
}
