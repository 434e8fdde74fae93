// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"fmt"
	"time"

	"github.com/ryoto/vpstrap/internal/domain/entities"
	"github.com/ryoto/vpstrap/internal/domain/interfaces"
	"github.com/ryoto/vpstrap/internal/domain/services"
)

// GeoClassifier produces the host's region verdict.
type GeoClassifier interface {
	Classify(ctx context.Context) services.ClassifyResult
}

// TrustedRunner fetches, verifies and executes one installer script.
type TrustedRunner interface {
	Run(ctx context.Context, req services.RunRequest) (*services.RunReport, error)
}

// BootstrapOrchestrator runs the full bootstrap: classify once, select the
// mirror set, then fetch-verify-execute each installer with mirror
// failover. Verification failures are never downgraded: an installer either
// runs verified, is skipped as optional after all alternates fail, or
// aborts the bootstrap.
type BootstrapOrchestrator struct {
	geo    GeoClassifier
	runner TrustedRunner
	logger interfaces.Logger
	dryRun bool
}

// NewBootstrapOrchestrator creates a new bootstrap orchestrator.
func NewBootstrapOrchestrator(geo GeoClassifier, runner TrustedRunner, logger interfaces.Logger, dryRun bool) *BootstrapOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &BootstrapOrchestrator{
		geo:    geo,
		runner: runner,
		logger: logger,
		dryRun: dryRun,
	}
}

// InstallerResult records the outcome for one installer.
type InstallerResult struct {
	Name      string
	Attempted []string
	Report    *services.RunReport
	Err       error
	Skipped   bool
}

// BootstrapResult is the outcome of a full bootstrap run.
type BootstrapResult struct {
	Verdict    entities.GeoVerdict
	Mirrors    entities.MirrorSet
	Installers []InstallerResult
	Duration   time.Duration
	Success    bool
}

// Execute runs the plan. It returns an error only when a mandatory
// installer could not be verified and executed from any of its URLs.
func (o *BootstrapOrchestrator) Execute(ctx context.Context, plan *entities.BootstrapPlan) (*BootstrapResult, error) {
	startTime := time.Now()

	classify := o.geo.Classify(ctx)
	result := &BootstrapResult{
		Verdict: classify.Verdict,
		Mirrors: o.selectMirrors(plan, classify.Verdict),
	}
	o.logger.Info("geo classification complete",
		interfaces.F("verdict", classify.Verdict),
		interfaces.F("mirrors", result.Mirrors.Name))

	for i := range plan.Installers {
		installer := plan.Installers[i]
		ir := o.runInstaller(ctx, installer)
		result.Installers = append(result.Installers, ir)

		if ir.Err != nil && !ir.Skipped {
			result.Duration = time.Since(startTime)
			return result, fmt.Errorf("mandatory installer %s failed: %w", installer.Name, ir.Err)
		}
	}

	result.Success = true
	result.Duration = time.Since(startTime)
	return result, nil
}

// selectMirrors maps the verdict onto a mirror set. An unknown verdict
// follows the plan's treat_unknown_as_restricted policy.
func (o *BootstrapOrchestrator) selectMirrors(plan *entities.BootstrapPlan, verdict entities.GeoVerdict) entities.MirrorSet {
	switch verdict {
	case entities.VerdictRestricted:
		return plan.Mirrors.Restricted
	case entities.VerdictNotRestricted:
		return plan.Mirrors.Default
	default:
		if plan.TreatUnknownAsRestricted {
			o.logger.Warn("verdict unknown; policy selects restricted mirrors")
			return plan.Mirrors.Restricted
		}
		o.logger.Warn("verdict unknown; policy selects default mirrors")
		return plan.Mirrors.Default
	}
}

// runInstaller tries each script URL in order; every attempt is a complete
// fetch-verify-execute cycle.
func (o *BootstrapOrchestrator) runInstaller(ctx context.Context, installer entities.Installer) InstallerResult {
	ir := InstallerResult{Name: installer.Name}

	var attempts []services.Attempt[*services.RunReport]
	for _, scriptURL := range installer.ScriptURLs {
		u := scriptURL
		ir.Attempted = append(ir.Attempted, u)
		attempts = append(attempts, services.Attempt[*services.RunReport]{
			Name: u,
			Do: func(ctx context.Context) (*services.RunReport, error) {
				return o.runner.Run(ctx, services.RunRequest{
					ScriptURL:     u,
					HashSourceURL: installer.HashSourceURL,
					PinnedSHA256:  installer.PinnedSHA256,
					Interpreter:   installer.Interpreter,
					Args:          installer.Args,
					Signature:     installer.Signature,
					DryRun:        o.dryRun,
				})
			},
		})
	}

	report, err := services.FirstSuccess(ctx, attempts)
	ir.Report = report
	if err == nil {
		o.logger.Info("installer complete",
			interfaces.F("installer", installer.Name),
			interfaces.F("dry_run", o.dryRun))
		return ir
	}

	ir.Err = err
	if installer.Optional {
		ir.Skipped = true
		o.logger.Warn("optional installer skipped after exhausting all sources",
			interfaces.F("installer", installer.Name),
			interfaces.F("error", err))
	} else {
		o.logger.Error("mandatory installer failed from every source",
			interfaces.F("installer", installer.Name),
			interfaces.F("error", err))
	}
	return ir
}
