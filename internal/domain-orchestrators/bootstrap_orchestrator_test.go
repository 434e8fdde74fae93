package orchestrators

import (
	"context"
	"errors"
	"testing"

	"github.com/ryoto/vpstrap/internal/domain/entities"
	"github.com/ryoto/vpstrap/internal/domain/services"
)

type fakeGeo struct {
	verdict entities.GeoVerdict
	calls   int
}

func (f *fakeGeo) Classify(context.Context) services.ClassifyResult {
	f.calls++
	return services.ClassifyResult{Verdict: f.verdict}
}

// fakeRunner succeeds only for URLs listed in okURLs, recording every
// attempt in order.
type fakeRunner struct {
	okURLs   map[string]bool
	attempts []string
}

func (f *fakeRunner) Run(_ context.Context, req services.RunRequest) (*services.RunReport, error) {
	f.attempts = append(f.attempts, req.ScriptURL)
	if f.okURLs[req.ScriptURL] {
		return &services.RunReport{
			ScriptURL:    req.ScriptURL,
			Verification: entities.VerificationMatch,
			Executed:     !req.DryRun,
		}, nil
	}
	return nil, errors.New("verification failed")
}

func testPlan(installers ...entities.Installer) *entities.BootstrapPlan {
	return &entities.BootstrapPlan{
		Mirrors: entities.MirrorConfig{
			Restricted: entities.MirrorSet{Name: "cn-mirrors", AptMirror: "https://mirrors.restricted.example"},
			Default:    entities.MirrorSet{Name: "default", AptMirror: "https://archive.example"},
		},
		Installers: installers,
	}
}

func TestBootstrapOrchestrator_MirrorSelectionByVerdict(t *testing.T) {
	tests := []struct {
		name            string
		verdict         entities.GeoVerdict
		unknownRestrict bool
		wantMirrors     string
	}{
		{name: "restricted verdict", verdict: entities.VerdictRestricted, wantMirrors: "cn-mirrors"},
		{name: "not-restricted verdict", verdict: entities.VerdictNotRestricted, wantMirrors: "default"},
		{name: "unknown defaults open", verdict: entities.VerdictUnknown, wantMirrors: "default"},
		{name: "unknown with restrict policy", verdict: entities.VerdictUnknown, unknownRestrict: true, wantMirrors: "cn-mirrors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := testPlan()
			plan.TreatUnknownAsRestricted = tt.unknownRestrict

			geo := &fakeGeo{verdict: tt.verdict}
			o := NewBootstrapOrchestrator(geo, &fakeRunner{}, nil, false)

			result, err := o.Execute(context.Background(), plan)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if result.Mirrors.Name != tt.wantMirrors {
				t.Errorf("Mirrors.Name = %q, want %q", result.Mirrors.Name, tt.wantMirrors)
			}
			if geo.calls != 1 {
				t.Errorf("Classify called %d times, want 1", geo.calls)
			}
		})
	}
}

func TestBootstrapOrchestrator_MirrorFallbackOrdering(t *testing.T) {
	runner := &fakeRunner{okURLs: map[string]bool{"https://mirror2.example/x.sh": true}}
	o := NewBootstrapOrchestrator(&fakeGeo{verdict: entities.VerdictNotRestricted}, runner, nil, false)

	plan := testPlan(entities.Installer{
		Name: "tool",
		ScriptURLs: []string{
			"https://primary.example/x.sh",
			"https://mirror1.example/x.sh",
			"https://mirror2.example/x.sh",
		},
		Interpreter: "/bin/sh",
	})

	result, err := o.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Error("result.Success = false, want true")
	}

	want := []string{
		"https://primary.example/x.sh",
		"https://mirror1.example/x.sh",
		"https://mirror2.example/x.sh",
	}
	if len(runner.attempts) != len(want) {
		t.Fatalf("attempts = %v, want %v", runner.attempts, want)
	}
	for i := range want {
		if runner.attempts[i] != want[i] {
			t.Errorf("attempt[%d] = %q, want %q", i, runner.attempts[i], want[i])
		}
	}
}

func TestBootstrapOrchestrator_OptionalInstallerSkipped(t *testing.T) {
	runner := &fakeRunner{okURLs: map[string]bool{"https://ok.example/b.sh": true}}
	o := NewBootstrapOrchestrator(&fakeGeo{verdict: entities.VerdictNotRestricted}, runner, nil, false)

	plan := testPlan(
		entities.Installer{
			Name:        "pretty-prompt",
			ScriptURLs:  []string{"https://down.example/a.sh"},
			Interpreter: "/bin/sh",
			Optional:    true,
		},
		entities.Installer{
			Name:        "essential",
			ScriptURLs:  []string{"https://ok.example/b.sh"},
			Interpreter: "/bin/sh",
		},
	)

	result, err := o.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute() error = %v (optional failure must not abort)", err)
	}
	if !result.Success {
		t.Error("result.Success = false, want true")
	}
	if len(result.Installers) != 2 {
		t.Fatalf("installer results = %d, want 2", len(result.Installers))
	}
	if !result.Installers[0].Skipped {
		t.Error("optional installer was not marked skipped")
	}
	if result.Installers[0].Err == nil {
		t.Error("skipped installer must still surface its error, not pretend verification passed")
	}
	if result.Installers[1].Err != nil {
		t.Errorf("second installer error = %v", result.Installers[1].Err)
	}
}

func TestBootstrapOrchestrator_MandatoryInstallerAborts(t *testing.T) {
	runner := &fakeRunner{okURLs: map[string]bool{"https://ok.example/later.sh": true}}
	o := NewBootstrapOrchestrator(&fakeGeo{verdict: entities.VerdictNotRestricted}, runner, nil, false)

	plan := testPlan(
		entities.Installer{
			Name:        "essential",
			ScriptURLs:  []string{"https://down.example/a.sh", "https://also-down.example/a.sh"},
			Interpreter: "/bin/sh",
		},
		entities.Installer{
			Name:        "never-reached",
			ScriptURLs:  []string{"https://ok.example/later.sh"},
			Interpreter: "/bin/sh",
		},
	)

	result, err := o.Execute(context.Background(), plan)
	if err == nil {
		t.Fatal("Execute() should abort when a mandatory installer fails everywhere")
	}
	if result.Success {
		t.Error("result.Success = true after abort")
	}
	// Both alternates were tried before giving up; the following installer
	// never ran.
	if len(runner.attempts) != 2 {
		t.Errorf("attempts = %v, want both alternates of the failed installer only", runner.attempts)
	}
}

func TestBootstrapOrchestrator_DryRunPropagates(t *testing.T) {
	runner := &fakeRunner{okURLs: map[string]bool{"https://ok.example/a.sh": true}}
	o := NewBootstrapOrchestrator(&fakeGeo{verdict: entities.VerdictNotRestricted}, runner, nil, true)

	plan := testPlan(entities.Installer{
		Name:        "tool",
		ScriptURLs:  []string{"https://ok.example/a.sh"},
		Interpreter: "/bin/sh",
	})

	result, err := o.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Installers[0].Report.Executed {
		t.Error("dry run reported execution")
	}
}
