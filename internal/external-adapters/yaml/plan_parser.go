// Package yaml provides YAML-based bootstrap-plan parsing.
package yaml

import (
	"fmt"
	"os"
	"strings"

	"github.com/ryoto/vpstrap/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// yamlPlan represents the raw YAML structure
type yamlPlan struct {
	TraceEndpoints           []yamlEndpoint  `yaml:"trace_endpoints"`
	Mirrors                  yamlMirrors     `yaml:"mirrors"`
	TreatUnknownAsRestricted bool            `yaml:"treat_unknown_as_restricted"`
	Installers               []yamlInstaller `yaml:"installers"`
}

type yamlEndpoint struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type yamlMirrors struct {
	Restricted yamlMirrorSet `yaml:"restricted"`
	Default    yamlMirrorSet `yaml:"default"`
}

type yamlMirrorSet struct {
	Name        string `yaml:"name"`
	AptMirror   string `yaml:"apt_mirror"`
	GithubProxy string `yaml:"github_proxy"`
}

type yamlInstaller struct {
	Name          string         `yaml:"name"`
	ScriptURLs    []string       `yaml:"script_urls"`
	HashSourceURL string         `yaml:"hash_source_url"`
	PinnedSHA256  string         `yaml:"pinned_sha256"`
	Interpreter   string         `yaml:"interpreter"`
	Args          []string       `yaml:"args"`
	Optional      bool           `yaml:"optional"`
	Signature     *yamlSignature `yaml:"signature"`
}

type yamlSignature struct {
	Scheme       string `yaml:"scheme"`
	SignatureURL string `yaml:"signature_url"`
	KeyPath      string `yaml:"key_path"`
	KeyURL       string `yaml:"key_url"`
}

// PlanParser parses YAML bootstrap-plan files
type PlanParser struct{}

// NewPlanParser creates a new YAML parser
func NewPlanParser() *PlanParser {
	return &PlanParser{}
}

// ParseFile parses a YAML plan file into a BootstrapPlan entity
func (p *PlanParser) ParseFile(filePath string) (*entities.BootstrapPlan, error) {
	//nolint:gosec // G304: filePath is the operator-supplied plan path
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into a BootstrapPlan entity
func (p *PlanParser) Parse(data []byte) (*entities.BootstrapPlan, error) {
	var raw yamlPlan
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	plan := &entities.BootstrapPlan{
		TreatUnknownAsRestricted: raw.TreatUnknownAsRestricted,
		Mirrors: entities.MirrorConfig{
			Restricted: convertMirrorSet(raw.Mirrors.Restricted, "restricted"),
			Default:    convertMirrorSet(raw.Mirrors.Default, "default"),
		},
	}

	for _, ep := range raw.TraceEndpoints {
		if ep.URL == "" {
			return nil, fmt.Errorf("trace endpoint must have a url")
		}
		plan.TraceEndpoints = append(plan.TraceEndpoints, entities.TraceEndpoint{
			Name: ep.Name,
			URL:  ep.URL,
		})
	}

	for i, inst := range raw.Installers {
		converted, err := convertInstaller(inst)
		if err != nil {
			return nil, fmt.Errorf("installer %d: %w", i, err)
		}
		plan.Installers = append(plan.Installers, converted)
	}

	return plan, nil
}

func convertMirrorSet(raw yamlMirrorSet, fallbackName string) entities.MirrorSet {
	name := raw.Name
	if name == "" {
		name = fallbackName
	}
	return entities.MirrorSet{
		Name:        name,
		AptMirror:   raw.AptMirror,
		GithubProxy: raw.GithubProxy,
	}
}

func convertInstaller(raw yamlInstaller) (entities.Installer, error) {
	if raw.Name == "" {
		return entities.Installer{}, fmt.Errorf("installer must have a name")
	}
	if len(raw.ScriptURLs) == 0 {
		return entities.Installer{}, fmt.Errorf("installer %s must have at least one script_url", raw.Name)
	}

	interpreter := raw.Interpreter
	if interpreter == "" {
		interpreter = "/bin/sh"
	}

	installer := entities.Installer{
		Name:          raw.Name,
		ScriptURLs:    raw.ScriptURLs,
		HashSourceURL: raw.HashSourceURL,
		PinnedSHA256:  strings.ToLower(strings.TrimSpace(raw.PinnedSHA256)),
		Interpreter:   interpreter,
		Args:          raw.Args,
		Optional:      raw.Optional,
	}

	if raw.Signature != nil {
		switch raw.Signature.Scheme {
		case "gpg", "minisign":
		default:
			return entities.Installer{}, fmt.Errorf("installer %s: unsupported signature scheme %q", raw.Name, raw.Signature.Scheme)
		}
		if raw.Signature.SignatureURL == "" {
			return entities.Installer{}, fmt.Errorf("installer %s: signature requires signature_url", raw.Name)
		}
		installer.Signature = &entities.SignatureConfig{
			Scheme:       raw.Signature.Scheme,
			SignatureURL: raw.Signature.SignatureURL,
			KeyPath:      raw.Signature.KeyPath,
			KeyURL:       raw.Signature.KeyURL,
		}
	}

	return installer, nil
}

// ApplyEnvOverrides lets operators upgrade hash expectations without
// editing the plan: VPSTRAP_HASH_URL_<NAME> replaces an installer's hash
// source URL and VPSTRAP_PINNED_SHA256_<NAME> its pinned hash, where <NAME>
// is the installer name uppercased with dashes mapped to underscores.
func ApplyEnvOverrides(plan *entities.BootstrapPlan) {
	for i := range plan.Installers {
		key := envKey(plan.Installers[i].Name)
		if v := os.Getenv("VPSTRAP_HASH_URL_" + key); v != "" {
			plan.Installers[i].HashSourceURL = v
		}
		if v := os.Getenv("VPSTRAP_PINNED_SHA256_" + key); v != "" {
			plan.Installers[i].PinnedSHA256 = strings.ToLower(strings.TrimSpace(v))
		}
	}
}

func envKey(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name))
}
