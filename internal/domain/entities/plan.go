package entities

// BootstrapPlan describes everything a bootstrap run needs: trace endpoints
// for geo classification, mirror sets keyed by verdict, and the installers
// to fetch, verify and execute.
type BootstrapPlan struct {
	TraceEndpoints           []TraceEndpoint
	Mirrors                  MirrorConfig
	TreatUnknownAsRestricted bool
	Installers               []Installer
}

// MirrorConfig holds the two mirror sets the verdict selects between.
type MirrorConfig struct {
	Restricted MirrorSet
	Default    MirrorSet
}

// MirrorSet names the substitute endpoints used for package and proxy
// traffic in one network environment.
type MirrorSet struct {
	Name        string
	AptMirror   string
	GithubProxy string
}

// Installer describes one third-party script to fetch, verify and run.
// ScriptURLs is ordered: the primary URL first, then mirrors.
type Installer struct {
	Name          string
	ScriptURLs    []string
	HashSourceURL string
	PinnedSHA256  string
	Interpreter   string
	Args          []string
	Optional      bool
	Signature     *SignatureConfig
}

// SignatureConfig enables an additional detached-signature check on top of
// the checksum comparison.
type SignatureConfig struct {
	Scheme       string // "gpg" or "minisign"
	SignatureURL string
	KeyPath      string // local key file (armored GPG key or minisign public key)
	KeyURL       string // remote KEYS file (GPG only)
}
