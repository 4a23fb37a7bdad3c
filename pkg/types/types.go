package types

import "time"

// Version modes understood by the resolver. Anything else is a pinned tag.
const (
	ModeLatest = "latest"
	ModeDev    = "dev"
	ModeAll    = "all"

	// VersionAuto selects the app version from the patch bundle's compatibility list.
	VersionAuto = "auto"
)

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Release is one entry of an upstream release listing.
type Release struct {
	ID         int64     `json:"id"`
	TagName    string    `json:"tag_name"`
	Name       string    `json:"name"`
	Body       string    `json:"body"`
	Prerelease bool      `json:"prerelease"`
	CreatedAt  time.Time `json:"created_at"`
	Assets     []Asset   `json:"assets"`
}

// ResolvedVersion is the outcome of resolving a (source, mode) pair.
type ResolvedVersion struct {
	Version    string `json:"version" yaml:"version"`
	Prerelease bool   `json:"prerelease" yaml:"prerelease"`
}

// AppSpec is one configured build target with defaults already applied.
type AppSpec struct {
	Key         string
	Enabled     bool
	PackageName string
	AppSource   string
	AppName     string
	Variant     string
	Version     string
	PatchSource string
	PatchMode   string
	CLISource   string
	CLIMode     string
	Brand       string
	PatchesList string
	PatcherArgs []string
}

// IsAuto reports whether the app version is chosen from the compatibility list.
func (a AppSpec) IsAuto() bool {
	return a.Version == "" || a.Version == VersionAuto
}

// BuildRecord describes one artefact produced by a successful app build.
// File is the path of the signed package.
type BuildRecord struct {
	App        string
	File       string
	AppVersion string
	Variant    string
}

// LedgerEntry is the ledger value stored per patch source.
type LedgerEntry struct {
	Version string `json:"version"`
	CLI     string `json:"cli"`
}
