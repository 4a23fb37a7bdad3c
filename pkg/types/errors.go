package types

import (
	"errors"
	"fmt"
)

// ErrNoReleases indicates that an upstream repository has no releases at all.
var ErrNoReleases = errors.New("no releases found")

// ErrNothingBuilt indicates that a build run produced no artefacts.
var ErrNothingBuilt = errors.New("nothing built")

// NotFoundError is returned when no release satisfies a version mode.
type NotFoundError struct {
	Source string
	Mode   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s release found for %s", e.Mode, e.Source)
}

// NoCompatibleVersionError is returned when the patch bundle and the app
// repository share no version.
type NoCompatibleVersionError struct {
	App     string
	Package string
}

func (e *NoCompatibleVersionError) Error() string {
	return fmt.Sprintf("%s: no compatible version of %s available", e.App, e.Package)
}

// MissingFieldError is returned when a required per-app key is absent.
type MissingFieldError struct {
	App   string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.App, e.Field)
}

// MissingCredentialError is returned when a required secret is not set.
type MissingCredentialError struct {
	Name string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s missing", e.Name)
}

// DownloadError is returned when all download attempts failed.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// InvalidArtifactError is returned when a file is not an Android package.
type InvalidArtifactError struct {
	Path     string
	Detected string
}

func (e *InvalidArtifactError) Error() string {
	return fmt.Sprintf("bad apk %s (detected %s)", e.Path, e.Detected)
}

// ToolError is returned when an external command exits non-zero.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("command failed: %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
