package config

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/peachmeow/peachmeow/pkg/types"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Setting keys. Flags are bound under the same names.
const (
	KeyConfigFile       = "config"
	KeyVersionsFile     = "versions"
	KeyWorkDir          = "workdir"
	KeyKeystore         = "keystore"
	KeyWorkflow         = "workflow"
	KeyRef              = "ref"
	KeyRepository       = "repository"
	KeyToken            = "token"
	KeyKeystorePassword = "keystore-password"
	KeyKeyAlias         = "key-alias"
	KeyKeyPassword      = "key-password"
)

// Required credential environment variables, in the order they are checked.
const (
	EnvKeystorePassword = "SIGNING_KEYSTORE_PASSWORD"
	EnvKeyAlias         = "SIGNING_KEY_ALIAS"
	EnvKeyPassword      = "SIGNING_KEY_PASSWORD"
	EnvToken            = "PEACHMEOW_GITHUB_PAT"
	EnvRepository       = "GITHUB_REPOSITORY"
)

// Signing holds the keystore credentials handed to the patcher.
type Signing struct {
	Keystore         string
	KeystorePassword string
	KeyAlias         string
	KeyPassword      string
}

// Settings is the process configuration assembled once at startup.
type Settings struct {
	ConfigFile   string
	VersionsFile string
	WorkDir      string
	Workflow     string
	Ref          string
	Repository   string
	Token        string
	Signing      Signing
}

// BindEnv registers defaults and environment bindings on v.
func BindEnv(v *viper.Viper) {
	v.SetDefault(KeyConfigFile, "config.toml")
	v.SetDefault(KeyVersionsFile, "versions.json")
	v.SetDefault(KeyWorkDir, ".")
	v.SetDefault(KeyKeystore, "morphe-release.bks")
	v.SetDefault(KeyWorkflow, "build.yml")
	v.SetDefault(KeyRef, "main")

	_ = v.BindEnv(KeyKeystorePassword, EnvKeystorePassword)
	_ = v.BindEnv(KeyKeyAlias, EnvKeyAlias)
	_ = v.BindEnv(KeyKeyPassword, EnvKeyPassword)
	_ = v.BindEnv(KeyToken, EnvToken)
	_ = v.BindEnv(KeyRepository, EnvRepository)
	_ = v.BindEnv(KeyKeystore, "PEACHMEOW_KEYSTORE")
	_ = v.BindEnv(KeyWorkflow, "PEACHMEOW_WORKFLOW")
	_ = v.BindEnv(KeyRef, "PEACHMEOW_REF", "GITHUB_REF_NAME")
}

// LoadEnvFile loads a dotenv file. Variables already set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return err
	}
	log.Debugf("Loaded environment from %s", path)
	return nil
}

// LoadSettings reads the settings from v. Relative file paths are resolved
// against the work directory, which is itself made absolute.
func LoadSettings(v *viper.Viper) Settings {
	workDir := v.GetString(KeyWorkDir)
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	return Settings{
		ConfigFile:   inDir(workDir, v.GetString(KeyConfigFile)),
		VersionsFile: inDir(workDir, v.GetString(KeyVersionsFile)),
		WorkDir:      workDir,
		Workflow:     v.GetString(KeyWorkflow),
		Ref:          v.GetString(KeyRef),
		Repository:   v.GetString(KeyRepository),
		Token:        v.GetString(KeyToken),
		Signing: Signing{
			Keystore:         inDir(workDir, v.GetString(KeyKeystore)),
			KeystorePassword: v.GetString(KeyKeystorePassword),
			KeyAlias:         v.GetString(KeyKeyAlias),
			KeyPassword:      v.GetString(KeyKeyPassword),
		},
	}
}

// RequireCredentials fails on the first missing secret needed for a build.
func (s Settings) RequireCredentials() error {
	required := []struct {
		name  string
		value string
	}{
		{EnvKeystorePassword, s.Signing.KeystorePassword},
		{EnvKeyAlias, s.Signing.KeyAlias},
		{EnvKeyPassword, s.Signing.KeyPassword},
		{EnvToken, s.Token},
		{EnvRepository, s.Repository},
	}
	for _, r := range required {
		if r.value == "" {
			return &types.MissingCredentialError{Name: r.name}
		}
	}
	return nil
}

func inDir(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
