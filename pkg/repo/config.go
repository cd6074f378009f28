package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio"
)

// Config stores repository-local settings in .cirrus.toml.
type Config struct {
	Core    CoreConfig    `toml:"core"`
	Cloud   CloudConfig   `toml:"cloud"`
	Signing SigningConfig `toml:"signing"`
}

type CoreConfig struct {
	DefaultBranch    string `toml:"default_branch"`
	Author           string `toml:"author,omitempty"`
	Compression      bool   `toml:"compression"`
	CompressionLevel int    `toml:"compression_level,omitempty"`
}

type CloudConfig struct {
	// Root is the cloud replica directory. Relative paths resolve against
	// the repository root.
	Root string `toml:"root,omitempty"`
}

type SigningConfig struct {
	Key string `toml:"key,omitempty"`
}

// DefaultConfig returns the settings written by Init.
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{DefaultBranch: DefaultBranch},
	}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.RootDir, ConfigFile)
}

// ReadConfig reads .cirrus.toml. A missing file yields DefaultConfig.
// Unknown keys are rejected.
func (r *Repo) ReadConfig() (*Config, error) {
	return readConfigFile(r.configPath())
}

func readConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("read config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if strings.TrimSpace(cfg.Core.DefaultBranch) == "" {
		cfg.Core.DefaultBranch = DefaultBranch
	}
	return cfg, nil
}

// WriteConfig atomically writes .cirrus.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := renameio.WriteFile(r.configPath(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// CloudRoot returns the absolute cloud replica directory from config.
func (r *Repo) CloudRoot() (string, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	root := strings.TrimSpace(cfg.Cloud.Root)
	if root == "" {
		return "", ErrNoCloud
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(r.RootDir, root)
	}
	return filepath.Clean(root), nil
}

// SetCloudRoot records the cloud replica directory in config.
func (r *Repo) SetCloudRoot(root string) error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.Cloud.Root = strings.TrimSpace(root)
	return r.WriteConfig(cfg)
}
