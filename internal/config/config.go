package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Driver is the vio bus driver whose adapters this tool manages.
	Driver string `yaml:"driver,omitempty"`
	// Node is the /dev node prefix the driver registers (e.g. /dev/hvcs0).
	Node string `yaml:"node,omitempty"`
	// Bus is the kernel bus queried through systool.
	Bus string `yaml:"bus,omitempty"`
	// Systool is the introspection tool binary name or path.
	Systool string `yaml:"systool,omitempty"`
	// DevDir is where device nodes live.
	DevDir string `yaml:"dev_dir,omitempty"`
	// Database is the operation journal location.
	Database string `yaml:"database,omitempty"`
	// Decoder is the rtas_event_decode binary used by rtasdump.
	Decoder string `yaml:"decoder,omitempty"`
	// PlatformCheck gates execution to pSeries LPARs when unset or true.
	PlatformCheck *bool `yaml:"platform_check,omitempty"`

	Snapshot Snapshot `yaml:"snapshot"`
}

type Snapshot struct {
	// Dir is the staging directory for collected files and command output.
	Dir string `yaml:"dir,omitempty"`
	// Output is the archive filename (.tar or .tar.gz).
	Output string `yaml:"output,omitempty"`
}

var defaultConfig = Config{
	Driver:   "hvcs",
	Node:     "hvcs",
	Bus:      "vio",
	Systool:  "systool",
	DevDir:   "/dev",
	Database: "/var/lib/hvcsadmin/events.db",
	Decoder:  "/usr/sbin/rtas_event_decode",
	Snapshot: Snapshot{
		Dir:    "/tmp/ibmsupt",
		Output: "snap.tar.gz",
	},
}

// Default returns a copy of the built-in defaults.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// Load reads the config from path, or from the default locations when
// path is empty. No config file in the default locations is not an
// error; an explicitly given path must be readable.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		candidates := []string{
			"/etc/hvcsadmin/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/hvcsadmin/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if explicit {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	// Backfill anything the file left unset.
	if cfg.Driver == "" {
		cfg.Driver = defaultConfig.Driver
	}
	if cfg.Node == "" {
		cfg.Node = defaultConfig.Node
	}
	if cfg.Bus == "" {
		cfg.Bus = defaultConfig.Bus
	}
	if cfg.Systool == "" {
		cfg.Systool = defaultConfig.Systool
	}
	if cfg.DevDir == "" {
		cfg.DevDir = defaultConfig.DevDir
	}
	if cfg.Database == "" {
		cfg.Database = defaultConfig.Database
	}
	if cfg.Decoder == "" {
		cfg.Decoder = defaultConfig.Decoder
	}
	if env := os.Getenv("RTAS_EVENT_DECODE"); env != "" {
		cfg.Decoder = env
	}
	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = defaultConfig.Snapshot.Dir
	}
	if cfg.Snapshot.Output == "" {
		cfg.Snapshot.Output = defaultConfig.Snapshot.Output
	}

	return &cfg, nil
}

// CheckPlatform reports whether the pSeries LPAR gate is enabled.
func (c *Config) CheckPlatform() bool {
	return c.PlatformCheck == nil || *c.PlatformCheck
}
