package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile is looked up in the working directory when no path is given
	DefaultFile = ".ayonfixt.yml"

	EnvServerURL = "AYON_SERVER_URL"
	EnvAPIKey    = "AYON_API_KEY"
	EnvConfig    = "AYONFIXT_CONFIG"
)

// API key source kinds
const (
	SourceEnv               = "env"
	SourceKeyring           = "keyring"
	SourceVault             = "vault"
	SourceAWSSecretsManager = "aws_secretsmanager"
)

// Config represents the main configuration structure
type Config struct {
	ServerURL    string          `yaml:"server_url"`
	APIKey       string          `yaml:"api_key,omitempty"`
	APIKeySource APIKeySource    `yaml:"api_key_source"`
	Dotenv       []string        `yaml:"dotenv,omitempty"` // .env files read before the real environment
	ProjectRoot  string          `yaml:"project_root"`
	Addon        AddonConfig     `yaml:"addon"`
	Project      ProjectConfig   `yaml:"project"`
	Wait         WaitConfig      `yaml:"wait"`
	Container    ContainerConfig `yaml:"container"`

	// Path is the file the config was read from, empty for defaults
	Path string `yaml:"-"`
}

// APIKeySource selects where the API key comes from.
// Fields other than 'kind' are source specific (e.g., address, path, region, endpoint).
type APIKeySource struct {
	Kind   string         `yaml:"kind"`
	Config map[string]any `yaml:"-"`
}

// UnmarshalYAML captures the source specific fields next to 'kind'
func (s *APIKeySource) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if kind, ok := raw["kind"].(string); ok {
		s.Kind = kind
		delete(raw, "kind")
	}

	s.Config = raw
	if s.Config == nil {
		s.Config = make(map[string]any)
	}
	return nil
}

// String returns a source specific setting or def
func (s APIKeySource) String(key, def string) string {
	if v, ok := s.Config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// AddonConfig locates the addon under test
type AddonConfig struct {
	Name        string `yaml:"name"`
	PackageFile string `yaml:"package_file"`
	BuildScript string `yaml:"build_script"`
	Python      string `yaml:"python"`
}

// ProjectConfig shapes the generated test project
type ProjectConfig struct {
	Representations int `yaml:"representations"`
	FrameStart      int `yaml:"frame_start"`
	FrameEndMin     int `yaml:"frame_end_min"`
	FrameEndMax     int `yaml:"frame_end_max"`
}

// WaitConfig controls server polling
type WaitConfig struct {
	Tries        int           `yaml:"tries"`
	Interval     time.Duration `yaml:"interval"`
	RestartDelay time.Duration `yaml:"restart_delay"`
}

// ContainerConfig starts an AYON server container when Image is set
type ContainerConfig struct {
	Image   string            `yaml:"image"`
	Port    string            `yaml:"port"`
	APIKey  string            `yaml:"api_key"`
	Env     map[string]string `yaml:"env,omitempty"`
	Startup time.Duration     `yaml:"startup_timeout"`
}

// Enabled reports whether a server container is configured
func (c ContainerConfig) Enabled() bool {
	return c.Image != ""
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		APIKeySource: APIKeySource{Kind: SourceEnv, Config: map[string]any{}},
		ProjectRoot:  ".",
		Addon: AddonConfig{
			Name:        "ayon_usd",
			PackageFile: "package.py",
			BuildScript: "create_package.py",
			Python:      "python",
		},
		Project: ProjectConfig{
			Representations: 4,
			FrameStart:      1001,
			FrameEndMin:     1020,
			FrameEndMax:     1200,
		},
		Wait: WaitConfig{
			Tries:        10,
			Interval:     6 * time.Second,
			RestartDelay: time.Second,
		},
		Container: ContainerConfig{
			Port:    "5000/tcp",
			Startup: 2 * time.Minute,
		},
	}
}

// Load reads the configuration. An empty path falls back to $AYONFIXT_CONFIG
// and then to DefaultFile; a missing default file is not an error.
// Precedence is defaults < YAML < dotenv files < real environment.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if p, ok := os.LookupEnv(EnvConfig); ok && p != "" {
			path, explicit = p, true
		} else {
			path = DefaultFile
		}
	}

	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		config.Path = path
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := config.applyDotenv(); err != nil {
		return nil, err
	}
	config.applyEnv(os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDotenv() error {
	if len(c.Dotenv) == 0 {
		return nil
	}
	files := make([]string, 0, len(c.Dotenv))
	for _, f := range c.Dotenv {
		if c.Path != "" && !filepath.IsAbs(f) {
			f = filepath.Join(filepath.Dir(c.Path), f)
		}
		files = append(files, f)
	}

	env, err := godotenv.Read(files...)
	if err != nil {
		return fmt.Errorf("failed to read dotenv files: %w", err)
	}
	c.applyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvServerURL); ok && v != "" {
		c.ServerURL = v
	}
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.APIKey = v
	}
}

// Validate checks the configuration after all layers are applied
func (c *Config) Validate() error {
	if c.APIKeySource.Kind == "" {
		c.APIKeySource.Kind = SourceEnv
	}
	if c.APIKeySource.Config == nil {
		c.APIKeySource.Config = make(map[string]any)
	}

	switch c.APIKeySource.Kind {
	case SourceEnv, SourceKeyring, SourceVault, SourceAWSSecretsManager:
	default:
		return fmt.Errorf("unknown api_key_source kind '%s'", c.APIKeySource.Kind)
	}

	if c.Project.Representations < 2 {
		return fmt.Errorf("project.representations must be at least 2, got %d", c.Project.Representations)
	}
	if c.Project.FrameEndMin <= c.Project.FrameStart {
		return fmt.Errorf("project.frame_end_min (%d) must be greater than project.frame_start (%d)", c.Project.FrameEndMin, c.Project.FrameStart)
	}
	if c.Project.FrameEndMax < c.Project.FrameEndMin {
		return fmt.Errorf("project.frame_end_max (%d) must not be less than project.frame_end_min (%d)", c.Project.FrameEndMax, c.Project.FrameEndMin)
	}
	if c.Wait.Tries < 1 {
		return fmt.Errorf("wait.tries must be at least 1, got %d", c.Wait.Tries)
	}
	if c.Wait.Interval < 0 || c.Wait.RestartDelay < 0 {
		return fmt.Errorf("wait durations must not be negative")
	}
	if c.Addon.Name == "" {
		return fmt.Errorf("addon.name must not be empty")
	}
	return nil
}

// ResolveProjectRoot returns the absolute project root
func (c *Config) ResolveProjectRoot() (string, error) {
	root := c.ProjectRoot
	if root == "" {
		root = "."
	}
	if !filepath.IsAbs(root) && c.Path != "" {
		root = filepath.Join(filepath.Dir(c.Path), root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project root: %w", err)
	}
	return abs, nil
}
