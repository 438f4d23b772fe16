// Package ayontest registers the AYON fixtures and helpers on a fixture
// registry. Tests that talk to an AYON server use it through a Suite:
//
//	var suite = ayontest.NewSuite()
//
//	func TestMain(m *testing.M) { os.Exit(suite.Run(m)) }
//
//	func TestPublish(t *testing.T) {
//	    h := suite.Scope(t)
//	    project := fixture.Require[*ayontest.ProjectInfo](t, h, ayontest.FixtureProject)
//	    ...
//	}
package ayontest

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ynput/ayonfixt/internal/cache"
	"github.com/ynput/ayonfixt/internal/config"
	"github.com/ynput/ayonfixt/internal/credentials"
	"github.com/ynput/ayonfixt/pkg/fixture"
)

// PluginName is the entry-point name of the plugin
const PluginName = "ayon"

// Fixture names
const (
	FixturePrinter           = "printer"
	FixturePrinterSession    = "printer_session"
	FixtureTmpPath           = "tmp_path"
	FixtureProjectRootPath   = "project_root_path"
	FixtureBaseDir           = "base_dir"
	FixtureConnectionEnv     = "ayon_connection_env"
	FixtureServerSession     = "ayon_server_session"
	FixtureAddonVersion      = "addon_version"
	FixtureImprintVersion    = "imprint_test_version"
	FixtureBuildAddonPackage = "build_addon_package"
	FixtureInstalledAddon    = "installed_addon"
	FixtureProject           = "project"
	FixtureServerContainer   = "ayon_server_container"
)

// Helper names
const (
	HelperWaitForEvent         = "wait_for_event"
	HelperWaitForServerRestart = "wait_for_server_restart"
	HelperCreateRepresentation = "create_representation"
	HelperReplaceStringInFile  = "replace_string_in_file"
)

// Plugin registers the AYON fixtures
type Plugin struct {
	cfg      *config.Config
	cfgFile  string
	logger   *slog.Logger
	output   io.Writer
	keyCache *cache.Cache
}

// Option configures the Plugin
type Option func(*Plugin)

// WithConfig uses cfg instead of loading the configuration file
func WithConfig(cfg *config.Config) Option {
	return func(p *Plugin) { p.cfg = cfg }
}

// WithConfigFile loads the configuration from path
func WithConfigFile(path string) Option {
	return func(p *Plugin) { p.cfgFile = path }
}

// WithLogger sets the logger used by fixtures and the AYON client
func WithLogger(logger *slog.Logger) Option {
	return func(p *Plugin) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithOutput sets where printers write, os.Stderr by default
func WithOutput(w io.Writer) Option {
	return func(p *Plugin) {
		if w != nil {
			p.output = w
		}
	}
}

// WithKeyCache caches API keys from remote sources in the keyring
func WithKeyCache(c *cache.Cache) Option {
	return func(p *Plugin) { p.keyCache = c }
}

// New creates the plugin. The configuration is loaded on Register.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		logger: slog.New(slog.DiscardHandler),
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "ayontest")
	return p
}

// Name returns the entry-point name
func (p *Plugin) Name() string {
	return PluginName
}

// Config returns the configuration, loading it on first use
func (p *Plugin) Config() (*config.Config, error) {
	if p.cfg != nil {
		if err := p.cfg.Validate(); err != nil {
			return nil, err
		}
		return p.cfg, nil
	}
	cfg, err := config.Load(p.cfgFile)
	if err != nil {
		return nil, err
	}
	p.cfg = cfg
	return cfg, nil
}

// Register adds every AYON fixture and helper to reg
func (p *Plugin) Register(reg *fixture.Registry) error {
	cfg, err := p.Config()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	descriptors := []*fixture.Descriptor{
		p.printerFixture(FixturePrinter, fixture.ScopeTest),
		p.printerFixture(FixturePrinterSession, fixture.ScopeSession),
		tmpPathFixture(),
		p.projectRootFixture(),
		baseDirFixture(),
		p.connectionEnvFixture(),
		p.serverSessionFixture(),
		p.addonVersionFixture(),
		p.imprintFixture(),
		p.buildFixture(),
		p.installedAddonFixture(),
		p.projectFixture(),
	}
	if cfg.Container.Enabled() {
		descriptors = append(descriptors, p.containerFixture())
	}

	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			return err
		}
	}

	helpers := map[string]fixture.HelperFunc{
		HelperWaitForEvent:         p.waitForEventHelper,
		HelperWaitForServerRestart: p.waitForServerRestartHelper,
		HelperCreateRepresentation: createRepresentationHelper,
		HelperReplaceStringInFile:  replaceStringInFileHelper,
	}
	for name, fn := range helpers {
		if err := reg.RegisterHelper(name, fn); err != nil {
			return err
		}
	}

	p.logger.Debug("registered", "fixtures", len(descriptors), "helpers", len(helpers), "container", cfg.Container.Enabled())
	return nil
}

func (p *Plugin) resolver() *credentials.Resolver {
	opts := []credentials.Option{credentials.WithLogger(p.logger)}
	if p.keyCache != nil {
		opts = append(opts, credentials.WithCache(p.keyCache))
	}
	return credentials.NewResolver(opts...)
}

// NewSuite builds a registry with the plugin installed and a suite over it.
// It panics when the plugin cannot be registered.
func NewSuite(opts ...Option) *fixture.Suite {
	p := New(opts...)
	reg := fixture.NewRegistry()
	reg.MustInstall(p)
	return fixture.NewSuite(reg, fixture.WithLogger(p.logger))
}
