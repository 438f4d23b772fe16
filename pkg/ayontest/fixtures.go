package ayontest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ynput/ayonfixt/internal/addon"
	"github.com/ynput/ayonfixt/internal/config"
	"github.com/ynput/ayonfixt/pkg/ayon"
	"github.com/ynput/ayonfixt/pkg/fixture"
)

// ConnectionEnv is the server URL and API key the session talks to
type ConnectionEnv struct {
	ServerURL string
	APIKey    string

	restore map[string]*string
}

func describe(d *fixture.Descriptor, text string) *fixture.Descriptor {
	d.Description = text
	return d
}

func tmpPathFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureTmpPath, fixture.ScopeSession,
		func(fixture.Handle) (string, error) {
			dir, err := os.MkdirTemp("", "ayonfixt-data-")
			if err != nil {
				return "", fmt.Errorf("failed to create temporary directory: %w", err)
			}
			return dir, nil
		},
		os.RemoveAll,
	), "temporary directory shared by the session")
}

func (p *Plugin) projectRootFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureProjectRootPath, fixture.ScopeSession,
		func(fixture.Handle) (string, error) {
			return p.cfg.ResolveProjectRoot()
		}, nil,
	), "root of the addon repository under test")
}

func baseDirFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureBaseDir, fixture.ScopeTest,
		func(h fixture.Handle) (string, error) {
			root, err := fixture.Get[string](h, FixtureProjectRootPath)
			if err != nil {
				return "", err
			}
			return filepath.Dir(root), nil
		}, nil,
	), "parent directory of the project root")
}

func (p *Plugin) connectionEnvFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureConnectionEnv, fixture.ScopeSession,
		func(h fixture.Handle) (*ConnectionEnv, error) {
			cfg := *p.cfg
			if cfg.Container.Enabled() {
				srv, err := fixture.Get[*ServerContainer](h, FixtureServerContainer)
				if err != nil {
					return nil, err
				}
				cfg.ServerURL = srv.URL
				if cfg.Container.APIKey != "" {
					cfg.APIKey = cfg.Container.APIKey
				}
			}

			if cfg.ServerURL == "" {
				return nil, fmt.Errorf("%s is not set", config.EnvServerURL)
			}
			key, err := p.resolver().Resolve(h.Context(), &cfg)
			if err != nil {
				return nil, err
			}

			env := &ConnectionEnv{ServerURL: cfg.ServerURL, APIKey: key}
			if err := env.export(); err != nil {
				return nil, err
			}
			h.Logger().Debug("connection environment ready", "server", env.ServerURL)
			return env, nil
		},
		(*ConnectionEnv).unexport,
	), "AYON server URL and API key, exported to the environment")
}

// export publishes the connection to child processes and remembers the previous values
func (e *ConnectionEnv) export() error {
	e.restore = make(map[string]*string)
	for key, value := range map[string]string{config.EnvServerURL: e.ServerURL, config.EnvAPIKey: e.APIKey} {
		if prev, ok := os.LookupEnv(key); ok {
			e.restore[key] = &prev
		} else {
			e.restore[key] = nil
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to export %s: %w", key, err)
		}
	}
	return nil
}

func (e *ConnectionEnv) unexport() error {
	for key, prev := range e.restore {
		var err error
		if prev == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *prev)
		}
		if err != nil {
			return fmt.Errorf("failed to restore %s: %w", key, err)
		}
	}
	return nil
}

func (p *Plugin) serverSessionFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureServerSession, fixture.ScopeSession,
		func(h fixture.Handle) (*ayon.Client, error) {
			env, err := fixture.Get[*ConnectionEnv](h, FixtureConnectionEnv)
			if err != nil {
				return nil, err
			}
			client, err := ayon.NewClient(env.ServerURL, env.APIKey, ayon.WithLogger(p.logger))
			if err != nil {
				return nil, err
			}
			if _, err := client.Connect(h.Context()); err != nil {
				_ = client.Close()
				return nil, err
			}
			return client, nil
		},
		(*ayon.Client).Close,
	), "authenticated AYON client")
}

func (p *Plugin) addonVersionFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureAddonVersion, fixture.ScopeSession,
		func(h fixture.Handle) (addon.PackageInfo, error) {
			root, err := fixture.Get[string](h, FixtureProjectRootPath)
			if err != nil {
				return addon.PackageInfo{}, err
			}
			return addon.ReadPackageInfo(filepath.Join(root, p.cfg.Addon.PackageFile))
		}, nil,
	), "addon name and version from package.py")
}

func (p *Plugin) imprintFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureImprintVersion, fixture.ScopeSession,
		func(h fixture.Handle) (*addon.Imprint, error) {
			root, err := fixture.Get[string](h, FixtureProjectRootPath)
			if err != nil {
				return nil, err
			}
			info, err := fixture.Get[addon.PackageInfo](h, FixtureAddonVersion)
			if err != nil {
				return nil, err
			}
			imp, err := addon.ImprintTestVersion(filepath.Join(root, p.cfg.Addon.PackageFile), info)
			if err != nil {
				return nil, err
			}
			h.Logger().Debug("imprinted test version", "version", imp.Version)
			return imp, nil
		},
		(*addon.Imprint).Restore,
	), "unique test version written into package.py, restored at session end")
}

func (p *Plugin) addonName(info addon.PackageInfo) string {
	if info.Name != "" {
		return info.Name
	}
	return p.cfg.Addon.Name
}

func (p *Plugin) buildFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureBuildAddonPackage, fixture.ScopeSession,
		func(h fixture.Handle) (*addon.BuiltPackage, error) {
			printer, err := fixture.Get[*Printer](h, FixturePrinterSession)
			if err != nil {
				return nil, err
			}
			imp, err := fixture.Get[*addon.Imprint](h, FixtureImprintVersion)
			if err != nil {
				return nil, err
			}
			tmp, err := fixture.Get[string](h, FixtureTmpPath)
			if err != nil {
				return nil, err
			}
			root, err := fixture.Get[string](h, FixtureProjectRootPath)
			if err != nil {
				return nil, err
			}
			info, err := fixture.Get[addon.PackageInfo](h, FixtureAddonVersion)
			if err != nil {
				return nil, err
			}

			printer.Print("Building addon package ...")
			b := &addon.Builder{
				Python: p.cfg.Addon.Python,
				Script: p.cfg.Addon.BuildScript,
				Output: printer.Print,
			}
			return b.Build(h.Context(), root, tmp, addon.PackageInfo{Name: p.addonName(info), Version: imp.Version})
		}, nil,
	), "addon package built with the test version")
}

// InstalledAddon is an addon uploaded to the server for one test
type InstalledAddon struct {
	Name    string
	Version string

	printer *Printer
}

func (p *Plugin) installedAddonFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureInstalledAddon, fixture.ScopeTest,
		func(h fixture.Handle) (*InstalledAddon, error) {
			client, err := fixture.Get[*ayon.Client](h, FixtureServerSession)
			if err != nil {
				return nil, err
			}
			pkg, err := fixture.Get[*addon.BuiltPackage](h, FixtureBuildAddonPackage)
			if err != nil {
				return nil, err
			}
			printer, err := fixture.Get[*Printer](h, FixturePrinterSession)
			if err != nil {
				return nil, err
			}
			ctx := h.Context()

			printer.Print("Installing addon ...")
			eventID, err := client.InstallAddon(ctx, pkg.Name, pkg.Version, pkg.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to install addon: %w", err)
			}

			printer.Print("Waiting for the install event to finish ...")
			if _, err := client.WaitForEvent(ctx, eventID, p.pollOptions(0)); err != nil {
				return nil, err
			}

			printer.Print("Restarting server ...")
			if err := client.RestartAndWait(ctx, p.pollOptions(p.cfg.Wait.RestartDelay)); err != nil {
				return nil, err
			}

			printer.Printf("Checking installed addons for %s ...", pkg.Name)
			installed, err := client.InstalledAddons(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to get installed addons: %w", err)
			}
			var names []string
			for _, item := range installed {
				if item.AddonName == pkg.Name {
					return &InstalledAddon{Name: pkg.Name, Version: pkg.Version, printer: printer}, nil
				}
				names = append(names, item.AddonName)
			}
			return nil, fmt.Errorf("addon '%s' not found in installed addons: %v", pkg.Name, names)
		},
		func(a *InstalledAddon) error {
			// nothing is removed from the server
			a.printer.Print("Uninstalling addon ...")
			return nil
		},
	), "addon installed on the server, server restarted")
}

func (p *Plugin) pollOptions(initialDelay time.Duration) ayon.PollOptions {
	return ayon.PollOptions{
		Tries:        p.cfg.Wait.Tries,
		Interval:     p.cfg.Wait.Interval,
		InitialDelay: initialDelay,
	}
}
