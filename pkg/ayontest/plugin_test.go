package ayontest

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ynput/ayonfixt/internal/addon"
	"github.com/ynput/ayonfixt/internal/ayonfake"
	"github.com/ynput/ayonfixt/internal/config"
	"github.com/ynput/ayonfixt/pkg/ayon"
	"github.com/ynput/ayonfixt/pkg/fixture"
)

const (
	testAPIKey = "test-key"
	packagePy  = "name = \"ayon_usd\"\nversion = \"1.2.0\"\n"
	// create_package.py stand-in run with sh: writes <name>-<version>.zip into -o <dir>
	buildScript = "v=$(sed -n 's/^version = \"\\(.*\\)\"$/\\1/p' package.py)\n" +
		"echo \"packaging $v\"\n" +
		"printf zip > \"$2/ayon_usd-$v.zip\"\n"
)

func testConfig(t *testing.T, srv *ayonfake.Server) *config.Config {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.py"), []byte(packagePy), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "create_package.py"), []byte(buildScript), 0o755))

	cfg := config.Default()
	cfg.ServerURL = srv.URL
	cfg.APIKey = testAPIKey
	cfg.ProjectRoot = root
	cfg.Addon.Python = "sh"
	cfg.Wait.Tries = 5
	cfg.Wait.Interval = 10 * time.Millisecond
	cfg.Wait.RestartDelay = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestSuite(t *testing.T, cfg *config.Config) (*fixture.Suite, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	suite := NewSuite(WithConfig(cfg), WithOutput(&out))
	t.Cleanup(func() { _ = suite.Close() })
	return suite, &out
}

func TestPlugin_Register(t *testing.T) {
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()

	reg := fixture.NewRegistry()
	require.NoError(t, reg.Install(New(WithConfig(testConfig(t, srv)))))

	assert.ElementsMatch(t, []string{
		FixturePrinter, FixturePrinterSession, FixtureTmpPath, FixtureProjectRootPath,
		FixtureBaseDir, FixtureConnectionEnv, FixtureServerSession, FixtureAddonVersion,
		FixtureImprintVersion, FixtureBuildAddonPackage, FixtureInstalledAddon, FixtureProject,
	}, reg.Names())
	assert.ElementsMatch(t, []string{
		HelperWaitForEvent, HelperWaitForServerRestart, HelperCreateRepresentation, HelperReplaceStringInFile,
	}, reg.HelperNames())
	assert.Equal(t, []string{PluginName}, reg.Plugins())

	for _, d := range reg.Descriptors() {
		assert.NotEmpty(t, d.Description, d.Name)
	}
}

func TestPlugin_RegisterWithContainer(t *testing.T) {
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()

	cfg := testConfig(t, srv)
	cfg.Container.Image = "ynput/ayon:latest"

	reg := fixture.NewRegistry()
	require.NoError(t, reg.Install(New(WithConfig(cfg))))
	d, err := reg.Lookup(FixtureServerContainer)
	require.NoError(t, err)
	assert.Equal(t, fixture.ScopeSession, d.Scope)
}

func TestPlugin_InvalidConfigFile(t *testing.T) {
	reg := fixture.NewRegistry()
	err := reg.Install(New(WithConfigFile(filepath.Join(t.TempDir(), "missing.yml"))))
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestPlugin_InvalidInjectedConfig(t *testing.T) {
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()

	cfg := testConfig(t, srv)
	cfg.Project.FrameEndMin = 1200
	cfg.Project.FrameEndMax = 1100

	reg := fixture.NewRegistry()
	err := reg.Install(New(WithConfig(cfg)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
	assert.Contains(t, err.Error(), "frame_end_max")
	assert.Empty(t, reg.Names())
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, "\t", nil)
	p.Print("one\ntwo\n")
	p.Print("")
	p.Printf("n=%d", 3)
	assert.Equal(t, "\tone\n\ttwo\n\tn=3\n", buf.String())
}

func TestFixtures_Paths(t *testing.T) {
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()
	cfg := testConfig(t, srv)
	suite, _ := newTestSuite(t, cfg)

	h := suite.Scope(t)
	root := fixture.Require[string](t, h, FixtureProjectRootPath)
	assert.Equal(t, cfg.ProjectRoot, root)
	assert.Equal(t, filepath.Dir(root), fixture.Require[string](t, h, FixtureBaseDir))

	tmp := fixture.Require[string](t, h, FixtureTmpPath)
	assert.DirExists(t, tmp)

	info := fixture.Require[addon.PackageInfo](t, h, FixtureAddonVersion)
	assert.Equal(t, addon.PackageInfo{Name: "ayon_usd", Version: "1.2.0"}, info)

	require.NoError(t, suite.Close())
	assert.NoDirExists(t, tmp)
}

func TestFixtures_ConnectionEnv(t *testing.T) {
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()
	t.Setenv(config.EnvServerURL, "http://previous.invalid")
	t.Setenv(config.EnvAPIKey, "")
	require.NoError(t, os.Unsetenv(config.EnvAPIKey))

	suite, _ := newTestSuite(t, testConfig(t, srv))
	h := suite.Scope(t)

	env := fixture.Require[*ConnectionEnv](t, h, FixtureConnectionEnv)
	assert.Equal(t, srv.URL, env.ServerURL)
	assert.Equal(t, testAPIKey, env.APIKey)
	assert.Equal(t, srv.URL, os.Getenv(config.EnvServerURL))
	assert.Equal(t, testAPIKey, os.Getenv(config.EnvAPIKey))

	client := fixture.Require[*ayon.Client](t, h, FixtureServerSession)
	assert.Equal(t, srv.URL, client.BaseURL())

	require.NoError(t, suite.Close())
	assert.Equal(t, "http://previous.invalid", os.Getenv(config.EnvServerURL))
	_, ok := os.LookupEnv(config.EnvAPIKey)
	assert.False(t, ok)
}

func TestFixtures_MissingServerURL(t *testing.T) {
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()
	cfg := testConfig(t, srv)
	cfg.ServerURL = ""

	suite, _ := newTestSuite(t, cfg)
	h, err := suite.Session()
	require.NoError(t, err)

	_, err = fixture.Get[*ayon.Client](h, FixtureServerSession)
	assert.ErrorContains(t, err, config.EnvServerURL+" is not set")
}

func TestFixtures_WrongAPIKey(t *testing.T) {
	srv := ayonfake.New("other-key")
	defer srv.Close()

	suite, _ := newTestSuite(t, testConfig(t, srv))
	h, err := suite.Session()
	require.NoError(t, err)

	_, err = fixture.Get[*ayon.Client](h, FixtureServerSession)
	var apiErr *ayon.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
}

func TestFixtures_Project(t *testing.T) {
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()
	suite, out := newTestSuite(t, testConfig(t, srv))

	var name string
	t.Run("creates project", func(t *testing.T) {
		h := suite.Scope(t)
		info := fixture.Require[*ProjectInfo](t, h, FixtureProject)
		name = info.ProjectName

		assert.Regexp(t, `^[0-9a-f]{10}_test_project$`, info.ProjectName)
		assert.Regexp(t, `^TP_[0-9a-f]{3}$`, info.ProjectCode)
		assert.Equal(t, "rendering", info.Task.Name)
		assert.Equal(t, "renderMain", info.Product.Name)
		assert.Equal(t, "v001", info.Version.Name)
		require.Len(t, info.Representations, 4)
		assert.Equal(t, "exr_1", info.Representations[0].Name)
		assert.Len(t, info.Links, 2)

		p := srv.Project(name)
		require.NotNil(t, p)
		assert.Len(t, p.Representations, 4)
		assert.Len(t, p.Links, 2)
		assert.Contains(t, p.LinkTypes, ayon.RelationshipLinkType)

		link := p.Links[info.Links[0]]
		assert.Equal(t, info.Representations[0].ID, link.Input)
		assert.Equal(t, info.Representations[1].ID, link.Output)

		rep := p.Representations[info.Representations[0].ID]
		assert.GreaterOrEqual(t, len(rep.Files), 19)
	})

	assert.Nil(t, srv.Project(name))
	assert.Equal(t, []string{name}, srv.Deleted())
	assert.Contains(t, out.String(), "\tcreating project "+name)
	assert.Contains(t, out.String(), "\ttearing down project "+name)
}

func TestFixtures_InstalledAddon(t *testing.T) {
	requireShell(t)
	srv := ayonfake.New(testAPIKey, ayonfake.WithEventPolls(2), ayonfake.WithRestartDowntime(1))
	defer srv.Close()
	cfg := testConfig(t, srv)
	suite, out := newTestSuite(t, cfg)

	pkgFile := filepath.Join(cfg.ProjectRoot, "package.py")
	var version string
	t.Run("installs addon", func(t *testing.T) {
		h := suite.Scope(t)
		installed := fixture.Require[*InstalledAddon](t, h, FixtureInstalledAddon)
		version = installed.Version

		assert.Equal(t, "ayon_usd", installed.Name)
		assert.Regexp(t, regexp.MustCompile(`^1\.2\.0-test\+[0-9a-f]{8}$`), installed.Version)

		data, err := os.ReadFile(pkgFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), `version = "`+installed.Version+`"`)
	})

	addons := srv.Addons()
	require.Len(t, addons, 1)
	assert.Equal(t, "ayon_usd", addons[0].Name)
	assert.Equal(t, version, addons[0].Version)
	assert.Equal(t, int64(3), addons[0].Size)
	assert.Equal(t, 1, srv.Restarts())

	require.NoError(t, suite.Close())
	data, err := os.ReadFile(pkgFile)
	require.NoError(t, err)
	assert.Equal(t, packagePy, string(data))

	assert.Contains(t, out.String(), "Building addon package ...")
	assert.Contains(t, out.String(), "packaging "+version)
	assert.Contains(t, out.String(), "Uninstalling addon ...")
}

func TestHelpers(t *testing.T) {
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()
	suite, _ := newTestSuite(t, testConfig(t, srv))
	h := suite.Scope(t)

	t.Run("replace string in file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.txt")
		require.NoError(t, os.WriteFile(path, []byte("a-b-a"), 0o644))
		suite.Call(t, h, HelperReplaceStringInFile, path, "a", "c")
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "c-b-c", string(data))
	})

	t.Run("create representation", func(t *testing.T) {
		out := suite.Call(t, h, HelperCreateRepresentation, ayon.RepresentationParams{
			Name:            "exr_1",
			ProjectName:     "p",
			ProjectCode:     "P",
			FolderName:      "f",
			TaskName:        "t",
			ProductName:     "renderMain",
			Version:         1,
			VersionID:       ayon.NewID(),
			PublishTemplate: ayon.DefaultAnatomy().Templates.Publish,
			WorkRoot:        "C:/projects",
			FrameStart:      1001,
			FrameEnd:        1011,
		})
		rep, ok := out.(ayon.Representation)
		require.True(t, ok)
		assert.Equal(t, "exr_1", rep.Name)
		assert.Len(t, rep.Files, 10)
	})

	t.Run("wait for server restart", func(t *testing.T) {
		assert.Equal(t, true, suite.Call(t, h, HelperWaitForServerRestart))
		assert.Equal(t, 1, srv.Restarts())
	})

	t.Run("wait for event", func(t *testing.T) {
		client := fixture.Require[*ayon.Client](t, h, FixtureServerSession)
		zip := filepath.Join(t.TempDir(), "a-1.zip")
		require.NoError(t, os.WriteFile(zip, []byte("zip"), 0o644))
		id, err := client.InstallAddon(context.Background(), "a", "1", zip)
		require.NoError(t, err)

		ev, ok := suite.Call(t, h, HelperWaitForEvent, id).(*ayon.Event)
		require.True(t, ok)
		assert.True(t, ev.Finished())
	})
}

func TestHelpers_BadArguments(t *testing.T) {
	_, err := replaceStringInFileHelper(nil, "path", "old")
	assert.ErrorContains(t, err, "missing argument 3")

	_, err = createRepresentationHelper(nil, "not params")
	assert.ErrorContains(t, err, "argument 1 is string")
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("build script tests use sh")
	}
	for _, tool := range []string{"sh", "sed"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skip(tool + " not available")
		}
	}
}
