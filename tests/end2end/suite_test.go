package end2end

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ynput/ayonfixt/internal/addon"
	"github.com/ynput/ayonfixt/internal/config"
	"github.com/ynput/ayonfixt/pkg/ayon"
	"github.com/ynput/ayonfixt/pkg/ayontest"
	"github.com/ynput/ayonfixt/pkg/fixture"
)

func TestE2E_SessionClientIsShared(t *testing.T) {
	var clients []*ayon.Client
	for i := 0; i < 2; i++ {
		t.Run("resolve client", func(t *testing.T) {
			h := suite.Scope(t)
			clients = append(clients, fixture.Require[*ayon.Client](t, h, ayontest.FixtureServerSession))
		})
	}
	require.Len(t, clients, 2)
	assert.Same(t, clients[0], clients[1])
	assert.Equal(t, fake.URL, os.Getenv(config.EnvServerURL))
}

func TestE2E_ProjectPerTest(t *testing.T) {
	var names []string
	for i := 0; i < 2; i++ {
		t.Run("project", func(t *testing.T) {
			h := suite.Scope(t)
			info := fixture.Require[*ayontest.ProjectInfo](t, h, ayontest.FixtureProject)
			names = append(names, info.ProjectName)

			assert.Len(t, info.Representations, 6)
			assert.Len(t, info.Links, 3)
			assert.NotNil(t, fake.Project(info.ProjectName))

			// the same test resolves the same project
			again := fixture.Require[*ayontest.ProjectInfo](t, h, ayontest.FixtureProject)
			assert.Same(t, info, again)
		})
	}

	require.Len(t, names, 2)
	assert.NotEqual(t, names[0], names[1])
	for _, name := range names {
		assert.Nil(t, fake.Project(name))
		assert.Contains(t, fake.Deleted(), name)
	}
}

func TestE2E_PublishRepresentationIntoProject(t *testing.T) {
	h := suite.Scope(t)
	info := fixture.Require[*ayontest.ProjectInfo](t, h, ayontest.FixtureProject)
	client := fixture.Require[*ayon.Client](t, h, ayontest.FixtureServerSession)

	rep, ok := suite.Call(t, h, ayontest.HelperCreateRepresentation, ayon.RepresentationParams{
		Name:            "exr_extra",
		ProjectName:     info.ProjectName,
		ProjectCode:     info.ProjectCode,
		FolderName:      info.Folder.Name,
		TaskName:        info.Task.Name,
		ProductName:     info.Product.Name,
		Version:         1,
		VersionID:       info.Version.ID,
		PublishTemplate: ayon.DefaultAnatomy().Templates.Publish,
		WorkRoot:        info.RootFolders.Windows,
		FrameStart:      1,
		FrameEnd:        4,
	}).(ayon.Representation)
	require.True(t, ok)

	id, err := client.CreateRepresentation(context.Background(), info.ProjectName, rep)
	require.NoError(t, err)
	assert.Contains(t, fake.Project(info.ProjectName).Representations, id)
}

func TestE2E_PackageInfoFromProjectRoot(t *testing.T) {
	h := suite.Scope(t)
	root := fixture.Require[string](t, h, ayontest.FixtureProjectRootPath)
	assert.FileExists(t, filepath.Join(root, "package.py"))

	info := fixture.Require[addon.PackageInfo](t, h, ayontest.FixtureAddonVersion)
	assert.Equal(t, addon.PackageInfo{Name: "ayon_usd", Version: "0.5.0"}, info)
}

func TestE2E_ServerRestartHelper(t *testing.T) {
	h := suite.Scope(t)
	before := fake.Restarts()
	suite.Call(t, h, ayontest.HelperWaitForServerRestart)
	assert.Equal(t, before+1, fake.Restarts())
}
