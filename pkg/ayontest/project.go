package ayontest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	mrand "math/rand/v2"

	"github.com/ynput/ayonfixt/internal/config"
	"github.com/ynput/ayonfixt/pkg/ayon"
	"github.com/ynput/ayonfixt/pkg/fixture"
)

// IDNamePair is an entity id with its name
type IDNamePair struct {
	ID   string
	Name string
}

// ProjectInfo describes a populated test project
type ProjectInfo struct {
	ProjectName     string
	ProjectCode     string
	RootFolders     ayon.Root
	Folder          IDNamePair
	Task            IDNamePair
	Product         IDNamePair
	Version         IDNamePair
	Representations []IDNamePair
	Links           []string

	client  *ayon.Client
	printer *Printer
}

// Delete removes the project from the server
func (p *ProjectInfo) Delete(ctx context.Context) error {
	if p.printer != nil {
		p.printer.Printf("tearing down project %s...", p.ProjectName)
	}
	return p.client.DeleteProject(ctx, p.ProjectName)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// CreateProject creates a project with a folder, a task, a product, a version
// and opts.Representations representations, then links them pairwise.
// A partially created project is deleted before the error is returned.
func CreateProject(ctx context.Context, client *ayon.Client, opts config.ProjectConfig, printer *Printer) (info *ProjectInfo, err error) {
	if printer == nil {
		printer = NewPrinter(io.Discard, "", nil)
	}

	token := randomHex(5)
	name := token + "_test_project"
	code := "TP_" + token[:3]
	folderName := "t_folder_" + randomHex(3)
	const (
		productName = "renderMain"
		taskName    = "rendering"
		version     = 1
	)

	printer.Printf("creating project %s...", name)
	req := ayon.NewProjectRequest(name, code)
	if err := client.CreateProject(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create project %s: %w", name, err)
	}

	info = &ProjectInfo{
		ProjectName: name,
		ProjectCode: code,
		RootFolders: req.Anatomy.Roots[0],
		client:      client,
		printer:     printer,
	}
	defer func() {
		if err != nil {
			if delErr := client.DeleteProject(context.WithoutCancel(ctx), name); delErr != nil {
				err = fmt.Errorf("%w (cleanup failed: %v)", err, delErr)
			}
			info = nil
		}
	}()

	// the server does not create link types from the anatomy
	if err := client.UpsertLinkType(ctx, name, ayon.RelationshipLinkType, map[string]any{"color": "#73149F"}); err != nil {
		return nil, fmt.Errorf("failed to create link type: %w", err)
	}

	printer.Printf("filling project %s with data...", name)
	folderID, err := client.CreateFolder(ctx, name, ayon.FolderRequest{Name: folderName, FolderType: "Asset"})
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	info.Folder = IDNamePair{ID: folderID, Name: folderName}

	taskID, err := client.CreateTask(ctx, name, ayon.TaskRequest{Name: taskName, TaskType: "rendering", FolderID: folderID})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	info.Task = IDNamePair{ID: taskID, Name: taskName}

	productID, err := client.CreateProduct(ctx, name, ayon.ProductRequest{Name: productName, FolderID: folderID, ProductType: "render"})
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	info.Product = IDNamePair{ID: productID, Name: productName}

	versionID, err := client.CreateVersion(ctx, name, ayon.VersionRequest{Version: version, ProductID: productID, TaskID: taskID})
	if err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}
	info.Version = IDNamePair{ID: versionID, Name: fmt.Sprintf("v%03d", version)}

	for i := 1; i <= opts.Representations; i++ {
		repName := fmt.Sprintf("exr_%d", i)
		rep, err := ayon.NewRepresentation(ayon.RepresentationParams{
			Name:            repName,
			ProjectName:     name,
			ProjectCode:     code,
			FolderName:      folderName,
			TaskName:        taskName,
			ProductName:     productName,
			Version:         version,
			VersionID:       versionID,
			PublishTemplate: req.Anatomy.Templates.Publish,
			WorkRoot:        req.Anatomy.Roots[0].Windows,
			FrameStart:      opts.FrameStart,
			FrameEnd:        opts.FrameEndMin + mrand.IntN(opts.FrameEndMax-opts.FrameEndMin+1),
		})
		if err != nil {
			return nil, err
		}
		id, err := client.CreateRepresentation(ctx, name, rep)
		if err != nil {
			return nil, fmt.Errorf("failed to create representation %s: %w", repName, err)
		}
		printer.Printf("Created representation %s with %d files", repName, len(rep.Files))
		info.Representations = append(info.Representations, IDNamePair{ID: id, Name: repName})
	}

	// link representations pairwise: 1 -> 2, 3 -> 4, ...
	for i := 0; i+1 < len(info.Representations); i += 2 {
		linkID, err := client.CreateLink(ctx, name, ayon.LinkRequest{
			Input:    info.Representations[i].ID,
			Output:   info.Representations[i+1].ID,
			Name:     fmt.Sprintf("relationship_%d", i/2+1),
			Link:     ayon.RelationshipLinkType,
			LinkType: ayon.RelationshipLinkType,
			Data:     map[string]any{},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create link: %w", err)
		}
		info.Links = append(info.Links, linkID)
	}

	return info, nil
}

func (p *Plugin) projectFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureProject, fixture.ScopeTest,
		func(h fixture.Handle) (*ProjectInfo, error) {
			client, err := fixture.Get[*ayon.Client](h, FixtureServerSession)
			if err != nil {
				return nil, err
			}
			printer, err := fixture.Get[*Printer](h, FixturePrinter)
			if err != nil {
				return nil, err
			}
			return CreateProject(h.Context(), client, p.cfg.Project, printer)
		},
		func(info *ProjectInfo) error {
			return info.Delete(context.Background())
		},
	), "project with a folder, task, product, version, representations and links; deleted after the test")
}
