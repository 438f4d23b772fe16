package ayon

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

// FileListParams names the pieces of a published frame sequence
type FileListParams struct {
	ProjectName string
	ProjectCode string
	FolderName  string
	ProductName string
	Version     int
	Ext         string
	FrameStart  int
	// FrameEnd is exclusive
	FrameEnd int
}

// FileList returns one File per frame in [FrameStart, FrameEnd)
func FileList(p FileListParams) []File {
	var files []File
	for frame := p.FrameStart; frame < p.FrameEnd; frame++ {
		name := fmt.Sprintf("%s_%s_%s_v%03d.%04d.%s",
			p.ProjectCode, p.FolderName, p.ProductName, p.Version, frame, p.Ext)
		sum := md5.Sum([]byte(name))
		files = append(files, File{
			ID:       NewID(),
			Name:     name,
			Path:     fmt.Sprintf("{root[work]}/%s/%s/publish/render/v%03d/%s", p.ProjectName, p.FolderName, p.Version, name),
			Size:     100000 + rand.IntN(900001),
			Hash:     hex.EncodeToString(sum[:]),
			HashType: "md5",
		})
	}
	return files
}

// RepresentationParams describes a representation to build
type RepresentationParams struct {
	Name            string
	ProjectName     string
	ProjectCode     string
	FolderName      string
	TaskName        string
	ProductName     string
	Version         int
	VersionID       string
	PublishTemplate []Template
	WorkRoot        string
	FrameStart      int
	FrameEnd        int
}

// NewRepresentation builds an exr representation payload with its file list
// and publish context.
func NewRepresentation(p RepresentationParams) (Representation, error) {
	if len(p.PublishTemplate) == 0 {
		return Representation{}, fmt.Errorf("representation '%s' needs a publish template", p.Name)
	}
	if p.VersionID == "" {
		return Representation{}, fmt.Errorf("representation '%s' needs a version id", p.Name)
	}

	context := map[string]any{
		"ext":  "exr",
		"root": map[string]any{"work": p.WorkRoot},
		"task": map[string]any{
			"name":  p.TaskName,
			"type":  "Rendering",
			"short": "rnd",
		},
		"user":   "Test",
		"folder": map[string]any{"name": p.FolderName},
		"family": "render",
		"product": map[string]any{
			"name": p.ProductName,
			"type": "render",
		},
		"project": map[string]any{
			"code": p.ProjectCode,
			"name": p.ProjectName,
		},
		"version":        p.Version,
		"username":       "Test",
		"hierarchy":      "",
		"representation": "exr",
	}

	return Representation{
		Name:      p.Name,
		VersionID: p.VersionID,
		Files: FileList(FileListParams{
			ProjectName: p.ProjectName,
			ProjectCode: p.ProjectCode,
			FolderName:  p.FolderName,
			ProductName: p.ProductName,
			Version:     p.Version,
			Ext:         "exr",
			FrameStart:  p.FrameStart,
			FrameEnd:    p.FrameEnd,
		}),
		Data: map[string]any{"context": context},
		Attrib: RepresentationAttrib{
			FrameStart: p.FrameStart,
			FrameEnd:   p.FrameEnd,
			Template:   p.PublishTemplate[0].Path(),
		},
	}, nil
}

// NewID returns a dashless uuid4 as AYON uses for entity ids
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
