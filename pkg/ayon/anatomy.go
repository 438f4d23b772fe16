package ayon

// RelationshipLinkType links two representations
const RelationshipLinkType = "relationship|representation|representation"

// Root is a project root per platform
type Root struct {
	Name    string `json:"name"`
	Windows string `json:"windows"`
	Linux   string `json:"linux"`
	Darwin  string `json:"darwin"`
}

// Template is a named directory/file template pair
type Template struct {
	Name      string `json:"name"`
	Directory string `json:"directory"`
	File      string `json:"file"`
}

// Path joins the directory and file template
func (t Template) Path() string {
	return t.Directory + "/" + t.File
}

// Templates holds the anatomy templates
type Templates struct {
	VersionPadding int        `json:"version_padding"`
	Version        string     `json:"version"`
	FramePadding   int        `json:"frame_padding"`
	Frame          string     `json:"frame"`
	Work           []Template `json:"work"`
	Publish        []Template `json:"publish"`
	Hero           []Template `json:"hero"`
}

type FolderType struct {
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	OriginalName string `json:"original_name"`
}

type TaskType struct {
	Name         string `json:"name"`
	ShortName    string `json:"shortName"`
	Icon         string `json:"icon"`
	OriginalName string `json:"original_name"`
}

type LinkType struct {
	Name       string         `json:"name"`
	LinkType   string         `json:"link_type"`
	InputType  string         `json:"input_type"`
	OutputType string         `json:"output_type"`
	Data       map[string]any `json:"data"`
}

type Status struct {
	Name         string `json:"name"`
	ShortName    string `json:"shortName"`
	State        string `json:"state"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	OriginalName string `json:"original_name"`
}

// Anatomy describes the project layout
type Anatomy struct {
	Roots       []Root         `json:"roots"`
	Templates   Templates      `json:"templates"`
	Attributes  map[string]any `json:"attributes"`
	FolderTypes []FolderType   `json:"folder_types"`
	TaskTypes   []TaskType     `json:"task_types"`
	LinkTypes   []LinkType     `json:"linkTypes"`
	Statuses    []Status       `json:"statuses"`
}

// ProjectRequest creates a project
type ProjectRequest struct {
	Name    string  `json:"name"`
	Code    string  `json:"code"`
	Anatomy Anatomy `json:"anatomy"`
	Library bool    `json:"library"`
}

// NewProjectRequest returns a request for a non-library project with the default anatomy
func NewProjectRequest(name, code string) ProjectRequest {
	return ProjectRequest{Name: name, Code: code, Anatomy: DefaultAnatomy()}
}

// DefaultAnatomy returns the anatomy used for test projects: one work root,
// an Asset folder type, a rendering task type and the representation
// relationship link type.
func DefaultAnatomy() Anatomy {
	return Anatomy{
		Roots: []Root{{
			Name:    "work",
			Windows: "C:/projects",
			Linux:   "/mnt/share/projects",
			Darwin:  "/Volumes/projects",
		}},
		Templates: Templates{
			VersionPadding: 3,
			Version:        "v{version:0>{@version_padding}}",
			FramePadding:   4,
			Frame:          "{frame:0>{@frame_padding}}",
			Work: []Template{{
				Name:      "default",
				Directory: "{root[work]}/{project[name]}/{hierarchy}/{folder[name]}/work/{task[name]}",
				File:      "{project[code]}_{folder[name]}_{task[name]}_{@version}<_{comment}>.{ext}",
			}},
			Publish: []Template{{
				Name:      "default",
				Directory: "{root[work]}/{project[name]}/{hierarchy}/{folder[name]}/publish/{product[type]}/{product[name]}/v{version:0>3}",
				File:      "{project[code]}_{folder[name]}_{product[name]}_v{version:0>3}<_{output}><.{frame:0>4}><_{udim}>.{ext}",
			}},
			Hero: []Template{{
				Name:      "default",
				Directory: "{root[work]}/{project[name]}/{hierarchy}/{folder[name]}/publish/{product[type]}/{product[name]}/hero",
				File:      "{project[code]}_{folder[name]}_{task[name]}_hero<_{comment}>.{ext}",
			}},
		},
		Attributes: map[string]any{
			"fps":              25,
			"resolutionWidth":  1920,
			"resolutionHeight": 1080,
			"pixelAspect":      1,
			"clipIn":           1,
			"clipOut":          1,
			"frameStart":       1001,
			"frameEnd":         1050,
			"handleStart":      0,
			"handleEnd":        0,
			"startDate":        "2021-01-01T00:00:00+00:00",
			"endDate":          "2021-01-01T00:00:00+00:00",
			"description":      "A very nice entity",
			"applications":     []string{},
			"tools":            []string{},
		},
		FolderTypes: []FolderType{{Name: "Asset", Icon: "folder", OriginalName: "Asset"}},
		TaskTypes:   []TaskType{{Name: "rendering", ShortName: "rendering", OriginalName: "rendering"}},
		LinkTypes: []LinkType{{
			Name:       RelationshipLinkType,
			LinkType:   "relationship",
			InputType:  "representation",
			OutputType: "representation",
			Data:       map[string]any{"color": "#73149F"},
		}},
		Statuses: []Status{{
			Name:         "not_started",
			ShortName:    "not_started",
			State:        "not_started",
			Color:        "#cacaca",
			OriginalName: "string",
		}},
	}
}
