package ayon

import (
	"errors"
	"fmt"
)

var (
	// ErrEventNotFinished is returned when an event does not finish within the polling budget
	ErrEventNotFinished = errors.New("event did not finish")
	// ErrServerNotRestarted is returned when the server does not come back after a restart
	ErrServerNotRestarted = errors.New("server did not restart")
)

// EventStatusFinished is the status of a completed event
const EventStatusFinished = "finished"

// APIError is returned when the server answers with an unexpected status code
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AYON %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Info is the payload of /api/info
type Info struct {
	Version    string `json:"version"`
	MOTD       string `json:"motd,omitempty"`
	ReleaseURL string `json:"releaseUrl,omitempty"`
}

// Event is a server event such as an addon installation
type Event struct {
	ID          string `json:"id"`
	Topic       string `json:"topic,omitempty"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// Finished reports whether the event completed
func (e *Event) Finished() bool {
	return e.Status == EventStatusFinished
}

// InstalledAddon is one entry of the addon install list
type InstalledAddon struct {
	AddonName    string `json:"addonName"`
	AddonVersion string `json:"addonVersion,omitempty"`
	Status       string `json:"status,omitempty"`
}

// FolderRequest creates a folder
type FolderRequest struct {
	Name       string `json:"name"`
	FolderType string `json:"folderType"`
	ParentID   string `json:"parentId,omitempty"`
}

// TaskRequest creates a task
type TaskRequest struct {
	Name     string `json:"name"`
	TaskType string `json:"taskType"`
	FolderID string `json:"folderId"`
}

// ProductRequest creates a product
type ProductRequest struct {
	Name        string `json:"name"`
	FolderID    string `json:"folderId"`
	ProductType string `json:"productType"`
}

// VersionRequest creates a version
type VersionRequest struct {
	Version   int    `json:"version"`
	ProductID string `json:"productId"`
	TaskID    string `json:"taskId,omitempty"`
}

// LinkRequest links two entities
type LinkRequest struct {
	Input    string         `json:"input"`
	Output   string         `json:"output"`
	Name     string         `json:"name"`
	Link     string         `json:"link"`
	LinkType string         `json:"linkType"`
	Data     map[string]any `json:"data"`
}

// File is one file of a representation
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int    `json:"size"`
	Hash     string `json:"hash"`
	HashType string `json:"hashType"`
}

// RepresentationAttrib holds representation attributes
type RepresentationAttrib struct {
	FrameStart int    `json:"frameStart"`
	FrameEnd   int    `json:"frameEnd"`
	Template   string `json:"template"`
}

// Representation creates a representation
type Representation struct {
	Name      string               `json:"name"`
	VersionID string               `json:"versionId"`
	Files     []File               `json:"files"`
	Data      map[string]any       `json:"data"`
	Attrib    RepresentationAttrib `json:"attrib"`
}
