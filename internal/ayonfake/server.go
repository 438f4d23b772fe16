// Package ayonfake is an in-memory AYON server covering the endpoints the
// fixtures call. It is meant for tests only.
package ayonfake

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"

	"github.com/ynput/ayonfixt/pkg/ayon"
)

// Version is reported by /api/info
const Version = "1.9.0+fake"

// Project is the server-side state of one project
type Project struct {
	Request         ayon.ProjectRequest
	LinkTypes       map[string]map[string]any
	Folders         map[string]ayon.FolderRequest
	Tasks           map[string]ayon.TaskRequest
	Products        map[string]ayon.ProductRequest
	Versions        map[string]ayon.VersionRequest
	Representations map[string]ayon.Representation
	Links           map[string]ayon.LinkRequest
}

// Addon is an uploaded addon package
type Addon struct {
	Name    string
	Version string
	Size    int64
}

// Server is a fake AYON server
type Server struct {
	*httptest.Server

	apiKey string

	mu              sync.Mutex
	projects        map[string]*Project
	deleted         []string
	events          map[string]*eventState
	addons          []Addon
	restarts        int
	downFor         int
	pollsToFinish   int
	restartDowntime int
	requests        []string
}

type eventState struct {
	event ayon.Event
	polls int
}

// Option configures the Server
type Option func(*Server)

// WithEventPolls makes events finish on the n-th poll
func WithEventPolls(n int) Option {
	return func(s *Server) { s.pollsToFinish = n }
}

// WithRestartDowntime makes /api/info fail n times after a restart
func WithRestartDowntime(n int) Option {
	return func(s *Server) { s.restartDowntime = n }
}

// New starts a fake server accepting apiKey
func New(apiKey string, opts ...Option) *Server {
	s := &Server{
		apiKey:        apiKey,
		projects:      make(map[string]*Project),
		events:        make(map[string]*eventState),
		pollsToFinish: 1,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("DELETE /api/projects/{project}", s.handleDeleteProject)
	mux.HandleFunc("PUT /api/projects/{project}/links/types/{linkType}", s.handleLinkType)
	mux.HandleFunc("POST /api/projects/{project}/folders", s.handleFolder)
	mux.HandleFunc("POST /api/projects/{project}/tasks", s.handleTask)
	mux.HandleFunc("POST /api/projects/{project}/products", s.handleProduct)
	mux.HandleFunc("POST /api/projects/{project}/versions", s.handleVersion)
	mux.HandleFunc("POST /api/projects/{project}/representations", s.handleRepresentation)
	mux.HandleFunc("POST /api/projects/{project}/links", s.handleLink)
	mux.HandleFunc("POST /api/addons/install", s.handleInstall)
	mux.HandleFunc("GET /api/addons/install", s.handleInstalled)
	mux.HandleFunc("GET /api/events/{id}", s.handleEvent)
	mux.HandleFunc("POST /api/system/restart", s.handleRestart)

	s.Server = httptest.NewServer(s.authenticate(mux))
	return s
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()

		if r.Header.Get(ayon.APIKeyHeader) != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Project returns the named project or nil. Callers must not mutate it.
func (s *Server) Project(name string) *Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[name]
}

// ProjectNames lists live projects
func (s *Server) ProjectNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.projects))
	for name := range s.projects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Deleted lists deleted projects in deletion order
func (s *Server) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deleted)
}

// Addons lists installed addons
func (s *Server) Addons() []Addon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.addons)
}

// Restarts counts restart requests
func (s *Server) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Requests lists "METHOD path" of every request received
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	down := s.downFor > 0
	if down {
		s.downFor--
	}
	s.mu.Unlock()

	if down {
		writeError(w, http.StatusServiceUnavailable, "server is restarting")
		return
	}
	writeJSON(w, http.StatusOK, ayon.Info{Version: Version, MOTD: "fake"})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req ayon.ProjectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "project name and code are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[req.Name]; ok {
		writeError(w, http.StatusConflict, fmt.Sprintf("project %s already exists", req.Name))
		return
	}
	s.projects[req.Name] = &Project{
		Request:         req,
		LinkTypes:       make(map[string]map[string]any),
		Folders:         make(map[string]ayon.FolderRequest),
		Tasks:           make(map[string]ayon.TaskRequest),
		Products:        make(map[string]ayon.ProductRequest),
		Versions:        make(map[string]ayon.VersionRequest),
		Representations: make(map[string]ayon.Representation),
		Links:           make(map[string]ayon.LinkRequest),
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("project")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[name]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("project %s not found", name))
		return
	}
	delete(s.projects, name)
	s.deleted = append(s.deleted, name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLinkType(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data map[string]any `json:"data"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.withProject(w, r, func(p *Project) {
		p.LinkTypes[r.PathValue("linkType")] = body.Data
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handleFolder(w http.ResponseWriter, r *http.Request) {
	var req ayon.FolderRequest
	if !decode(w, r, &req) {
		return
	}
	s.withProject(w, r, func(p *Project) {
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "folder name is required")
			return
		}
		id := ayon.NewID()
		p.Folders[id] = req
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req ayon.TaskRequest
	if !decode(w, r, &req) {
		return
	}
	s.withProject(w, r, func(p *Project) {
		if _, ok := p.Folders[req.FolderID]; !ok {
			writeError(w, http.StatusBadRequest, "folder not found")
			return
		}
		id := ayon.NewID()
		p.Tasks[id] = req
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	var req ayon.ProductRequest
	if !decode(w, r, &req) {
		return
	}
	s.withProject(w, r, func(p *Project) {
		if _, ok := p.Folders[req.FolderID]; !ok {
			writeError(w, http.StatusBadRequest, "folder not found")
			return
		}
		id := ayon.NewID()
		p.Products[id] = req
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	var req ayon.VersionRequest
	if !decode(w, r, &req) {
		return
	}
	s.withProject(w, r, func(p *Project) {
		if _, ok := p.Products[req.ProductID]; !ok {
			writeError(w, http.StatusBadRequest, "product not found")
			return
		}
		id := ayon.NewID()
		p.Versions[id] = req
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
}

func (s *Server) handleRepresentation(w http.ResponseWriter, r *http.Request) {
	var req ayon.Representation
	if !decode(w, r, &req) {
		return
	}
	s.withProject(w, r, func(p *Project) {
		if _, ok := p.Versions[req.VersionID]; !ok {
			writeError(w, http.StatusBadRequest, "version not found")
			return
		}
		id := ayon.NewID()
		p.Representations[id] = req
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req ayon.LinkRequest
	if !decode(w, r, &req) {
		return
	}
	s.withProject(w, r, func(p *Project) {
		if _, ok := p.LinkTypes[req.LinkType]; !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("link type %s not found", req.LinkType))
			return
		}
		_, inOK := p.Representations[req.Input]
		_, outOK := p.Representations[req.Output]
		if !inOK || !outOK {
			writeError(w, http.StatusBadRequest, "link endpoints not found")
			return
		}
		id := ayon.NewID()
		p.Links[id] = req
		writeJSON(w, http.StatusOK, map[string]string{"id": id})
	})
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, _, err := r.FormFile("upload_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "upload_file is required")
		return
	}
	defer f.Close()
	size, err := io.Copy(io.Discard, f)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	addon := Addon{Name: r.FormValue("addonName"), Version: r.FormValue("addonVersion"), Size: size}
	id := ayon.NewID()

	s.mu.Lock()
	s.addons = append(s.addons, addon)
	s.events[id] = &eventState{event: ayon.Event{
		ID:          id,
		Topic:       "addon.install",
		Status:      "pending",
		Description: fmt.Sprintf("Installing %s %s", addon.Name, addon.Version),
	}}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"eventId": id})
}

func (s *Server) handleInstalled(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := make([]ayon.InstalledAddon, 0, len(s.addons))
	for _, a := range s.addons {
		items = append(items, ayon.InstalledAddon{AddonName: a.Name, AddonVersion: a.Version, Status: "finished"})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st, ok := s.events[r.PathValue("id")]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	st.polls++
	if s.pollsToFinish > 0 && st.polls >= s.pollsToFinish {
		st.event.Status = ayon.EventStatusFinished
	}
	ev := st.event
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleRestart(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.restarts++
	s.downFor = s.restartDowntime
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) withProject(w http.ResponseWriter, r *http.Request, fn func(*Project)) {
	name := r.PathValue("project")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("project %s not found", name))
		return
	}
	fn(p)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"code": status, "detail": detail})
}
