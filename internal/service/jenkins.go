package service

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/gti/jenkins-acceptance/internal/models"
)

// ListViewMode is the view type behind the "List View" radio button.
const ListViewMode = "hudson.model.ListView"

var (
	ErrAgentNotFound     = errors.New("agent not found")
	ErrAgentExists       = errors.New("agent already exists")
	ErrViewNotFound      = errors.New("view not found")
	ErrViewExists        = errors.New("a view already exists with the name")
	ErrUnknownViewMode   = errors.New("unknown view type")
	ErrInvalidName       = errors.New("invalid name")
	ErrNegativeExecutors = errors.New("number of executors must be non-negative")
	ErrInvalidRegex      = errors.New("invalid include regex")
)

// legacy servers call agents slaves and validate executors as numbers
var (
	agentRename      = semver.MustParse("2.0.0")
	integerExecutors = semver.MustParse("2.295.0")
)

// JenkinsService holds the in-memory state of the mock CI server.
type JenkinsService struct {
	version *semver.Version

	mu           sync.RWMutex
	numExecutors int
	agents       map[string]*models.Agent
	views        map[string]*models.View
	jobs         []string
}

func NewJenkinsService(version string) (*JenkinsService, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", version, err)
	}
	s := &JenkinsService{version: v}
	s.Reset()
	return s, nil
}

// Version is the string sent in the X-Jenkins header.
func (s *JenkinsService) Version() string {
	return s.version.Original()
}

// LegacyCaptions reports whether the UI still says "slave".
func (s *JenkinsService) LegacyCaptions() bool {
	return s.version.LessThan(agentRename)
}

// Reset drops all agents, views and jobs.
func (s *JenkinsService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numExecutors = 2
	s.agents = make(map[string]*models.Agent)
	s.views = map[string]*models.View{"all": {Name: "all", Mode: "hudson.model.AllView"}}
	s.jobs = nil
}

func (s *JenkinsService) Agents() []models.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]models.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, copyAgent(a))
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents
}

func (s *JenkinsService) Agent(name string) (models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[name]
	if !ok {
		return models.Agent{}, ErrAgentNotFound
	}
	return copyAgent(a), nil
}

func copyAgent(a *models.Agent) models.Agent {
	c := *a
	c.Log = slices.Clone(a.Log)
	c.Builds = slices.Clone(a.Builds)
	return c
}

func (s *JenkinsService) CreateAgent(req models.CreateAgentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[req.Name]; ok {
		return ErrAgentExists
	}
	a := &models.Agent{Name: req.Name, Executors: req.Executors, Connected: req.Connected}
	if req.Log != "" {
		a.Log = strings.Split(strings.TrimRight(req.Log, "\n"), "\n")
	}
	s.agents[req.Name] = a
	return nil
}

// update applies fn to the named agent under the write lock.
func (s *JenkinsService) update(name string, fn func(a *models.Agent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[name]
	if !ok {
		return ErrAgentNotFound
	}
	fn(a)
	return nil
}

// ToggleOffline flips the temporary offline flag, keeping message as the
// reason when going offline.
func (s *JenkinsService) ToggleOffline(name, message string) error {
	return s.update(name, func(a *models.Agent) {
		a.TemporarilyOffline = !a.TemporarilyOffline
		if a.TemporarilyOffline {
			a.OfflineMessage = message
		} else {
			a.OfflineMessage = ""
		}
	})
}

func (s *JenkinsService) Disconnect(name, message string) error {
	return s.update(name, func(a *models.Agent) {
		a.Connected = false
		a.OfflineMessage = message
		a.Log = append(a.Log, "Disconnected: "+message)
	})
}

func (s *JenkinsService) Launch(name string) error {
	return s.update(name, func(a *models.Agent) {
		a.Connected = true
		a.Log = append(a.Log, "Agent successfully connected and online")
	})
}

func (s *JenkinsService) DeleteAgent(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[name]; !ok {
		return ErrAgentNotFound
	}
	delete(s.agents, name)
	return nil
}

func (s *JenkinsService) AppendLog(name, line string) error {
	return s.update(name, func(a *models.Agent) {
		a.Log = append(a.Log, line)
	})
}

// RecordBuild adds the next build of job to the agent's history and returns
// its number.
func (s *JenkinsService) RecordBuild(name, job string) (int, error) {
	var number int
	err := s.update(name, func(a *models.Agent) {
		number = 1
		for _, b := range a.Builds {
			if b.Job == job && b.Number >= number {
				number = b.Number + 1
			}
		}
		a.Builds = append(a.Builds, models.Build{Job: job, Number: number})
	})
	return number, err
}

// BuildHistory lists the builds run on the agent newest first, the order of
// the agent's builds page.
func (s *JenkinsService) BuildHistory(name string) ([]models.Build, error) {
	a, err := s.Agent(name)
	if err != nil {
		return nil, err
	}
	slices.Reverse(a.Builds)
	return a.Builds, nil
}

func (s *JenkinsService) Views() []models.View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]models.View, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, *v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}

func (s *JenkinsService) View(name string) (models.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.views[name]
	if !ok {
		return models.View{}, ErrViewNotFound
	}
	return *v, nil
}

func (s *JenkinsService) CreateView(name, mode string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "/?#") {
		return ErrInvalidName
	}
	if mode != ListViewMode {
		return ErrUnknownViewMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.views[name]; ok {
		return ErrViewExists
	}
	s.views[name] = &models.View{Name: name, Mode: mode}
	return nil
}

func (s *JenkinsService) ConfigureView(name string, useRegex bool, includeRegex string) error {
	if useRegex {
		if _, err := regexp.Compile(includeRegex); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRegex, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.views[name]
	if !ok {
		return ErrViewNotFound
	}
	v.UseRegex = useRegex
	v.IncludeRegex = includeRegex
	return nil
}

// ViewJobs lists the jobs a view shows. A list view without a regex shows
// none, the all view shows every job.
func (s *JenkinsService) ViewJobs(name string) ([]string, error) {
	v, err := s.View(name)
	if err != nil {
		return nil, err
	}
	jobs := s.Jobs()
	if !v.UseRegex {
		if v.Mode == ListViewMode {
			return nil, nil
		}
		return jobs, nil
	}

	re, err := regexp.Compile("^(?:" + v.IncludeRegex + ")$")
	if err != nil {
		return nil, nil
	}
	var out []string
	for _, j := range jobs {
		if re.MatchString(j) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *JenkinsService) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.jobs)
}

func (s *JenkinsService) CreateJob(name string) error {
	if name == "" || strings.ContainsAny(name, "/?#") {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.jobs, name) {
		return nil
	}
	s.jobs = append(s.jobs, name)
	sort.Strings(s.jobs)
	return nil
}

func (s *JenkinsService) NumExecutors() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.numExecutors
}

func (s *JenkinsService) SetNumExecutors(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return ErrNegativeExecutors
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numExecutors = n
	return nil
}

// ExecutorsMessage is the client-side validation error for a bad executor
// count. Servers up to 2.295 still said "number".
func (s *JenkinsService) ExecutorsMessage() string {
	if s.version.GreaterThan(integerExecutors) {
		return "Not a non-negative integer"
	}
	return "Not a non-negative number"
}

// CheckIncludeRegex renders the validation fragment for an include regex.
// A valid pattern renders nothing.
func (s *JenkinsService) CheckIncludeRegex(value string) string {
	if _, err := regexp.Compile(value); err != nil {
		return `<div class="error">` + html.EscapeString(err.Error()) + `</div>`
	}
	if strings.TrimSpace(value) == "" {
		return `<div class="warning">` + html.EscapeString("The regular expression is empty and matches no job") + `</div>`
	}
	return ""
}
