package po

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/by"
)

// ViewKind describes a view type offered on the "New View" page: the radio
// captions it has carried across server versions and how to build its page
// object once created.
type ViewKind struct {
	Captions     []string
	Constructors Constructors
}

// ViewsSection creates and opens views.
type ViewsSection struct {
	PageObject
	jenkins *Jenkins
}

// CreateView creates a view of the given kind and returns its page object.
// An empty name is replaced by a random one.
func CreateView[T any](ctx context.Context, s *ViewsSection, kind ViewKind, name string) (T, error) {
	var zero T
	if name == "" {
		name = uuid.NewString()[:8]
	}

	if err := s.VisitRel(ctx, "newView"); err != nil {
		return zero, err
	}
	if err := s.FillIn(ctx, "name", name); err != nil {
		return zero, err
	}
	err := Resolve(kind.Captions, func(caption string) error {
		_, err := s.Choose(ctx, caption)
		return err
	})
	if err != nil {
		return zero, fmt.Errorf("failed to select view type: %w", err)
	}
	err = Resolve([]string{"Create", "OK"}, func(caption string) error {
		return s.ClickButton(ctx, caption)
	})
	if err != nil {
		return zero, err
	}

	log.Info().Str("view", name).Msg("created view")
	return NewInstance[T](kind.Constructors, s.jenkins, s.jenkins.URLf("view/%s/", name))
}

// View is any view page.
type View struct {
	PageObject
	jenkins *Jenkins
}

func (v *View) Configure(ctx context.Context) error {
	return v.VisitRel(ctx, "configure")
}

// Save submits the configuration form.
func (v *View) Save(ctx context.Context) error {
	return v.ClickButton(ctx, "Save")
}

// ListView shows the jobs selected by name or regular expression.
type ListView struct {
	View
	IncludeRegex *Control
	useRegex     *Control
}

// ListViewKind registers ListView with CreateView.
var ListViewKind = ViewKind{
	Captions:     []string{"List View", "hudson.model.ListView"},
	Constructors: Constructors{NewListView},
}

func NewListView(j *Jenkins, url string) *ListView {
	return &ListView{
		View:         View{PageObject: NewPageObject(j.PortingLayer, url), jenkins: j},
		IncludeRegex: NewControl(j.PortingLayer, "/useincluderegex/includeRegex"),
		useRegex:     NewControl(j.PortingLayer, "/useincluderegex"),
	}
}

// MatchJobs includes every job whose name matches regex. The view must be
// on its configure page.
func (l *ListView) MatchJobs(ctx context.Context, regex string) error {
	if err := l.useRegex.Check(ctx); err != nil {
		return err
	}
	return l.IncludeRegex.Set(ctx, regex)
}

// JenkinsConfig is the global configuration page.
type JenkinsConfig struct {
	PageObject
	NumExecutors *Control
}

func newJenkinsConfig(j *Jenkins) *JenkinsConfig {
	return &JenkinsConfig{
		PageObject:   NewPageObject(j.PortingLayer, j.URL("configure")),
		NumExecutors: NewControl(j.PortingLayer, "/jenkins-model-MasterBuildConfiguration/numExecutors"),
	}
}

func (c *JenkinsConfig) Configure(ctx context.Context) error {
	if err := c.Open(ctx); err != nil {
		return err
	}
	_, err := c.WaitForElement(ctx, by.Name("config"))
	return err
}

func (c *JenkinsConfig) Save(ctx context.Context) error {
	return c.ClickButton(ctx, "Save")
}
