package po

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Jenkins is the root page object; every other page hangs off its URL.
type Jenkins struct {
	PageObject
}

func NewJenkins(pl *PortingLayer, baseURL string) *Jenkins {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Jenkins{PageObject: NewPageObject(pl, baseURL)}
}

// URLf formats a path relative to the root, escaping string arguments as
// path segments.
func (j *Jenkins) URLf(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			escaped[i] = url.PathEscape(s)
			continue
		}
		escaped[i] = a
	}
	return j.URL(fmt.Sprintf(format, escaped...))
}

func (j *Jenkins) Version(ctx context.Context) (*semver.Version, error) {
	if j.API == nil {
		return nil, fmt.Errorf("no API client to read server version")
	}
	return j.API.Version(ctx)
}

// IsNewerThan reports whether the server version is strictly greater than v.
func (j *Jenkins) IsNewerThan(ctx context.Context, v string) (bool, error) {
	current, err := j.Version(ctx)
	if err != nil {
		return false, err
	}
	other, err := semver.NewVersion(v)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", v, err)
	}
	return current.GreaterThan(other), nil
}

func (j *Jenkins) Views() *ViewsSection {
	return &ViewsSection{jenkins: j, PageObject: NewPageObject(j.PortingLayer, j.url)}
}

func (j *Jenkins) ConfigPage() *JenkinsConfig {
	return newJenkinsConfig(j)
}

func (j *Jenkins) Agent(name string) *Agent {
	return newAgent(j, name)
}

func (j *Jenkins) Job(name string) *Job {
	return &Job{PageObject: NewPageObject(j.PortingLayer, j.URLf("job/%s/", name)), Name: name}
}

// Job is a project, identified by name.
type Job struct {
	PageObject
	Name string
}

func (j *Job) String() string { return j.Name }
