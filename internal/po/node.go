package po

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/by"
)

// DefaultOfflineMessage is the reason MarkOffline gives when none is passed.
const DefaultOfflineMessage = "Just for testing... be right back..."

// Node is a machine that runs builds.
type Node struct {
	PageObject
	name string
}

func (n *Node) Name() string { return n.name }

func (n *Node) String() string { return n.name }

// IsOffline reads the node's offline flag from the JSON API.
func (n *Node) IsOffline(ctx context.Context) (bool, error) {
	res, err := n.JSON(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read state of %s: %w", n.name, err)
	}
	return res.Get("offline").Bool(), nil
}

func (n *Node) IsOnline(ctx context.Context) (bool, error) {
	off, err := n.IsOffline(ctx)
	return !off, err
}

func (n *Node) ExecutorCount(ctx context.Context) (int, error) {
	res, err := n.JSON(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read executors of %s: %w", n.name, err)
	}
	return len(res.Get("executors").Array()), nil
}

// RunBuildsInOrder matches a node whose build history lists the jobs in the
// given order. The history shows the newest build first.
func RunBuildsInOrder(jobs ...*Job) Matcher[*Node] {
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Name
	}

	var pattern strings.Builder
	pattern.WriteString("(?s)^.*")
	for _, name := range names {
		pattern.WriteString(regexp.QuoteMeta(name))
		pattern.WriteString(".*")
	}
	pattern.WriteString("$")
	re := regexp.MustCompile(pattern.String())

	return NewMatcher(func(ctx context.Context, n *Node) (bool, error) {
		if err := n.VisitRel(ctx, "builds"); err != nil {
			return false, err
		}
		// The builds table is filled in asynchronously.
		if err := n.ElasticSleep(ctx, 2*time.Second); err != nil {
			return false, err
		}
		el, err := n.Find(ctx, by.ID("projectStatus"))
		if err != nil {
			return false, err
		}
		text, err := el.Text(ctx)
		if err != nil {
			return false, err
		}
		return re.MatchString(text), nil
	}, "agent run build in order: %s", strings.Join(names, " "))
}

// Agent is a node other than the built-in one, managed from computer/<name>/.
type Agent struct {
	Node
	jenkins *Jenkins
}

func newAgent(j *Jenkins, name string) *Agent {
	return &Agent{
		Node: Node{
			PageObject: NewPageObject(j.PortingLayer, j.URLf("computer/%s/", name)),
			name:       name,
		},
		jenkins: j,
	}
}

// WaitUntilOnline blocks until the agent reports online. On timeout the
// error carries the agent log.
func (a *Agent) WaitUntilOnline(ctx context.Context) error {
	return WaitForSubject(a.PortingLayer, a).
		WithMessage("Agent is online").
		Diagnose(func(last error, _ string) string {
			text, err := a.Log(context.WithoutCancel(ctx))
			if err != nil {
				return "Agent log unavailable: " + err.Error()
			}
			return "Agent log:\n" + text
		}).
		Until(ctx, func(ctx context.Context, a *Agent) (bool, error) {
			return a.IsOnline(ctx)
		})
}

// Log returns the agent's connection log as shown on its log page.
func (a *Agent) Log(ctx context.Context) (string, error) {
	if err := a.VisitRel(ctx, "log"); err != nil {
		return "", err
	}
	el, err := a.Find(ctx, by.CSS("pre#out pre"))
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// MarkOffline takes an online agent temporarily offline. The message
// defaults to DefaultOfflineMessage.
func (a *Agent) MarkOffline(ctx context.Context, message ...string) error {
	msg := DefaultOfflineMessage
	if len(message) > 0 {
		msg = message[0]
	}

	online, err := a.IsOnline(ctx)
	if err != nil || !online {
		return err
	}

	if err := a.Open(ctx); err != nil {
		return err
	}
	if err := a.ClickButton(ctx, "Mark this node temporarily offline"); err != nil {
		return err
	}
	if err := a.fillOfflineMessage(ctx, msg); err != nil {
		return err
	}
	log.Info().Str("agent", a.name).Str("reason", msg).Msg("marking agent offline")
	return a.ClickButton(ctx, "Mark this node temporarily offline")
}

func (a *Agent) MarkOnline(ctx context.Context) error {
	offline, err := a.IsOffline(ctx)
	if err != nil || !offline {
		return err
	}

	if err := a.Open(ctx); err != nil {
		return err
	}
	log.Info().Str("agent", a.name).Msg("bringing agent online")
	return a.ClickButton(ctx, "Bring this node back online")
}

// Disconnect drops the agent's channel, recording message as the reason.
func (a *Agent) Disconnect(ctx context.Context, message string) error {
	online, err := a.IsOnline(ctx)
	if err != nil || !online {
		return err
	}

	if err := a.Open(ctx); err != nil {
		return err
	}
	if err := a.ClickLink(ctx, "Disconnect"); err != nil {
		return err
	}
	if err := a.fillOfflineMessage(ctx, message); err != nil {
		return err
	}
	log.Info().Str("agent", a.name).Str("reason", message).Msg("disconnecting agent")
	return a.ClickButton(ctx, "Yes")
}

// Delete removes the agent. Older servers label the link "Delete Slave".
func (a *Agent) Delete(ctx context.Context) error {
	if err := a.Open(ctx); err != nil {
		return err
	}
	err := Resolve([]string{"Delete Agent", "Delete Slave"}, func(caption string) error {
		return a.ClickLink(ctx, caption)
	})
	if err != nil {
		return err
	}
	log.Info().Str("agent", a.name).Msg("deleting agent")
	return a.ClickButton(ctx, "Yes")
}

// LaunchAgent starts an offline agent. Older servers label the button
// "Launch slave agent".
func (a *Agent) LaunchAgent(ctx context.Context) error {
	offline, err := a.IsOffline(ctx)
	if err != nil || !offline {
		return err
	}

	if err := a.Open(ctx); err != nil {
		return err
	}
	return Resolve([]string{"Launch agent", "Launch slave agent"}, func(caption string) error {
		return a.ClickButton(ctx, caption)
	})
}

func (a *Agent) fillOfflineMessage(ctx context.Context, msg string) error {
	el, err := a.Find(ctx, by.Input("offlineMessage"))
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return err
	}
	el, err = a.Find(ctx, by.Input("offlineMessage"))
	if err != nil {
		return err
	}
	return el.SendKeys(ctx, msg)
}
