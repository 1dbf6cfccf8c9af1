package po

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"
)

// PageObject is a page with its own URL. Child URLs resolve against it the
// way a browser resolves relative links, so base URLs end in "/".
type PageObject struct {
	*PortingLayer
	url string
}

func NewPageObject(pl *PortingLayer, url string) PageObject {
	return PageObject{PortingLayer: pl, url: url}
}

// URL returns the page URL, or rel resolved against it when given.
func (p PageObject) URL(rel ...string) string {
	if len(rel) == 0 || rel[0] == "" {
		return p.url
	}
	base, err := url.Parse(p.url)
	if err != nil {
		return p.url + rel[0]
	}
	ref, err := url.Parse(rel[0])
	if err != nil {
		return p.url + rel[0]
	}
	return base.ResolveReference(ref).String()
}

func (p PageObject) Open(ctx context.Context) error {
	return p.Visit(ctx, p.url)
}

// VisitRel navigates to a page relative to this one.
func (p PageObject) VisitRel(ctx context.Context, rel string) error {
	return p.Visit(ctx, p.URL(rel))
}

// JSON fetches the page's api/json representation.
func (p PageObject) JSON(ctx context.Context) (gjson.Result, error) {
	if p.API == nil {
		return gjson.Result{}, fmt.Errorf("no API client to fetch %s", p.URL("api/json"))
	}
	return p.API.Get(ctx, p.URL("api/json"))
}

func (p PageObject) String() string {
	return p.url
}
