package payload

import (
	"fmt"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// Context is the set of named values visible to templates during a send.
type Context map[string]any

// Renderer evaluates template source against a context. Implementations
// return the rendered text as-is and never try to reinterpret it as a
// richer type; typing is the job of the data_types coercion step.
type Renderer interface {
	Render(source string, ctx Context) (any, error)
}

// RenderFunc adapts a plain function to Renderer.
type RenderFunc func(source string, ctx Context) (any, error)

// Render calls f.
func (f RenderFunc) Render(source string, ctx Context) (any, error) { return f(source, ctx) }

// PongoRenderer renders Jinja-style templates with pongo2 and caches the
// compiled form of every distinct source it sees.
type PongoRenderer struct {
	cache sync.Map // source -> *pongo2.Template
}

// NewPongoRenderer returns a renderer with HTML autoescaping turned off for
// its own templates, so rendered values reach the wire exactly as written.
// pongo2's process-wide autoescape setting is left alone.
func NewPongoRenderer() *PongoRenderer {
	return &PongoRenderer{}
}

const (
	autoescapeOff    = "{% autoescape off %}"
	endAutoescapeOff = "{% endautoescape %}"
)

// Compile parses source without rendering it; config validation uses it to
// reject broken templates at load time.
func (r *PongoRenderer) Compile(source string) error {
	_, err := r.template(source)
	return err
}

// Render implements Renderer.
func (r *PongoRenderer) Render(source string, ctx Context) (any, error) {
	tpl, err := r.template(source)
	if err != nil {
		return nil, err
	}
	out, err := tpl.Execute(pongo2.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return out, nil
}

func (r *PongoRenderer) template(source string) (*pongo2.Template, error) {
	if v, ok := r.cache.Load(source); ok {
		return v.(*pongo2.Template), nil
	}
	tpl, err := pongo2.FromString(autoescapeOff + source + endAutoescapeOff)
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", source, err)
	}
	actual, _ := r.cache.LoadOrStore(source, tpl)
	return actual.(*pongo2.Template), nil
}
