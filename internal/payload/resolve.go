package payload

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/restnotify/restnotify/internal/metrics"
)

// Fields is the flat parameter set sent to the endpoint.
type Fields map[string]any

// Resolver renders data trees and applies data_types coercion.
// It holds no per-send state and is safe for concurrent use.
type Resolver struct {
	renderer Renderer
	types    map[string]string
	log      zerolog.Logger
}

// NewResolver returns a resolver that renders templates with renderer and
// coerces top-level keys according to types (key -> int|float|bool|str).
func NewResolver(renderer Renderer, types map[string]string, log zerolog.Logger) *Resolver {
	t := make(map[string]string, len(types))
	for k, v := range types {
		t[k] = v
	}
	return &Resolver{renderer: renderer, types: t, log: log}
}

// ResolveFields resolves every top-level key of m, coercing each value with
// the tag data_types declares for that key.
func (r *Resolver) ResolveFields(m *Mapping, ctx Context) (Fields, error) {
	out := make(Fields, m.Len())
	for _, key := range m.Keys() {
		n, _ := m.Get(key)
		v, err := r.Resolve(n, ctx, r.types[key])
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

// Resolve renders n against ctx and, when tag is non-empty, coerces the
// result. Children of sequences and mappings are resolved without a tag.
func (r *Resolver) Resolve(n Node, ctx Context, tag string) (any, error) {
	var v any
	switch x := n.(type) {
	case nil:
	case Literal:
		v = x.Value
	case Template:
		if r.renderer == nil {
			return nil, errors.New("no template renderer configured")
		}
		out, err := r.renderer.Render(x.Source, ctx)
		if err != nil {
			return nil, err
		}
		r.log.Debug().Str("template", x.Source).Interface("result", out).Msgf("rendered template of type %T", out)
		v = out
	case Sequence:
		items := make([]any, 0, len(x))
		for _, item := range x {
			rv, err := r.Resolve(item, ctx, "")
			if err != nil {
				return nil, err
			}
			items = append(items, rv)
		}
		v = items
	case *Mapping:
		m := make(map[string]any, x.Len())
		for _, key := range x.Keys() {
			child, _ := x.Get(key)
			rv, err := r.Resolve(child, ctx, "")
			if err != nil {
				return nil, fmt.Errorf("resolve %q: %w", key, err)
			}
			m[key] = rv
		}
		v = m
	default:
		return nil, fmt.Errorf("unknown node type %T", n)
	}
	if tag == "" {
		return v, nil
	}
	return r.coerce(v, tag), nil
}

func (r *Resolver) coerce(v any, tag string) any {
	out, err := Coerce(v, tag)
	var cerr *CoercionError
	switch {
	case err == nil:
		r.log.Debug().Str("data_type", tag).Msgf("coerced %T %v to %T %v", v, v, out, out)
		return out
	case errors.Is(err, ErrUnsupportedType):
		metrics.IncUnsupportedType()
		r.log.Warn().Str("data_type", tag).Msg("Ignoring unsupported data type")
		return v
	case errors.As(err, &cerr):
		metrics.IncCoercionFailure()
		r.log.Error().Err(cerr.Err).Str("data_type", tag).Msgf("Cannot convert '%v' to %s", v, tag)
		return nil
	default:
		r.log.Error().Err(err).Str("data_type", tag).Msg("coercion failed")
		return nil
	}
}
