// Package actions maps the data-action attribute of clicked elements to handlers.
package actions

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"maragu.dev/gomponents"
)

const (
	// AttrAction names the handler of a clickable element.
	AttrAction = "data-action"
	// AttrID carries the record id passed to the handler.
	AttrID = "data-id"
)

// Outcome describes the UI effect of a handled click.
type Outcome struct {
	// Render is swapped into Target with Swap. Nil renders nothing.
	Render gomponents.Node
	Target string
	Swap   string
	// Events are client side events triggered after the swap, keyed by name.
	Events map[string]any
	// Alert is shown as a blocking message.
	Alert string
	// Refresh reloads the page table.
	Refresh bool
}

// Handler handles one click. id is the data-id of the element, empty when absent.
type Handler func(ctx context.Context, id string) (Outcome, error)

// Registry is the action table of one page. The last registration of a name wins.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register stores h under name, replacing a previous handler.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered action names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Dispatch invokes the handler registered for name. An unknown name is a
// no-op and reports false.
func (r *Registry) Dispatch(ctx context.Context, name, id string) (Outcome, bool, error) {
	h, ok := r.Lookup(name)
	if !ok {
		return Outcome{}, false, nil
	}
	out, err := h(ctx, id)
	return out, true, err
}

// Closest returns n or its nearest ancestor element carrying data-action.
func Closest(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && htmlquery.SelectAttr(n, AttrAction) != "" {
			return n
		}
	}
	return nil
}

// DispatchNode dispatches a click on n. A click on a child of an action
// element (an icon inside a button) resolves to that element.
func (r *Registry) DispatchNode(ctx context.Context, n *html.Node) (Outcome, bool, error) {
	target := Closest(n)
	if target == nil {
		return Outcome{}, false, nil
	}
	return r.Dispatch(ctx, htmlquery.SelectAttr(target, AttrAction), htmlquery.SelectAttr(target, AttrID))
}

// Click parses a rendered fragment and dispatches a click on the first
// element matched by the XPath expression.
func (r *Registry) Click(ctx context.Context, fragment, expr string) (Outcome, bool, error) {
	doc, err := htmlquery.Parse(strings.NewReader(fragment))
	if err != nil {
		return Outcome{}, false, err
	}
	n, err := htmlquery.Query(doc, expr)
	if err != nil || n == nil {
		return Outcome{}, false, err
	}
	return r.DispatchNode(ctx, n)
}

// Audit returns the action names used in fragment that have no handler.
func (r *Registry) Audit(fragment string) ([]string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var dead []string
	for _, n := range htmlquery.Find(doc, "//*[@"+AttrAction+"]") {
		name := htmlquery.SelectAttr(n, AttrAction)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := r.Lookup(name); !ok {
			dead = append(dead, name)
		}
	}
	sort.Strings(dead)
	return dead, nil
}
