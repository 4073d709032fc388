// Package pagination drives a table through the paginate endpoint of an entity.
package pagination

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/Kellerman81/go_business_admin/apiclient"
	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/Kellerman81/go_business_admin/table"
	"maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	"maragu.dev/gomponents/html"
)

// DefaultPageSize is used when no positive page size is configured.
const DefaultPageSize = 10

// ErrStale is returned by Load when a newer load was issued before this one completed.
// The result is discarded and the controller state is unchanged.
var ErrStale = errors.New("stale page response discarded")

// Fetcher loads one page of an entity.
type Fetcher interface {
	Paginate(ctx context.Context, entity string, req apiclient.PageRequest) (apiclient.PageResponse, error)
}

// Options configures a controller. Filters are fixed for its lifetime.
type Options struct {
	ContainerID string
	Title       string
	Schema      table.Schema
	// TableName selects the endpoint /{TableName}/paginate.
	TableName string
	Actions   table.ActionRenderer
	Filters   map[string]any
	PageSize  int
	Fetcher   Fetcher
	// BasePath is requested by the pager buttons with ?page=N appended.
	BasePath string
}

// Controller owns the page state of one table container.
type Controller struct {
	opts Options

	mu      sync.Mutex
	seq     uint64
	current int
	total   int
	rows    []table.Row
	loaded  bool
	// failure is shown while no load has succeeded
	failure string
}

// New creates a controller. Call Load(ctx, 0) to fetch the first page.
func New(opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Filters == nil {
		opts.Filters = map[string]any{}
	}
	return &Controller{opts: opts}
}

// ContainerID returns the id of the element the controller renders into.
func (c *Controller) ContainerID() string {
	return c.opts.ContainerID
}

// PageSize returns the number of rows per page.
func (c *Controller) PageSize() int {
	return c.opts.PageSize
}

// PageCount returns ceil(total/size), 0 for an empty table.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Load fetches page (0 based) and renders table and pager.
// Every call supersedes earlier calls still in flight. A page beyond the
// last one, e.g. after the only row of the last page was deleted, is
// reloaded as the last page.
func (c *Controller) Load(ctx context.Context, page int) (gomponents.Node, error) {
	if page < 0 {
		page = 0
	}
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	resp, err := c.fetch(ctx, page)
	if err == nil && resp.Total > 0 {
		if last := PageCount(resp.Total, c.opts.PageSize) - 1; page > last {
			logger.Logtype(logger.StatusDebug, 0).
				Str("table", c.opts.TableName).
				Int("page", page).
				Int("last", last).
				Msg("Page out of range, loading last page")
			page = last
			resp, err = c.fetch(ctx, page)
		}
	}
	if err == nil && resp.Total == 0 {
		page = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		logger.Logtype(logger.StatusDebug, 0).
			Str("table", c.opts.TableName).
			Int("page", page).
			Msg("Discarded stale page response")
		return nil, ErrStale
	}
	if err != nil {
		if !c.loaded {
			c.failure = apperrors.UserMessage(err, "Failed to load data")
		}
		return nil, err
	}

	rows := make([]table.Row, len(resp.Data))
	for i := range resp.Data {
		rows[i] = table.Row(resp.Data[i])
	}
	c.current = page
	c.total = resp.Total
	c.rows = rows
	c.loaded = true
	c.failure = ""
	return c.renderLocked(), nil
}

func (c *Controller) fetch(ctx context.Context, page int) (apiclient.PageResponse, error) {
	return c.opts.Fetcher.Paginate(ctx, c.opts.TableName, apiclient.PageRequest{
		Limit:   c.opts.PageSize,
		Offset:  page * c.opts.PageSize,
		Filters: c.opts.Filters,
	})
}

// Refresh reloads the current page.
func (c *Controller) Refresh(ctx context.Context) (gomponents.Node, error) {
	return c.Load(ctx, c.CurrentPage())
}

func (c *Controller) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Controller) PageCount() int {
	return PageCount(c.Total(), c.opts.PageSize)
}

// Render returns the content of the last completed load.
func (c *Controller) Render() gomponents.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked()
}

// Container wraps the current content in the container element.
func (c *Controller) Container() gomponents.Node {
	return html.Div(
		html.ID(c.opts.ContainerID),
		html.Class("paginated-table"),
		c.Render(),
	)
}

func (c *Controller) renderLocked() gomponents.Node {
	if !c.loaded {
		if c.failure != "" {
			return html.Div(html.Class("text-danger"), gomponents.Text(c.failure))
		}
		return html.Div(html.Class("text-muted"), gomponents.Text("Loading…"))
	}
	nodes := []gomponents.Node{table.Render(c.opts.Title, c.opts.Schema, c.rows, c.opts.Actions)}
	if pager := c.pagerLocked(); pager != nil {
		nodes = append(nodes, pager)
	}
	return gomponents.Group(nodes)
}

// pagerLocked renders nothing for a single page. The container content is
// always replaced as a whole, so no stale pager survives a reload.
func (c *Controller) pagerLocked() gomponents.Node {
	pages := PageCount(c.total, c.opts.PageSize)
	if pages <= 1 {
		return nil
	}
	items := make([]gomponents.Node, 0, pages)
	for i := 0; i < pages; i++ {
		active := i == c.current
		class := "page-item"
		if active {
			class += " active"
		}
		items = append(items, html.Li(
			html.Class(class),
			html.Button(
				html.Type("button"),
				html.Class("page-link"),
				gomponents.Attr("data-page", strconv.Itoa(i)),
				gomponents.If(active, gomponents.Attr("aria-current", "page")),
				hx.Get(c.opts.BasePath+"?page="+strconv.Itoa(i)),
				hx.Target("#"+c.opts.ContainerID),
				hx.Swap("innerHTML"),
				gomponents.Attr("hx-sync", "#"+c.opts.ContainerID+":replace"),
				gomponents.Text(strconv.Itoa(i+1)),
			),
		))
	}
	return html.Nav(
		gomponents.Attr("aria-label", c.opts.Title),
		html.Ul(html.Class("pagination justify-content-center mt-3"), gomponents.Group(items)),
	)
}
