// Package table renders rows of backend records as a bootstrap table.
// Rendering is pure: equal inputs produce byte identical output.
package table

import (
	"fmt"
	"strconv"
	"strings"

	"maragu.dev/gomponents"
	"maragu.dev/gomponents/html"
)

// ActionsKey marks the column rendered by the caller supplied action renderer.
const ActionsKey = "__actions__"

// Placeholder is shown for null or absent values.
const Placeholder = "—"

// Row is one backend record. Rows are never modified.
type Row map[string]any

// ID returns the id field as text.
func (r Row) ID() string {
	s, _ := FormatValue(r["id"])
	return s
}

// Str returns field key as text, empty when absent.
func (r Row) Str(key string) string {
	s, _ := FormatValue(r[key])
	return s
}

// Column is one displayed column. Render overrides the default text cell.
type Column struct {
	Key    string
	Label  string
	Render func(value any, row Row) gomponents.Node
}

// Schema is the immutable column list of a table plus an optional header control.
type Schema struct {
	Columns      []Column
	HeaderButton gomponents.Node
}

// Without returns a copy of s without the given columns and without header control.
func (s Schema) Without(keys ...string) Schema {
	out := Schema{}
	for _, c := range s.Columns {
		skip := false
		for _, k := range keys {
			if c.Key == k {
				skip = true
				break
			}
		}
		if !skip {
			out.Columns = append(out.Columns, c)
		}
	}
	return out
}

// ActionRenderer returns the content of the actions cell of a row.
// Its output is embedded as is and must be built from trusted data.
type ActionRenderer func(row Row) gomponents.Node

// RawActions adapts a renderer producing markup strings.
func RawActions(fn func(row Row) string) ActionRenderer {
	return func(row Row) gomponents.Node {
		return gomponents.Raw(fn(row))
	}
}

// FormatValue renders a JSON value as cell text. ok is false for
// values displayed as the placeholder.
func FormatValue(v any) (string, bool) {
	switch tv := v.(type) {
	case nil:
		return "", false
	case string:
		return tv, tv != ""
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(tv), 'f', -1, 32), true
	case int:
		return strconv.Itoa(tv), true
	case int64:
		return strconv.FormatInt(tv, 10), true
	case bool:
		return strconv.FormatBool(tv), true
	case fmt.Stringer:
		return tv.String(), true
	default:
		return fmt.Sprint(tv), true
	}
}

// Cell renders a single cell of row for column c.
func Cell(c Column, row Row, actions ActionRenderer) gomponents.Node {
	switch {
	case c.Key == ActionsKey:
		if actions == nil {
			return html.Td()
		}
		return html.Td(html.Class("text-nowrap"), actions(row))
	case c.Render != nil:
		return html.Td(c.Render(row[c.Key], row))
	default:
		s, ok := FormatValue(row[c.Key])
		if !ok {
			s = Placeholder
		}
		return html.Td(gomponents.Text(s))
	}
}

// Render builds the table card: title, optional header control, header row and body.
func Render(title string, schema Schema, rows []Row, actions ActionRenderer) gomponents.Node {
	header := make([]gomponents.Node, 0, len(schema.Columns))
	for _, c := range schema.Columns {
		header = append(header, html.Th(gomponents.Attr("scope", "col"), gomponents.Text(c.Label)))
	}

	body := make([]gomponents.Node, 0, len(rows))
	for _, row := range rows {
		cells := make([]gomponents.Node, 0, len(schema.Columns))
		for _, c := range schema.Columns {
			cells = append(cells, Cell(c, row, actions))
		}
		body = append(body, html.Tr(gomponents.Attr("data-row-id", row.ID()), gomponents.Group(cells)))
	}

	return html.Div(
		html.Class("table-card"),
		html.Div(
			html.Class("d-flex justify-content-between align-items-center mb-3"),
			html.H5(html.Class("mb-0"), gomponents.Text(title)),
			gomponents.If(schema.HeaderButton != nil, schema.HeaderButton),
		),
		html.Div(
			html.Class("card tbl-card"),
			html.Div(
				html.Class("card-body"),
				html.Div(
					html.Class("table-responsive"),
					html.Table(
						html.Class("table table-hover table-borderless mb-0"),
						html.THead(html.Tr(gomponents.Group(header))),
						html.TBody(gomponents.Group(body)),
					),
				),
			),
		),
	)
}

// RenderString renders the table to markup.
func RenderString(title string, schema Schema, rows []Row, actions ActionRenderer) string {
	var b strings.Builder
	_ = Render(title, schema, rows, actions).Render(&b)
	return b.String()
}
