package table

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maragu.dev/gomponents"
	"maragu.dev/gomponents/html"
)

var testSchema = Schema{
	Columns: []Column{
		{Key: "id", Label: "ID"},
		{Key: "name", Label: "Name"},
		{Key: "price", Label: "Price", Render: func(v any, _ Row) gomponents.Node {
			s, _ := FormatValue(v)
			return gomponents.Text(s + " CZK")
		}},
		{Key: ActionsKey, Label: "Actions"},
	},
	HeaderButton: html.Button(html.Class("btn btn-primary"), gomponents.Text("Create")),
}

func editAction(row Row) gomponents.Node {
	return html.Button(gomponents.Attr("data-action", "edit-item"), gomponents.Attr("data-id", row.ID()), gomponents.Text("Edit"))
}

func TestRenderHeaderInColumnOrder(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(RenderString("Items", testSchema, nil, editAction)))
	require.NoError(t, err)

	var labels []string
	for _, th := range htmlquery.Find(doc, "//thead/tr/th") {
		labels = append(labels, htmlquery.InnerText(th))
	}
	assert.Equal(t, []string{"ID", "Name", "Price", "Actions"}, labels)
	assert.Equal(t, "Items", htmlquery.InnerText(htmlquery.FindOne(doc, "//h5")))
	assert.NotNil(t, htmlquery.FindOne(doc, "//button[text()='Create']"))
	assert.Empty(t, htmlquery.Find(doc, "//tbody/tr"))
}

func TestRenderCells(t *testing.T) {
	rows := []Row{
		{"id": float64(3), "name": "Bolt", "price": 12.5},
		{"id": float64(4), "price": nil},
	}
	doc, err := htmlquery.Parse(strings.NewReader(RenderString("Items", testSchema, rows, editAction)))
	require.NoError(t, err)

	trs := htmlquery.Find(doc, "//tbody/tr")
	require.Len(t, trs, 2)

	first := htmlquery.Find(trs[0], "./td")
	assert.Equal(t, "3", htmlquery.InnerText(first[0]))
	assert.Equal(t, "Bolt", htmlquery.InnerText(first[1]))
	assert.Equal(t, "12.5 CZK", htmlquery.InnerText(first[2]))
	btn := htmlquery.FindOne(first[3], "./button")
	require.NotNil(t, btn)
	assert.Equal(t, "3", htmlquery.SelectAttr(btn, "data-id"))

	second := htmlquery.Find(trs[1], "./td")
	assert.Equal(t, Placeholder, htmlquery.InnerText(second[1]), "missing field renders the placeholder")
}

func TestRenderEscapesValues(t *testing.T) {
	rows := []Row{{"id": "1", "name": "<script>alert(1)</script>"}}
	out := RenderString("X", Schema{Columns: []Column{{Key: "name", Label: "Name"}}}, rows, nil)

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestRenderIsIdempotent(t *testing.T) {
	rows := []Row{{"id": float64(1), "name": "a", "price": float64(2)}}
	a := RenderString("Items", testSchema, rows, editAction)
	b := RenderString("Items", testSchema, rows, editAction)
	assert.Equal(t, a, b)
}

func TestRawActions(t *testing.T) {
	actions := RawActions(func(row Row) string {
		return `<button data-action="toggle-item" data-id="` + row.ID() + `">Activate</button>`
	})
	out := RenderString("Items", Schema{Columns: []Column{{Key: ActionsKey, Label: "Actions"}}}, []Row{{"id": float64(9)}}, actions)
	assert.Contains(t, out, `<button data-action="toggle-item" data-id="9">Activate</button>`)
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{nil, "", false},
		{"", "", false},
		{"x", "x", true},
		{float64(10), "10", true},
		{0.1, "0.1", true},
		{true, "true", true},
		{7, "7", true},
	}
	for _, c := range cases {
		got, ok := FormatValue(c.in)
		assert.Equal(t, c.want, got)
		assert.Equal(t, c.ok, ok)
	}
}

func TestWithout(t *testing.T) {
	view := testSchema.Without(ActionsKey)
	assert.Len(t, view.Columns, 3)
	assert.Nil(t, view.HeaderButton)
	assert.Len(t, testSchema.Columns, 4)
}
