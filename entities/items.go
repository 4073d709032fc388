package entities

import (
	"context"
	"net/url"

	"github.com/Kellerman81/go_business_admin/actions"
	"github.com/Kellerman81/go_business_admin/apiclient"
	"github.com/Kellerman81/go_business_admin/config"
	"github.com/Kellerman81/go_business_admin/management"
	"github.com/Kellerman81/go_business_admin/modal"
	"github.com/Kellerman81/go_business_admin/table"
	"maragu.dev/gomponents"
	"maragu.dev/gomponents/html"
)

const (
	createItemModal = "createItemModal"
	editItemModal   = "editItemModal"
)

func isActive(row table.Row) bool {
	active, ok := row["is_active"].(bool)
	return !ok || active
}

func ItemSchema(env Env) table.Schema {
	status := func(_ any, row table.Row) gomponents.Node {
		if isActive(row) {
			return html.Span(html.Class("badge bg-success"), gomponents.Text(env.T("Active")))
		}
		return html.Span(html.Class("badge bg-secondary"), gomponents.Text(env.T("Discontinued")))
	}
	return table.Schema{
		Columns: []table.Column{
			{Key: "id", Label: "ID"},
			{Key: "name", Label: "Name"},
			{Key: "sku", Label: "SKU"},
			{Key: "price", Label: "Price"},
			{Key: "quantity", Label: "Quantity"},
			{Key: "is_active", Label: "Status", Render: status},
			{Key: "company_name", Label: "Company"},
			{Key: "created_at", Label: "Created at"},
			{Key: "updated_at", Label: "Updated at"},
			{Key: table.ActionsKey, Label: "Actions"},
		},
		HeaderButton: actions.Button("open-create-item-modal", "", env.T("Create Item entry"), "btn btn-primary btn-sm"),
	}
}

func itemActions(env Env) table.ActionRenderer {
	return func(row table.Row) gomponents.Node {
		toggle, class := env.T("Discontinue"), "btn btn-sm btn-outline-danger"
		if !isActive(row) {
			toggle, class = env.T("Activate"), "btn btn-sm btn-outline-success"
		}
		return gomponents.Group([]gomponents.Node{
			actions.Button("edit-item", row.ID(), env.T("Edit"), "btn btn-sm btn-outline-primary me-1"),
			actions.Button("toggle-item", row.ID(), toggle, class),
		})
	}
}

func itemFields() []modal.Field {
	return []modal.Field{
		{ID: "name", Label: "Name", Required: true},
		{ID: "price", Label: "Price", Type: "number", Required: true, Attrs: []gomponents.Node{
			gomponents.Attr("min", "0"), gomponents.Attr("step", "0.01"),
		}},
		{ID: "quantity", Label: "Quantity", Type: "number", Required: true, Attrs: []gomponents.Node{
			gomponents.Attr("min", "0"), gomponents.Attr("step", "1"),
		}},
	}
}

func itemBody(form url.Values) map[string]any {
	return map[string]any{
		"name":     form.Get("name"),
		"price":    number(form.Get("price")),
		"quantity": number(form.Get("quantity")),
	}
}

// Items is the stock item management page.
func Items(env Env) management.Config {
	create := modal.Descriptor{
		ID:     createItemModal,
		Title:  "Create Item",
		Fields: itemFields(),
		OnSubmit: func(ctx context.Context, sc *modal.SubmitContext) (bool, error) {
			return mutate(ctx, env, sc, "POST", "/items/create", itemBody(sc.Form), func(apiclient.Mutation) gomponents.Node {
				return modal.Success(env.T("Item created successfully!"))
			}, "Failed to create item")
		},
		ReloadOnSuccess: true,
	}

	edit := modal.Descriptor{
		ID:     editItemModal,
		Title:  "Edit Item",
		Fields: itemFields(),
		OnLoad: func(ctx context.Context, open modal.OpenContext) (modal.Values, error) {
			v := modal.NewValues()
			item, err := record(ctx, env.Client, "/items/get/"+open.RecordID)
			if err != nil {
				return v, err
			}
			for _, key := range []string{"name", "price", "quantity"} {
				v.Set(key, item.Str(key))
			}
			return v, nil
		},
		OnSubmit: func(ctx context.Context, sc *modal.SubmitContext) (bool, error) {
			return mutate(ctx, env, sc, "POST", "/items/edit/"+sc.Open.RecordID, itemBody(sc.Form), func(apiclient.Mutation) gomponents.Node {
				return modal.Success(env.T("Item updated successfully!"))
			}, "Failed to update item")
		},
		ReloadOnSuccess: true,
	}

	return management.Config{
		Name:   "items",
		Modals: []modal.Descriptor{create, edit},
		OpenActions: []management.OpenAction{
			{Action: "open-create-item-modal", ModalID: createItemModal},
			{Action: "edit-item", ModalID: editItemModal, WithID: true},
		},
		CustomActions: []management.CustomAction{
			{Name: "toggle-item", Handler: func(ctx context.Context, id string) error {
				_, err := env.Client.Mutate(ctx, "POST", "/items/toggle_item_is_active/"+id, nil)
				return err
			}},
		},
		Table: &management.TableConfig{
			ContainerID: "items-table",
			Title:       "Items",
			Schema:      ItemSchema(env),
			TableName:   "items",
			PageSize:    config.PageSize("items", 5),
			Actions:     itemActions(env),
		},
	}
}
