package entities

import (
	"context"
	"strconv"
	"strings"

	"github.com/Kellerman81/go_business_admin/actions"
	"github.com/Kellerman81/go_business_admin/apiclient"
	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/Kellerman81/go_business_admin/config"
	"github.com/Kellerman81/go_business_admin/management"
	"github.com/Kellerman81/go_business_admin/modal"
	"github.com/Kellerman81/go_business_admin/pagination"
	"github.com/Kellerman81/go_business_admin/table"
	"maragu.dev/gomponents"
	"maragu.dev/gomponents/html"
)

const (
	createOrderModal  = "createOrderModal"
	editOrderModal    = "editOrderModal"
	orderDetailsModal = "orderDetailsModal"

	// StatusPending is the only order status that can still be edited,
	// cancelled or completed.
	StatusPending = "pending"
)

func OrderSchema(env Env) table.Schema {
	return table.Schema{
		Columns: []table.Column{
			{Key: "id", Label: "ID"},
			{Key: "order_type", Label: "Order Type"},
			{Key: "created_at", Label: "Created at"},
			{Key: "completed_at", Label: "Completed at"},
			{Key: "total_price", Label: "Total Price (Czk)"},
			{Key: "user_id", Label: "Issuer"},
			{Key: "status", Label: "Status"},
			{Key: table.ActionsKey, Label: "Actions"},
		},
		HeaderButton: actions.Button("open-create-order-modal", "", env.T("Create Order entry"), "btn btn-primary btn-sm"),
	}
}

// orderActions offers edit, complete and cancel only on pending orders.
func orderActions(env Env) table.ActionRenderer {
	return func(row table.Row) gomponents.Node {
		id := row.ID()
		nodes := []gomponents.Node{
			actions.Button("open-order-details", id, env.T("Details"), "btn btn-sm btn-outline-secondary me-1"),
		}
		if row.Str("status") == StatusPending {
			nodes = append(nodes,
				actions.Button("edit-order", id, env.T("Edit"), "btn btn-sm btn-outline-primary me-1"),
				actions.Button("complete-order", id, env.T("Complete"), "btn btn-sm btn-outline-success me-1"),
				actions.Button("cancel-order", id, env.T("Cancel"), "btn btn-sm btn-outline-danger",
					actions.Confirm(env.T("Are you sure you want to cancel this order?"))),
			)
		}
		return gomponents.Group(nodes)
	}
}

func orderTypeOptions(env Env) []modal.Option {
	return []modal.Option{
		{Value: "sale", Label: env.T("Sale")},
		{Value: "restock", Label: env.T("Restock")},
	}
}

// pickerSchema lists items with a selection cell built by pickerCell.
func pickerSchema(env Env) table.Schema {
	return table.Schema{Columns: []table.Column{
		{Key: table.ActionsKey, Label: env.T("Select")},
		{Key: "name", Label: env.T("Name")},
		{Key: "price", Label: env.T("Price")},
		{Key: "quantity", Label: env.T("Quantity")},
	}}
}

// pickerCell renders the checkbox and the quantity input of an item. The
// quantity stays disabled, and is therefore not submitted, until the item
// is checked.
func pickerCell(row table.Row) gomponents.Node {
	id := row.ID()
	return html.Div(
		html.Class("d-flex align-items-center gap-2"),
		html.Input(
			html.Type("checkbox"),
			html.Class("form-check-input order-item-check"),
			html.Name("item_id"),
			html.Value(id),
		),
		html.Input(
			html.Type("number"),
			html.Class("form-control form-control-sm order-item-qty"),
			html.Name("qty_"+id),
			gomponents.Attr("min", "1"),
			html.Value("1"),
			html.Disabled(),
			html.Style("width: 80px"),
		),
	)
}

// orderLines builds the items of an order from the checked picker rows.
// A missing or invalid quantity counts as 1.
func orderLines(form map[string][]string) []map[string]any {
	var lines []map[string]any
	for _, id := range form["item_id"] {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		qty := 1
		if q := form["qty_"+id]; len(q) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(q[0])); err == nil && n > 0 {
				qty = n
			}
		}
		lines = append(lines, map[string]any{"item_id": number(id), "quantity": qty})
	}
	return lines
}

// embed mounts a nested table through the page. A failed load is already
// rendered into the returned container.
func embed(ctx context.Context, open modal.OpenContext, opts pagination.Options) (gomponents.Node, error) {
	if open.Host == nil {
		return nil, nil
	}
	node, err := open.Host.MountTable(ctx, opts)
	if err != nil && apperrors.IsSessionExpired(err) {
		return nil, err
	}
	return node, nil
}

func embedded(key string) func(v modal.Values) gomponents.Node {
	return func(v modal.Values) gomponents.Node {
		return v.Nodes[key]
	}
}

// Orders is the order management page.
func Orders(env Env) management.Config {
	create := modal.Descriptor{
		ID:    createOrderModal,
		Title: "Create Order",
		Fields: []modal.Field{
			{ID: "order_type", Label: "Order Type", Type: "select", Required: true},
			{ID: "items", Custom: embedded("items")},
		},
		OnLoad: func(ctx context.Context, open modal.OpenContext) (modal.Values, error) {
			v := modal.NewValues()
			v.SetOptions("order_type", orderTypeOptions(env))
			node, err := embed(ctx, open, pagination.Options{
				ContainerID: createOrderModal + "-items",
				Title:       env.T("Select Items"),
				Schema:      pickerSchema(env),
				TableName:   "items",
				PageSize:    5,
				Actions:     pickerCell,
			})
			if err != nil {
				return v, err
			}
			v.SetNode("items", node)
			return v, nil
		},
		OnSubmit: func(ctx context.Context, sc *modal.SubmitContext) (bool, error) {
			lines := orderLines(sc.Form)
			if len(lines) == 0 {
				sc.WriteResult(modal.Failure(env.T("Select at least one item.")))
				return false, nil
			}
			body := map[string]any{"order_type": sc.Form.Get("order_type"), "items": lines}
			return mutate(ctx, env, sc, "POST", "/orders/create", body, func(apiclient.Mutation) gomponents.Node {
				return modal.Success(env.T("Order created successfully!"))
			}, "Failed to create order")
		},
		ReloadOnSuccess: true,
	}

	edit := modal.Descriptor{
		ID:    editOrderModal,
		Title: "Edit Order",
		Fields: []modal.Field{
			{ID: "order_type", Label: "Order Type", Type: "select", Required: true},
		},
		OnLoad: func(ctx context.Context, open modal.OpenContext) (modal.Values, error) {
			v := modal.NewValues()
			v.SetOptions("order_type", orderTypeOptions(env))
			order, err := record(ctx, env.Client, "/orders/get/"+open.RecordID)
			if err != nil {
				return v, err
			}
			v.Set("order_type", order.Str("order_type"))
			return v, nil
		},
		OnSubmit: func(ctx context.Context, sc *modal.SubmitContext) (bool, error) {
			body := map[string]any{"order_type": sc.Form.Get("order_type")}
			return mutate(ctx, env, sc, "PUT", "/orders/edit/"+sc.Open.RecordID, body, func(apiclient.Mutation) gomponents.Node {
				return modal.Success(env.T("Order updated successfully!"))
			}, "Failed to update order")
		},
		ReloadOnSuccess: true,
	}

	details := modal.Descriptor{
		ID:       orderDetailsModal,
		Title:    "Order Details",
		ReadOnly: true,
		Fields: []modal.Field{
			{ID: "summary", Custom: embedded("summary")},
			{ID: "items", Custom: embedded("items")},
		},
		OnLoad: func(ctx context.Context, open modal.OpenContext) (modal.Values, error) {
			v := modal.NewValues()
			order, err := record(ctx, env.Client, "/orders/get/"+open.RecordID)
			if err != nil {
				return v, err
			}
			v.SetNode("summary", orderSummary(env, order))
			node, err := embed(ctx, open, pagination.Options{
				ContainerID: orderDetailsModal + "-items",
				Title:       env.T("Items"),
				Schema: table.Schema{Columns: []table.Column{
					{Key: "name", Label: env.T("Name")},
					{Key: "price", Label: env.T("Price (Czk)")},
					{Key: "quantity", Label: env.T("Quantity")},
				}},
				TableName: "orders/" + open.RecordID + "/items",
				PageSize:  config.PageSize("order_items", 5),
			})
			if err != nil {
				return v, err
			}
			v.SetNode("items", node)
			return v, nil
		},
	}

	mutation := func(endpoint string) func(ctx context.Context, id string) error {
		return func(ctx context.Context, id string) error {
			_, err := env.Client.Mutate(ctx, "POST", endpoint+id, nil)
			return err
		}
	}

	return management.Config{
		Name:   "orders",
		Modals: []modal.Descriptor{create, edit, details},
		OpenActions: []management.OpenAction{
			{Action: "open-create-order-modal", ModalID: createOrderModal},
			{Action: "edit-order", ModalID: editOrderModal, WithID: true},
			{Action: "open-order-details", ModalID: orderDetailsModal, WithID: true},
		},
		CustomActions: []management.CustomAction{
			{Name: "cancel-order", Handler: mutation("/orders/cancel/")},
			{Name: "complete-order", Handler: mutation("/orders/complete/")},
		},
		Table: &management.TableConfig{
			ContainerID: "orders-table",
			Title:       "Orders",
			Schema:      OrderSchema(env),
			TableName:   "orders",
			PageSize:    config.PageSize("orders", 5),
			Actions:     orderActions(env),
		},
	}
}

func orderSummary(env Env, order table.Row) gomponents.Node {
	line := func(label, value string) gomponents.Node {
		if value == "" {
			value = table.Placeholder
		}
		return html.P(html.Strong(gomponents.Text(env.T(label)+":")), gomponents.Text(" "+value))
	}
	return html.Div(
		line("ID", order.ID()),
		line("Status", order.Str("status")),
		line("Total price", order.Str("total_price")+" CZK"),
		line("Created at", order.Str("created_at")),
	)
}
