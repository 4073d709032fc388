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
	createUserModal = "createUserModal"
	editUserModal   = "editUserModal"
)

// UserSchema is the manage schema of users. View tables drop the actions.
func UserSchema(env Env) table.Schema {
	return table.Schema{
		Columns: []table.Column{
			{Key: "id", Label: "ID"},
			{Key: "username", Label: "Username"},
			{Key: "email", Label: "Email"},
			{Key: "status", Label: "Status"},
			{Key: "role_name", Label: "Role"},
			{Key: "company_name", Label: "Company"},
			{Key: table.ActionsKey, Label: "Actions"},
		},
		HeaderButton: actions.Button("open-create-user-modal", "", env.T("Create User"), "btn btn-primary btn-sm"),
	}
}

func userActions(env Env) table.ActionRenderer {
	return func(row table.Row) gomponents.Node {
		toggle := env.T("Disable")
		class := "btn btn-sm btn-outline-danger"
		if active, ok := row["is_active"].(bool); ok && !active {
			toggle = env.T("Enable")
			class = "btn btn-sm btn-outline-success"
		}
		return gomponents.Group([]gomponents.Node{
			actions.Button("edit-user", row.ID(), env.T("Edit"), "btn btn-sm btn-outline-primary me-1"),
			actions.Button("toggle-user", row.ID(), toggle, class),
		})
	}
}

func userFields() []modal.Field {
	return []modal.Field{
		{ID: "username", Label: "Username", Required: true},
		{ID: "email", Label: "Email", Type: "email", Required: true, Placeholder: "user@example.com"},
		{ID: "role", Label: "Role", Type: "select", Required: true},
		{ID: "company_id", Label: "Company", Type: "select", Required: true},
	}
}

// userOptions loads roles and companies into v, concurrently with extra.
func userOptions(ctx context.Context, env Env, open modal.OpenContext, v modal.Values, extra ...func() error) error {
	var roles, companies []modal.Option
	tasks := append([]func() error{
		func() (err error) {
			roles, err = loadRoleOptions(ctx, env.Client)
			return err
		},
		func() (err error) {
			companies, err = loadCompanyOptions(ctx, env.Client)
			return err
		},
	}, extra...)
	err := env.parallel(tasks...)
	if err != nil {
		return err
	}
	v.SetOptions("role", roles)
	v.SetOptions("company_id", restrictCompanies(open.User, companies))
	return nil
}

func userBody(form url.Values) map[string]any {
	return map[string]any{
		"username":   form.Get("username"),
		"email":      form.Get("email"),
		"role":       form.Get("role"),
		"company_id": optionalID(form.Get("company_id")),
	}
}

// Users is the user management page.
func Users(env Env) management.Config {
	create := modal.Descriptor{
		ID:     createUserModal,
		Title:  "Create User",
		Fields: userFields(),
		OnLoad: func(ctx context.Context, open modal.OpenContext) (modal.Values, error) {
			v := modal.NewValues()
			if err := userOptions(ctx, env, open, v); err != nil {
				return v, err
			}
			if !open.User.IsSuperadmin() {
				v.Set("company_id", open.User.CompanyID)
			}
			return v, nil
		},
		OnSubmit: func(ctx context.Context, sc *modal.SubmitContext) (bool, error) {
			return mutate(ctx, env, sc, "POST", "/users/create", userBody(sc.Form), func(m apiclient.Mutation) gomponents.Node {
				return modal.Success(env.T("User created successfully!"),
					html.Div(gomponents.Text(env.T("Password:")+" "), html.Code(gomponents.Text(m.InitialPassword))),
				)
			}, "Failed to create user")
		},
		ReloadOnSuccess: true,
	}

	edit := modal.Descriptor{
		ID:     editUserModal,
		Title:  "Edit User",
		Fields: userFields(),
		OnLoad: func(ctx context.Context, open modal.OpenContext) (modal.Values, error) {
			v := modal.NewValues()
			var user table.Row
			err := userOptions(ctx, env, open, v, func() (err error) {
				user, err = record(ctx, env.Client, "/users/get/"+open.RecordID)
				return err
			})
			if err != nil {
				return v, err
			}
			for _, key := range []string{"username", "email", "role", "company_id"} {
				v.Set(key, user.Str(key))
			}
			return v, nil
		},
		OnSubmit: func(ctx context.Context, sc *modal.SubmitContext) (bool, error) {
			return mutate(ctx, env, sc, "POST", "/users/edit/"+sc.Open.RecordID, userBody(sc.Form), func(apiclient.Mutation) gomponents.Node {
				return modal.Success(env.T("User updated successfully!"))
			}, "Failed to update user")
		},
		ReloadOnSuccess: true,
	}

	return management.Config{
		Name:   "users",
		Modals: []modal.Descriptor{create, edit},
		OpenActions: []management.OpenAction{
			{Action: "open-create-user-modal", ModalID: createUserModal},
			{Action: "edit-user", ModalID: editUserModal, WithID: true},
		},
		CustomActions: []management.CustomAction{
			{Name: "toggle-user", Handler: func(ctx context.Context, id string) error {
				_, err := env.Client.Mutate(ctx, "POST", "/users/toggle_user_is_active/"+id, nil)
				return err
			}},
		},
		Table: &management.TableConfig{
			ContainerID: "users-table",
			Title:       "Users",
			Schema:      UserSchema(env),
			TableName:   "users",
			PageSize:    config.PageSize("users", 5),
			Filters:     map[string]any{"include_self": false},
			Actions:     userActions(env),
		},
	}
}
