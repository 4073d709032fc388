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
)

const (
	createCompanyModal = "createCompanyModal"
	editCompanyModal   = "editCompanyModal"
)

func CompanySchema(env Env) table.Schema {
	return table.Schema{
		Columns: []table.Column{
			{Key: "id", Label: "ID"},
			{Key: "name", Label: "Company"},
			{Key: "field", Label: "Field"},
			{Key: table.ActionsKey, Label: "Actions"},
		},
		HeaderButton: actions.Button("open-create-company-modal", "", env.T("Create Company"), "btn btn-primary btn-sm"),
	}
}

func companyActions(env Env) table.ActionRenderer {
	return func(row table.Row) gomponents.Node {
		return gomponents.Group([]gomponents.Node{
			actions.Button("edit-company", row.ID(), env.T("Edit"), "btn btn-sm btn-outline-primary me-1"),
			actions.Button("delete-company", row.ID(), env.T("Delete"), "btn btn-sm btn-outline-danger",
				actions.Confirm(env.T("Are you sure you want to delete this company?"))),
		})
	}
}

func companyFields() []modal.Field {
	return []modal.Field{
		{ID: "company_name", Label: "Company name", Required: true},
		{ID: "field", Label: "Field", Required: true},
	}
}

func companyBody(form url.Values) map[string]any {
	return map[string]any{
		"company_name": form.Get("company_name"),
		"field":        form.Get("field"),
	}
}

// Companies is the company management page.
func Companies(env Env) management.Config {
	create := modal.Descriptor{
		ID:     createCompanyModal,
		Title:  "Create Company",
		Fields: companyFields(),
		OnSubmit: func(ctx context.Context, sc *modal.SubmitContext) (bool, error) {
			return mutate(ctx, env, sc, "POST", "/companies/create", companyBody(sc.Form), func(apiclient.Mutation) gomponents.Node {
				return modal.Success(env.T("Company created successfully!"))
			}, "Failed to create company")
		},
		ReloadOnSuccess: true,
	}

	edit := modal.Descriptor{
		ID:     editCompanyModal,
		Title:  "Edit Company",
		Fields: companyFields(),
		OnLoad: func(ctx context.Context, open modal.OpenContext) (modal.Values, error) {
			v := modal.NewValues()
			company, err := record(ctx, env.Client, "/companies/get/"+open.RecordID)
			if err != nil {
				return v, err
			}
			v.Set("company_name", company.Str("company_name"))
			v.Set("field", company.Str("field"))
			return v, nil
		},
		OnSubmit: func(ctx context.Context, sc *modal.SubmitContext) (bool, error) {
			return mutate(ctx, env, sc, "POST", "/companies/edit/"+sc.Open.RecordID, companyBody(sc.Form), func(apiclient.Mutation) gomponents.Node {
				return modal.Success(env.T("Company updated successfully!"))
			}, "Failed to update company")
		},
		ReloadOnSuccess: true,
	}

	return management.Config{
		Name:   "companies",
		Modals: []modal.Descriptor{create, edit},
		OpenActions: []management.OpenAction{
			{Action: "open-create-company-modal", ModalID: createCompanyModal},
			{Action: "edit-company", ModalID: editCompanyModal, WithID: true},
		},
		CustomActions: []management.CustomAction{
			{Name: "delete-company", Handler: func(ctx context.Context, id string) error {
				_, err := env.Client.Mutate(ctx, "POST", "/companies/delete/"+id, nil)
				return err
			}},
		},
		Table: &management.TableConfig{
			ContainerID: "companies-table",
			Title:       "Companies",
			Schema:      CompanySchema(env),
			TableName:   "companies",
			PageSize:    config.PageSize("companies", 10),
			Actions:     companyActions(env),
		},
	}
}
