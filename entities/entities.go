// Package entities declares the management pages of users, companies,
// items and orders on top of the generic table and modal framework.
package entities

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/Kellerman81/go_business_admin/apiclient"
	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/Kellerman81/go_business_admin/i18n"
	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/Kellerman81/go_business_admin/management"
	"github.com/Kellerman81/go_business_admin/modal"
	"github.com/Kellerman81/go_business_admin/table"
	"github.com/alitto/pond/v2"
	"github.com/goccy/go-json"
	"maragu.dev/gomponents"
)

// Env is what the pages of one session need.
type Env struct {
	Client *apiclient.Client
	User   modal.CurrentUser
	Tr     i18n.Translator
	// Pool runs independent option loaders of a form concurrently. Nil runs
	// them one after another.
	Pool pond.Pool
}

// T translates key.
func (e Env) T(key string) string {
	if e.Tr == nil {
		return key
	}
	return e.Tr.T(key)
}

// parallel runs tasks and returns the first error.
func (e Env) parallel(tasks ...func() error) error {
	if e.Pool == nil {
		for _, task := range tasks {
			if err := task(); err != nil {
				return err
			}
		}
		return nil
	}
	return e.Pool.NewGroup().SubmitErr(tasks...).Wait()
}

var builders = map[string]func(Env) management.Config{
	"users":     Users,
	"companies": Companies,
	"items":     Items,
	"orders":    Orders,
}

// Page returns the management page config of entity.
func Page(entity string, env Env) (management.Config, bool) {
	b, ok := builders[entity]
	if !ok {
		return management.Config{}, false
	}
	return b(env), true
}

// Names lists the entities with a management page.
func Names() []string {
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// mutate performs a create or edit call and writes the feedback. A rejected
// call shows the backend message or fallback; an expired session is returned.
func mutate(ctx context.Context, env Env, sc *modal.SubmitContext, method, endpoint string, body any, success func(apiclient.Mutation) gomponents.Node, fallback string) (bool, error) {
	m, err := env.Client.Mutate(ctx, method, endpoint, body)
	if err != nil {
		if apperrors.IsSessionExpired(err) {
			return false, err
		}
		logger.Logtype(logger.StatusWarning, 0).
			Str("endpoint", endpoint).
			Err(err).
			Msg("Submit rejected")
		sc.WriteResult(modal.Failure(apperrors.UserMessage(err, env.T(fallback))))
		return false, nil
	}
	sc.WriteResult(success(m))
	return true, nil
}

// number converts a form value to a JSON number when it is one.
func number(s string) any {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// optionalID converts an id form value, empty becomes null.
func optionalID(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return number(s)
}

type companyRef struct {
	ID   any    `json:"id"`
	Name string `json:"name"`
}

// decodeCompanies accepts both a bare list and a {companies: [...]} envelope.
func decodeCompanies(raw json.RawMessage) ([]companyRef, error) {
	var list []companyRef
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var env struct {
		Companies []companyRef `json:"companies"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return env.Companies, nil
}

func loadCompanyOptions(ctx context.Context, c *apiclient.Client) ([]modal.Option, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/companies/get_companies", &raw); err != nil {
		return nil, err
	}
	companies, err := decodeCompanies(raw)
	if err != nil {
		return nil, err
	}
	opts := make([]modal.Option, 0, len(companies))
	for _, co := range companies {
		id, _ := table.FormatValue(co.ID)
		opts = append(opts, modal.Option{Value: id, Label: co.Name})
	}
	return opts, nil
}

func loadRoleOptions(ctx context.Context, c *apiclient.Client) ([]modal.Option, error) {
	var resp struct {
		Roles []struct {
			Name string `json:"name"`
		} `json:"roles"`
	}
	if err := c.Get(ctx, "/users/get_subroles", &resp); err != nil {
		return nil, err
	}
	opts := make([]modal.Option, 0, len(resp.Roles))
	for _, r := range resp.Roles {
		opts = append(opts, modal.Option{Value: r.Name, Label: r.Name})
	}
	return opts, nil
}

// restrictCompanies limits a non superadmin to the own company.
func restrictCompanies(user modal.CurrentUser, opts []modal.Option) []modal.Option {
	if user.IsSuperadmin() {
		return opts
	}
	for _, o := range opts {
		if o.Value == user.CompanyID {
			return []modal.Option{o}
		}
	}
	if user.CompanyID == "" {
		return nil
	}
	return []modal.Option{{Value: user.CompanyID, Label: user.CompanyID}}
}

// record fetches a single record as a row.
func record(ctx context.Context, c *apiclient.Client, endpoint string) (table.Row, error) {
	var row map[string]any
	if err := c.Get(ctx, endpoint, &row); err != nil {
		return nil, err
	}
	return table.Row(row), nil
}
