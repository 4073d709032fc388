package entities

import (
	"context"
	"strconv"

	"github.com/Kellerman81/go_business_admin/apiclient"
	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/Kellerman81/go_business_admin/management"
	"github.com/Kellerman81/go_business_admin/table"
	"maragu.dev/gomponents"
	"maragu.dev/gomponents/html"
)

// UserStats is the answer of /users/get_user_stats.
type UserStats struct {
	TotalUsers  int `json:"total_users"`
	OnlineUsers int `json:"online_users"`
}

// OrderCounts counts the sales of the last seven days by status.
type OrderCounts struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

func LoadUserStats(ctx context.Context, c *apiclient.Client) (UserStats, error) {
	var s UserStats
	err := c.Get(ctx, "/users/get_user_stats", &s)
	return s, err
}

func LoadOrderCounts(ctx context.Context, c *apiclient.Client) (OrderCounts, error) {
	var oc OrderCounts
	err := c.Get(ctx, "/orders/order_counts", &oc)
	return oc, err
}

// Dashboard is the landing page: read only views of online users and companies.
func Dashboard(env Env) management.Config {
	return management.Config{
		Name: "dashboard",
		Views: []management.TableConfig{
			{
				ContainerID: "online-users-table",
				Title:       "Online Users",
				Schema:      UserSchema(env).Without(table.ActionsKey),
				TableName:   "users",
				PageSize:    5,
				Filters:     map[string]any{"status": "online"},
			},
			{
				ContainerID: "dashboard-companies-table",
				Title:       "Companies",
				Schema:      CompanySchema(env).Without(table.ActionsKey),
				TableName:   "companies",
				PageSize:    5,
			},
		},
	}
}

// DashboardCards loads the statistic cards concurrently. A card that cannot
// be loaded shows its failure text; only an expired session is returned.
func DashboardCards(ctx context.Context, env Env) (gomponents.Node, error) {
	var (
		stats              UserStats
		counts             OrderCounts
		statsErr, countErr error
	)
	_ = env.parallel(
		func() error {
			stats, statsErr = LoadUserStats(ctx, env.Client)
			return nil
		},
		func() error {
			counts, countErr = LoadOrderCounts(ctx, env.Client)
			return nil
		},
	)
	for _, err := range []error{statsErr, countErr} {
		if apperrors.IsSessionExpired(err) {
			return nil, err
		}
	}

	var userCard, orderCard gomponents.Node
	if statsErr != nil {
		logger.Logtype(logger.StatusWarning, 0).Err(statsErr).Msg("Failed to load user statistics")
		userCard = card(env.T("User Statistics"), html.P(html.Class("text-danger"), gomponents.Text(env.T("Failed to load user statistics."))))
	} else {
		userCard = card(env.T("User Statistics"),
			stat(env.T("Total Users"), stats.TotalUsers),
			stat(env.T("Online Users"), stats.OnlineUsers),
		)
	}
	if countErr != nil {
		logger.Logtype(logger.StatusWarning, 0).Err(countErr).Msg("Failed to load order counts")
		orderCard = card(env.T("Sales (last 7 days)"), html.P(html.Class("text-danger"), gomponents.Text(env.T("Failed to load order counts."))))
	} else {
		orderCard = card(env.T("Sales (last 7 days)"),
			stat(env.T("Pending"), counts.Pending),
			stat(env.T("Completed"), counts.Completed),
			stat(env.T("Cancelled"), counts.Cancelled),
		)
	}
	return html.Div(
		html.Class("row g-3 mb-4"),
		html.ID("dashboard-cards"),
		html.Div(html.Class("col-md-6"), userCard),
		html.Div(html.Class("col-md-6"), orderCard),
	), nil
}

func card(title string, body ...gomponents.Node) gomponents.Node {
	return html.Div(
		html.Class("card h-100"),
		html.Div(
			html.Class("card-body"),
			html.H5(html.Class("card-title"), gomponents.Text(title)),
			gomponents.Group(body),
		),
	)
}

func stat(label string, value int) gomponents.Node {
	return html.P(
		html.Class("mb-1"),
		gomponents.Text(label+": "),
		html.Strong(gomponents.Text(strconv.Itoa(value))),
	)
}
