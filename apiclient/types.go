package apiclient

import (
	"context"

	"github.com/Kellerman81/go_business_admin/apperrors"
)

// PageRequest is the body of every /{entity}/paginate call.
type PageRequest struct {
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	Filters map[string]any `json:"filters"`
}

// PageResponse is one page of rows plus the total row count.
type PageResponse struct {
	Data  []map[string]any `json:"data"`
	Total int              `json:"total"`
}

// Mutation is the answer of create, edit, toggle, cancel and delete calls.
// Answers without a success field count as successful.
type Mutation struct {
	Success         *bool  `json:"success"`
	Message         string `json:"message"`
	InitialPassword string `json:"initial_password"`
}

// OK reports whether the backend accepted the mutation.
func (m Mutation) OK() bool {
	return m.Success == nil || *m.Success
}

// Paginate loads one page of entity.
func (c *Client) Paginate(ctx context.Context, entity string, req PageRequest) (PageResponse, error) {
	if req.Filters == nil {
		req.Filters = map[string]any{}
	}
	var resp PageResponse
	err := c.Post(ctx, "/"+entity+"/paginate", req, &resp)
	return resp, err
}

// Mutate performs a state changing call. A 2xx answer with success false is
// returned as a BACKEND error carrying the backend message.
func (c *Client) Mutate(ctx context.Context, method, endpoint string, body any) (Mutation, error) {
	var m Mutation
	if err := c.Fetch(ctx, method, endpoint, body, &m); err != nil {
		return m, err
	}
	if !m.OK() {
		msg := m.Message
		if msg == "" {
			msg = "Request failed"
		}
		return m, apperrors.New(apperrors.ErrClassBackend, method+" "+endpoint, msg)
	}
	return m, nil
}
