package handlers_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentHandler_Create(t *testing.T) {
	e := setupRouter(t)

	tests := []struct {
		name       string
		token      string
		body       map[string]string
		wantStatus int
	}{
		{
			name:  "admin creates agent",
			token: e.AdminToken,
			body: map[string]string{
				"email":    "new-agent@example.com",
				"password": "agentpass123",
				"name":     "New Agent",
				"phone":    "+15550199",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:  "admin creates support",
			token: e.AdminToken,
			body: map[string]string{
				"email":    "new-support@example.com",
				"password": "supportpass123",
				"name":     "New Support",
				"role":     "support",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:  "admin role is not grantable",
			token: e.AdminToken,
			body: map[string]string{
				"email":    "root@example.com",
				"password": "rootpass123",
				"name":     "Root",
				"role":     "admin",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "existing email",
			token: e.AdminToken,
			body: map[string]string{
				"email":    e.Agent.Email,
				"password": "agentpass123",
				"name":     "Dup",
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:  "support may not provision",
			token: e.SupportToken,
			body: map[string]string{
				"email":    "other@example.com",
				"password": "agentpass123",
				"name":     "Other",
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:  "agent may not provision",
			token: e.AgentToken,
			body: map[string]string{
				"email":    "other2@example.com",
				"password": "agentpass123",
				"name":     "Other",
			},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, "POST", "/api/v1/agents", tt.body, tt.token)
			testutil.AssertStatus(t, rr, tt.wantStatus)
		})
	}

	t.Run("new agent can log in", func(t *testing.T) {
		rr := e.do(t, "POST", "/api/v1/auth/login", map[string]string{
			"email":    "new-agent@example.com",
			"password": "agentpass123",
		}, "")
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}

func TestClientHandler_Create(t *testing.T) {
	e := setupRouter(t)

	t.Run("agent owns what it creates", func(t *testing.T) {
		rr := e.do(t, "POST", "/api/v1/clients", map[string]string{
			"email":     "Jane.Doe@Example.com",
			"full_name": "  Jane Doe ",
		}, e.AgentToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var client dto.ClientDTO
		data(t, rr, &client)
		assert.Equal(t, e.Agent.ID.String(), client.AgentID)
		assert.Equal(t, "jane.doe@example.com", client.Email)
		assert.Equal(t, "Jane Doe", client.FullName)
		assert.Equal(t, "active", client.Status)
	})

	t.Run("agent may not assign another agent", func(t *testing.T) {
		rr := e.do(t, "POST", "/api/v1/clients", map[string]string{
			"email":     "someone@example.com",
			"full_name": "Someone",
			"agent_id":  e.OtherAgent.ID.String(),
		}, e.AgentToken)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("staff must name an agent", func(t *testing.T) {
		rr := e.do(t, "POST", "/api/v1/clients", map[string]string{
			"email":     "unowned@example.com",
			"full_name": "Unowned",
		}, e.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Contains(t, errorBody(t, rr).Details, "agent_id")
	})

	t.Run("staff assigns an agent", func(t *testing.T) {
		rr := e.do(t, "POST", "/api/v1/clients", map[string]string{
			"email":     "assigned@example.com",
			"full_name": "Assigned",
			"agent_id":  e.OtherAgent.ID.String(),
		}, e.SupportToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)
	})

	t.Run("duplicate email", func(t *testing.T) {
		rr := e.do(t, "POST", "/api/v1/clients", map[string]string{
			"email":     e.Client.Email,
			"full_name": "Dup",
		}, e.AgentToken)
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})

	t.Run("end-client may not create", func(t *testing.T) {
		rr := e.do(t, "POST", "/api/v1/clients", map[string]string{
			"email":     "x@example.com",
			"full_name": "X",
		}, e.ClientUserToken)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("invalid input", func(t *testing.T) {
		rr := e.do(t, "POST", "/api/v1/clients", map[string]string{
			"email":    "not-an-email",
			"agent_id": "nope",
		}, e.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		details := errorBody(t, rr).Details
		assert.Contains(t, details, "email")
		assert.Contains(t, details, "full_name")
		assert.Contains(t, details, "agent_id")
	})
}

func TestClientHandler_ListAndGet(t *testing.T) {
	e := setupRouter(t)

	t.Run("agent sees only owned clients", func(t *testing.T) {
		rr := e.do(t, "GET", "/api/v1/clients", nil, e.AgentToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var page struct {
			Items []dto.ClientDTO `json:"items"`
			Total int64           `json:"total"`
		}
		data(t, rr, &page)
		require.Len(t, page.Items, 1)
		assert.Equal(t, int64(1), page.Total)
		assert.Equal(t, e.Client.ID.String(), page.Items[0].ID)
	})

	t.Run("staff sees all clients", func(t *testing.T) {
		rr := e.do(t, "GET", "/api/v1/clients?per_page=1", nil, e.SupportToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var page dto.PaginatedResponse
		data(t, rr, &page)
		assert.Equal(t, int64(2), page.Total)
		assert.Equal(t, 2, page.TotalPages)
		assert.Equal(t, 1, page.PerPage)
	})

	t.Run("owned client", func(t *testing.T) {
		rr := e.do(t, "GET", "/api/v1/clients/"+e.Client.ID.String(), nil, e.AgentToken)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("another agent's client", func(t *testing.T) {
		rr := e.do(t, "GET", "/api/v1/clients/"+e.OtherClient.ID.String(), nil, e.AgentToken)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
		assert.Equal(t, "forbidden", errorBody(t, rr).Kind)
	})

	t.Run("unknown client", func(t *testing.T) {
		rr := e.do(t, "GET", "/api/v1/clients/"+uuid.NewString(), nil, e.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		rr := e.do(t, "GET", "/api/v1/clients/not-a-uuid", nil, e.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestRoleCheckPrecedesInput(t *testing.T) {
	e := setupRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		token  string
	}{
		{"end-client creating a client", "POST", "/api/v1/clients", map[string]string{"email": "bad"}, e.ClientUserToken},
		{"end-client reading a client", "GET", "/api/v1/clients/not-a-uuid", nil, e.ClientUserToken},
		{"end-client issuing a link", "POST", "/api/v1/links", map[string]int{"ttl_seconds": -5}, e.ClientUserToken},
		{"support resetting a link", "POST", "/api/v1/links/not-a-uuid/reset", map[string]string{}, e.SupportToken},
		{"agent revoking a link", "DELETE", "/api/v1/links/not-a-uuid", nil, e.AgentToken},
		{"agent provisioning an agent", "POST", "/api/v1/agents", map[string]string{}, e.AgentToken},
		{"agent submitting a form", "POST", "/api/v1/forms/short", map[string]string{}, e.AgentToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, tt.method, tt.path, tt.body, tt.token)
			testutil.AssertStatus(t, rr, http.StatusForbidden)
			assert.Equal(t, "forbidden", errorBody(t, rr).Kind)
		})
	}
}
