package auth_test

import (
	"testing"

	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/auth"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/internal/directory"
	"github.com/hugh/formlink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(ts *testutil.TestSetup) *auth.Service {
	dir := directory.New(ts.DB)
	return auth.NewService(ts.DB, ts.JWTService, dir, access.NewGate(dir))
}

func TestLogin(t *testing.T) {
	ts := testutil.NewTestContext(t)
	svc := newService(ts)
	ctx := testutil.TestContext(t)

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := svc.Login(ctx, auth.LoginInput{Email: ts.Agent.Email, Password: testutil.TestPassword})
		require.NoError(t, err)
		assert.Equal(t, ts.Agent.ID, resp.User.ID)

		claims, err := ts.JWTService.ValidateToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAgent, claims.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.LoginInput{Email: ts.Agent.Email, Password: "nope"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.LoginInput{Email: "ghost@example.com", Password: testutil.TestPassword})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("inactive user", func(t *testing.T) {
		user := testutil.CreateTestUser(t, ts.DB, models.RoleSupport)
		testutil.DeactivateUser(t, ts.DB, user)

		_, err := svc.Login(ctx, auth.LoginInput{Email: user.Email, Password: testutil.TestPassword})
		assert.ErrorIs(t, err, auth.ErrInactiveUser)
		assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	})
}

func TestRegister(t *testing.T) {
	ts := testutil.NewTestContext(t)
	svc := newService(ts)
	ctx := testutil.TestContext(t)

	t.Run("client email may register", func(t *testing.T) {
		client := testutil.CreateTestClient(t, ts.DB, ts.Agent.ID)

		resp, err := svc.Register(ctx, auth.RegisterInput{Email: client.Email, Password: "longenough"})
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, resp.User.Role)
		assert.Equal(t, client.FullName, resp.User.Name)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("already registered", func(t *testing.T) {
		_, err := svc.Register(ctx, auth.RegisterInput{Email: ts.Client.Email, Password: "longenough"})
		assert.ErrorIs(t, err, auth.ErrUserExists)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Register(ctx, auth.RegisterInput{Email: "walk-in@example.com", Password: "longenough"})
		assert.ErrorIs(t, err, auth.ErrNotAClient)
	})

	t.Run("archived client", func(t *testing.T) {
		client := testutil.CreateTestClient(t, ts.DB, ts.Agent.ID)
		require.NoError(t, ts.DB.Model(client).Update("status", models.ClientStatusArchived).Error)

		_, err := svc.Register(ctx, auth.RegisterInput{Email: client.Email, Password: "longenough"})
		assert.ErrorIs(t, err, auth.ErrNotAClient)
	})
}

func TestCreateAgent(t *testing.T) {
	ts := testutil.NewTestContext(t)
	svc := newService(ts)
	ctx := testutil.TestContext(t)

	t.Run("admin provisions an agent", func(t *testing.T) {
		acct, err := svc.CreateAgent(ctx, testutil.Principal(ts.Admin), auth.CreateAgentInput{
			Email:    "New.Agent@Example.com",
			Password: "longenough",
			Name:     "New Agent",
			Phone:    "+15550199",
		})
		require.NoError(t, err)
		assert.Equal(t, acct.User.ID, acct.Agent.ID)
		assert.Equal(t, models.RoleAgent, acct.User.Role)
		assert.Equal(t, "new.agent@example.com", acct.User.Email)
		assert.Equal(t, models.AgentStatusActive, acct.Agent.Status)
	})

	t.Run("support role", func(t *testing.T) {
		acct, err := svc.CreateAgent(ctx, testutil.Principal(ts.Admin), auth.CreateAgentInput{
			Email: "support2@example.com", Password: "longenough", Role: models.RoleSupport,
		})
		require.NoError(t, err)
		assert.Equal(t, models.RoleSupport, acct.User.Role)
	})

	t.Run("cannot mint admins", func(t *testing.T) {
		_, err := svc.CreateAgent(ctx, testutil.Principal(ts.Admin), auth.CreateAgentInput{
			Email: "root@example.com", Password: "longenough", Role: models.RoleAdmin,
		})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("admin only", func(t *testing.T) {
		_, err := svc.CreateAgent(ctx, testutil.Principal(ts.Support), auth.CreateAgentInput{
			Email: "sneaky@example.com", Password: "longenough",
		})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.CreateAgent(ctx, testutil.Principal(ts.Admin), auth.CreateAgentInput{
			Email: ts.Agent.Email, Password: "longenough",
		})
		assert.ErrorIs(t, err, auth.ErrUserExists)
	})
}
