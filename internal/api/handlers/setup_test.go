package handlers_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/archive"
	"github.com/hugh/formlink/internal/auth"
	"github.com/hugh/formlink/internal/blob"
	"github.com/hugh/formlink/internal/clients"
	"github.com/hugh/formlink/internal/clock"
	"github.com/hugh/formlink/internal/directory"
	"github.com/hugh/formlink/internal/links"
	"github.com/hugh/formlink/internal/testutil"
	"github.com/hugh/formlink/pkg/crypto"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	*testutil.TestSetup
	router   *api.Router
	links    *links.Service
	archiver *archive.Archiver
	store    *blob.Memory
	clock    *clock.Fake
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()

	tc := testutil.NewTestContext(t)
	clk := clock.NewFake(start)
	dir := directory.New(tc.DB)
	gate := access.NewGate(dir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)
	store := blob.NewMemory("test", "submissions")

	linkService := links.NewService(tc.DB, gate, dir, clk, logger, links.DefaultOptions())
	archiver := archive.New(tc.DB, store, enc, gate, logger)

	router := api.NewRouter(api.RouterConfig{
		DB:            tc.DB,
		Logger:        logger,
		JWTService:    tc.JWTService,
		AuthService:   auth.NewService(tc.DB, tc.JWTService, dir, gate),
		Gate:          gate,
		ClientService: clients.NewService(tc.DB, gate, dir),
		LinkService:   linkService,
		Archiver:      archiver,
	})
	t.Cleanup(router.Close)

	return &testEnv{
		TestSetup: tc,
		router:    router,
		links:     linkService,
		archiver:  archiver,
		store:     store,
		clock:     clk,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := testutil.AuthenticatedRequest(t, method, path, body, token)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorBody  `json:"error"`
}

// data asserts a successful envelope and decodes its payload into v.
func data(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	var env envelope
	testutil.ParseJSONResponse(t, rr, &env)
	require.True(t, env.Success, "body: %s", rr.Body.String())
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v))
	}
}

// errorBody asserts a failed envelope and returns its error.
func errorBody(t *testing.T, rr *httptest.ResponseRecorder) *dto.ErrorBody {
	t.Helper()

	var env envelope
	testutil.ParseJSONResponse(t, rr, &env)
	require.False(t, env.Success, "body: %s", rr.Body.String())
	require.NotNil(t, env.Error)
	return env.Error
}

func ptr[T any](v T) *T { return &v }
