package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveHandler_Get(t *testing.T) {
	e := setupRouter(t)

	link, _ := testutil.CreateTestLink(t, e.DB, e.Client, models.LinkStatusUsed, ptr(start.Add(time.Hour)))
	sub := testutil.CreateTestSubmission(t, e.DB, link)
	path := "/api/v1/submissions/" + sub.ID.String() + "/archive"

	t.Run("not archived yet", func(t *testing.T) {
		rr := e.do(t, "GET", path, nil, e.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	_, err := e.archiver.Archive(testutil.TestContext(t), sub.ID)
	require.NoError(t, err)

	t.Run("admin reads the decrypted archive", func(t *testing.T) {
		rr := e.do(t, "GET", path, nil, e.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var archived dto.ArchiveDTO
		data(t, rr, &archived)
		assert.Equal(t, sub.ID.String(), archived.SubmissionID)
		assert.JSONEq(t, `{"answer":"42"}`, string(archived.Data))
	})

	t.Run("agent may not read archives", func(t *testing.T) {
		rr := e.do(t, "GET", path, nil, e.AgentToken)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("unknown submission", func(t *testing.T) {
		rr := e.do(t, "GET", "/api/v1/submissions/"+uuid.NewString()+"/archive", nil, e.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}
