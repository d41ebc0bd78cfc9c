package archive_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/archive"
	"github.com/hugh/formlink/internal/blob"
	"github.com/hugh/formlink/internal/clock"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/internal/directory"
	"github.com/hugh/formlink/internal/links"
	"github.com/hugh/formlink/internal/testutil"
	"github.com/hugh/formlink/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*testutil.TestSetup, *archive.Archiver, *blob.Memory) {
	t.Helper()

	ts := testutil.NewTestContext(t)
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)
	store := blob.NewMemory("local", "submissions")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return ts, archive.New(ts.DB, store, enc, access.NewGate(directory.New(ts.DB)), logger), store
}

func TestArchiveAndFetch(t *testing.T) {
	ts, a, store := setup(t)
	ctx := testutil.TestContext(t)

	link, _ := testutil.CreateTestLink(t, ts.DB, ts.Client, models.LinkStatusUsed, nil)
	sub := testutil.CreateTestSubmission(t, ts.DB, link)

	url, err := a.Archive(ctx, sub.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, 1, store.Len())

	sealed, err := store.Fetch(ctx, url)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(sealed), "age-encryption.org/v1"))

	var stored models.FormSubmission
	require.NoError(t, ts.DB.First(&stored, "id = ?", sub.ID).Error)
	assert.Equal(t, url, stored.ArchiveURL)

	var record models.SubmissionArchive
	require.NoError(t, ts.DB.First(&record, "submission_id = ?", sub.ID).Error)
	assert.Equal(t, url, record.URL)
	assert.Equal(t, link.ID, record.MagicLinkID)

	again, err := a.Archive(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, url, again)
	assert.Equal(t, 1, store.Len())

	plain, err := a.Fetch(ctx, testutil.Principal(ts.Admin), sub.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"42"}`, string(plain))
}

func TestArchive_SubmissionGone(t *testing.T) {
	_, a, store := setup(t)

	url, err := a.Archive(testutil.TestContext(t), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Zero(t, store.Len())
}

func TestFetch(t *testing.T) {
	ts, a, _ := setup(t)
	ctx := testutil.TestContext(t)

	link, _ := testutil.CreateTestLink(t, ts.DB, ts.Client, models.LinkStatusUsed, nil)
	sub := testutil.CreateTestSubmission(t, ts.DB, link)

	_, err := a.Fetch(ctx, testutil.Principal(ts.Support), sub.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = a.Fetch(ctx, testutil.Principal(ts.Admin), sub.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = a.Fetch(ctx, testutil.Principal(ts.Admin), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, ts.DB.Create(&models.SubmissionArchive{
		SubmissionID: sub.ID,
		MagicLinkID:  link.ID,
		URL:          "mem://local/submissions/missing",
		ArchivedAt:   time.Now().UTC(),
	}).Error)
	_, err = a.Fetch(ctx, testutil.Principal(ts.Admin), sub.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFetch_AfterResetAndRevoke(t *testing.T) {
	ts, a, _ := setup(t)
	ctx := testutil.TestContext(t)
	admin := testutil.Principal(ts.Admin)

	dir := directory.New(ts.DB)
	svc := links.NewService(ts.DB, access.NewGate(dir), dir, clock.Real(),
		slog.New(slog.NewTextHandler(io.Discard, nil)), links.DefaultOptions())

	link, _ := testutil.CreateTestLink(t, ts.DB, ts.Client, models.LinkStatusUsed, testutil.Ptr(time.Now().Add(time.Hour)))
	first := testutil.CreateTestSubmission(t, ts.DB, link)
	_, err := a.Archive(ctx, first.ID)
	require.NoError(t, err)

	_, err = svc.Reset(ctx, admin, link.ID, first.ID)
	require.NoError(t, err)
	assert.Zero(t, testutil.CountSubmissions(t, ts.DB, link.ID))

	plain, err := a.Fetch(ctx, admin, first.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"42"}`, string(plain))

	require.NoError(t, ts.DB.Model(link).Update("status", models.LinkStatusUsed).Error)
	second := testutil.CreateTestSubmission(t, ts.DB, link)
	_, err = a.Archive(ctx, second.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, admin, link.ID))

	_, err = a.Fetch(ctx, admin, second.ID)
	require.NoError(t, err)
	_, err = a.Fetch(ctx, admin, first.ID)
	require.NoError(t, err)
}
