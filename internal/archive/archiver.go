// Package archive copies submission payloads to the blob store, sealed with
// age. The archive record survives a reset or revoke of its submission.
package archive

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/blob"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/pkg/crypto"
	"gorm.io/gorm"
)

type Archiver struct {
	db        *gorm.DB
	store     blob.Store
	encryptor *crypto.Encryptor
	gate      *access.Gate
	logger    *slog.Logger
}

func New(db *gorm.DB, store blob.Store, encryptor *crypto.Encryptor, gate *access.Gate, logger *slog.Logger) *Archiver {
	return &Archiver{
		db:        db,
		store:     store,
		encryptor: encryptor,
		gate:      gate,
		logger:    logger,
	}
}

// Archive seals and uploads one submission and records its URL. A
// submission that is already archived, or was removed by a reset before the
// task ran, is skipped.
func (a *Archiver) Archive(ctx context.Context, submissionID uuid.UUID) (string, error) {
	var sub models.FormSubmission
	if err := a.db.WithContext(ctx).First(&sub, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.logger.Info("submission gone before archiving", "submission_id", submissionID)
			return "", nil
		}
		return "", apperr.Infra("loading submission", err)
	}
	if sub.ArchiveURL != "" {
		return sub.ArchiveURL, nil
	}

	sealed, err := a.encryptor.Seal(sub.Data)
	if err != nil {
		return "", apperr.Infra("sealing submission", err)
	}

	url, err := a.store.Store(ctx, sealed)
	if err != nil {
		return "", apperr.Infra("storing archive", err)
	}

	recorded := false
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.FormSubmission{}).
			Where("id = ? AND (archive_url IS NULL OR archive_url = '')", sub.ID).
			Update("archive_url", url)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		recorded = true
		return tx.Create(&models.SubmissionArchive{
			SubmissionID: sub.ID,
			MagicLinkID:  sub.MagicLinkID,
			URL:          url,
			ArchivedAt:   time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return "", apperr.Infra("recording archive url", err)
	}
	if !recorded {
		// Reset removed it, or a retry archived it first. The blob is
		// unreferenced either way.
		a.logger.Warn("archive not recorded", "submission_id", sub.ID, "url", url)
		return "", nil
	}

	a.logger.Info("submission archived", "submission_id", sub.ID, "url", url)
	return url, nil
}

// Fetch returns the decrypted archive of a submission, including one
// whose submission was since reset or revoked. Admin only.
func (a *Archiver) Fetch(ctx context.Context, p *access.Principal, submissionID uuid.UUID) ([]byte, error) {
	if _, err := a.gate.Authorize(p, access.AdminOnly...); err != nil {
		return nil, err
	}

	var record models.SubmissionArchive
	if err := a.db.WithContext(ctx).First(&record, "submission_id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "no archive for submission")
		}
		return nil, apperr.Infra("loading archive record", err)
	}

	sealed, err := a.store.Fetch(ctx, record.URL)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "archive missing from blob store", err)
		}
		return nil, apperr.Infra("fetching archive", err)
	}

	plain, err := a.encryptor.Open(sealed)
	if err != nil {
		return nil, apperr.Infra("opening archive", err)
	}
	return plain, nil
}
