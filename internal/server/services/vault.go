// Package services contains server-side business logic. VaultService
// implements the one-time file drop: RequestUpload registers a file and hands
// out a direct-upload descriptor, RequestDownload releases the file exactly
// once.
package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophdrop/internal/common"
	"github.com/dmitrijs2005/gophdrop/internal/cryptox"
	"github.com/dmitrijs2005/gophdrop/internal/logging"
	"github.com/dmitrijs2005/gophdrop/internal/server/config"
	"github.com/dmitrijs2005/gophdrop/internal/server/metrics"
	"github.com/dmitrijs2005/gophdrop/internal/server/models"
	"github.com/dmitrijs2005/gophdrop/internal/server/objectstore"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	// MaxPasswordBytes bounds the passphrase accepted on upload.
	MaxPasswordBytes = 128
	// MaxFilenameBytes bounds the stored display name.
	MaxFilenameBytes = 255

	createAttempts = 3
)

// UploadRequest is the input of RequestUpload. Size is the size the caller
// intends to upload, 0 when unknown.
type UploadRequest struct {
	Filename string
	Password string
	Size     int64
}

// DownloadRequest is the input of RequestDownload.
type DownloadRequest struct {
	FileID   string
	Password string
}

// VaultService owns the consume-at-most-once rule. It keeps no state of its
// own; every decision is made by an atomic operation in the metadata store.
type VaultService struct {
	repos   repomanager.Manager
	store   objectstore.Store
	logger  logging.Logger
	metrics metrics.Metrics

	retention      time.Duration
	uploadTTL      time.Duration
	downloadTTL    time.Duration
	reapGrace      time.Duration
	maxUploadBytes int64
	maxAttempts    int

	now func() time.Time
}

// NewVaultService constructs a VaultService using repositories, an object
// store and server config.
func NewVaultService(m repomanager.Manager, store objectstore.Store, cfg *config.Config, logger logging.Logger, mx metrics.Metrics) *VaultService {
	return &VaultService{
		repos:          m,
		store:          store,
		logger:         logger.With("module", "vault"),
		metrics:        mx,
		retention:      cfg.RetentionWindow,
		uploadTTL:      cfg.UploadTTL,
		downloadTTL:    cfg.DownloadTTL,
		reapGrace:      cfg.ReapGrace,
		maxUploadBytes: cfg.MaxUploadBytes,
		maxAttempts:    cfg.MaxPasswordAttempts,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// StorageKey returns a fresh object key under a date prefix. It carries no
// part of the caller's filename.
func StorageKey(t time.Time) string {
	return fmt.Sprintf("uploads/%04d/%02d/%02d/%v", t.Year(), t.Month(), t.Day(), uuid.New())
}

// SanitizeFilename reduces name to a display-safe base name: directory
// components and control characters are dropped and the result is capped
// at MaxFilenameBytes. An empty result means the name was unusable.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(path.Base(strings.TrimSpace(name)))

	switch name {
	case ".", "..", "/":
		return ""
	}

	if len(name) > MaxFilenameBytes {
		cut := MaxFilenameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}

// RequestUpload validates the request, registers a pending FileRecord and
// returns a pre-authorized upload descriptor bound to a fresh storage key.
// No record is left behind when the descriptor cannot be issued.
func (s *VaultService) RequestUpload(ctx context.Context, in UploadRequest) (ticket *models.UploadTicket, err error) {
	defer func() { s.metrics.IncUpload(outcome(err)) }()

	if strings.TrimSpace(in.Filename) == "" {
		return nil, common.Validationf("filename is required")
	}
	filename := SanitizeFilename(in.Filename)
	if filename == "" {
		return nil, common.Validationf("filename is not valid")
	}
	if len(in.Password) > MaxPasswordBytes {
		return nil, common.Validationf("password is too long (max %d bytes)", MaxPasswordBytes)
	}
	if in.Size < 0 {
		return nil, common.Validationf("size must not be negative")
	}
	if in.Size > s.maxUploadBytes {
		return nil, common.Validationf("file is too large (max %d bytes)", s.maxUploadBytes)
	}

	now := s.now()
	rec := &models.FileRecord{
		StorageKey: StorageKey(now),
		Filename:   filename,
		Status:     models.StatusPendingUpload,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.retention),
	}
	if in.Password != "" {
		rec.PasswordHash = cryptox.HashPassword(in.Password)
	}

	files := s.repos.Files()
	for i := 0; ; i++ {
		rec.FileID, err = common.NewFileID()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		err = files.Create(ctx, rec)
		if err == nil {
			break
		}
		if errors.Is(err, common.ErrAlreadyExists) && i+1 < createAttempts {
			s.logger.Warn(ctx, "file id collision, retrying")
			continue
		}
		s.logger.Error(ctx, "failed to create file record", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	desc, err := s.store.PresignUpload(ctx, rec.StorageKey, s.maxUploadBytes, s.uploadTTL)
	if err != nil {
		s.logger.Error(ctx, "failed to issue upload descriptor", "file_id", rec.FileID, "error", err)
		if delErr := files.Delete(ctx, rec.FileID); delErr != nil {
			// The record stays pending and unconfirmed until the sweeper
			// removes it at expiry.
			s.logger.Error(ctx, "compensating delete failed", "file_id", rec.FileID, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	s.logger.Info(ctx, "upload requested", "file_id", rec.FileID, "protected", rec.HasPassword())

	return &models.UploadTicket{
		FileID:     rec.FileID,
		ExpiresAt:  rec.ExpiresAt,
		Descriptor: desc,
	}, nil
}

// RequestDownload releases the file identified by in.FileID exactly once.
//
// Any id that is unknown, expired, not yet uploaded or already consumed
// yields common.ErrorNotFound; a wrong passphrase yields
// common.ErrorUnauthorized. Once the record has been consumed the call is
// never repeated internally: if no download descriptor can then be issued
// the blob is queued for deletion and common.ErrPartialFailure is returned.
func (s *VaultService) RequestDownload(ctx context.Context, in DownloadRequest) (desc *models.DownloadDescriptor, err error) {
	defer func() { s.metrics.IncDownload(outcome(err)) }()

	if !common.IsFileID(in.FileID) {
		return nil, common.ErrorNotFound
	}

	now := s.now()
	files := s.repos.Files()

	rec, err := files.GetByID(ctx, in.FileID)
	if err != nil {
		return nil, s.storeErr(ctx, in.FileID, "failed to read file record", err)
	}
	if rec.Expired(now) {
		return nil, common.ErrorNotFound
	}

	switch rec.Status {
	case models.StatusPendingUpload:
		if err := s.confirmUpload(ctx, rec, now); err != nil {
			return nil, err
		}
	case models.StatusAvailable:
	default:
		return nil, common.ErrorNotFound
	}

	if rec.HasPassword() {
		if err := s.checkPassword(ctx, rec, in.Password, now); err != nil {
			return nil, err
		}
	}

	consumed, err := files.Consume(ctx, in.FileID, now, s.reapTime(rec, now.Add(s.downloadTTL+s.reapGrace)))
	if err != nil {
		return nil, s.storeErr(ctx, in.FileID, "failed to consume file record", err)
	}

	desc, err = s.store.PresignDownload(ctx, consumed.StorageKey, consumed.Filename, s.downloadTTL)
	if err != nil {
		s.logger.Error(ctx, "partial failure: file consumed but no download descriptor issued",
			"file_id", in.FileID, "storage_key", consumed.StorageKey, "error", err)
		if schedErr := s.repos.Reaps().Schedule(ctx, consumed.StorageKey, s.reapTime(rec, now)); schedErr != nil {
			s.logger.Error(ctx, "failed to schedule reap",
				"storage_key", consumed.StorageKey, "error", schedErr)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrPartialFailure, err)
	}

	s.logger.Info(ctx, "file released", "file_id", in.FileID, "size", consumed.Size)
	return desc, nil
}

// confirmUpload checks that the object behind a pending record exists and is
// within the size cap, then marks the record available.
func (s *VaultService) confirmUpload(ctx context.Context, rec *models.FileRecord, now time.Time) error {
	info, err := s.store.Stat(ctx, rec.StorageKey)
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return common.ErrorNotFound
	}
	if err != nil {
		s.logger.Error(ctx, "failed to stat object", "file_id", rec.FileID, "error", err)
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	if info.Size > s.maxUploadBytes {
		s.logger.Warn(ctx, "uploaded object exceeds size cap, destroying",
			"file_id", rec.FileID, "size", info.Size)
		if err := s.repos.Files().Destroy(ctx, rec.FileID, s.reapTime(rec, now)); err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "failed to destroy oversized file", "file_id", rec.FileID, "error", err)
		}
		return common.ErrorNotFound
	}

	// false means another request confirmed it first; consume decides.
	if _, err := s.repos.Files().MarkAvailable(ctx, rec.FileID, info.Size); err != nil {
		return s.storeErr(ctx, rec.FileID, "failed to mark file available", err)
	}
	rec.Status = models.StatusAvailable
	rec.Size = info.Size
	return nil
}

// checkPassword reserves one attempt before verifying, so concurrent guesses
// can never exceed maxAttempts. The record is destroyed when the last
// attempt fails.
func (s *VaultService) checkPassword(ctx context.Context, rec *models.FileRecord, password string, now time.Time) error {
	n, err := s.repos.Files().ReserveAttempt(ctx, rec.FileID, s.maxAttempts, now)
	if err != nil {
		return s.storeErr(ctx, rec.FileID, "failed to reserve password attempt", err)
	}

	ok := false
	if len(password) <= MaxPasswordBytes {
		ok, err = cryptox.VerifyPassword(rec.PasswordHash, password)
		if err != nil {
			s.logger.Error(ctx, "stored password hash is malformed", "file_id", rec.FileID, "error", err)
			return fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
	}
	if ok {
		return nil
	}

	s.logger.Warn(ctx, "wrong password", "file_id", rec.FileID, "attempt", n, "max", s.maxAttempts)
	if n >= s.maxAttempts {
		if err := s.repos.Files().Destroy(ctx, rec.FileID, s.reapTime(rec, now)); err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "failed to destroy locked-out file", "file_id", rec.FileID, "error", err)
		} else {
			s.logger.Info(ctx, "file destroyed after too many wrong passwords", "file_id", rec.FileID)
		}
	}
	return common.ErrorUnauthorized
}

// reapTime returns when the blob behind rec may be deleted: no earlier than
// earliest, and not before its upload descriptor has lapsed, so a late POST
// cannot land after the object is gone.
func (s *VaultService) reapTime(rec *models.FileRecord, earliest time.Time) time.Time {
	if lapsed := rec.CreatedAt.Add(s.uploadTTL + s.reapGrace); lapsed.After(earliest) {
		return lapsed
	}
	return earliest
}

// storeErr passes ErrorNotFound through and turns anything else from the
// metadata store into ErrStorageUnavailable.
func (s *VaultService) storeErr(ctx context.Context, fileID, msg string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorNotFound
	}
	s.logger.Error(ctx, msg, "file_id", fileID, "error", err)
	return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, common.ErrValidation):
		return metrics.OutcomeValidation
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrorUnauthorized):
		return metrics.OutcomeDenied
	case errors.Is(err, common.ErrStorageUnavailable):
		return metrics.OutcomeStorageUnavailable
	case errors.Is(err, common.ErrPartialFailure):
		return metrics.OutcomePartialFailure
	default:
		return metrics.OutcomeError
	}
}
