package repository

import (
	"context"
	"errors"
	"time"

	"crowdfund/internal/model"

	"gorm.io/gorm"
)

type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create inserts an entry. A clash on the idempotency key or entry number
// comes back as errno.ErrDuplicateEntry.
func (r *EntryRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.LedgerEntry) error {
	return storageErr(pick(tx, r.db).WithContext(ctx).Create(entry).Error)
}

// GetByIdempotencyKey returns nil, nil when no entry carries key.
func (r *EntryRepository) GetByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := pick(tx, r.db).WithContext(ctx).Where("idempotency_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageErr(err)
	}
	return &entry, nil
}

// GetByEntryNo returns nil, nil when the entry does not exist.
func (r *EntryRepository) GetByEntryNo(ctx context.Context, tx *gorm.DB, entryNo string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := pick(tx, r.db).WithContext(ctx).Where("entry_no = ?", entryNo).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageErr(err)
	}
	return &entry, nil
}

// EntryFilter narrows a scan of the log. Zero fields match everything.
type EntryFilter struct {
	// AccountID matches entries where the account is actor or beneficiary.
	AccountID  string
	CampaignID string
	Kind       model.EntryKind
	// UpToID bounds a scan to entries that existed when it started.
	UpToID int64
}

// EntryPosition is a keyset position in (created_at, id) order.
type EntryPosition struct {
	CreatedAt time.Time
	ID        int64
}

// ListAfter returns up to limit entries strictly after pos in
// (created_at, id) order. A nil pos starts at the beginning of the log.
func (r *EntryRepository) ListAfter(ctx context.Context, tx *gorm.DB, filter EntryFilter, pos *EntryPosition, limit int) ([]*model.LedgerEntry, error) {
	query := pick(tx, r.db).WithContext(ctx).Model(&model.LedgerEntry{})

	if filter.AccountID != "" {
		query = query.Where("(actor_account_id = ? OR beneficiary_account_id = ?)", filter.AccountID, filter.AccountID)
	}
	if filter.CampaignID != "" {
		query = query.Where("campaign_id = ?", filter.CampaignID)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.UpToID > 0 {
		query = query.Where("id <= ?", filter.UpToID)
	}
	if pos != nil {
		query = query.Where("(created_at > ? OR (created_at = ? AND id > ?))", pos.CreatedAt, pos.CreatedAt, pos.ID)
	}

	var entries []*model.LedgerEntry
	err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, storageErr(err)
}

// MaxID returns the highest entry id, or 0 for an empty log.
func (r *EntryRepository) MaxID(ctx context.Context, tx *gorm.DB) (int64, error) {
	var maxID int64
	err := pick(tx, r.db).WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxID).Error
	return maxID, storageErr(err)
}
