package service

import (
	"context"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/errno"
	"crowdfund/pkg/idgen"

	"gorm.io/gorm"
)

const defaultCursorPageSize = 200

// TransactionLog is the append-only record of balance-affecting events and
// the source of truth for every cached balance.
type TransactionLog struct {
	db          *gorm.DB
	entryRepo   *repository.EntryRepository
	accountRepo *repository.AccountRepository
}

func NewTransactionLog(db *gorm.DB) *TransactionLog {
	return &TransactionLog{
		db:          db,
		entryRepo:   repository.NewEntryRepository(db),
		accountRepo: repository.NewAccountRepository(db),
	}
}

// Append validates entry, assigns its entry number and persists it inside
// tx. A reused idempotency key fails with ErrDuplicateEntry.
func (l *TransactionLog) Append(ctx context.Context, tx *gorm.DB, entry *model.LedgerEntry) (*model.LedgerEntry, error) {
	if !entry.Kind.Valid() {
		return nil, errno.Wrapf(errno.ErrValidation, "unknown entry kind %q", entry.Kind)
	}
	if !validAmount(entry.Amount) {
		return nil, errno.Wrapf(errno.ErrValidation, "entry amount must be positive with at most 2 decimals, got %s", entry.Amount)
	}
	if entry.ActorAccountID == "" {
		return nil, errno.Wrapf(errno.ErrValidation, "entry has no actor")
	}
	if _, err := l.accountRepo.Get(ctx, tx, entry.ActorAccountID); err != nil {
		if isNotFound(err) {
			return nil, errno.Wrapf(errno.ErrValidation, "actor %s does not exist", entry.ActorAccountID)
		}
		return nil, err
	}

	if key := entry.Key(); key != "" {
		existing, err := l.entryRepo.GetByIdempotencyKey(ctx, tx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errno.Wrapf(errno.ErrDuplicateEntry, "idempotency key %s already logged as %s", key, existing.EntryNo)
		}
	}

	entry.ID = 0
	entry.EntryNo = idgen.GenerateEntryNo(entry.Kind.EntryNoPrefix())
	entry.Status = model.EntryCompleted

	if err := l.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *TransactionLog) FindByIdempotencyKey(ctx context.Context, key string) (*model.LedgerEntry, error) {
	return l.entryRepo.GetByIdempotencyKey(ctx, nil, key)
}

// FindByEntryNo fails with ErrNotFound when no entry has that number.
func (l *TransactionLog) FindByEntryNo(ctx context.Context, entryNo string) (*model.LedgerEntry, error) {
	entry, err := l.entryRepo.GetByEntryNo(ctx, nil, entryNo)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errno.Wrapf(errno.ErrNotFound, "entry %s", entryNo)
	}
	return entry, nil
}

// EntriesFor iterates the entries where accountID is actor or beneficiary,
// oldest first. An empty kind matches every kind.
func (l *TransactionLog) EntriesFor(accountID string, kind model.EntryKind) *EntryCursor {
	return l.newCursor(repository.EntryFilter{AccountID: accountID, Kind: kind})
}

// EntriesForCampaign iterates the entries logged against a campaign.
func (l *TransactionLog) EntriesForCampaign(campaignID string, kind model.EntryKind) *EntryCursor {
	return l.newCursor(repository.EntryFilter{CampaignID: campaignID, Kind: kind})
}

func (l *TransactionLog) newCursor(filter repository.EntryFilter) *EntryCursor {
	return &EntryCursor{
		repo:     l.entryRepo,
		filter:   filter,
		pageSize: defaultCursorPageSize,
	}
}

// EntryCursor walks the log lazily in (created_at, id) order, one page at a
// time. It stops at the last entry that existed when the walk started, and
// Reset starts a new walk from the beginning.
//
//	cur := log.EntriesFor("alice", "")
//	for cur.Next(ctx) {
//		use(cur.Entry())
//	}
//	if err := cur.Err(); err != nil { ... }
type EntryCursor struct {
	repo     *repository.EntryRepository
	tx       *gorm.DB
	filter   repository.EntryFilter
	pageSize int

	started bool
	page    []*model.LedgerEntry
	idx     int
	pos     *repository.EntryPosition
	last    bool
	current *model.LedgerEntry
	err     error
}

// In returns a copy of the cursor that reads through tx.
func (c *EntryCursor) In(tx *gorm.DB) *EntryCursor {
	cp := &EntryCursor{repo: c.repo, tx: tx, filter: c.filter, pageSize: c.pageSize}
	cp.filter.UpToID = 0
	return cp
}

// WithPageSize changes how many rows each query fetches.
func (c *EntryCursor) WithPageSize(n int) *EntryCursor {
	if n > 0 {
		c.pageSize = n
	}
	return c
}

// Next advances to the next entry. It returns false at the end of the
// sequence or on error.
func (c *EntryCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}

	if !c.started {
		maxID, err := c.repo.MaxID(ctx, c.tx)
		if err != nil {
			c.err = err
			return false
		}
		if maxID == 0 {
			c.last = true
		}
		c.filter.UpToID = maxID
		c.started = true
	}

	if c.idx >= len(c.page) {
		if c.last {
			c.current = nil
			return false
		}
		page, err := c.repo.ListAfter(ctx, c.tx, c.filter, c.pos, c.pageSize)
		if err != nil {
			c.err = err
			return false
		}
		c.page, c.idx = page, 0
		c.last = len(page) < c.pageSize
		if len(page) == 0 {
			c.current = nil
			return false
		}
	}

	c.current = c.page[c.idx]
	c.idx++
	c.pos = &repository.EntryPosition{CreatedAt: c.current.CreatedAt, ID: c.current.ID}
	return true
}

// Entry returns the entry Next moved to.
func (c *EntryCursor) Entry() *model.LedgerEntry {
	return c.current
}

func (c *EntryCursor) Err() error {
	return c.err
}

// Reset rewinds the cursor. The next walk also sees entries appended since.
func (c *EntryCursor) Reset() {
	c.started = false
	c.page = nil
	c.idx = 0
	c.pos = nil
	c.last = false
	c.current = nil
	c.err = nil
	c.filter.UpToID = 0
}

// Collect drains the cursor into a slice, stopping after limit entries when
// limit > 0.
func (c *EntryCursor) Collect(ctx context.Context, limit int) ([]*model.LedgerEntry, error) {
	var out []*model.LedgerEntry
	for c.Next(ctx) {
		out = append(out, c.Entry())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, c.Err()
}
