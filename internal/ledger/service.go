package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// numberRetries bounds retries after a voucher number allocation race. The
// race is an infrastructure event, never surfaced as a business error
// unless retries exhaust.
const numberRetries = 3

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetVoucher(ctx context.Context, id int64) (Voucher, error)
	ListVouchers(ctx context.Context, outletID int64, filter ListFilter) ([]Voucher, error)
}

// AuditPort records ledger events for the activity log. Recording happens
// after commit and is best-effort: it never blocks or rolls back a posting.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator bumps the read-side report cache after balances move.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Service is the posting and reversal engine.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache CacheInvalidator
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort, cache CacheInvalidator) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates, numbers, and persists a voucher, applying every line's
// balance delta in the same transaction. Either all of it becomes visible or
// none of it.
func (s *Service) Post(ctx context.Context, input PostingInput) (Voucher, error) {
	if err := input.Validate(); err != nil {
		return Voucher{}, err
	}
	var posted Voucher
	err := s.withNumberRetry(func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			posted, err = s.postTx(ctx, tx, input)
			return err
		})
	})
	if err != nil {
		return Voucher{}, err
	}
	s.afterPosting(ctx, "voucher.post", posted, map[string]any{
		"reference_type": input.ReferenceType,
		"reference_id":   input.ReferenceID,
	})
	return posted, nil
}

// PostDraft stores a validated voucher in DRAFT state. Drafts hold no
// number and touch no balances until promoted.
func (s *Service) PostDraft(ctx context.Context, input PostingInput) (Voucher, error) {
	if err := input.Validate(); err != nil {
		return Voucher{}, err
	}
	var draft Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.checkAccounts(ctx, tx, input.OutletID, input.Lines); err != nil {
			return err
		}
		debit, credit := input.Totals()
		candidate := s.buildVoucher(input, nil)
		candidate.Status = StatusDraft
		candidate.TotalDebit = debit
		candidate.TotalCredit = credit
		inserted, err := tx.InsertVoucher(ctx, candidate)
		if err != nil {
			return err
		}
		lines, err := s.snapshotLines(ctx, tx, input.OutletID, input.Lines)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
			return err
		}
		inserted.Lines = withVoucherID(inserted.ID, lines)
		draft = inserted
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, "voucher.draft", draft, map[string]any{})
	return draft, nil
}

// PostDraftByID promotes a draft: re-validates it, allocates its number and
// applies balance deltas.
func (s *Service) PostDraftByID(ctx context.Context, draftID, actorID int64) (Voucher, error) {
	var posted Voucher
	err := s.withNumberRetry(func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			draft, err := tx.GetDraft(ctx, draftID)
			if err != nil {
				return err
			}
			input := draftToInput(draft)
			input.PostedBy = actorID
			if err := input.Validate(); err != nil {
				return err
			}
			if err := s.checkAccounts(ctx, tx, draft.OutletID, input.Lines); err != nil {
				return err
			}
			seq, err := tx.NextSequence(ctx, draft.OutletID, draft.Type, NumberPeriod(draft.Date))
			if err != nil {
				return err
			}
			number := FormatNumber(draft.Type, NumberPeriod(draft.Date), seq)
			now := s.now()
			if err := tx.PromoteDraft(ctx, draft.ID, number, actorID, now); err != nil {
				return err
			}
			for _, line := range draft.Lines {
				if line.IsMemo() {
					continue
				}
				if err := tx.ApplyDelta(ctx, line.AccountID, line.Debit, line.Credit); err != nil {
					return err
				}
			}
			draft.Status = StatusPosted
			draft.Number = number
			draft.PostedBy = actorID
			draft.PostedAt = &now
			posted = draft
			return nil
		})
	})
	if err != nil {
		return Voucher{}, err
	}
	s.afterPosting(ctx, "voucher.post", posted, map[string]any{"from_draft": true})
	return posted, nil
}

// Approve transitions POSTED to APPROVED. Balances moved at posting time;
// approval is a workflow marker only.
func (s *Service) Approve(ctx context.Context, voucherID, actorID int64) (Voucher, error) {
	var approved Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		voucher, err := tx.GetVoucherWithLines(ctx, voucherID)
		if err != nil {
			return err
		}
		if voucher.Status != StatusPosted {
			return ErrInvalidStatus
		}
		if err := tx.UpdateVoucherStatus(ctx, voucherID, StatusApproved); err != nil {
			return err
		}
		voucher.Status = StatusApproved
		approved = voucher
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, "voucher.approve", approved, map[string]any{"actor_id": actorID})
	return approved, nil
}

// CancelDraft discards a draft. Posted vouchers are never cancelled; they
// are reversed.
func (s *Service) CancelDraft(ctx context.Context, draftID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		draft, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		return tx.UpdateVoucherStatus(ctx, draft.ID, StatusCancelled)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "voucher.cancel",
			Entity:   "voucher",
			EntityID: fmt.Sprintf("%d", draftID),
			At:       s.now(),
		})
	}
	return nil
}

// Reverse posts an equal-and-opposite voucher for a posted original. The
// original is never mutated; at most one reversal may exist per voucher.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (Voucher, error) {
	if input.VoucherID == 0 {
		return Voucher{}, errors.New("ledger: voucher id required")
	}
	var reversal Voucher
	err := s.withNumberRetry(func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			reversal, err = s.reverseTx(ctx, tx, input)
			return err
		})
	})
	if err != nil {
		return Voucher{}, err
	}
	s.afterPosting(ctx, "voucher.reverse", reversal, map[string]any{
		"original_id": input.VoucherID,
		"reason":      input.Reason,
	})
	return reversal, nil
}

// Correct reverses a posted voucher and posts its replacement as one atomic
// unit. A crash cannot leave the ledger with the original reversed and the
// correction missing; the corrections row records the completed walk.
func (s *Service) Correct(ctx context.Context, input CorrectionInput) (CorrectionResult, error) {
	if input.OriginalVoucherID == 0 {
		return CorrectionResult{}, errors.New("ledger: original voucher id required")
	}
	if err := input.Replacement.Validate(); err != nil {
		return CorrectionResult{}, err
	}
	correctionID := uuid.New()
	var result CorrectionResult
	err := s.withNumberRetry(func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.InsertCorrection(ctx, correctionID, input.OriginalVoucherID, input.Reason, input.ActorID); err != nil {
				return err
			}
			reversal, err := s.reverseTx(ctx, tx, ReverseInput{
				VoucherID:      input.OriginalVoucherID,
				ActorID:        input.ActorID,
				Reason:         input.Reason,
				SkipCategories: input.SkipCategories,
			})
			if err != nil {
				return err
			}
			if err := tx.SetCorrectionState(ctx, correctionID, CorrectionStateReversed, &reversal.ID, nil); err != nil {
				return err
			}
			replacement, err := s.postTx(ctx, tx, input.Replacement)
			if err != nil {
				return err
			}
			if err := tx.SetCorrectionState(ctx, correctionID, CorrectionStateReposted, nil, &replacement.ID); err != nil {
				return err
			}
			if err := tx.SetCorrectionState(ctx, correctionID, CorrectionStateDone, nil, nil); err != nil {
				return err
			}
			result = CorrectionResult{CorrectionID: correctionID, Reversal: reversal, Replacement: replacement}
			return nil
		})
	})
	if err != nil {
		return CorrectionResult{}, err
	}
	s.afterPosting(ctx, "voucher.correct", result.Replacement, map[string]any{
		"correction_id": correctionID.String(),
		"original_id":   input.OriginalVoucherID,
		"reversal_id":   result.Reversal.ID,
	})
	return result, nil
}

// Get loads one voucher with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Voucher, error) {
	return s.repo.GetVoucher(ctx, id)
}

// List returns voucher headers for an outlet.
func (s *Service) List(ctx context.Context, outletID int64, filter ListFilter) ([]Voucher, error) {
	return s.repo.ListVouchers(ctx, outletID, filter)
}

// postTx performs the full posting sequence inside an open transaction:
// account checks, number allocation, voucher + lines, balance deltas.
func (s *Service) postTx(ctx context.Context, tx TxRepository, input PostingInput) (Voucher, error) {
	// One live voucher per source document. A document whose voucher was
	// reversed may post again; anything else is a double-post.
	if input.ReferenceType != "" && input.ReferenceID != "" {
		exists, err := tx.HasLiveReference(ctx, input.ReferenceType, input.ReferenceID)
		if err != nil {
			return Voucher{}, err
		}
		if exists {
			return Voucher{}, fmt.Errorf("%w: %s %s", ErrDuplicateReference, input.ReferenceType, input.ReferenceID)
		}
	}
	if err := s.checkAccounts(ctx, tx, input.OutletID, input.Lines); err != nil {
		return Voucher{}, err
	}
	period := NumberPeriod(input.Date)
	seq, err := tx.NextSequence(ctx, input.OutletID, input.Type, period)
	if err != nil {
		return Voucher{}, err
	}
	now := s.now()
	debit, credit := input.Totals()
	candidate := s.buildVoucher(input, &now)
	candidate.Number = FormatNumber(input.Type, period, seq)
	candidate.Status = StatusPosted
	candidate.TotalDebit = debit
	candidate.TotalCredit = credit
	inserted, err := tx.InsertVoucher(ctx, candidate)
	if err != nil {
		return Voucher{}, err
	}
	lines, err := s.snapshotLines(ctx, tx, input.OutletID, input.Lines)
	if err != nil {
		return Voucher{}, err
	}
	if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
		return Voucher{}, err
	}
	for _, line := range lines {
		if line.IsMemo() {
			continue
		}
		if err := tx.ApplyDelta(ctx, line.AccountID, line.Debit, line.Credit); err != nil {
			return Voucher{}, err
		}
	}
	inserted.Lines = withVoucherID(inserted.ID, lines)
	return inserted, nil
}

func (s *Service) reverseTx(ctx context.Context, tx TxRepository, input ReverseInput) (Voucher, error) {
	original, err := tx.GetVoucherWithLines(ctx, input.VoucherID)
	if err != nil {
		return Voucher{}, err
	}
	if original.Status != StatusPosted && original.Status != StatusApproved {
		return Voucher{}, ErrNotPosted
	}
	reversed, err := tx.HasReversal(ctx, original.ID)
	if err != nil {
		return Voucher{}, err
	}
	if reversed {
		return Voucher{}, ErrAlreadyReversed
	}
	posting, err := buildReversalInput(original, input)
	if err != nil {
		return Voucher{}, err
	}
	// SkipCategories can strip one side of a balanced pair; the remainder
	// must satisfy the same invariant as any other posting.
	if err := posting.Validate(); err != nil {
		return Voucher{}, err
	}
	return s.postTx(ctx, tx, posting)
}

// checkAccounts rejects postings referencing missing or inactive accounts
// before any mutation happens.
func (s *Service) checkAccounts(ctx context.Context, tx TxRepository, outletID int64, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	found, err := tx.GetAccounts(ctx, outletID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		account, ok := found[id]
		if !ok {
			return fmt.Errorf("%w: id %d", accounts.ErrNotFound, id)
		}
		if !account.IsActive {
			return fmt.Errorf("%w: %s", accounts.ErrInactive, account.Code)
		}
	}
	return nil
}

// snapshotLines freezes account code and name onto each line so reports
// stay stable if accounts are renamed later.
func (s *Service) snapshotLines(ctx context.Context, tx TxRepository, outletID int64, inputs []LineInput) ([]Line, error) {
	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.AccountID)
	}
	found, err := tx.GetAccounts(ctx, outletID, ids)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		account := found[in.AccountID]
		category := in.Category
		if category == "" {
			category = CategoryOther
		}
		lines = append(lines, Line{
			AccountID:   in.AccountID,
			AccountCode: account.Code,
			AccountName: account.Name,
			Category:    category,
			Debit:       in.Debit,
			Credit:      in.Credit,
			Narration:   in.Narration,
		})
	}
	return lines, nil
}

func (s *Service) buildVoucher(input PostingInput, postedAt *time.Time) Voucher {
	return Voucher{
		OutletID:      input.OutletID,
		Type:          input.Type,
		Date:          input.Date,
		Narration:     input.Narration,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		PostedBy:      input.PostedBy,
		PostedAt:      postedAt,
	}
}

func (s *Service) withNumberRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < numberRetries; attempt++ {
		err = fn()
		if !errors.Is(err, ErrDuplicateNumber) {
			return err
		}
	}
	return err
}

func (s *Service) afterPosting(ctx context.Context, action string, voucher Voucher, meta map[string]any) {
	s.record(ctx, action, voucher, meta)
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
}

func (s *Service) record(ctx context.Context, action string, voucher Voucher, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = voucher.Number
	meta["type"] = string(voucher.Type)
	_ = s.audit.Record(ctx, shared.AuditLog{
		OutletID: voucher.OutletID,
		ActorID:  voucher.PostedBy,
		Action:   action,
		Entity:   "voucher",
		EntityID: fmt.Sprintf("%d", voucher.ID),
		Meta:     meta,
		At:       s.now(),
	})
}

// buildReversalInput swaps debits and credits, skipping memo lines and any
// caller-excluded categories.
func buildReversalInput(original Voucher, input ReverseInput) (PostingInput, error) {
	skip := make(map[LineCategory]struct{}, len(input.SkipCategories))
	for _, c := range input.SkipCategories {
		skip[c] = struct{}{}
	}
	lines := make([]LineInput, 0, len(original.Lines))
	for _, line := range original.Lines {
		if line.IsMemo() {
			continue
		}
		if _, excluded := skip[line.Category]; excluded {
			continue
		}
		lines = append(lines, LineInput{
			AccountID: line.AccountID,
			Category:  line.Category,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Narration: line.Narration,
		})
	}
	if len(lines) == 0 {
		return PostingInput{}, ErrNothingToReverse
	}
	return PostingInput{
		OutletID:      original.OutletID,
		Type:          TypeReversal,
		Date:          original.Date,
		Narration:     reversalNarration(original.Number, input.Reason),
		ReferenceType: ReferenceTypeReversal,
		ReferenceID:   fmt.Sprintf("%d", original.ID),
		PostedBy:      input.ActorID,
		Lines:         lines,
	}, nil
}

func reversalNarration(number, reason string) string {
	base := fmt.Sprintf("Reversal of %s", number)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return base
	}
	return base + ": " + reason
}

func draftToInput(draft Voucher) PostingInput {
	lines := make([]LineInput, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		lines = append(lines, LineInput{
			AccountID: line.AccountID,
			Category:  line.Category,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Narration: line.Narration,
		})
	}
	return PostingInput{
		OutletID:      draft.OutletID,
		Type:          draft.Type,
		Date:          draft.Date,
		Narration:     draft.Narration,
		ReferenceType: draft.ReferenceType,
		ReferenceID:   draft.ReferenceID,
		Lines:         lines,
	}
}

func withVoucherID(id int64, lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	for i := range out {
		out[i].VoucherID = id
	}
	return out
}
