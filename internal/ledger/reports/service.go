package reports

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// ActivityRepository is the read-side data access the service needs.
type ActivityRepository interface {
	AccountActivity(ctx context.Context, outletID int64, from, to time.Time) ([]AccountActivity, error)
	AccountLedger(ctx context.Context, outletID, accountID int64, from, to time.Time) (AccountLedger, error)
}

// Service builds reports through the cache, collapsing concurrent
// identical builds into one repository walk.
type Service struct {
	repo    ActivityRepository
	cache   *Cache
	flights singleflight.Group
}

// NewService constructs the reports service. cache may be nil; reports are
// then built on every call.
func NewService(repo ActivityRepository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// TrialBalance builds the trial balance for an outlet over [from, to].
func (s *Service) TrialBalance(ctx context.Context, outletID int64, from, to time.Time) (TrialBalance, error) {
	key, err := s.cache.BuildKey(ctx, keyTrialBalance(outletID, from, to))
	if err != nil {
		return TrialBalance{}, err
	}
	value, err := s.flight(ctx, key, func(ctx context.Context) (interface{}, error) {
		var tb TrialBalance
		err := s.cache.FetchJSON(ctx, key, &tb, func(ctx context.Context) (interface{}, error) {
			activity, err := s.repo.AccountActivity(ctx, outletID, from, to)
			if err != nil {
				return nil, err
			}
			return BuildTrialBalance(outletID, from, to, activity), nil
		})
		return tb, err
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return value.(TrialBalance), nil
}

// AccountLedger builds the statement of one account over [from, to].
func (s *Service) AccountLedger(ctx context.Context, outletID, accountID int64, from, to time.Time) (AccountLedger, error) {
	key, err := s.cache.BuildKey(ctx, keyAccountLedger(outletID, accountID, from, to))
	if err != nil {
		return AccountLedger{}, err
	}
	value, err := s.flight(ctx, key, func(ctx context.Context) (interface{}, error) {
		var ledger AccountLedger
		err := s.cache.FetchJSON(ctx, key, &ledger, func(ctx context.Context) (interface{}, error) {
			return s.repo.AccountLedger(ctx, outletID, accountID, from, to)
		})
		return ledger, err
	})
	if err != nil {
		return AccountLedger{}, err
	}
	return value.(AccountLedger), nil
}

func (s *Service) flight(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	resultChan := s.flights.DoChan(key, func() (interface{}, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.Val, res.Err
	}
}
