package credit

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/audit"
)

type txStub struct{}

func (txStub) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeCreditRepo struct {
	credits      map[id.ID]*CustomerCredit
	consumptions []*Consumption
}

func newFakeCreditRepo() *fakeCreditRepo {
	return &fakeCreditRepo{credits: make(map[id.ID]*CustomerCredit)}
}

func (r *fakeCreditRepo) CreateCredit(ctx context.Context, c *CustomerCredit) error {
	r.credits[c.ID] = c
	return nil
}

func (r *fakeCreditRepo) GetCredit(ctx context.Context, creditID id.ID) (*CustomerCredit, error) {
	c, ok := r.credits[creditID]
	if !ok {
		return nil, apperror.NewNotFound("credit", creditID.String())
	}
	return c, nil
}

func (r *fakeCreditRepo) GetCreditForUpdate(ctx context.Context, creditID id.ID) (*CustomerCredit, error) {
	return r.GetCredit(ctx, creditID)
}

func (r *fakeCreditRepo) ListActiveForUpdate(ctx context.Context, personID id.ID) ([]*CustomerCredit, error) {
	var out []*CustomerCredit
	for _, c := range r.credits {
		if c.PersonID == personID && c.Status == StatusActive {
			out = append(out, c)
		}
	}
	// Consumption order: soonest expiry first, no-expiry last, then oldest grant.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.ExpiresAt != nil && b.ExpiresAt != nil:
			if !a.ExpiresAt.Equal(*b.ExpiresAt) {
				return a.ExpiresAt.Before(*b.ExpiresAt)
			}
		case a.ExpiresAt != nil:
			return true
		case b.ExpiresAt != nil:
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (r *fakeCreditRepo) ListByPerson(ctx context.Context, personID id.ID, status *Status) ([]*CustomerCredit, error) {
	var out []*CustomerCredit
	for _, c := range r.credits {
		if c.PersonID != personID {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeCreditRepo) UpdateCredit(ctx context.Context, c *CustomerCredit) error {
	r.credits[c.ID] = c
	return nil
}

func (r *fakeCreditRepo) CreateConsumption(ctx context.Context, cons *Consumption) error {
	r.consumptions = append(r.consumptions, cons)
	return nil
}

func (r *fakeCreditRepo) ListConsumptionsBySale(ctx context.Context, saleID id.ID) ([]*Consumption, error) {
	var out []*Consumption
	for _, cons := range r.consumptions {
		if cons.SaleID == saleID {
			out = append(out, cons)
		}
	}
	return out, nil
}

func (r *fakeCreditRepo) UpdateConsumption(ctx context.Context, cons *Consumption) error {
	return nil
}

func newTestService() (*Service, *fakeCreditRepo) {
	repo := newFakeCreditRepo()
	return NewService(repo, audit.Nop{}, txStub{}), repo
}

func grant(t *testing.T, svc *Service, personID id.ID, amount string, expiresAt *time.Time) *CustomerCredit {
	t.Helper()
	c, err := svc.Grant(context.Background(), GrantInput{
		PersonID:  personID,
		Origin:    OriginTradeIn,
		Amount:    types.MustMoney(amount),
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
	return c
}

func future(days int) *time.Time {
	ts := time.Now().UTC().AddDate(0, 0, days)
	return &ts
}

func TestGrant(t *testing.T) {
	svc, _ := newTestService()

	c := grant(t, svc, id.New(), "150.00", future(90))
	assert.Equal(t, StatusActive, c.Status)
	assert.True(t, c.Amount.Equal(types.MustMoney("150.00")))
	assert.True(t, c.RemainingAmount.Equal(c.Amount))
}

func TestGrant_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Grant(ctx, GrantInput{
		PersonID: id.New(),
		Origin:   OriginTradeIn,
		Amount:   types.MustMoney("0"),
	})
	assertCreditCode(t, err, apperror.CodeValidation)

	_, err = svc.Grant(ctx, GrantInput{
		PersonID: id.New(),
		Origin:   Origin("loyalty_points"),
		Amount:   types.MustMoney("10"),
	})
	assertCreditCode(t, err, apperror.CodeValidation)

	past := time.Now().UTC().Add(-time.Hour)
	_, err = svc.Grant(ctx, GrantInput{
		PersonID:  id.New(),
		Origin:    OriginBonus,
		Amount:    types.MustMoney("10"),
		ExpiresAt: &past,
	})
	assertCreditCode(t, err, apperror.CodeValidation)
}

func TestAvailableBalance_SkipsExpired(t *testing.T) {
	svc, repo := newTestService()
	person := id.New()

	grant(t, svc, person, "100.00", future(30))
	fresh := grant(t, svc, person, "50.00", nil)

	// Age one credit past its expiry without flipping its status row.
	expired := grant(t, svc, person, "25.00", future(1))
	past := time.Now().UTC().Add(-time.Hour)
	repo.credits[expired.ID].ExpiresAt = &past

	balance, err := svc.AvailableBalance(context.Background(), person)
	require.NoError(t, err)
	assert.True(t, balance.Equal(types.MustMoney("150.00")), "got %s", balance)

	_ = fresh
}

func TestConsume_SoonestExpiryFirst(t *testing.T) {
	svc, repo := newTestService()
	person := id.New()
	saleID := id.New()

	open := grant(t, svc, person, "100.00", nil)
	late := grant(t, svc, person, "40.00", future(60))
	soon := grant(t, svc, person, "30.00", future(10))

	consumptions, err := svc.Consume(context.Background(), person, saleID, types.MustMoney("50.00"))
	require.NoError(t, err)
	require.Len(t, consumptions, 2)

	// 30 from the soonest-expiring credit, 20 from the next.
	assert.Equal(t, soon.ID, consumptions[0].CreditID)
	assert.True(t, consumptions[0].Amount.Equal(types.MustMoney("30.00")))
	assert.Equal(t, OriginTradeIn, consumptions[0].Origin)
	assert.Equal(t, late.ID, consumptions[1].CreditID)
	assert.True(t, consumptions[1].Amount.Equal(types.MustMoney("20.00")))

	assert.Equal(t, StatusUsed, repo.credits[soon.ID].Status)
	assert.True(t, repo.credits[late.ID].RemainingAmount.Equal(types.MustMoney("20.00")))
	assert.True(t, repo.credits[open.ID].RemainingAmount.Equal(types.MustMoney("100.00")))
}

func TestConsume_InsufficientIsAllOrNothing(t *testing.T) {
	svc, repo := newTestService()
	person := id.New()

	c := grant(t, svc, person, "30.00", nil)

	_, err := svc.Consume(context.Background(), person, id.New(), types.MustMoney("50.00"))
	assertCreditCode(t, err, apperror.CodeInsufficientCredit)

	assert.True(t, repo.credits[c.ID].RemainingAmount.Equal(types.MustMoney("30.00")))
	assert.Empty(t, repo.consumptions)
}

func TestConsume_RejectsRepeatForSameSale(t *testing.T) {
	svc, _ := newTestService()
	person := id.New()
	saleID := id.New()

	grant(t, svc, person, "100.00", nil)

	_, err := svc.Consume(context.Background(), person, saleID, types.MustMoney("10.00"))
	require.NoError(t, err)

	_, err = svc.Consume(context.Background(), person, saleID, types.MustMoney("10.00"))
	assertCreditCode(t, err, apperror.CodeConflict)
}

func TestConsume_LazyExpiry(t *testing.T) {
	svc, repo := newTestService()
	person := id.New()

	stale := grant(t, svc, person, "80.00", future(1))
	past := time.Now().UTC().Add(-time.Hour)
	repo.credits[stale.ID].ExpiresAt = &past

	grant(t, svc, person, "20.00", nil)

	_, err := svc.Consume(context.Background(), person, id.New(), types.MustMoney("20.00"))
	require.NoError(t, err)

	// The expired row got flipped while its lock was held.
	assert.Equal(t, StatusExpired, repo.credits[stale.ID].Status)
	assert.True(t, repo.credits[stale.ID].RemainingAmount.Equal(types.MustMoney("80.00")))
}

func TestReverseConsumption(t *testing.T) {
	svc, repo := newTestService()
	person := id.New()
	saleID := id.New()

	c := grant(t, svc, person, "100.00", nil)

	_, err := svc.Consume(context.Background(), person, saleID, types.MustMoney("100.00"))
	require.NoError(t, err)
	assert.Equal(t, StatusUsed, repo.credits[c.ID].Status)

	require.NoError(t, svc.ReverseConsumption(context.Background(), saleID))
	assert.Equal(t, StatusActive, repo.credits[c.ID].Status)
	assert.True(t, repo.credits[c.ID].RemainingAmount.Equal(types.MustMoney("100.00")))
	assert.True(t, repo.consumptions[0].Reversed)

	// Idempotent: a second reversal restores nothing further.
	require.NoError(t, svc.ReverseConsumption(context.Background(), saleID))
	assert.True(t, repo.credits[c.ID].RemainingAmount.Equal(types.MustMoney("100.00")))

	// The sale can consume again after reversal.
	_, err = svc.Consume(context.Background(), person, saleID, types.MustMoney("40.00"))
	require.NoError(t, err)
}

func TestReverseConsumption_ExpiredStaysExpired(t *testing.T) {
	svc, repo := newTestService()
	person := id.New()
	saleID := id.New()

	c := grant(t, svc, person, "60.00", future(1))

	_, err := svc.Consume(context.Background(), person, saleID, types.MustMoney("60.00"))
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	repo.credits[c.ID].ExpiresAt = &past

	require.NoError(t, svc.ReverseConsumption(context.Background(), saleID))

	restored := repo.credits[c.ID]
	assert.Equal(t, StatusExpired, restored.Status)
	assert.True(t, restored.RemainingAmount.Equal(types.MustMoney("60.00")))
}

func assertCreditCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}
