package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"layaway/internal/model"
	"layaway/internal/repository"
	"layaway/internal/testutil"
)

func newRequest(id, email, status string, createdAt time.Time) *model.FinancingRequest {
	return &model.FinancingRequest{
		ID:                id,
		CustomerName:      "Ana",
		Email:             email,
		EmailKey:          model.NormalizeEmail(email),
		Phone:             "0991234567",
		Address:           "Quito",
		ProductName:       "Phone X",
		ProductCategory:   "phones",
		TotalAmount:       1000,
		TotalWithInterest: 1050,
		Status:            status,
		CreatedAt:         createdAt,
	}
}

func TestListVisibleSplitsAndOrders(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewRequestRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	fixtures := []*model.FinancingRequest{
		newRequest("r1", "a@example.com", model.RequestStatusPending, base),
		newRequest("r2", "a@example.com", model.RequestStatusDelivered, base.Add(time.Minute)),
		newRequest("r3", "b@example.com", model.RequestStatusApproved, base.Add(2*time.Minute)),
		newRequest("r4", "b@example.com", model.RequestStatusCancelled, base.Add(3*time.Minute)),
	}
	fixtures[0].AdminDeleted = true
	for _, req := range fixtures {
		if err := repo.Create(ctx, req); err != nil {
			t.Fatalf("create %s: %v", req.ID, err)
		}
	}

	active, err := repo.ListVisible(ctx, model.HistoryStatuses, false)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "r3" {
		t.Fatalf("unexpected active list: %v", ids(active))
	}

	history, err := repo.ListVisible(ctx, model.HistoryStatuses, true)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if got := ids(history); len(got) != 2 || got[0] != "r4" || got[1] != "r2" {
		t.Fatalf("unexpected history order: %v", got)
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 || all[3].ID != "r1" {
		t.Fatalf("unexpected audit list: %v", ids(all))
	}
}

func ids(reqs []*model.FinancingRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ID)
	}
	return out
}

func TestUpdateRejectsStaleVersion(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewRequestRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newRequest("r1", "a@example.com", model.RequestStatusPending, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	snapshot, err := repo.GetByID(ctx, nil, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := repo.Update(ctx, nil, snapshot, map[string]interface{}{"status": model.RequestStatusApproved}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	err = repo.Update(ctx, nil, snapshot, map[string]interface{}{"status": model.RequestStatusRejected})
	if !errors.Is(err, repository.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}

	current, err := repo.GetByID(ctx, nil, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Status != model.RequestStatusApproved || current.Version != snapshot.Version+1 {
		t.Fatalf("unexpected state after conflict: status=%s version=%d", current.Status, current.Version)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := repository.NewRequestRepository(testutil.NewDB(t))
	if _, err := repo.GetByID(context.Background(), nil, "missing"); !errors.Is(err, repository.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestTrustIncrementCreatesThenAccumulates(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewTrustRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	missing, err := repo.Get(ctx, nil, "a@example.com")
	if err != nil || missing != nil {
		t.Fatalf("expected no record, got %+v, %v", missing, err)
	}

	for want := 1; want <= 3; want++ {
		record, err := repo.Increment(ctx, nil, "a@example.com", at.Add(time.Duration(want)*time.Hour))
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if record.SuccessCount != want {
			t.Fatalf("expected count %d, got %d", want, record.SuccessCount)
		}
	}

	records, err := repo.GetMany(ctx, []string{"a@example.com", "nobody@example.com"})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(records) != 1 || records["a@example.com"].Stars() != 3 {
		t.Fatalf("unexpected batch result: %+v", records)
	}
}

func TestClosedDatabaseIsStoreUnavailable(t *testing.T) {
	db := testutil.NewDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.Close()

	repo := repository.NewRequestRepository(db)
	if _, err := repo.GetByID(context.Background(), nil, "r1"); !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
