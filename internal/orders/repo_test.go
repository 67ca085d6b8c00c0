package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/ariefcatur/go-storefront-orders/internal/auth"
)

type pgFixture struct {
	mock    pgxmock.PgxPoolIface
	svc     *Service
	orderID string
	prodA   string
	prodB   string
	owner   *auth.Identity
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)
	return &pgFixture{
		mock:    mock,
		svc:     &Service{Store: &Repo{DB: mock}, ServiceName: "test"},
		orderID: uuid.NewString(),
		prodA:   "00000000-0000-0000-0000-00000000000a",
		prodB:   "00000000-0000-0000-0000-00000000000b",
		owner:   &auth.Identity{UserID: "user-1", Role: auth.RoleCustomer},
	}
}

// expectLockedOrder queues the two reads LockOrder issues.
func (f *pgFixture) expectLockedOrder(status Status) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.mock.ExpectQuery(`SELECT .+ FROM orders WHERE id=\$1 FOR UPDATE`).
		WithArgs(f.orderID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "total_cents", "status", "payment_status", "payment_method",
			"payment_ref", "agent_id", "created_at", "updated_at",
		}).AddRow(f.orderID, f.owner.UserID, 1700, status, PaymentUnpaid, PaymentCOD,
			(*string)(nil), (*string)(nil), now, now))
	f.mock.ExpectQuery(`FROM order_items WHERE order_id=\$1`).
		WithArgs(f.orderID).
		WillReturnRows(pgxmock.NewRows([]string{"order_id", "product_id", "qty", "price_cents"}).
			AddRow(f.orderID, f.prodA, 2, 500).
			AddRow(f.orderID, f.prodB, 1, 700))
}

func TestRepoCancel_RestocksAndCommits(t *testing.T) {
	f := newPGFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedOrder(StatusPending)
	f.mock.ExpectExec(`UPDATE products SET stock = stock \+ \$2`).
		WithArgs(f.prodA, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectExec(`UPDATE products SET stock = stock \+ \$2`).
		WithArgs(f.prodB, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectExec(`UPDATE orders SET status=\$2`).
		WithArgs(f.orderID, string(StatusCancelled)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectCommit()

	o, err := f.svc.Cancel(context.Background(), f.owner, f.orderID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if o.Status != StatusCancelled || o.TotalQty() != 3 {
		t.Fatalf("order = %+v", o)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoCancel_StatusWriteFailureRollsBack(t *testing.T) {
	f := newPGFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedOrder(StatusPending)
	f.mock.ExpectExec(`UPDATE products SET stock = stock \+ \$2`).
		WithArgs(f.prodA, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectExec(`UPDATE products SET stock = stock \+ \$2`).
		WithArgs(f.prodB, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectExec(`UPDATE orders SET status=\$2`).
		WithArgs(f.orderID, string(StatusCancelled)).
		WillReturnError(errBoom)
	f.mock.ExpectRollback()

	if _, err := f.svc.Cancel(context.Background(), f.owner, f.orderID); !errors.Is(err, errBoom) {
		t.Fatalf("want errBoom, got %v", err)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoCancel_NotPendingTouchesNoStock(t *testing.T) {
	f := newPGFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedOrder(StatusShipped)
	f.mock.ExpectRollback()

	if _, err := f.svc.Cancel(context.Background(), f.owner, f.orderID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoCancel_MissingOrder(t *testing.T) {
	f := newPGFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM orders WHERE id=\$1 FOR UPDATE`).
		WithArgs(f.orderID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "total_cents", "status", "payment_status", "payment_method",
			"payment_ref", "agent_id", "created_at", "updated_at",
		}))
	f.mock.ExpectRollback()

	if _, err := f.svc.Cancel(context.Background(), f.owner, f.orderID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoAdjustStock_GuardedUpdate(t *testing.T) {
	f := newPGFixture(t)
	repo := &Repo{DB: f.mock}

	f.mock.ExpectBegin()
	f.mock.ExpectExec(`UPDATE products SET stock = stock \+ \$2, updated_at = now\(\)\s+WHERE id=\$1 AND stock \+ \$2 >= 0`).
		WithArgs(f.prodA, -5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	f.mock.ExpectQuery(`SELECT stock FROM products WHERE id=\$1`).
		WithArgs(f.prodA).
		WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(3))
	f.mock.ExpectRollback()

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.AdjustStock(ctx, f.prodA, -5)
	})
	var se *StockError
	if !errors.As(err, &se) || se.Available != 3 || se.Required != 5 {
		t.Fatalf("want StockError{3 of 5}, got %v", err)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
