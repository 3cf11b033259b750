package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"civica.org/internal/project"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestChangeRoleGuardedBlocked(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select project_id, role from memberships where id").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "role"}).AddRow("p1", "coordinator"))
	// The roster is locked and counted: one coordinator, one writer.
	mock.ExpectQuery("select role from memberships where project_id").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("coordinator").AddRow("writer"))
	mock.ExpectRollback()

	err := store.Memberships().ChangeRoleGuarded(context.Background(), "m1", project.RoleWriter)
	if !errors.Is(err, project.ErrLastCoordinator) {
		t.Fatalf("expected ErrLastCoordinator, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestChangeRoleGuardedSecondCoordinatorPasses(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select project_id, role from memberships where id").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "role"}).AddRow("p1", "coordinator"))
	mock.ExpectQuery("select role from memberships where project_id").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).
			AddRow("coordinator").AddRow("coordinator").AddRow("writer"))
	mock.ExpectExec("update memberships set role").
		WithArgs("m1", "writer").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Memberships().ChangeRoleGuarded(context.Background(), "m1", project.RoleWriter); err != nil {
		t.Fatalf("ChangeRoleGuarded: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestChangeRoleGuardedNonCoordinatorSkipsRosterLock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select project_id, role from memberships where id").
		WithArgs("m2").
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "role"}).AddRow("p1", "applicant"))
	mock.ExpectExec("update memberships set role").
		WithArgs("m2", "writer").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Memberships().ChangeRoleGuarded(context.Background(), "m2", project.RoleWriter); err != nil {
		t.Fatalf("ChangeRoleGuarded: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteGuardedUnknownMembership(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select project_id, role from memberships where id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "role"}))
	mock.ExpectRollback()

	err := store.Memberships().DeleteGuarded(context.Background(), "missing")
	if !errors.Is(err, project.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMembershipCreateConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into memberships").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	m := &project.Membership{ProjectID: "p1", IdentityID: "alice", Role: project.RoleApplicant}
	err := store.Memberships().Create(context.Background(), m)
	if !errors.Is(err, project.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate membership, got %v", err)
	}
}

func TestSoleCoordinatorWithWriters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select exists").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	anchored, err := store.Memberships().SoleCoordinatorWithWriters(context.Background(), "alice")
	if err != nil {
		t.Fatalf("SoleCoordinatorWithWriters: %v", err)
	}
	if !anchored {
		t.Fatal("expected the identity to be anchored")
	}
}
