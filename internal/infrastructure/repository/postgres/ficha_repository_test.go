package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*FichaRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &FichaRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 42)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrFichaNotFound) {
		t.Fatalf("expected ErrFichaNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM fichas_inspecao").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 7)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrFichaNotFound) {
		t.Fatalf("expected ErrFichaNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertBatchSkipsUniqueViolationRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	upload := time.Date(2026, 5, 21, 10, 0, 0, 0, time.UTC)
	fichas := []domain.Ficha{
		{Concessionaria: "CCR", Codigo: "OAE-001", ArquivoS3: "fichas_excel/a.xlsx", DataUpload: upload},
		{Concessionaria: "CCR", Codigo: "OAE-002", ArquivoS3: "fichas_excel/b.xlsx", DataUpload: upload},
	}

	mock.ExpectBegin()

	mock.ExpectExec("SAVEPOINT ficha_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO fichas_inspecao").
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})
	mock.ExpectExec("ROLLBACK TO SAVEPOINT ficha_0").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec("SAVEPOINT ficha_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO fichas_inspecao").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec("RELEASE SAVEPOINT ficha_1").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectCommit()

	outcomes, err := repo.InsertBatch(context.Background(), fichas)
	if err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if !outcomes[0].SkippedDuplicate {
		t.Fatalf("expected first row skipped as duplicate")
	}
	if outcomes[1].SkippedDuplicate || outcomes[1].ID != 11 {
		t.Fatalf("expected second row inserted with id 11, got %+v", outcomes[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertBatchAbortsOnNonConstraintError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT ficha_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO fichas_inspecao").
		WillReturnError(&pgconn.PgError{Code: "53300"})
	mock.ExpectRollback()

	_, err := repo.InsertBatch(context.Background(), []domain.Ficha{{Concessionaria: "CCR"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExistsByCodigoAndData(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	data := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("OAE-001", data).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByCodigoAndData(context.Background(), "OAE-001", data)
	if err != nil {
		t.Fatalf("ExistsByCodigoAndData() error = %v", err)
	}
	if !exists {
		t.Fatalf("expected exists = true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIsUniqueViolationMatchesPgErrorAndMessage(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}) {
		t.Fatalf("pg error 23505 should be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "53300"}) {
		t.Fatalf("unrelated pg error must not match")
	}
	if !isUniqueViolation(errDuplicateMessage{}) {
		t.Fatalf("duplicate key message fallback should match")
	}
}

type errDuplicateMessage struct{}

func (errDuplicateMessage) Error() string {
	return `ERROR: duplicate key value violates unique constraint "uq_arquivo_s3"`
}
