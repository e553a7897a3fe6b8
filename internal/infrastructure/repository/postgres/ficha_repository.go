package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

const uniqueViolationCode = "23505"

type FichaRepository struct {
	db *sql.DB
}

func NewFichaRepository(db *sql.DB) *FichaRepository {
	return &FichaRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the fichas table and its uniqueness constraints.
// The constraints are the second defense layer behind the duplicate
// classifier; concurrent ingests that race past the classifier still
// cannot insert the same inspection twice.
func (r *FichaRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026052101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS fichas_inspecao (
	id BIGSERIAL PRIMARY KEY,
	concessionaria TEXT NOT NULL,
	rodovia TEXT,
	obra TEXT,
	sentido TEXT,
	km TEXT,
	ic TEXT,
	uir TEXT,
	uie TEXT,
	data_inspecao DATE,
	ano_inspecao INTEGER,
	codigo TEXT,
	codigo_artesp TEXT,
	tipo_pav TEXT,
	orgao_regulador TEXT,
	estrutural TEXT,
	funcional TEXT,
	durabilidade TEXT,
	arquivo_s3 TEXT,
	data_upload TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_ficha_codigo_data
	ON fichas_inspecao (codigo, data_inspecao)
	WHERE codigo IS NOT NULL AND data_inspecao IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS uq_arquivo_s3
	ON fichas_inspecao (arquivo_s3)
	WHERE arquivo_s3 IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS uq_ficha_completa
	ON fichas_inspecao (concessionaria, rodovia, km, ano_inspecao);

CREATE INDEX IF NOT EXISTS idx_fichas_data_upload ON fichas_inspecao (data_upload DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// InsertBatch inserts all fichas inside one transaction, one SAVEPOINT per
// row. A row refused by a uniqueness constraint rolls back to its savepoint
// and is reported as a skipped duplicate; any other failure aborts the
// whole batch.
func (r *FichaRepository) InsertBatch(ctx context.Context, fichas []domain.Ficha) ([]ports.InsertOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insert = `
INSERT INTO fichas_inspecao (
	concessionaria, rodovia, obra, sentido, km, ic, uir, uie,
	data_inspecao, ano_inspecao, codigo, codigo_artesp, tipo_pav,
	orgao_regulador, estrutural, funcional, durabilidade, arquivo_s3, data_upload
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
RETURNING id
`

	outcomes := make([]ports.InsertOutcome, 0, len(fichas))
	for i := range fichas {
		f := &fichas[i]
		sp := fmt.Sprintf("ficha_%d", i)

		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return nil, fmt.Errorf("savepoint %s: %w", sp, err)
		}

		var id int64
		err := tx.QueryRowContext(ctx, insert,
			f.Concessionaria, f.Rodovia, f.Obra, f.Sentido, f.KM, f.IC, f.UIR, f.UIE,
			nullTime(f.DataInspecao), nullInt(f.AnoInspecao), nullIfEmpty(f.Codigo),
			f.CodigoARTESP, f.TipoPav, string(f.OrgaoRegulador),
			f.Estrutural, f.Funcional, f.Durabilidade,
			nullIfEmpty(f.ArquivoS3), f.DataUpload,
		).Scan(&id)

		if err != nil {
			if !isUniqueViolation(err) {
				return nil, fmt.Errorf("insert ficha %d: %w", i, err)
			}
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				return nil, fmt.Errorf("rollback to savepoint %s: %w", sp, rbErr)
			}
			outcomes = append(outcomes, ports.InsertOutcome{Index: i, SkippedDuplicate: true})
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			return nil, fmt.Errorf("release savepoint %s: %w", sp, err)
		}
		outcomes = append(outcomes, ports.InsertOutcome{Index: i, ID: id})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert tx: %w", err)
	}
	return outcomes, nil
}

func (r *FichaRepository) ExistsByCodigoAndData(ctx context.Context, codigo string, data time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM fichas_inspecao WHERE codigo = $1 AND data_inspecao = $2
)`, codigo, data).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query codigo/data existence: %w", err)
	}
	return exists, nil
}

func (r *FichaRepository) ExistsByArquivo(ctx context.Context, arquivo string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM fichas_inspecao WHERE arquivo_s3 = $1
)`, arquivo).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query arquivo existence: %w", err)
	}
	return exists, nil
}

const selectColumns = `
	id, concessionaria, rodovia, obra, sentido, km, ic, uir, uie,
	data_inspecao, ano_inspecao, codigo, codigo_artesp, tipo_pav,
	orgao_regulador, estrutural, funcional, durabilidade, arquivo_s3, data_upload`

func (r *FichaRepository) List(ctx context.Context) ([]domain.Ficha, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT`+selectColumns+`
FROM fichas_inspecao
ORDER BY data_upload DESC, id DESC
`)
	if err != nil {
		return nil, fmt.Errorf("query fichas: %w", err)
	}
	defer rows.Close()

	var fichas []domain.Ficha
	for rows.Next() {
		ficha, err := scanFicha(rows)
		if err != nil {
			return nil, err
		}
		fichas = append(fichas, *ficha)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fichas: %w", err)
	}
	return fichas, nil
}

func (r *FichaRepository) GetByID(ctx context.Context, id int64) (*domain.Ficha, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT`+selectColumns+`
FROM fichas_inspecao
WHERE id = $1
`, id)

	ficha, err := scanFicha(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrFichaNotFound, "get ficha",
				fmt.Errorf("id %d", id))
		}
		return nil, err
	}
	return ficha, nil
}

func (r *FichaRepository) Update(ctx context.Context, f domain.Ficha) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE fichas_inspecao SET
	concessionaria = $2, rodovia = $3, obra = $4, sentido = $5, km = $6,
	ic = $7, uir = $8, uie = $9, data_inspecao = $10, ano_inspecao = $11,
	codigo = $12, codigo_artesp = $13, tipo_pav = $14, orgao_regulador = $15,
	estrutural = $16, funcional = $17, durabilidade = $18, arquivo_s3 = $19
WHERE id = $1
`,
		f.ID, f.Concessionaria, f.Rodovia, f.Obra, f.Sentido, f.KM,
		f.IC, f.UIR, f.UIE, nullTime(f.DataInspecao), nullInt(f.AnoInspecao),
		nullIfEmpty(f.Codigo), f.CodigoARTESP, f.TipoPav, string(f.OrgaoRegulador),
		f.Estrutural, f.Funcional, f.Durabilidade, nullIfEmpty(f.ArquivoS3),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrDuplicate, "update ficha", err)
		}
		return fmt.Errorf("update ficha %d: %w", f.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ficha %d: %w", f.ID, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrFichaNotFound, "update ficha",
			fmt.Errorf("id %d", f.ID))
	}
	return nil
}

func (r *FichaRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fichas_inspecao WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ficha %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete ficha %d: %w", id, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrFichaNotFound, "delete ficha",
			fmt.Errorf("id %d", id))
	}
	return nil
}

func (r *FichaRepository) CodigoInUseByOther(ctx context.Context, codigo string, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM fichas_inspecao WHERE codigo = $1 AND id <> $2
)`, codigo, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query codigo reuse: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFicha(row rowScanner) (*domain.Ficha, error) {
	var (
		f            domain.Ficha
		dataInspecao sql.NullTime
		anoInspecao  sql.NullInt64
		codigo       sql.NullString
		arquivo      sql.NullString
		orgao        sql.NullString
	)

	err := row.Scan(
		&f.ID, &f.Concessionaria, &f.Rodovia, &f.Obra, &f.Sentido, &f.KM,
		&f.IC, &f.UIR, &f.UIE, &dataInspecao, &anoInspecao, &codigo,
		&f.CodigoARTESP, &f.TipoPav, &orgao,
		&f.Estrutural, &f.Funcional, &f.Durabilidade, &arquivo, &f.DataUpload,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan ficha: %w", err)
	}

	if dataInspecao.Valid {
		t := dataInspecao.Time
		f.DataInspecao = &t
	}
	if anoInspecao.Valid {
		y := int(anoInspecao.Int64)
		f.AnoInspecao = &y
	}
	f.Codigo = codigo.String
	f.ArquivoS3 = arquivo.String
	f.OrgaoRegulador = domain.Orgao(orgao.String)
	return &f, nil
}

// nullIfEmpty keeps empty strings out of the partial unique indexes, where
// two records with "" would otherwise collide.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return strings.Contains(err.Error(), "duplicate key")
}
