package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.IdempotencyRepository = (*IdempotencyRepo)(nil)

// IdempotencyRepo implementación del guard de idempotencia sobre PostgreSQL.
// La clave es única por (tenant_id, key); la adquisición se apoya en el INSERT
// condicional para que dos peticiones concurrentes con la misma clave nunca
// la adquieran las dos.
type IdempotencyRepo struct {
	q Querier
}

// NewIdempotencyRepository construye el adaptador. Pasar pool (no requiere tx propia).
func NewIdempotencyRepository(q Querier) *IdempotencyRepo {
	return &IdempotencyRepo{q: q}
}

const idemColumns = `key, tenant_id, request_method, request_path, request_fingerprint,
	response_code, response_body, locked_at, completed_at, created_at, expires_at`

// Acquire intenta registrar la clave como en curso. Si la clave existe y no ha
// expirado, devuelve el registro existente con acquired=false. Una clave
// expirada se re-adquiere sobrescribiendo el registro viejo.
func (r *IdempotencyRepo) Acquire(k *entity.IdempotencyKey) (*entity.IdempotencyKey, bool, error) {
	ctx := context.Background()
	insert := `
		INSERT INTO idempotency_keys (` + idemColumns + `)
		VALUES ($1, $2, $3, $4, $5, NULL, NULL, $6, NULL, $7, $8)
		ON CONFLICT (tenant_id, key) DO NOTHING`
	tag, err := r.q.Exec(ctx, insert,
		k.Key, k.TenantID, k.RequestMethod, k.RequestPath, k.RequestFingerprint,
		k.LockedAt, k.CreatedAt, k.ExpiresAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, true, nil
	}

	existing, err := r.get(k.TenantID, k.Key)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// Borrada entre el INSERT y el SELECT; el caller reintenta la adquisición
		return nil, false, nil
	}
	if existing.Expired(time.Now()) {
		// Re-adquirir la clave vencida; el WHERE evita pisar una re-adquisición ajena
		takeover := `
			UPDATE idempotency_keys
			SET request_method = $3, request_path = $4, request_fingerprint = $5,
			    response_code = NULL, response_body = NULL,
			    locked_at = $6, completed_at = NULL, created_at = $7, expires_at = $8
			WHERE tenant_id = $1 AND key = $2 AND expires_at <= now()`
		tag, err := r.q.Exec(ctx, takeover,
			k.TenantID, k.Key, k.RequestMethod, k.RequestPath, k.RequestFingerprint,
			k.LockedAt, k.CreatedAt, k.ExpiresAt,
		)
		if err != nil {
			return nil, false, fmt.Errorf("reacquire idempotency key: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil, true, nil
		}
	}
	return existing, false, nil
}

// Complete guarda la respuesta producida y marca la clave como completada.
func (r *IdempotencyRepo) Complete(tenantID, key string, responseCode int, responseBody []byte, completedAt time.Time) error {
	query := `
		UPDATE idempotency_keys
		SET response_code = $3, response_body = $4, completed_at = $5
		WHERE tenant_id = $1 AND key = $2`
	_, err := r.q.Exec(context.Background(), query, tenantID, key, responseCode, responseBody, completedAt)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release libera una clave cuya petición terminó en error no determinista.
func (r *IdempotencyRepo) Release(tenantID, key string) error {
	query := `DELETE FROM idempotency_keys WHERE tenant_id = $1 AND key = $2 AND completed_at IS NULL`
	_, err := r.q.Exec(context.Background(), query, tenantID, key)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// PurgeExpired borra claves vencidas.
func (r *IdempotencyRepo) PurgeExpired(now time.Time) (int64, error) {
	query := `DELETE FROM idempotency_keys WHERE expires_at <= $1`
	tag, err := r.q.Exec(context.Background(), query, now)
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *IdempotencyRepo) get(tenantID, key string) (*entity.IdempotencyKey, error) {
	query := `
		SELECT ` + idemColumns + `
		FROM idempotency_keys WHERE tenant_id = $1 AND key = $2`
	var k entity.IdempotencyKey
	var code *int
	err := r.q.QueryRow(context.Background(), query, tenantID, key).Scan(
		&k.Key, &k.TenantID, &k.RequestMethod, &k.RequestPath, &k.RequestFingerprint,
		&code, &k.ResponseBody, &k.LockedAt, &k.CompletedAt, &k.CreatedAt, &k.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	if code != nil {
		k.ResponseCode = *code
	}
	return &k, nil
}
