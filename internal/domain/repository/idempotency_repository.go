package repository

import (
	"time"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// IdempotencyRepository define el puerto del guard de idempotencia.
type IdempotencyRepository interface {
	// Acquire intenta registrar la clave como "en curso". Si ya existe y no ha
	// expirado devuelve el registro existente con acquired=false; si no existía
	// (o había expirado) lo crea bloqueado y devuelve acquired=true.
	Acquire(key *entity.IdempotencyKey) (existing *entity.IdempotencyKey, acquired bool, err error)
	// Complete guarda la respuesta producida y marca la clave como completada.
	Complete(tenantID, key string, responseCode int, responseBody []byte, completedAt time.Time) error
	// Release libera una clave adquirida cuya petición falló con error no
	// determinista (p. ej. error interno), para permitir un reintento limpio.
	Release(tenantID, key string) error
	// PurgeExpired borra claves vencidas; pensado para una tarea periódica.
	PurgeExpired(now time.Time) (int64, error)
}
