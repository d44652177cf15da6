package entity

import "time"

// IdempotencyKey registro de deduplicación de peticiones mutadoras. Guarda la
// huella de la petición y la respuesta producida para poder reproducirla ante
// un reintento con la misma clave dentro de la ventana de expiración.
type IdempotencyKey struct {
	Key                string
	TenantID           string
	RequestMethod      string
	RequestPath        string
	RequestFingerprint string // SHA-256 hex del cuerpo de la petición
	ResponseCode       int
	ResponseBody       []byte
	LockedAt           *time.Time // en curso: bloqueada y sin respuesta aún
	CompletedAt        *time.Time
	CreatedAt          time.Time
	ExpiresAt          time.Time
}

// Completed indica si la petición original ya terminó y hay respuesta guardada.
func (k *IdempotencyKey) Completed() bool {
	return k.CompletedAt != nil
}

// InFlight indica si hay una petición con esta clave aún en proceso.
func (k *IdempotencyKey) InFlight() bool {
	return k.LockedAt != nil && k.CompletedAt == nil
}

// Expired indica si la clave quedó fuera de la ventana de deduplicación.
func (k *IdempotencyKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
