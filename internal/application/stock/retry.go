package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
)

// RetryPolicy política explícita de reintentos ante conflictos transitorios del
// almacén (serialización/deadlock). El reintento es interno y acotado; agotados
// los intentos, el error se devuelve envuelto para que la capa HTTP lo trate
// como error interno, nunca como actualización parcial.
type RetryPolicy struct {
	MaxAttempts int           // intentos totales (mínimo 1)
	Backoff     time.Duration // espera base; crece lineal por intento
}

// DefaultRetryPolicy valores razonables para contención baja.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 25 * time.Millisecond}
}

// Do ejecuta op y reintenta solo cuando el error es domain.ErrTxConflict.
// Cualquier otro error corta inmediatamente.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, domain.ErrTxConflict) {
			return err
		}
		if attempt == attempts {
			break
		}
		wait := p.Backoff * time.Duration(attempt)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("reintentos agotados (%d): %w", attempts, err)
}
