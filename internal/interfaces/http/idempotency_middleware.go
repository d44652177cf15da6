package http

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger-api/internal/application/dto"
	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

// HeaderIdempotencyKey nombre de la cabecera que activa el guard.
const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyMiddleware hace idempotentes las mutaciones de stock: con la misma
// clave y el mismo cuerpo la respuesta almacenada se reproduce sin volver a
// ejecutar la operación. Misma clave con cuerpo distinto es 422; una petición
// todavía en curso con la misma clave es 409. Sin cabecera la petición pasa
// sin guard.
func IdempotencyMiddleware(repo repository.IdempotencyRepository, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderIdempotencyKey)
		if key == "" {
			return c.Next()
		}
		tenantID := GetTenantID(c)
		if tenantID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "tenant no resuelto"})
		}

		fingerprint := requestFingerprint(c)
		now := time.Now()
		record := &entity.IdempotencyKey{
			Key:                key,
			TenantID:           tenantID,
			RequestMethod:      c.Method(),
			RequestPath:        c.Path(),
			RequestFingerprint: fingerprint,
			LockedAt:           &now,
			CreatedAt:          now,
			ExpiresAt:          now.Add(ttl),
		}

		// Hasta dos intentos: el primero puede perder la carrera contra un
		// Release/PurgeExpired concurrente y dejar la clave sin dueño.
		var existing *entity.IdempotencyKey
		acquired := false
		for attempt := 0; attempt < 2 && !acquired; attempt++ {
			var err error
			existing, acquired, err = repo.Acquire(record)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
			}
			if !acquired && existing != nil {
				break
			}
		}

		if !acquired {
			if existing == nil {
				return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_IN_FLIGHT", Message: "clave de idempotencia en disputa, reintente"})
			}
			if existing.RequestFingerprint != fingerprint {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_MISMATCH", Message: domain.ErrIdempotencyMismatch.Error()})
			}
			if existing.InFlight() {
				return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_IN_FLIGHT", Message: domain.ErrIdempotencyInFlight.Error()})
			}
			// Replay de la respuesta almacenada
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			c.Set("Idempotency-Replayed", "true")
			return c.Status(existing.ResponseCode).Send(existing.ResponseBody)
		}

		if err := c.Next(); err != nil {
			_ = repo.Release(tenantID, key)
			return err
		}

		status := c.Response().StatusCode()
		if status >= 500 {
			// Fallo no determinista: liberar para que el cliente pueda reintentar
			_ = repo.Release(tenantID, key)
			return nil
		}
		body := make([]byte, len(c.Response().Body()))
		copy(body, c.Response().Body())
		if err := repo.Complete(tenantID, key, status, body, time.Now()); err != nil {
			_ = repo.Release(tenantID, key)
		}
		return nil
	}
}

// requestFingerprint huella SHA-256 de método, ruta y cuerpo.
func requestFingerprint(c *fiber.Ctx) string {
	h := sha256.New()
	h.Write([]byte(c.Method()))
	h.Write([]byte{'\n'})
	h.Write([]byte(c.Path()))
	h.Write([]byte{'\n'})
	h.Write(c.Body())
	return hex.EncodeToString(h.Sum(nil))
}
