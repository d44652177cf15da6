package http_test

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	apphttp "github.com/jhoicas/stock-ledger-api/internal/interfaces/http"
)

// memIdempotencyRepo guard de idempotencia en memoria para tests de middleware.
type memIdempotencyRepo struct {
	mu   sync.Mutex
	keys map[string]*entity.IdempotencyKey
}

func newMemIdempotencyRepo() *memIdempotencyRepo {
	return &memIdempotencyRepo{keys: make(map[string]*entity.IdempotencyKey)}
}

func (r *memIdempotencyRepo) Acquire(k *entity.IdempotencyKey) (*entity.IdempotencyKey, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := k.TenantID + "/" + k.Key
	existing, ok := r.keys[id]
	if ok && !existing.Expired(time.Now()) {
		cp := *existing
		return &cp, false, nil
	}
	cp := *k
	r.keys[id] = &cp
	return nil, true, nil
}

func (r *memIdempotencyRepo) Complete(tenantID, key string, responseCode int, responseBody []byte, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[tenantID+"/"+key]; ok {
		k.ResponseCode = responseCode
		k.ResponseBody = responseBody
		k.CompletedAt = &completedAt
	}
	return nil
}

func (r *memIdempotencyRepo) Release(tenantID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := tenantID + "/" + key
	if k, ok := r.keys[id]; ok && k.CompletedAt == nil {
		delete(r.keys, id)
	}
	return nil
}

func (r *memIdempotencyRepo) PurgeExpired(now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, k := range r.keys {
		if k.Expired(now) {
			delete(r.keys, id)
			n++
		}
	}
	return n, nil
}

// buildIdempotentApp app mínima con auth + guard de idempotencia delante de un
// handler contador: permite verificar cuántas veces se ejecuta de verdad.
func buildIdempotentApp(repo *memIdempotencyRepo, execCount *int, status int) *fiber.App {
	app := fiber.New()
	app.Post("/mutate",
		apphttp.AuthMiddleware(testJWTSecret),
		apphttp.IdempotencyMiddleware(repo, time.Hour),
		func(c *fiber.Ctx) error {
			*execCount++
			return c.Status(status).JSON(fiber.Map{"execution": *execCount})
		},
	)
	return app
}

func postMutate(t *testing.T, app *fiber.App, key, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mutate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", tokenForRole(t, "operador"))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// Reintento con la misma clave y el mismo cuerpo: se reproduce la respuesta
// guardada y el handler no vuelve a ejecutarse.
func TestIdempotency_ReintentoReproduceRespuesta(t *testing.T) {
	repo := newMemIdempotencyRepo()
	var execs int
	app := buildIdempotentApp(repo, &execs, fiber.StatusCreated)

	first := postMutate(t, app, "clave-1", `{"qty":10}`)
	defer first.Body.Close()
	require.Equal(t, http.StatusCreated, first.StatusCode)
	firstBody, _ := io.ReadAll(first.Body)

	second := postMutate(t, app, "clave-1", `{"qty":10}`)
	defer second.Body.Close()
	assert.Equal(t, http.StatusCreated, second.StatusCode)
	secondBody, _ := io.ReadAll(second.Body)

	assert.Equal(t, string(firstBody), string(secondBody), "la respuesta debe ser idéntica")
	assert.Equal(t, 1, execs, "el handler solo debe ejecutarse una vez")
	assert.Equal(t, "true", second.Header.Get("Idempotency-Replayed"))
}

// Misma clave con cuerpo distinto: 422 y el handler no se ejecuta de nuevo.
func TestIdempotency_MismaClaveOtroCuerpo422(t *testing.T) {
	repo := newMemIdempotencyRepo()
	var execs int
	app := buildIdempotentApp(repo, &execs, fiber.StatusCreated)

	first := postMutate(t, app, "clave-1", `{"qty":10}`)
	first.Body.Close()

	second := postMutate(t, app, "clave-1", `{"qty":99}`)
	defer second.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, second.StatusCode)
	body, _ := io.ReadAll(second.Body)
	assert.Contains(t, string(body), "IDEMPOTENCY_MISMATCH")
	assert.Equal(t, 1, execs)
}

// Una petición aún en curso con la misma clave: 409.
func TestIdempotency_EnCurso409(t *testing.T) {
	repo := newMemIdempotencyRepo()
	var execs int
	app := buildIdempotentApp(repo, &execs, fiber.StatusCreated)

	// Simula una petición en curso: clave adquirida sin respuesta guardada
	now := time.Now()
	_, acquired, err := repo.Acquire(&entity.IdempotencyKey{
		Key:                "clave-viva",
		TenantID:           testTenantID,
		RequestMethod:      "POST",
		RequestPath:        "/mutate",
		RequestFingerprint: fingerprintFor(t, `{"qty":10}`),
		LockedAt:           &now,
		CreatedAt:          now,
		ExpiresAt:          now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, acquired)

	resp := postMutate(t, app, "clave-viva", `{"qty":10}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "IDEMPOTENCY_IN_FLIGHT")
	assert.Zero(t, execs)
}

// Sin cabecera la petición pasa sin deduplicación.
func TestIdempotency_SinCabeceraNoDeduplica(t *testing.T) {
	repo := newMemIdempotencyRepo()
	var execs int
	app := buildIdempotentApp(repo, &execs, fiber.StatusCreated)

	first := postMutate(t, app, "", `{"qty":10}`)
	first.Body.Close()
	second := postMutate(t, app, "", `{"qty":10}`)
	second.Body.Close()

	assert.Equal(t, 2, execs, "sin clave cada petición se ejecuta")
}

// Un 5xx libera la clave: el siguiente intento vuelve a ejecutar el handler.
func TestIdempotency_ErrorInternoLiberaClave(t *testing.T) {
	repo := newMemIdempotencyRepo()
	var execs int
	app := buildIdempotentApp(repo, &execs, fiber.StatusInternalServerError)

	first := postMutate(t, app, "clave-1", `{"qty":10}`)
	first.Body.Close()
	require.Equal(t, http.StatusInternalServerError, first.StatusCode)

	second := postMutate(t, app, "clave-1", `{"qty":10}`)
	second.Body.Close()

	assert.Equal(t, 2, execs, "tras un fallo no determinista el reintento debe ejecutarse")
}

// fingerprintFor calcula la huella igual que el middleware (sha256 de
// método \n ruta \n cuerpo) para poder sembrar registros "en curso" coherentes.
func fingerprintFor(t *testing.T, body string) string {
	t.Helper()
	sum := sha256.Sum256([]byte("POST\n/mutate\n" + body))
	return hex.EncodeToString(sum[:])
}
