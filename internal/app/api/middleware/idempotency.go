package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/partypay/internal/platform/redis"
	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/response"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request keeps its key claimed.
	inFlightTTL = 2 * time.Minute
)

var (
	ErrIdempotencyKeyReused = apperr.New(apperr.CodeIdempotency, "idempotency key reused with different request body")
	ErrIdempotencyStore     = apperr.New(apperr.CodeInternal, "idempotency store unavailable")
	ErrIdempotencyInFlight  = apperr.New(apperr.CodeConflict, "a request with this idempotency key is still in progress")
)

// idempotencyTTL lists the replayable routes by gin route pattern. Money-moving routes keep
// their records for a week.
var idempotencyTTL = map[string]time.Duration{
	"POST /api/payments/create":                   criticalIdempotencyTTL,
	"POST /api/payments/authorize":                defaultIdempotencyTTL,
	"POST /api/payments/capture":                  criticalIdempotencyTTL,
	"POST /api/transactions/:id/approve":          criticalIdempotencyTTL,
	"POST /api/transactions/:id/accept":           defaultIdempotencyTTL,
	"POST /api/transactions/:id/reject":           criticalIdempotencyTTL,
	"POST /api/transactions/:id/cancel":           criticalIdempotencyTTL,
	"POST /api/admin/transactions/:id/release":    criticalIdempotencyTTL,
	"POST /api/admin/transactions/:id/refund":     criticalIdempotencyTTL,
	"POST /api/providers/paypal/onboard":          defaultIdempotencyTTL,
	"PUT /api/admin/settings/fees":                defaultIdempotencyTTL,
	"POST /api/admin/providers/:id/paypal/status": defaultIdempotencyTTL,
}

type idempotencyRecord struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
	// InFlight marks a key claimed by a request that has not finished yet.
	InFlight bool `json:"in_flight,omitempty"`
}

// Idempotency replays the stored response when a request repeats its Idempotency-Key
// with the same body, and rejects the key when the body differs. The key is claimed before
// the handler runs, so a concurrent duplicate gets a conflict instead of a second execution.
// Requests without the header, or a nil store, pass through.
func Idempotency(store redis.IdempotencyStore, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ttl, ok := idempotencyTTL[c.Request.Method+" "+c.FullPath()]
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if !ok || store == nil || key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Abort(c, apperr.Wrap(apperr.CodeValidation, err, "read request"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		requestHash := hashBody(body)
		actor, _ := ActorFrom(c)
		storeKey := store.IdempotencyKey(strings.Join([]string{actor.UserID, c.Request.Method, c.Request.URL.Path}, "|"), key)

		ctx := c.Request.Context()
		lg := logctx.FromGin(c, base)

		marker, _ := json.Marshal(idempotencyRecord{RequestHash: requestHash, InFlight: true})
		claimed, err := store.SetNX(ctx, storeKey, string(marker), inFlightTTL)
		if err != nil {
			response.Abort(c, fmt.Errorf("%w: %v", ErrIdempotencyStore, err))
			return
		}
		if !claimed {
			replay(c, store, storeKey, requestHash, lg)
			return
		}

		rec := &responseCapture{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		// the response is already sent; the record must be written even if the client left
		ctx = logctx.Detached(ctx)
		// server errors are not replayed so the caller can retry
		if rec.Status() >= http.StatusInternalServerError {
			if err := store.Del(ctx, storeKey); err != nil {
				lg.Errorw("idempotency_release_failed", "error", err.Error())
			}
			return
		}
		payload, err := json.Marshal(idempotencyRecord{
			Status:      rec.Status(),
			Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
			ContentType: rec.Header().Get("Content-Type"),
			RequestHash: requestHash,
		})
		if err != nil {
			lg.Errorw("idempotency_record_marshal_failed", "error", err.Error())
			return
		}
		if err := store.Set(ctx, storeKey, string(payload), ttl); err != nil {
			lg.Errorw("idempotency_record_persist_failed", "error", err.Error())
		}
	}
}

// replay answers a request whose key is already claimed: with the stored response, or with a
// conflict while the first request is still running.
func replay(c *gin.Context, store redis.IdempotencyStore, storeKey, requestHash string, lg *zap.SugaredLogger) {
	stored, err := store.Get(c.Request.Context(), storeKey)
	if redis.IsNil(err) {
		// the first request failed and released the key between the two calls
		response.Abort(c, ErrIdempotencyInFlight)
		return
	}
	if err != nil {
		response.Abort(c, fmt.Errorf("%w: %v", ErrIdempotencyStore, err))
		return
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		response.Abort(c, fmt.Errorf("%w: decode record: %v", ErrIdempotencyStore, err))
		return
	}
	if record.RequestHash != requestHash {
		response.Abort(c, ErrIdempotencyKeyReused)
		return
	}
	if record.InFlight {
		response.Abort(c, ErrIdempotencyInFlight)
		return
	}
	lg.Infow("idempotent_replay", "path", c.FullPath())
	writeStoredResponse(c, &record)
}

func writeStoredResponse(c *gin.Context, record *idempotencyRecord) {
	decoded, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		response.Abort(c, fmt.Errorf("%w: decode body: %v", ErrIdempotencyStore, err))
		return
	}
	contentType := record.ContentType
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(record.Status, contentType, decoded)
	c.Abort()
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type responseCapture struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *responseCapture) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}
