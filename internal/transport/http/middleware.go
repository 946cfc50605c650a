package httptransport

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"landscape-job-service/internal/auth"
	"landscape-job-service/internal/entity"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// RequestLogger puts a logger tagged with the request id into the request
// context and logs one line per request. Must run after middleware.RequestID.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()

		reqID := middleware.GetReqID(r.Context())
		l := log.With().Str("req_id", reqID).Logger()
		r = r.WithContext(l.WithContext(r.Context()))

		next.ServeHTTP(sw, r)

		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http request")
	})
}

// TokenVerifier is implemented by auth.Verifier.
type TokenVerifier interface {
	Verify(token string) (entity.Caller, error)
}

// RequireCaller rejects requests without a valid bearer token and stores the
// caller in the request context.
func RequireCaller(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r)
			if !ok {
				writeErr(w, http.StatusUnauthorized, "Missing authorization header")
				return
			}

			caller, err := v.Verify(token)
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, auth.ErrMissingToken) {
					msg = "Missing authorization header"
				}
				log.Ctx(r.Context()).Debug().Err(err).Msg("token rejected")
				writeErr(w, http.StatusUnauthorized, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}
