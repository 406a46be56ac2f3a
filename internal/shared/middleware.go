package shared

import (
	"log/slog"
	"net/http"
)

// SessionMiddleware loads the session into the request context and commits it
// back before the first byte of the response body. Handlers mutate the session
// freely; the commit happens exactly once, on the first write.
func SessionMiddleware(sm *SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sm.Load(r.Context(), r)
			if err != nil {
				logger.Error("session load", slog.Any("error", err))
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			r = r.WithContext(ContextWithSession(r.Context(), sess))
			cw := &commitWriter{ResponseWriter: w, r: r, sm: sm, sess: sess, logger: logger}
			next.ServeHTTP(cw, r)
			// A handler that never wrote still needs the session persisted.
			cw.commit()
		})
	}
}

// commitWriter persists the session on the first header write, so Set-Cookie
// always precedes the body.
type commitWriter struct {
	http.ResponseWriter
	r         *http.Request
	sm        *SessionManager
	sess      *Session
	logger    *slog.Logger
	committed bool
}

func (cw *commitWriter) commit() {
	if cw.committed {
		return
	}
	cw.committed = true
	if err := cw.sm.Commit(cw.r.Context(), cw.ResponseWriter, cw.r, cw.sess); err != nil {
		cw.logger.Error("session commit", slog.Any("error", err))
	}
}

func (cw *commitWriter) WriteHeader(statusCode int) {
	cw.commit()
	cw.ResponseWriter.WriteHeader(statusCode)
}

func (cw *commitWriter) Write(b []byte) (int, error) {
	cw.commit()
	return cw.ResponseWriter.Write(b)
}
