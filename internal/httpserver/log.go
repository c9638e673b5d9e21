package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/owenriverk/recgov-permit-checker/internal/logger"
)

// accessLog logs one line per HTTP request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.Info("http_request method=%s path=%s status=%d bytes=%d duration=%v remote_ip=%s request_id=%s",
			r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(start), r.RemoteAddr, middleware.GetReqID(r.Context()))
	})
}
