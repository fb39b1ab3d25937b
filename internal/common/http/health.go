package http

import (
	"context"
	"net/http"

	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthHandler(log *logger.Logger, pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				log.WithFields(r.Context(), logger.Fields{
					"error":  err.Error(),
					"action": "health_check_failed",
				}).Warn("health check failed")
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		log.Debugf("health check request")
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
