package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/onehud/registrar/internal/ledger"
	"github.com/onehud/registrar/internal/registration"
	"github.com/onehud/registrar/internal/serialport"
)

// healthCheckTimeout bounds each component check in /health.
const healthCheckTimeout = 2 * time.Second

// Messages for the guard errors, shown in the page like other statuses.
const (
	msgBusy   = "⏳ Đang xử lý một yêu cầu đăng ký khác, vui lòng đợi"
	msgLocked = "Thiết bị đã được đăng ký trong phiên này"
)

type registerRequest struct {
	Email string `json:"email"`
	Port  string `json:"port"`
}

// registerResponse is the session after the run plus, on failure, a code.
type registerResponse struct {
	registration.Snapshot
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type sessionResponse struct {
	registration.Snapshot
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(s.checks))

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"available":  s.registrar.Snapshot().Available,
		"components": components,
	})
}

// handleSystem returns a runtime summary of the process.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"runtime": map[string]any{
			"goroutines":      runtime.NumGoroutine(),
			"memory_alloc_mb": float64(mem.Alloc) / 1024 / 1024,
			"num_gc":          mem.NumGC,
		},
		"websocket_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{
		Snapshot: s.registrar.Snapshot(),
		Version:  s.version,
	})
}

func (s *Server) handleListPorts(w http.ResponseWriter, _ *http.Request) {
	ports, err := s.ports()
	if err != nil {
		s.logger.Warn("listing serial ports", "error", err)
		if errors.Is(err, serialport.ErrEnumeration) {
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "serial port enumeration unavailable")
			return
		}
		writeInternalError(w, "failed to list serial ports")
		return
	}
	if ports == nil {
		ports = []serialport.PortInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ports":      ports,
		"candidates": len(serialport.Candidates(ports)),
	})
}

// handleRegister runs one registration and answers with the final session.
// The run is bound to the request context, so a closed tab cancels it.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := registration.WithPort(r.Context(), strings.TrimSpace(req.Port))
	err := s.registrar.Submit(ctx, req.Email)

	resp := registerResponse{Snapshot: s.registrar.Snapshot()}
	status := http.StatusOK

	switch {
	case err == nil:
	case errors.Is(err, registration.ErrBusy):
		status, resp.Code, resp.Message = http.StatusConflict, ErrCodeConflict, msgBusy
	case errors.Is(err, registration.ErrLocked):
		status, resp.Code, resp.Message = http.StatusConflict, ErrCodeConflict, msgLocked
	default:
		status, resp.Code = statusForKind(err)
		resp.Message = resp.Status.Message
	}

	writeJSON(w, status, resp)
}

// statusForKind maps a registration failure to an HTTP status and code.
func statusForKind(err error) (int, string) {
	kind, _ := registration.KindOf(err)
	switch kind {
	case registration.InvalidEmail:
		return http.StatusBadRequest, ErrCodeValidation
	case registration.TransportUnavailable:
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	case registration.DeviceReadError:
		return http.StatusUnprocessableEntity, ErrCodeDevice
	case registration.DeliveryError:
		return http.StatusBadGateway, ErrCodeDelivery
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	if s.receipts == nil {
		writeNotFound(w, "receipts ledger is disabled")
		return
	}

	q := r.URL.Query()
	filter := ledger.Filter{
		DeviceID: q.Get("device_id"),
		Email:    q.Get("email"),
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, p.name+" must be a non-negative integer")
			return
		}
		*p.dst = n
	}

	res, err := s.receipts.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing receipts", "error", err)
		writeInternalError(w, "failed to list receipts")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
