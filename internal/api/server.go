package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sstirlin/leapsec"
	"github.com/sstirlin/leapsec/internal/auth"
	"github.com/sstirlin/leapsec/internal/health"
	"github.com/sstirlin/leapsec/internal/metrics"
	"github.com/sstirlin/leapsec/tai64"
)

// Server exposes the converter over HTTP.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server around conv.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, conv *leapsec.Converter) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool { return conv.Table() != nil }))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/convert", convertHandler(logger, conv))
	mux.HandleFunc("GET /api/v1/offset", offsetHandler(logger, conv))
	mux.HandleFunc("GET /api/v1/table", tableHandler(conv))

	// Middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second, // a convert call may block on a table refresh
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// convertResponse is the payload for /api/v1/convert. Result is an RFC 3339
// string for calendar scales and a float for seconds scales; TAI64 carries the
// external label when the target scale is TAI.
type convertResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Input  string `json:"input"`
	Result any    `json:"result"`
	TAI64  string `json:"tai64,omitempty"`
}

// Scales understood by /api/v1/convert. "gpscal" is GPS seconds mapped
// naively onto the calendar, without leap correction.
var validScales = map[string]bool{
	"utc":    true,
	"tai":    true,
	"gps":    true,
	"unix":   true,
	"gpscal": true,
}

func convertHandler(logger *slog.Logger, conv *leapsec.Converter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")
		raw := r.URL.Query().Get("t")

		if !validScales[from] || !validScales[to] {
			writeError(w, http.StatusBadRequest, "from and to must each be one of utc, tai, gps, unix, gpscal")
			return
		}
		if from == to {
			writeError(w, http.StatusBadRequest, "from and to are the same scale")
			return
		}
		if raw == "" {
			writeError(w, http.StatusBadRequest, "missing t parameter")
			return
		}

		resp, err := convert(r.Context(), conv, from, to, raw)
		if err != nil {
			var badInput *badInputError
			if errors.As(err, &badInput) {
				writeError(w, http.StatusBadRequest, badInput.Error())
				return
			}
			logger.Error("conversion failed", "from", from, "to", to, "error", err)
			writeError(w, http.StatusServiceUnavailable, "conversion failed: "+err.Error())
			return
		}

		metrics.IncConversion(from, to)
		writeJSON(w, http.StatusOK, resp)
	}
}

type badInputError struct {
	msg string
}

func (e *badInputError) Error() string { return e.msg }

// convert routes between any two scales through UTC, except the TAI<->GPS
// pair which has a direct definition.
func convert(ctx context.Context, conv *leapsec.Converter, from, to, raw string) (*convertResponse, error) {
	resp := &convertResponse{From: from, To: to, Input: raw}

	// Direct TAI<->GPS conversions.
	switch {
	case from == "tai" && to == "gps":
		tai, err := parseInstant(raw)
		if err != nil {
			return nil, err
		}
		gps, err := conv.TAIToGPS(ctx, tai)
		if err != nil {
			return nil, err
		}
		resp.Result = gps
		return resp, nil
	case from == "gps" && to == "tai":
		secs, err := parseSeconds(raw)
		if err != nil {
			return nil, err
		}
		tai, err := conv.GPSToTAI(ctx, secs)
		if err != nil {
			return nil, err
		}
		resp.Result = tai.Format(time.RFC3339Nano)
		resp.TAI64 = tai64.FromTAI(tai).String()
		return resp, nil
	}

	utc, err := toUTC(ctx, conv, from, raw)
	if err != nil {
		return nil, err
	}

	switch to {
	case "utc":
		resp.Result = utc.Format(time.RFC3339Nano)
	case "tai":
		tai, err := conv.UTCToTAI(ctx, utc)
		if err != nil {
			return nil, err
		}
		resp.Result = tai.Format(time.RFC3339Nano)
		resp.TAI64 = tai64.FromTAI(tai).String()
	case "gps":
		gps, err := conv.UTCToGPS(ctx, utc)
		if err != nil {
			return nil, err
		}
		resp.Result = gps
	case "unix":
		resp.Result = conv.UTCToUnix(utc)
	case "gpscal":
		gps, err := conv.UTCToGPS(ctx, utc)
		if err != nil {
			return nil, err
		}
		resp.Result = conv.GPSToGPSCalendar(gps).Format(time.RFC3339Nano)
	}
	return resp, nil
}

// toUTC parses raw on the given scale and converts it to a UTC instant.
func toUTC(ctx context.Context, conv *leapsec.Converter, from, raw string) (time.Time, error) {
	switch from {
	case "utc":
		return parseInstant(raw)
	case "tai":
		tai, err := parseInstant(raw)
		if err != nil {
			return time.Time{}, err
		}
		return conv.TAIToUTC(ctx, tai)
	case "gps":
		secs, err := parseSeconds(raw)
		if err != nil {
			return time.Time{}, err
		}
		return conv.GPSToUTC(ctx, secs)
	case "unix":
		secs, err := parseSeconds(raw)
		if err != nil {
			return time.Time{}, err
		}
		return conv.UnixToUTC(secs), nil
	case "gpscal":
		t, err := parseInstant(raw)
		if err != nil {
			return time.Time{}, err
		}
		return conv.GPSToUTC(ctx, conv.GPSCalendarToGPS(t))
	}
	return time.Time{}, &badInputError{msg: "unknown scale " + from}
}

func parseInstant(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, &badInputError{msg: fmt.Sprintf("t must be RFC 3339 for calendar scales: %v", err)}
	}
	return t.UTC(), nil
}

func parseSeconds(raw string) (float64, error) {
	s, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &badInputError{msg: fmt.Sprintf("t must be float seconds for seconds scales: %v", err)}
	}
	return s, nil
}

func offsetHandler(logger *slog.Logger, conv *leapsec.Converter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scale := r.URL.Query().Get("scale")
		if scale == "" {
			scale = "utc"
		}
		if scale != "utc" && scale != "tai" {
			writeError(w, http.StatusBadRequest, "scale must be utc or tai")
			return
		}

		raw := r.URL.Query().Get("t")
		if raw == "" {
			writeError(w, http.StatusBadRequest, "missing t parameter")
			return
		}
		t, err := parseInstant(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var offset float64
		if scale == "utc" {
			offset, err = conv.OffsetAtUTC(r.Context(), t)
		} else {
			offset, err = conv.OffsetAtTAI(r.Context(), t)
		}
		if err != nil {
			logger.Error("offset lookup failed", "scale", scale, "error", err)
			writeError(w, http.StatusServiceUnavailable, "offset lookup failed: "+err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"scale":          scale,
			"t":              t.Format(time.RFC3339Nano),
			"offset_seconds": offset,
		})
	}
}

type tableRecord struct {
	EffectiveUTC  string  `json:"effective_utc"`
	EffectiveTAI  string  `json:"effective_tai"`
	OffsetSeconds float64 `json:"offset_seconds"`
}

func tableHandler(conv *leapsec.Converter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := conv.Table()
		if table == nil {
			writeError(w, http.StatusServiceUnavailable, "no leap-second table loaded")
			return
		}

		records := table.Records()
		out := make([]tableRecord, len(records))
		for i, rec := range records {
			out[i] = tableRecord{
				EffectiveUTC:  rec.EffectiveUTC.Format(time.RFC3339),
				EffectiveTAI:  rec.EffectiveTAI.Format(time.RFC3339Nano),
				OffsetSeconds: rec.Offset,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"fetched_at": table.FetchedAt.UTC().Format(time.RFC3339),
			"entries":    len(out),
			"records":    out,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
