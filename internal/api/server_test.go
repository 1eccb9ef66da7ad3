package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sstirlin/leapsec"
	"github.com/sstirlin/leapsec/internal/auth"
)

const sampleTable = ` 1972 JAN  1 =JD 2441317.5  TAI-UTC=  10.0000000 S + (MJD - 41317.) X 0.0      S
 1972 JUL  1 =JD 2441499.5  TAI-UTC=  11.0000000 S + (MJD - 41317.) X 0.0      S
 1980 JAN  1 =JD 2444239.5  TAI-UTC=  19.0000000 S + (MJD - 41317.) X 0.0      S
 2015 JUL  1 =JD 2457204.5  TAI-UTC=  36.0000000 S + (MJD - 41317.) X 0.0      S
 2017 JAN  1 =JD 2457754.5  TAI-UTC=  37.0000000 S + (MJD - 41317.) X 0.0      S
`

type staticFetcher struct{}

func (staticFetcher) Fetch(ctx context.Context) ([]byte, error) {
	return []byte(sampleTable), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testConverter(t *testing.T) *leapsec.Converter {
	t.Helper()
	conv, err := leapsec.NewConverter(context.Background(), leapsec.Config{
		CacheDir: t.TempDir(),
	}, testLogger(), leapsec.WithFetcher(staticFetcher{}))
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	return conv
}

func testHandler(t *testing.T, authCfg auth.Config) http.Handler {
	t.Helper()
	return NewServer(":0", testLogger(), authCfg, testConverter(t)).HTTPServer().Handler
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestConvertUTCToTAI(t *testing.T) {
	handler := testHandler(t, auth.Config{})
	w := get(t, handler, "/api/v1/convert?from=utc&to=tai&t=2017-06-01T00:00:00Z")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Result string `json:"result"`
		TAI64  string `json:"tai64"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Result != "2017-06-01T00:00:37Z" {
		t.Errorf("result = %q, want 2017-06-01T00:00:37Z", resp.Result)
	}
	if resp.TAI64 == "" || resp.TAI64[0] != '@' {
		t.Errorf("tai64 label missing or malformed: %q", resp.TAI64)
	}
}

func TestConvertUnixToGPS(t *testing.T) {
	handler := testHandler(t, auth.Config{})
	utc := time.Date(2017, time.June, 1, 0, 0, 0, 0, time.UTC)
	w := get(t, handler, "/api/v1/convert?from=unix&to=gps&t=1496275200")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Result float64 `json:"result"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	// GPS leads UTC by 37 − 19 = 18 s in 2017.
	want := utc.Sub(leapsec.UTCGPSEpoch).Seconds() + 18
	if resp.Result != want {
		t.Errorf("result = %v, want %v", resp.Result, want)
	}
}

func TestConvertRejectsBadRequests(t *testing.T) {
	handler := testHandler(t, auth.Config{})

	tests := []struct {
		name string
		path string
	}{
		{"unknown scale", "/api/v1/convert?from=mars&to=tai&t=2017-06-01T00:00:00Z"},
		{"same scale", "/api/v1/convert?from=utc&to=utc&t=2017-06-01T00:00:00Z"},
		{"missing t", "/api/v1/convert?from=utc&to=tai"},
		{"seconds given for calendar scale", "/api/v1/convert?from=utc&to=tai&t=12345"},
		{"calendar given for seconds scale", "/api/v1/convert?from=gps&to=tai&t=2017-06-01T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := get(t, handler, tt.path); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestOffsetBoundary(t *testing.T) {
	handler := testHandler(t, auth.Config{})
	w := get(t, handler, "/api/v1/offset?scale=utc&t=1972-07-01T00:00:00Z")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		OffsetSeconds float64 `json:"offset_seconds"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.OffsetSeconds != 11.0 {
		t.Errorf("offset_seconds = %v, want 11.0", resp.OffsetSeconds)
	}
}

func TestTableEndpoint(t *testing.T) {
	handler := testHandler(t, auth.Config{})
	w := get(t, handler, "/api/v1/table")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Entries int `json:"entries"`
		Records []struct {
			OffsetSeconds float64 `json:"offset_seconds"`
		} `json:"records"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Entries != 5 || len(resp.Records) != 5 {
		t.Fatalf("entries = %d, records = %d, want 5 each", resp.Entries, len(resp.Records))
	}
	if resp.Records[4].OffsetSeconds != 37.0 {
		t.Errorf("last record offset = %v, want 37.0", resp.Records[4].OffsetSeconds)
	}
}

func TestReadyz(t *testing.T) {
	handler := testHandler(t, auth.Config{})
	if w := get(t, handler, "/readyz"); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuthProtectsAPI(t *testing.T) {
	handler := testHandler(t, auth.Config{Enabled: true, Token: "secret"})

	if w := get(t, handler, "/api/v1/convert?from=utc&to=tai&t=2017-06-01T00:00:00Z"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated request: status = %d, want 401", w.Code)
	}

	// Probes stay public.
	if w := get(t, handler, "/healthz"); w.Code != http.StatusOK {
		t.Errorf("healthz with auth enabled: status = %d, want 200", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/convert?from=utc&to=tai&t=2017-06-01T00:00:00Z", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated request: status = %d, want 200", w.Code)
	}
}
