package main

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Mock segment and time-series stores for local development. The segment
// endpoint reports the middle 80% of any requested span as active; the
// series endpoint returns a 16 Hz sinusoid with a burst injected a quarter
// of the way in, so threshold scans have something to find.

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/segments", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		start, end, ok := parseSpan(w, r)
		if !ok {
			return
		}
		margin := (end - start) * 0.1
		writeJSON(w, map[string]any{
			"active": [][]float64{
				{start + margin, end - margin},
			},
		})
	})

	mux.HandleFunc("/timeseries", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		start, end, ok := parseSpan(w, r)
		if !ok {
			return
		}
		const rate = 16.0
		n := int((end - start) * rate)
		samples := make([]float64, n)
		burst := n / 4
		for i := range samples {
			samples[i] = math.Sin(2 * math.Pi * float64(i) / rate)
			if i >= burst && i < burst+int(rate) {
				samples[i] *= 50
			}
		}
		writeJSON(w, map[string]any{
			"epoch":       start,
			"sample_rate": rate,
			"samples":     samples,
		})
	})

	logger := log.New(log.Writer(), "stores-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforceGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func parseSpan(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	start, err1 := strconv.ParseFloat(r.URL.Query().Get("start"), 64)
	end, err2 := strconv.ParseFloat(r.URL.Query().Get("end"), 64)
	if err1 != nil || err2 != nil || end <= start {
		w.WriteHeader(http.StatusBadRequest)
		return 0, 0, false
	}
	return start, end, true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
