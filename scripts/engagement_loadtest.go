//go:build ignore
// +build ignore

// Engagement Load Test - Validates open counting under concurrent traffic
//
// Hammers the pixel and click endpoints of a running server from many
// workers, then reads the record back and compares open_count against the
// number of successful requests. Any difference means the store lost an
// update under concurrency.
//
// Usage:
//
//	go run scripts/engagement_loadtest.go \
//	  --server=http://localhost:8080 \
//	  --requests=10000 \
//	  --workers=16
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type loadTestConfig struct {
	ServerURL  string
	Requests   int
	Workers    int
	TrackingID string
}

type loadTestMetrics struct {
	Attempted int64
	Succeeded int64
	Failed    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *loadTestMetrics) record(d time.Duration) {
	m.mu.Lock()
	m.latencies = append(m.latencies, d)
	m.mu.Unlock()
}

// latencyPercentile calculates the p-th percentile of durations
func latencyPercentile(durations []time.Duration, p int) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)-1) * float64(p) / 100)
	return sorted[idx]
}

func main() {
	cfg := &loadTestConfig{}
	flag.StringVar(&cfg.ServerURL, "server", "http://localhost:8080", "base URL of the running server")
	flag.IntVar(&cfg.Requests, "requests", 10000, "total engagement requests to send")
	flag.IntVar(&cfg.Workers, "workers", 16, "concurrent workers")
	flag.StringVar(&cfg.TrackingID, "id", "", "tracking ID to reuse (default: create a fresh record)")
	flag.Parse()

	// Redirects must not be followed: the click endpoint points at a real
	// external URL and the test only cares about the 307.
	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	trackingID := cfg.TrackingID
	if trackingID == "" {
		trackingID = "loadtest-" + uuid.New().String()
		if err := createRecord(client, cfg.ServerURL, trackingID); err != nil {
			log.Fatalf("create record: %v", err)
		}
		log.Printf("Created tracking record %s", trackingID)
	}

	startCount, err := fetchOpenCount(client, cfg.ServerURL, trackingID)
	if err != nil {
		log.Fatalf("read starting count: %v", err)
	}

	pixelURL := fmt.Sprintf("%s/api/pixel/%s", cfg.ServerURL, trackingID)
	clickURL := fmt.Sprintf("%s/api/click?id=%s&url=https%%3A%%2F%%2Fexample.com", cfg.ServerURL, trackingID)

	metrics := &loadTestMetrics{}
	jobs := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	log.Printf("Firing %d requests at %s with %d workers", cfg.Requests, cfg.ServerURL, cfg.Workers)
	start := time.Now()

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				url := pixelURL
				wantStatus := http.StatusOK
				if n%2 == 1 {
					url = clickURL
					wantStatus = http.StatusTemporaryRedirect
				}

				atomic.AddInt64(&metrics.Attempted, 1)
				reqStart := time.Now()
				resp, err := client.Get(url)
				if err != nil {
					atomic.AddInt64(&metrics.Failed, 1)
					continue
				}
				resp.Body.Close()
				metrics.record(time.Since(reqStart))

				if resp.StatusCode == wantStatus {
					atomic.AddInt64(&metrics.Succeeded, 1)
				} else {
					atomic.AddInt64(&metrics.Failed, 1)
				}
			}
		}()
	}

	for n := 0; n < cfg.Requests; n++ {
		jobs <- n
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	// Give async pipelines (edge beacon + SQS) a moment to drain before the
	// final read. Direct-mode servers apply synchronously and need none.
	time.Sleep(2 * time.Second)

	endCount, err := fetchOpenCount(client, cfg.ServerURL, trackingID)
	if err != nil {
		log.Fatalf("read final count: %v", err)
	}

	counted := endCount - startCount
	succeeded := atomic.LoadInt64(&metrics.Succeeded)

	fmt.Println()
	fmt.Printf("Requests:   %d attempted, %d succeeded, %d failed\n",
		atomic.LoadInt64(&metrics.Attempted), succeeded, atomic.LoadInt64(&metrics.Failed))
	fmt.Printf("Throughput: %.0f req/s over %s\n", float64(cfg.Requests)/elapsed.Seconds(), elapsed.Round(time.Millisecond))
	fmt.Printf("Latency:    p50=%s p95=%s p99=%s\n",
		latencyPercentile(metrics.latencies, 50),
		latencyPercentile(metrics.latencies, 95),
		latencyPercentile(metrics.latencies, 99))
	fmt.Printf("Counted:    open_count advanced by %d (expected %d)\n", counted, succeeded)

	if int64(counted) != succeeded {
		fmt.Printf("RESULT:     FAIL, %d updates lost\n", succeeded-int64(counted))
		os.Exit(1)
	}
	fmt.Println("RESULT:     PASS, no lost updates")
}

// createRecord seeds a tracking record through the send endpoint. A 500 is
// fine here: dispatch may be disabled locally, but the record is persisted
// before the send is attempted.
func createRecord(client *http.Client, serverURL, trackingID string) error {
	payload, _ := json.Marshal(map[string]string{
		"to":         "loadtest@example.com",
		"subject":    "load test",
		"body":       `<a href="https://example.com">link</a>`,
		"trackingId": trackingID,
	})

	resp, err := client.Post(serverURL+"/api/send-email", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	resp.Body.Close()

	// Confirm the record exists regardless of dispatch outcome.
	if _, err := fetchOpenCount(client, serverURL, trackingID); err != nil {
		return fmt.Errorf("record not created (send returned %d): %w", resp.StatusCode, err)
	}
	return nil
}

func fetchOpenCount(client *http.Client, serverURL, trackingID string) (int, error) {
	resp, err := client.Get(serverURL + "/api/tracking/" + trackingID)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("tracking lookup returned %d", resp.StatusCode)
	}

	var record struct {
		OpenCount int `json:"openCount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return 0, err
	}
	return record.OpenCount, nil
}
