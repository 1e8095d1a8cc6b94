// Command loadtest fires a burst of concurrent payments at a running
// ingress instance, for manual smoke-testing against the acceptance
// contract of spec.md section 4.1 (202 on accepted, never a synchronous
// dispatch result).
//
// Adapted from the teacher repo's root-level stress.go: same
// semaphore-bounded goroutine burst against POST /payments, updated to
// expect 202 (async acceptance) instead of 200, to send real UUIDs (the
// new ingress rejects malformed correlation ids), and to count results
// with atomics instead of unsynchronized shared ints.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type paymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

func main() {
	var (
		totalRequests = flag.Int("requests", 500, "total payments to send")
		concurrency   = flag.Int("concurrency", 20, "max in-flight requests")
		url           = flag.String("url", "http://localhost:9999/payments", "ingress /payments URL")
		amount        = flag.Float64("amount", 19.90, "payment amount per request")
	)
	flag.Parse()

	var success, timeouts, errorCount int64

	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	client := &http.Client{Timeout: 2 * time.Second}

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			payload := paymentRequest{
				CorrelationID: uuid.NewString(),
				Amount:        *amount,
			}
			body, err := json.Marshal(payload)
			if err != nil {
				atomic.AddInt64(&errorCount, 1)
				return
			}

			req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
			if err != nil {
				atomic.AddInt64(&errorCount, 1)
				return
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				var netErr net.Error
				if e, ok := err.(net.Error); ok {
					netErr = e
				}
				if netErr != nil && netErr.Timeout() {
					atomic.AddInt64(&timeouts, 1)
				} else {
					atomic.AddInt64(&errorCount, 1)
				}
				return
			}
			defer resp.Body.Close()
			respBody, _ := io.ReadAll(resp.Body)
			if resp.StatusCode == http.StatusAccepted {
				atomic.AddInt64(&success, 1)
			} else {
				fmt.Printf("unexpected status %d: %s\n", resp.StatusCode, string(respBody))
				atomic.AddInt64(&errorCount, 1)
			}
		}()
	}
	wg.Wait()

	fmt.Printf("accepted: %d\ntimeouts: %d\nerrors: %d\n", success, timeouts, errorCount)
}
