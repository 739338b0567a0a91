package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okitshop/paycore/internal/signature"
)

// Fires concurrent duplicate webhook deliveries for one transaction id. With
// the row-locked reconciler, exactly one delivery should come back as a fresh
// transition and every other one as a duplicate replay.
var (
	targetURL     string
	concurrency   int
	duration      time.Duration
	transactionID string
	siteID        string
	secret        string
	amount        string
	currency      string
)

// Metrics
var (
	totalRequests uint64
	processed     uint64 // Fresh transitions
	duplicates    uint64 // Replay responses
	rejected      uint64 // 200 with error body
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 10*time.Second, "Test duration")
	flag.StringVar(&transactionID, "txid", "", "Transaction id to hammer (required)")
	flag.StringVar(&siteID, "site", "100001", "Aggregator site id")
	flag.StringVar(&secret, "secret", "", "Shared webhook secret (required)")
	flag.StringVar(&amount, "amount", "14000.00", "Webhook amount")
	flag.StringVar(&currency, "currency", "CDF", "Webhook currency")
}

func main() {
	flag.Parse()
	if transactionID == "" || secret == "" {
		log.Fatal("both -txid and -secret are required")
	}
	log.Printf("Starting Benchmark: tx=%s | Workers: %d | Duration: %s", transactionID, concurrency, duration)

	body := buildPayload()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, body)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func buildPayload() []byte {
	transDate := time.Now().Format("2006-01-02 15:04:05")
	verifier := signature.NewVerifier(secret)
	sig := verifier.Compute(signature.Fields{
		SiteID:          siteID,
		TransactionID:   transactionID,
		TransactionDate: transDate,
		Amount:          amount,
		Currency:        currency,
	})

	payload := map[string]string{
		"cpm_site_id":      siteID,
		"cpm_trans_id":     transactionID,
		"cpm_trans_date":   transDate,
		"cpm_amount":       amount,
		"cpm_currency":     currency,
		"cpm_trans_status": "ACCEPTED",
		"payment_method":   "OM",
		"signature":        sig,
	}
	body, _ := json.Marshal(payload)
	return body
}

func worker(wg *sync.WaitGroup, start time.Time, body []byte) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		req, _ := http.NewRequest("POST", targetURL+"/webhooks/cinetpay", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		var parsed struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()

		switch {
		case resp.StatusCode != 200:
			atomic.AddUint64(&failOther, 1)
		case !parsed.Success:
			atomic.AddUint64(&rejected, 1)
		case parsed.Message == "already processed":
			atomic.AddUint64(&duplicates, 1)
		default:
			atomic.AddUint64(&processed, 1)
		}
	}
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	fresh := atomic.LoadUint64(&processed)
	dup := atomic.LoadUint64(&duplicates)
	rej := atomic.LoadUint64(&rejected)
	fErr := atomic.LoadUint64(&failOther)

	results := map[string]interface{}{
		"transaction_id":    transactionID,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_rps":    float64(total) / d.Seconds(),
		"fresh_transitions": fresh, // should be exactly 1
		"duplicate_replays": dup,
		"rejected":          rej,
		"errors":            fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", transactionID)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
