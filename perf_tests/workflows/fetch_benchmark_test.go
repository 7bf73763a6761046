package workflows_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"
)

// Configuration from environment
var (
	apiURL      = getEnv("FLOWLINE_API_URL", "http://localhost:8080")
	numCalls    = getEnvInt("PERF_NUM_CALLS", 100000)
	concurrency = getEnvInt("PERF_CONCURRENCY", 10)
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// skipUnlessRunning gates every benchmark behind the health endpoint so
// the suite is a no-op without a live API.
func skipUnlessRunning(tb testing.TB) {
	tb.Helper()

	resp, err := httpClient.Get(apiURL + "/health")
	if err != nil {
		tb.Skipf("flowline API not running at %s", apiURL)
	}
	resp.Body.Close()
}

// createBenchWorkflow registers a single-step workflow (a zero-second
// delay) and returns its id.
func createBenchWorkflow(tb testing.TB, name string) string {
	tb.Helper()

	doc := map[string]interface{}{
		"name": name,
		"steps": []map[string]interface{}{
			{"name": "wait", "type": "delay", "config": map[string]interface{}{"duration": 0}},
		},
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		tb.Fatalf("marshal workflow: %v", err)
	}

	resp, err := httpClient.Post(apiURL+"/api/v1/workflows", "application/json", bytes.NewReader(payload))
	if err != nil {
		tb.Fatalf("create workflow: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		tb.Fatalf("create workflow: status %d: %s", resp.StatusCode, body)
	}

	var created struct {
		WorkflowID string `json:"workflow_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		tb.Fatalf("decode create response: %v", err)
	}

	return created.WorkflowID
}

// BenchmarkFetchWorkflow measures the read path: GET by id, served
// cache-first when the cache is enabled.
//
// Usage:
//
//	FLOWLINE_API_URL=http://localhost:8080 go test -bench=BenchmarkFetchWorkflow -benchtime=100000x ./perf_tests/workflows
//
// Metrics: ops/sec, throughput (MB/s), latency (ms/op)
func BenchmarkFetchWorkflow(b *testing.B) {
	skipUnlessRunning(b)

	workflowName := fmt.Sprintf("perf-fetch-%d", time.Now().Unix())
	workflowID := createBenchWorkflow(b, workflowName)

	b.Logf("Benchmarking workflow fetch: %d iterations", b.N)
	b.Logf("  Workflow: %s (%s)", workflowName, workflowID)

	var totalBytes int64

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		resp, err := httpClient.Get(fmt.Sprintf("%s/api/v1/workflows/%s", apiURL, workflowID))
		if err != nil {
			b.Fatalf("Request failed: %v", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			b.Fatalf("Failed to read response: %v", err)
		}

		totalBytes += int64(len(body))

		if resp.StatusCode != http.StatusOK {
			b.Fatalf("Unexpected status: %d", resp.StatusCode)
		}
	}

	b.StopTimer()

	elapsed := b.Elapsed()
	b.ReportMetric(float64(b.N)/elapsed.Seconds(), "ops/sec")
	b.ReportMetric(float64(totalBytes)/elapsed.Seconds()/1024/1024, "MB/s")
	b.ReportMetric(float64(elapsed.Nanoseconds()/int64(b.N))/1e6, "ms/op")
}

// BenchmarkTriggerWorkflow measures the write path: each iteration
// creates a run and publishes a trigger event. Runs drain through the
// worker asynchronously, so this isolates enqueue latency.
func BenchmarkTriggerWorkflow(b *testing.B) {
	skipUnlessRunning(b)

	workflowName := fmt.Sprintf("perf-trigger-%d", time.Now().Unix())
	workflowID := createBenchWorkflow(b, workflowName)

	payload := []byte(fmt.Sprintf(`{"workflow_id":%q}`, workflowID))

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		resp, err := httpClient.Post(apiURL+"/api/v1/trigger", "application/json", bytes.NewReader(payload))
		if err != nil {
			b.Fatalf("Request failed: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			b.Fatalf("Unexpected status: %d", resp.StatusCode)
		}
	}

	b.StopTimer()

	elapsed := b.Elapsed()
	b.ReportMetric(float64(b.N)/elapsed.Seconds(), "ops/sec")
	b.ReportMetric(float64(elapsed.Nanoseconds()/int64(b.N))/1e6, "ms/op")
}

// TestFetchWorkflowsConcurrent measures the read path under load with
// multiple concurrent clients.
func TestFetchWorkflowsConcurrent(t *testing.T) {
	skipUnlessRunning(t)

	workflowName := fmt.Sprintf("perf-concurrent-%d", time.Now().Unix())
	workflowID := createBenchWorkflow(t, workflowName)

	t.Logf("Concurrent fetch test:")
	t.Logf("  Total calls: %d", numCalls)
	t.Logf("  Concurrency: %d", concurrency)
	t.Logf("  Workflow: %s (%s)", workflowName, workflowID)

	start := time.Now()

	callsPerWorker := numCalls / concurrency
	doneChan := make(chan workerStats, concurrency)

	for w := 0; w < concurrency; w++ {
		go func(workerID int) {
			stats := workerStats{workerID: workerID}

			workerStart := time.Now()

			for i := 0; i < callsPerWorker; i++ {
				reqStart := time.Now()

				resp, err := httpClient.Get(fmt.Sprintf("%s/api/v1/workflows/%s", apiURL, workflowID))
				if err != nil {
					stats.errors++
					continue
				}

				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()

				if resp.StatusCode != http.StatusOK {
					stats.errors++
					continue
				}

				reqDuration := time.Since(reqStart)

				stats.totalCalls++
				stats.totalBytes += int64(len(body))
				stats.totalLatency += reqDuration

				if reqDuration < stats.minLatency || stats.minLatency == 0 {
					stats.minLatency = reqDuration
				}
				if reqDuration > stats.maxLatency {
					stats.maxLatency = reqDuration
				}
			}

			stats.duration = time.Since(workerStart)
			doneChan <- stats
		}(w)
	}

	// Collect results
	var totalStats workerStats
	for i := 0; i < concurrency; i++ {
		stats := <-doneChan
		totalStats.totalCalls += stats.totalCalls
		totalStats.totalBytes += stats.totalBytes
		totalStats.totalLatency += stats.totalLatency
		totalStats.errors += stats.errors

		if stats.minLatency < totalStats.minLatency || totalStats.minLatency == 0 {
			totalStats.minLatency = stats.minLatency
		}
		if stats.maxLatency > totalStats.maxLatency {
			totalStats.maxLatency = stats.maxLatency
		}
	}

	elapsed := time.Since(start)

	if totalStats.totalCalls == 0 {
		t.Fatalf("All requests failed (%d errors). Check that the API is reachable at %s.",
			totalStats.errors, apiURL)
	}

	opsPerSec := float64(totalStats.totalCalls) / elapsed.Seconds()
	throughputMBps := float64(totalStats.totalBytes) / elapsed.Seconds() / 1024 / 1024
	avgLatency := totalStats.totalLatency / time.Duration(totalStats.totalCalls)

	t.Logf("\n========================================")
	t.Logf("Performance Results:")
	t.Logf("========================================")
	t.Logf("Total calls:     %d", totalStats.totalCalls)
	t.Logf("Errors:          %d", totalStats.errors)
	t.Logf("Duration:        %s", elapsed)
	t.Logf("Throughput:      %.2f ops/sec", opsPerSec)
	t.Logf("Data transferred: %.2f MB/s", throughputMBps)
	t.Logf("\nLatency:")
	t.Logf("  Min:     %s", totalStats.minLatency)
	t.Logf("  Average: %s", avgLatency)
	t.Logf("  Max:     %s", totalStats.maxLatency)
	t.Logf("========================================\n")
}

type workerStats struct {
	workerID     int
	totalCalls   int
	totalBytes   int64
	totalLatency time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	errors       int
	duration     time.Duration
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
