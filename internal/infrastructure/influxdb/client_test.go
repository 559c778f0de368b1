package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/pihome/internal/infrastructure/config"
	"github.com/nerrad567/pihome/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line protocol posted to /api/v2/write.
// With reject set, every write is refused as malformed.
type fakeInflux struct {
	reject bool

	mu    sync.Mutex
	lines []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping", "/health":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		if f.reject {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"code":"invalid","message":"unable to parse points"}`) //nolint:errcheck // test server
			return
		}
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		f.mu.Lock()
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

// waitForLines polls until n lines arrived or the deadline passes.
func (f *fakeInflux) waitForLines(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if lines := f.written(); len(lines) >= n {
			return lines
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("got %d lines, want %d", len(f.written()), n)
	return nil
}

func connectFake(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()
	fake := &fakeInflux{}
	return connectTo(t, fake), fake
}

func connectTo(t *testing.T, fake *fakeInflux) *influxdb.Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := influxdb.Connect(config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "pihome-test-token",
		Org:           "pihome",
		Bucket:        "telemetry",
		BatchSize:     1,
		FlushInterval: 1,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // test cleanup
	return client
}

func TestConnect(t *testing.T) {
	client, _ := connectFake(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := influxdb.Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(config.InfluxDBConfig{Enabled: true, URL: url, Org: "o", Bucket: "b"})
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := connectFake(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	client, _ := connectFake(t)
	client.Close() //nolint:errcheck // closing early on purpose

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteMeasurements(t *testing.T) {
	tests := []struct {
		name  string
		write func(c *influxdb.Client)
		want  []string
	}{
		{
			name:  "sensor reading",
			write: func(c *influxdb.Client) { c.WriteSensorReading(3, "17", 1) },
			want:  []string{"sensor_reading,", "pin=17", "sensor_id=3", "value=1"},
		},
		{
			name:  "device value",
			write: func(c *influxdb.Client) { c.WriteDeviceValue(7, true) },
			want:  []string{"device_value,", "device_id=7", "value=true"},
		},
		{
			name:  "rule evaluation",
			write: func(c *influxdb.Client) { c.WriteRuleEvaluation(2, false, 15*time.Millisecond) },
			want:  []string{"rule_evaluation,", "rule_id=2", "satisfied=false", "duration_ms=15i"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, fake := connectFake(t)

			tt.write(client)
			client.Flush()

			line := fake.waitForLines(t, 1)[0]
			for _, part := range tt.want {
				if !strings.Contains(line, part) {
					t.Errorf("line %q missing %q", line, part)
				}
			}
		})
	}
}

func TestWritePointWithTime(t *testing.T) {
	client, fake := connectFake(t)

	ts := time.Unix(1700000000, 0)
	client.WritePointWithTime("custom", map[string]string{"source": "test"}, map[string]interface{}{"value": 88.8}, ts)
	client.Flush()

	line := fake.waitForLines(t, 1)[0]
	if !strings.HasSuffix(line, "1700000000000000000") {
		t.Errorf("line %q does not end with the given timestamp", line)
	}
}

func TestWrite_NilAndClosedClientDropPoints(t *testing.T) {
	var nilClient *influxdb.Client
	nilClient.WriteSensorReading(1, "4", 1)
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}

	client, fake := connectFake(t)
	client.Close() //nolint:errcheck // closing early on purpose
	client.WriteDeviceValue(1, true)
	client.Flush()

	time.Sleep(50 * time.Millisecond)
	if got := fake.written(); len(got) != 0 {
		t.Errorf("closed client wrote %v", got)
	}
}

func TestSetOnError_WrapsRejectedWrites(t *testing.T) {
	client := connectTo(t, &fakeInflux{reject: true})

	got := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case got <- err:
		default:
		}
	})

	client.WriteSensorReading(1, "4", 1)
	client.Flush()

	select {
	case err := <-got:
		if !errors.Is(err, influxdb.ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
		if !strings.Contains(err.Error(), "telemetry") {
			t.Errorf("callback error = %q, want the bucket named", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("rejected write never reached the callback")
	}
}

func TestClose_Twice(t *testing.T) {
	client, _ := connectFake(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
