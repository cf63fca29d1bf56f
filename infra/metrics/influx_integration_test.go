//go:build integration

package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	coremetrics "github.com/kilianp07/symbiosis/core/metrics"
)

const (
	itOrg    = "symbiosis"
	itBucket = "scenarios"
	itToken  = "integration-token"
)

func startInflux(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "admin",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "adminpassword",
			"DOCKER_INFLUXDB_INIT_ORG":         itOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      itBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": itToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "8086")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func TestInfluxSink_Container(t *testing.T) {
	ctx := context.Background()
	url := startInflux(ctx, t)

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: url, Token: itToken, Org: itOrg, Bucket: itBucket})
	s, ok := sink.(*InfluxSink)
	if !ok {
		t.Fatalf("expected live InfluxSink, got %T", sink)
	}
	defer s.Close()

	if err := s.RecordBatch(coremetrics.BatchRecord{BatchID: "it", Scenarios: 10, Failures: 1, MeanObjective: 42, Time: time.Now()}); err != nil {
		t.Fatalf("write: %v", err)
	}

	client := influxdb2.NewClient(url, itToken)
	defer client.Close()
	query := fmt.Sprintf(`from(bucket:%q) |> range(start: -1h) |> filter(fn: (r) => r._measurement == "batch_result" and r._field == "scenarios")`, itBucket)
	res, err := client.QueryAPI(itOrg).Query(ctx, query)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	found := false
	for res.Next() {
		if v, ok := res.Record().Value().(int64); ok && v == 10 {
			found = true
		}
	}
	if res.Err() != nil {
		t.Fatalf("query result: %v", res.Err())
	}
	if !found {
		t.Fatalf("batch_result point not found")
	}
}
