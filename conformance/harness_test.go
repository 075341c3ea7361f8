package conformance

import (
	"os"
	"testing"
)

// TestConformance runs the suite with in-memory storage and no event bus.
func TestConformance(t *testing.T) {
	harness, err := NewHarness(Config{
		JWTIssuer:   "test-issuer",
		JWTAudience: "test-audience",
	})
	if err != nil {
		t.Fatalf("failed to create harness: %v", err)
	}
	defer harness.Close()

	harness.RunConformanceTests(t)
}

// TestConformanceBackends runs the suite against real PostgreSQL and NATS
// when CONSOLE_TEST_DB_DSN and CONSOLE_TEST_NATS_URL are set.
func TestConformanceBackends(t *testing.T) {
	dsn, natsURL := os.Getenv("CONSOLE_TEST_DB_DSN"), os.Getenv("CONSOLE_TEST_NATS_URL")
	if dsn == "" || natsURL == "" {
		t.Skip("CONSOLE_TEST_DB_DSN and CONSOLE_TEST_NATS_URL not set")
	}
	harness, err := NewHarness(Config{
		DatabaseDSN: dsn,
		NATSURL:     natsURL,
		JWTIssuer:   "test-issuer",
		JWTAudience: "test-audience",
	})
	if err != nil {
		t.Fatalf("failed to create harness: %v", err)
	}
	defer harness.Close()

	harness.RunConformanceTests(t)
}
