package sink

import (
	"testing"

	"github.com/adalliance/tracker/internal/visit"
)

func TestNewKafkaSinkFromEnv(t *testing.T) {
	t.Run("uses defaults when env not set", func(t *testing.T) {
		s := NewKafkaSinkFromEnv()

		if len(s.config.Brokers) != 1 || s.config.Brokers[0] != "localhost:9092" {
			t.Errorf("Brokers = %v, want [localhost:9092]", s.config.Brokers)
		}
		if s.config.Topic != "tracker.visits" {
			t.Errorf("Topic = %q, want tracker.visits", s.config.Topic)
		}
		if s.config.Acks != "all" {
			t.Errorf("Acks = %q, want all", s.config.Acks)
		}
	})

	t.Run("uses env variables when set", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
		t.Setenv("KAFKA_TOPIC", "custom.topic")
		t.Setenv("KAFKA_ACKS", "1")
		t.Setenv("KAFKA_COMPRESSION", "gzip")
		t.Setenv("KAFKA_SASL_MECHANISM", "PLAIN")
		t.Setenv("KAFKA_SASL_USER", "user")
		t.Setenv("KAFKA_SASL_PASSWORD", "pass")
		t.Setenv("KAFKA_TLS_CA", "/path/to/ca.pem")
		t.Setenv("KAFKA_TLS_SKIP_VERIFY", "true")

		s := NewKafkaSinkFromEnv()

		if len(s.config.Brokers) != 2 || s.config.Brokers[0] != "broker1:9092" || s.config.Brokers[1] != "broker2:9092" {
			t.Errorf("Brokers = %v, want trimmed [broker1:9092 broker2:9092]", s.config.Brokers)
		}
		if s.config.Topic != "custom.topic" {
			t.Errorf("Topic = %q", s.config.Topic)
		}
		if s.config.Acks != "1" {
			t.Errorf("Acks = %q", s.config.Acks)
		}
		if s.config.Compression != "gzip" {
			t.Errorf("Compression = %q", s.config.Compression)
		}
		if s.config.SASLMechanism != "PLAIN" || s.config.SASLUser != "user" || s.config.SASLPassword != "pass" {
			t.Errorf("SASL config = %q/%q/%q", s.config.SASLMechanism, s.config.SASLUser, s.config.SASLPassword)
		}
		if s.config.TLSCAPath != "/path/to/ca.pem" {
			t.Errorf("TLSCAPath = %q", s.config.TLSCAPath)
		}
		if !s.config.TLSSkipVerify {
			t.Error("TLSSkipVerify should be true")
		}
	})
}

func TestNewKafkaSink(t *testing.T) {
	s := NewKafkaSink([]string{"b1:9092"}, "visits")
	if s.config.Topic != "visits" {
		t.Errorf("Topic = %q, want visits", s.config.Topic)
	}
	if s.config.Acks != "all" {
		t.Errorf("Acks = %q, want all", s.config.Acks)
	}
}

func TestKafkaSinkEnqueueBeforeStart(t *testing.T) {
	s := NewKafkaSink([]string{"b1:9092"}, "visits")
	if err := s.Enqueue(visit.Event{VisitID: "v-1"}); err == nil {
		t.Error("Enqueue before Start should fail")
	}
}

func TestKafkaSinkName(t *testing.T) {
	if got := NewKafkaSink(nil, "visits").Name(); got != "kafka" {
		t.Errorf("Name() = %q, want kafka", got)
	}
}

func TestKafkaSinkCloseWithoutStart(t *testing.T) {
	s := NewKafkaSink([]string{"b1:9092"}, "visits")
	if err := s.Close(); err != nil {
		t.Errorf("Close without Start: %v", err)
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"1", false, true},
		{"yes", false, true},
		{"FALSE", true, false},
		{"n", true, false},
		{"garbage", true, true},
	}
	for _, tt := range tests {
		t.Setenv("TEST_KAFKA_BOOL", tt.value)
		if got := getBoolEnv("TEST_KAFKA_BOOL", tt.def); got != tt.want {
			t.Errorf("getBoolEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
