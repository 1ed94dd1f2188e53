package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.WSReadTimeout != 60*time.Second {
					t.Errorf("expected WSReadTimeout 60s, got %v", cfg.WSReadTimeout)
				}
				if cfg.RingTimeout != 30*time.Second || cfg.SimAnswerDelay != 0 {
					t.Errorf("unexpected call timing %v/%v", cfg.RingTimeout, cfg.SimAnswerDelay)
				}
				if !cfg.HoldCountsAsTalk {
					t.Error("hold should count as talk by default")
				}
				if cfg.MQTTBroker != "" || cfg.SkipAuth || cfg.VerifySignature {
					t.Error("expected MQTT and auth bypass off, development verification off")
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":             "9000",
				"LOG_LEVEL":        "debug",
				"WS_READ_TIMEOUT":  "30",
				"WS_WRITE_TIMEOUT": "5",
				"ALLOWED_ORIGINS":  "http://example.com,http://test.com",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.LogLevel != "debug" {
					t.Errorf("expected log level debug, got %s", cfg.LogLevel)
				}
				if cfg.WSReadTimeout != 30*time.Second {
					t.Errorf("expected WSReadTimeout 30s, got %v", cfg.WSReadTimeout)
				}
				if cfg.WSWriteTimeout != 5*time.Second {
					t.Errorf("expected WSWriteTimeout 5s, got %v", cfg.WSWriteTimeout)
				}
				if len(cfg.AllowedOrigins) != 2 {
					t.Errorf("expected 2 allowed origins, got %d", len(cfg.AllowedOrigins))
				}
			},
		},
		{
			name: "call handling and auth",
			env: map[string]string{
				"RING_TIMEOUT":        "45s",
				"SIM_ANSWER_DELAY":    "1500ms",
				"HOLD_COUNTS_AS_TALK": "false",
				"START_CALL_RATE":     "0.5",
				"START_CALL_BURST":    "2",
				"MQTT_BROKER":         "tcp://localhost:1883",
				"MQTT_USERNAME":       "engine",
				"ENV":                 "production",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.RingTimeout != 45*time.Second {
					t.Errorf("expected RingTimeout 45s, got %v", cfg.RingTimeout)
				}
				if cfg.SimAnswerDelay != 1500*time.Millisecond {
					t.Errorf("expected SimAnswerDelay 1.5s, got %v", cfg.SimAnswerDelay)
				}
				if cfg.HoldCountsAsTalk {
					t.Error("expected hold excluded from talk time")
				}
				if cfg.StartCallRate != 0.5 || cfg.StartCallBurst != 2 {
					t.Errorf("unexpected rate limit %v/%d", cfg.StartCallRate, cfg.StartCallBurst)
				}
				if cfg.MQTTBroker != "tcp://localhost:1883" || cfg.MQTTUsername != "engine" {
					t.Errorf("unexpected broker %s as %q", cfg.MQTTBroker, cfg.MQTTUsername)
				}
				if !cfg.VerifySignature {
					t.Error("production must verify signatures")
				}
			},
		},
		{
			name:    "invalid RING_TIMEOUT",
			env:     map[string]string{"RING_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "invalid HOLD_COUNTS_AS_TALK",
			env:     map[string]string{"HOLD_COUNTS_AS_TALK": "maybe"},
			wantErr: true,
		},
		{
			name:    "zero START_CALL_BURST",
			env:     map[string]string{"START_CALL_BURST": "0"},
			wantErr: true,
		},
		{
			name: "invalid WS_READ_TIMEOUT",
			env: map[string]string{
				"WS_READ_TIMEOUT": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid WS_WRITE_TIMEOUT",
			env: map[string]string{
				"WS_WRITE_TIMEOUT": "invalid",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Load config
			cfg, err := Load()

			// Check error
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// Run custom checks
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestWebSocketConstants(t *testing.T) {
	// Clear environment and set clean defaults
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// PongWait should equal WSReadTimeout
	if cfg.PongWait != cfg.WSReadTimeout {
		t.Errorf("PongWait (%v) should equal WSReadTimeout (%v)", cfg.PongWait, cfg.WSReadTimeout)
	}

	// PingPeriod should be less than PongWait
	if cfg.PingPeriod >= cfg.PongWait {
		t.Errorf("PingPeriod (%v) should be less than PongWait (%v)", cfg.PingPeriod, cfg.PongWait)
	}

	// WriteWait should equal WSWriteTimeout
	if cfg.WriteWait != cfg.WSWriteTimeout {
		t.Errorf("WriteWait (%v) should equal WSWriteTimeout (%v)", cfg.WriteWait, cfg.WSWriteTimeout)
	}

	// MaxMessageSize should be set
	if cfg.MaxMessageSize <= 0 {
		t.Errorf("MaxMessageSize should be positive, got %d", cfg.MaxMessageSize)
	}
}
