package main

import (
	"testing"

	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
)

func TestGetConfigPathDefault(t *testing.T) {
	t.Setenv("RELAYBRIDGE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPathFromEnv(t *testing.T) {
	t.Setenv("RELAYBRIDGE_CONFIG", "/etc/relaybridge/config.yaml")
	if got := getConfigPath(); got != "/etc/relaybridge/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestDashboardURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.APIConfig
		want string
	}{
		{"explicit host", config.APIConfig{Host: "10.0.0.2", Port: 3000}, "http://10.0.0.2:3000"},
		{"wildcard host", config.APIConfig{Host: "0.0.0.0", Port: 3000}, "http://localhost:3000"},
		{"empty host", config.APIConfig{Port: 8080}, "http://localhost:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dashboardURL(tt.cfg); got != tt.want {
				t.Errorf("dashboardURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
