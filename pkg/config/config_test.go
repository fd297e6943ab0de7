package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 10, cfg.Scan.Concurrency)
	assert.Equal(t, 100, cfg.Scan.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Scan.PriceCacheTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Scan.BundleCacheTTL)
	assert.Equal(t, 4, cfg.Scan.MinQuarters)
	assert.Equal(t, 15.0, cfg.Scan.MinROE)
	assert.Equal(t, 0.20, cfg.Scan.ROEVolatilityMax)
	assert.Equal(t, 15, cfg.Scan.ResultMax)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SCAN_CONCURRENCY", "3")
	t.Setenv("ROE_MIN", "10")
	t.Setenv("SCAN_BATCH_DELAY", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Scan.Concurrency)
	assert.Equal(t, 10.0, cfg.Scan.MinROE)
	assert.Equal(t, 2*time.Second, cfg.Scan.BatchDelay)
}

func TestScanConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScanConfig)
		wantErr bool
	}{
		{name: "defaults pass", mutate: func(s *ScanConfig) {}, wantErr: false},
		{name: "zero concurrency", mutate: func(s *ScanConfig) { s.Concurrency = 0 }, wantErr: true},
		{name: "weights not summing to 1", mutate: func(s *ScanConfig) { s.PriceWeight = 0.9 }, wantErr: true},
		{name: "variant weights 0.7/0.3", mutate: func(s *ScanConfig) { s.PriceWeight, s.PERWeight = 0.7, 0.3 }, wantErr: false},
		{name: "result max over cap", mutate: func(s *ScanConfig) { s.ResultMax = 20 }, wantErr: true},
		{name: "result max zero", mutate: func(s *ScanConfig) { s.ResultMax = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ScanConfig{
				Concurrency: 10,
				BatchSize:   100,
				MinQuarters: 4,
				PriceWeight: 0.6,
				PERWeight:   0.4,
				ResultMax:   15,
			}
			tt.mutate(&s)

			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
