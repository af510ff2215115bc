package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bikecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		yaml        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without file or env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultRawTransfersFile, cfg.Paths.RawTransfers)
				assert.Equal(t, DefaultDailyFeaturesFile, cfg.Paths.DailyFeatures)
				assert.Equal(t, 10000, cfg.Ingest.Limit)
				assert.Equal(t, 30*time.Second, cfg.Ingest.Timeout)
				assert.Len(t, cfg.Ingest.Months, 12)
				assert.Equal(t, ModelGBDT, cfg.Train.Model)
				assert.Equal(t, 0.8, cfg.Train.TrainRatio)
				assert.Equal(t, 63, cfg.GBDT.NumLeaves)
				assert.Equal(t, 0.05, cfg.GBDT.LearningRate)
				assert.Equal(t, []int{64, 32}, cfg.NN.Hidden)
				assert.Equal(t, 16, cfg.NN.BatchSize)
			},
		},
		{
			name: "yaml overlays defaults",
			yaml: `
train:
  model: nn
ingest:
  limit: 500
  timeout: 5s
  months:
    "2023-03": "http://localhost:9999/api?scope=x"
nn:
  epochs: 10
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ModelNN, cfg.Train.Model)
				assert.Equal(t, 500, cfg.Ingest.Limit)
				assert.Equal(t, 5*time.Second, cfg.Ingest.Timeout)
				assert.Equal(t, map[string]string{"2023-03": "http://localhost:9999/api?scope=x"}, cfg.Ingest.Months)
				assert.Equal(t, 10, cfg.NN.Epochs)
				assert.Equal(t, 16, cfg.NN.BatchSize, "untouched keys keep defaults")
			},
		},
		{
			name: "env overrides yaml",
			yaml: "train:\n  model: nn\n",
			env: map[string]string{
				"BIKECAST_TRAIN_MODEL":     "gbdt",
				"BIKECAST_GBDT_NUM_ROUNDS": "50",
				"BIKECAST_PATHS_WORK_DIR":  "/data",
				"BIKECAST_NN_HIDDEN":       "16,8",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ModelGBDT, cfg.Train.Model)
				assert.Equal(t, 50, cfg.GBDT.NumRounds)
				assert.Equal(t, "/data", cfg.Paths.WorkDir)
				assert.Equal(t, []int{16, 8}, cfg.NN.Hidden)
			},
		},
		{
			name:    "invalid model rejected",
			env:     map[string]string{"BIKECAST_TRAIN_MODEL": "svm"},
			wantErr: true,
		},
		{
			name:    "invalid ratio rejected",
			yaml:    "train:\n  train_ratio: 1.5\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "train: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeYAML(t, tt.yaml)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateReportsField(t *testing.T) {
	cfg := Default()
	cfg.NN.BatchSize = 0

	err := cfg.Validate()
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.ParamName, "BatchSize")
}

func TestResolve(t *testing.T) {
	cfg := Default()
	cfg.Paths.WorkDir = "/work"

	assert.Equal(t, filepath.Join("/work", DefaultCleanedFile), cfg.Resolve(DefaultCleanedFile))
	assert.Equal(t, "/abs/file.csv", cfg.Resolve("/abs/file.csv"))
	assert.Equal(t, "", cfg.Resolve(""))
}
