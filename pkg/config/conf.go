package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mchmarny/nnpu/pkg/prior"
	"github.com/mchmarny/nnpu/pkg/risk"
	"github.com/mchmarny/nnpu/pkg/threshold"
)

const (
	// AppName names the app home dir, ~/.nnpu.
	AppName = "nnpu"

	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600

	SourceSynthetic = "synthetic"
	SourceCSV       = "csv"

	SurrogateSigmoid  = "sigmoid"
	SurrogateLogistic = "logistic"
)

// Config is an experiment definition.
type Config struct {
	Name           string  `yaml:"name" json:"name"`
	Estimator      string  `yaml:"estimator" json:"estimator"`
	Surrogate      string  `yaml:"surrogate" json:"surrogate"`
	Beta           float64 `yaml:"beta" json:"beta"`
	Gamma          float64 `yaml:"gamma" json:"gamma"`
	LabelFrequency float64 `yaml:"label_frequency" json:"label_frequency"`
	Seed           uint64  `yaml:"seed" json:"seed"`
	Epochs         int     `yaml:"epochs" json:"epochs"`
	TrainBatchSize int     `yaml:"train_batch_size" json:"train_batch_size"`
	EvalBatchSize  int     `yaml:"eval_batch_size" json:"eval_batch_size"`
	LearningRate   float64 `yaml:"learning_rate" json:"learning_rate"`
	WeightDecay    float64 `yaml:"weight_decay" json:"weight_decay"`
	HistoryLimit   int     `yaml:"history_limit" json:"history_limit"`
	OutputDir      string  `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`

	Data  Data  `yaml:"data" json:"data"`
	Shift Shift `yaml:"shift" json:"shift"`
}

// Data selects the training and test sets.
type Data struct {
	Source    string  `yaml:"source" json:"source"`
	TrainPath string  `yaml:"train_path,omitempty" json:"train_path,omitempty"`
	TestPath  string  `yaml:"test_path,omitempty" json:"test_path,omitempty"`
	TrainSize int     `yaml:"train_size" json:"train_size"`
	TestSize  int     `yaml:"test_size" json:"test_size"`
	Dim       int     `yaml:"dim" json:"dim"`
	Prior     float64 `yaml:"prior" json:"prior"`
	Mean      float64 `yaml:"mean" json:"mean"`
}

// Shift describes the new-data evaluation run after training.
type Shift struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Prior   float64  `yaml:"prior" json:"prior"`
	Size    int      `yaml:"size" json:"size"`
	Path    string   `yaml:"path,omitempty" json:"path,omitempty"`
	Solvers []string `yaml:"solvers" json:"solvers"`
}

// Default returns the baseline synthetic experiment.
func Default() *Config {
	return &Config{
		Name:           "default",
		Estimator:      risk.NNPUcc.String(),
		Surrogate:      SurrogateSigmoid,
		Beta:           0,
		Gamma:          1,
		LabelFrequency: 0.5,
		Seed:           42,
		Epochs:         50,
		TrainBatchSize: 512,
		EvalBatchSize:  1024,
		LearningRate:   1e-3,
		WeightDecay:    0.005,
		HistoryLimit:   100000,
		Data: Data{
			Source:    SourceSynthetic,
			TrainSize: 10000,
			TestSize:  2000,
			Dim:       10,
			Prior:     0.5,
			Mean:      1,
		},
		Shift: Shift{
			Enabled: true,
			Prior:   0.3,
			Size:    2000,
			Solvers: prior.Names(),
		},
	}
}

// Validate checks the config for values no experiment can run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if _, err := risk.ParseVariant(c.Estimator); err != nil && !risk.IsDRPU(c.Estimator) {
		return errors.Errorf("unknown estimator: %s", c.Estimator)
	}
	switch c.Surrogate {
	case SurrogateSigmoid, SurrogateLogistic:
	default:
		return errors.Errorf("unknown surrogate: %s", c.Surrogate)
	}
	if c.Beta < 0 {
		return errors.Errorf("beta must be non-negative, got %v", c.Beta)
	}
	if c.Gamma <= 0 {
		return errors.Errorf("gamma must be positive, got %v", c.Gamma)
	}
	if c.LabelFrequency <= 0 || c.LabelFrequency > 1 {
		return errors.Errorf("label frequency must be in (0, 1], got %v", c.LabelFrequency)
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.TrainBatchSize <= 0 || c.EvalBatchSize <= 0 {
		return errors.New("batch sizes must be positive")
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}

	switch c.Data.Source {
	case SourceSynthetic:
		if c.Data.TrainSize <= 0 || c.Data.TestSize <= 0 || c.Data.Dim <= 0 {
			return errors.New("synthetic data requires positive train_size, test_size and dim")
		}
		if c.Data.Prior <= 0 || c.Data.Prior >= 1 {
			return errors.Errorf("data prior must be in (0, 1), got %v", c.Data.Prior)
		}
	case SourceCSV:
		if c.Data.TrainPath == "" || c.Data.TestPath == "" {
			return errors.New("csv data requires train_path and test_path")
		}
	default:
		return errors.Errorf("unknown data source: %s", c.Data.Source)
	}

	if c.Shift.Enabled {
		if c.Shift.Path == "" && (c.Shift.Prior <= 0 || c.Shift.Prior >= 1) {
			return errors.Errorf("shift prior must be in (0, 1), got %v", c.Shift.Prior)
		}
		if c.Shift.Path == "" && c.Data.Source != SourceSynthetic {
			return errors.New("shift evaluation on csv data requires shift.path")
		}
		if len(c.Shift.Solvers) >= threshold.MaxCandidates {
			return errors.Errorf("at most %d shift solvers supported, got %d", threshold.MaxCandidates-1, len(c.Shift.Solvers))
		}
		for _, s := range c.Shift.Solvers {
			if _, err := prior.Lookup(s); err != nil {
				return errors.Wrapf(err, "invalid shift solver")
			}
		}
	}
	return nil
}

// Save writes the config into dirPath.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrapf(err, "failed to write config file: %s", configFileName)
	}
	return nil
}

// ReadOrCreate reads the config from directory or creates a default one.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		err := os.Mkdir(dirPath, dirMode)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create dir: %s", dirPath)
		}
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(dirPath, Default()); err != nil {
			return nil, errors.Wrap(err, "failed to create default config")
		}
	}

	return Read(path)
}

// Read loads a config file. Fields missing from the file keep their defaults.
func Read(path string) (*Config, error) {
	j, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening config file: %s", path)
	}
	defer j.Close()

	b, err := io.ReadAll(j)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config file %s", path)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(err, "error unmarshalling config file %s", path)
	}
	return c, nil
}

// GetOrCreateHomeDir returns the home directory for the current user.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.Wrap(err, "failed to get user home dir")
	}
	slog.Debug("home dir", "path", home)

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		err := os.Mkdir(dir, dirMode)
		if err != nil {
			return "", false, errors.Wrapf(err, "failed to create dir: %s", dir)
		}
		created = true
	}
	return dir, created, nil
}
