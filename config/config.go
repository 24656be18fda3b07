package config

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

type DataSourceConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

type ExecutionConfig struct {
	// Partitions is the partition count plans get repartitioned to.
	Partitions    int `yaml:"partitions"`
	BatchSize     int `yaml:"batchSize"`
	QueueCapacity int `yaml:"queueCapacity"`
	MaxBuildRows  int `yaml:"maxBuildRows"`
	MaxGroups     int `yaml:"maxGroups"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// File makes the logs go to the log file in the cache directory instead of stderr.
	File bool `yaml:"file"`
}

type Config struct {
	Execution   ExecutionConfig    `yaml:"execution"`
	Logging     LoggingConfig      `yaml:"logging"`
	DataSources []DataSourceConfig `yaml:"dataSources"`
}

func Default() *Config {
	options := execution.DefaultOptions()
	return &Config{
		Execution: ExecutionConfig{
			Partitions:    runtime.GOMAXPROCS(0),
			BatchSize:     options.BatchSize,
			QueueCapacity: options.QueueCapacity,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func (config *Config) GetDataSourceConfig(name string) (*DataSourceConfig, error) {
	for i := range config.DataSources {
		if config.DataSources[i].Name == name {
			return &config.DataSources[i], nil
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "data source %s", name)
}

// ExecutionOptions returns the execution tunables.
func (config *Config) ExecutionOptions() execution.Options {
	return execution.Options{
		BatchSize:     config.Execution.BatchSize,
		QueueCapacity: config.Execution.QueueCapacity,
		MaxBuildRows:  config.Execution.MaxBuildRows,
		MaxGroups:     config.Execution.MaxGroups,
	}
}

func (config *Config) Validate() error {
	if config.Execution.Partitions < 1 {
		return errors.Errorf("partitions must be positive, got %d", config.Execution.Partitions)
	}
	if config.Execution.BatchSize < 1 {
		return errors.Errorf("batchSize must be positive, got %d", config.Execution.BatchSize)
	}
	if config.Execution.QueueCapacity < 1 {
		return errors.Errorf("queueCapacity must be positive, got %d", config.Execution.QueueCapacity)
	}
	if config.Execution.MaxBuildRows < 0 || config.Execution.MaxGroups < 0 {
		return errors.New("maxBuildRows and maxGroups can't be negative")
	}
	names := make(map[string]bool)
	for _, ds := range config.DataSources {
		if ds.Name == "" {
			return errors.New("data source without a name")
		}
		if names[ds.Name] {
			return errors.Errorf("duplicate data source %s", ds.Name)
		}
		names[ds.Name] = true
	}
	return nil
}

// Read reads the configuration file, filling in defaults for missing fields.
// Errors are configuration errors.
func Read(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, execution.NewConfigurationError(errors.Wrap(err, "couldn't open file"))
	}
	defer f.Close()

	config := Default()
	if err := yaml.NewDecoder(f).Decode(config); err != nil {
		return nil, execution.NewConfigurationError(errors.Wrap(err, "couldn't decode yaml configuration"))
	}
	if err := config.Validate(); err != nil {
		return nil, execution.NewConfigurationError(errors.Wrap(err, "invalid configuration"))
	}

	return config, nil
}
