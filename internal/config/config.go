package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
	"github.com/tarungka/wirecore/sinks"
	"github.com/tarungka/wirecore/sources"
)

// EnvPrefix prefixes environment variables read into the config, e.g.
// WIRECORE_LOG_LEVEL sets log-level.
const EnvPrefix = "WIRECORE_"

// ErrHelp is returned by Load when --help was requested.
var ErrHelp = flag.ErrHelp

// Config is the configuration of a wirecore process.
type Config struct {
	Configs  []string `koanf:"config"`
	Port     string   `koanf:"port"`
	Version  bool     `koanf:"version"`
	LogLevel string   `koanf:"log-level"`
	Dev      bool     `koanf:"dev"`

	Actors             int           `koanf:"actors"`
	Records            int           `koanf:"records"`
	RecordInterval     time.Duration `koanf:"record-interval"`
	CheckpointInterval time.Duration `koanf:"checkpoint-interval"`
	MaxEpochs          int           `koanf:"max-epochs"`

	StateBackend string `koanf:"state-backend"`
	StateDir     string `koanf:"state-dir"`

	Source           string `koanf:"source"`
	KafkaSourceTopic string `koanf:"kafka-source-topic"`
	KafkaGroup       string `koanf:"kafka-group"`

	Sink         string `koanf:"sink"`
	SinkPath     string `koanf:"sink-path"`
	KafkaBrokers string `koanf:"kafka-brokers"`
	KafkaTopic   string `koanf:"kafka-topic"`
}

func newFlagSet() *flag.FlagSet {
	f := flag.NewFlagSet("wirecore", flag.ContinueOnError)

	f.StringSlice("config", nil, "path to one or more config files (will be merged in order)")
	f.String("port", "8080", "port to host the admin server on")
	f.Bool("version", false, "show current version of the build")
	f.String("log-level", "info", "log level: trace, debug, info, warn, error")
	f.Bool("dev", false, "human readable console logs")

	f.Int("actors", 2, "number of downstream actors fed by the source actor")
	f.Int("records", 0, "records generated by the source, 0 for unbounded")
	f.Duration("record-interval", 10*time.Millisecond, "pause between generated records")
	f.Duration("checkpoint-interval", time.Second, "interval between injected barriers")
	f.Int("max-epochs", 0, "send a stop barrier after this many epochs, 0 to run until interrupted")

	f.String("state-backend", "memory", "operator state backend: memory or badger")
	f.String("state-dir", "data/state", "directory of the badger state backend")

	f.String("source", "numbers", "source of the source actor: numbers or kafka")
	f.String("kafka-source-topic", "", "topic consumed by the kafka source")
	f.String("kafka-group", "wirecore", "consumer group of the kafka source")

	f.String("sink", "print", "sink of the downstream actors: print, file or kafka")
	f.String("sink-path", "data/out.jsonl", "output file of the file sink")
	f.String("kafka-brokers", "", "comma separated seed brokers of the kafka sink")
	f.String("kafka-topic", "", "topic of the kafka sink")
	return f
}

// Load reads the config from, in increasing precedence, the files named by
// --config, WIRECORE_* environment variables and the command line flags
// that were set explicitly.
func Load(args []string) (*Config, error) {
	ko := koanf.New(".")
	f := newFlagSet()
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	configs, _ := f.GetStringSlice("config")
	for _, path := range configs {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := ko.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
	}

	if err := ko.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	if err := ko.Load(posflag.Provider(f, ".", ko), nil); err != nil {
		return nil, fmt.Errorf("error reading flag config: %w", err)
	}

	var c Config
	if err := ko.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &c, nil
}

// Usage returns the flag help text.
func Usage() string {
	return newFlagSet().FlagUsages()
}

func parserFor(path string) (koanf.Parser, error) {
	fileExtension := path[strings.LastIndex(path, ".")+1:]
	switch fileExtension {
	case "yaml", "yml":
		return yaml.Parser(), nil
	case "json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported file extension %q", fileExtension)
	}
}

// Validate checks the config for values the process cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Actors < 1 {
		errs = append(errs, fmt.Errorf("actors must be at least 1, got %d", c.Actors))
	}
	if c.CheckpointInterval <= 0 {
		errs = append(errs, fmt.Errorf("checkpoint-interval must be positive, got %s", c.CheckpointInterval))
	}
	if c.MaxEpochs < 0 {
		errs = append(errs, fmt.Errorf("max-epochs must not be negative, got %d", c.MaxEpochs))
	}
	switch c.StateBackend {
	case "memory":
	case "badger":
		if c.StateDir == "" {
			errs = append(errs, errors.New("state-dir is required by the badger state backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state-backend %q", c.StateBackend))
	}
	switch c.Source {
	case "numbers":
		if c.Records < 0 {
			errs = append(errs, fmt.Errorf("records must not be negative, got %d", c.Records))
		}
	case "kafka":
		if c.KafkaBrokers == "" || c.KafkaSourceTopic == "" || c.KafkaGroup == "" {
			errs = append(errs, errors.New("kafka-brokers, kafka-source-topic and kafka-group are required by the kafka source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	switch c.Sink {
	case "print":
	case "file":
		if c.SinkPath == "" {
			errs = append(errs, errors.New("sink-path is required by the file sink"))
		}
	case "kafka":
		if c.KafkaBrokers == "" || c.KafkaTopic == "" {
			errs = append(errs, errors.New("kafka-brokers and kafka-topic are required by the kafka sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sink %q", c.Sink))
	}
	return errors.Join(errs...)
}

// SinkConfig returns the config of the sink of downstream actor id. File
// sinks get one file per actor.
func (c *Config) SinkConfig(id uint32) sinks.SinkConfig {
	sc := sinks.SinkConfig{
		Name:           fmt.Sprintf("actor-%d", id),
		ConnectionType: c.Sink,
		Config:         map[string]string{},
	}
	switch c.Sink {
	case "file":
		ext := ""
		base := c.SinkPath
		if i := strings.LastIndex(base, "."); i > strings.LastIndex(base, "/") {
			base, ext = c.SinkPath[:i], c.SinkPath[i:]
		}
		sc.Config["file_path"] = fmt.Sprintf("%s-%d%s", base, id, ext)
	case "kafka":
		sc.Config["bootstrap_servers"] = c.KafkaBrokers
		sc.Config["topic"] = c.KafkaTopic
	}
	return sc
}

// SourceConfig returns the config of the source of the source actor.
func (c *Config) SourceConfig() sources.SourceConfig {
	sc := sources.SourceConfig{
		Name:           "source",
		ConnectionType: c.Source,
		Config:         map[string]string{},
	}
	switch c.Source {
	case "numbers":
		sc.Config["count"] = strconv.Itoa(c.Records)
		sc.Config["interval"] = c.RecordInterval.String()
	case "kafka":
		sc.Config["bootstrap_servers"] = c.KafkaBrokers
		sc.Config["topic"] = c.KafkaSourceTopic
		sc.Config["group"] = c.KafkaGroup
	}
	return sc
}
