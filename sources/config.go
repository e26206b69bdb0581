package sources

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tarungka/wirecore/stream"
)

type SourceConfig struct {
	Name           string            `koanf:"name" json:"name"`
	ConnectionType string            `koanf:"type" json:"type"`
	Config         map[string]string `koanf:"config" json:"config"`
}

// New builds the source described by args.
func New(args SourceConfig) (stream.Source, error) {
	switch args.ConnectionType {
	case "", "numbers":
		return newNumberSource(args)
	case "kafka":
		k := &KafkaSource{}
		if err := k.Init(args); err != nil {
			return nil, err
		}
		if err := k.Connect(); err != nil {
			return nil, err
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", args.ConnectionType)
	}
}

func newNumberSource(args SourceConfig) (*stream.NumberSource, error) {
	count := 0
	if v := args.Config["count"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid count %q: %w", v, err)
		}
		count = n
	}
	s := stream.NewNumberSource(count)
	if v := args.Config["interval"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", v, err)
		}
		s.WithInterval(d)
	}
	return s, nil
}
