package sinks

import (
	"fmt"

	"github.com/tarungka/wirecore/stream"
)

type SinkConfig struct {
	Name           string            `koanf:"name" json:"name"`
	ConnectionType string            `koanf:"type" json:"type"`
	Config         map[string]string `koanf:"config" json:"config"`
}

// New builds the sink described by args.
func New(args SinkConfig) (stream.Sink, error) {
	switch args.ConnectionType {
	case "", "print":
		return stream.NewPrintSink(), nil
	case "file":
		f := &FileSink{}
		if err := f.Init(args); err != nil {
			return nil, err
		}
		if err := f.Connect(); err != nil {
			return nil, err
		}
		return f, nil
	case "kafka":
		k := &KafkaSink{}
		if err := k.Init(args); err != nil {
			return nil, err
		}
		if err := k.Connect(); err != nil {
			return nil, err
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", args.ConnectionType)
	}
}
