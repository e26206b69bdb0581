package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tarungka/wirecore/stream"
	"github.com/twmb/franz-go/pkg/kgo"
)

const epochHeader = "wirecore-epoch"

// KafkaSink produces records to a kafka topic. Produces are asynchronous;
// a barrier waits for every outstanding produce so an epoch is acknowledged
// by the brokers before the barrier moves on.
type KafkaSink struct {
	name string
	// Kafka Producer details
	bootstrapServers []string
	topic            string

	kafkaProducerClient *kgo.Client

	// epoch of the last barrier; records produced after it belong to the next epoch
	epoch stream.Epoch

	mu          sync.Mutex
	produceErr  error
	outstanding sync.WaitGroup
}

func (k *KafkaSink) Init(args SinkConfig) error {
	k.name = args.Name
	k.epoch = stream.NoEpoch

	if args.Config["bootstrap_servers"] == "" || args.Config["topic"] == "" {
		log.Error().Msg("Error missing config values")
		return fmt.Errorf("error missing config values")
	} else {
		log.Debug().Str("bootstrap_servers", args.Config["bootstrap_servers"]).Str("topic", args.Config["topic"]).Send()
	}

	k.bootstrapServers = strings.Split(args.Config["bootstrap_servers"], ",")
	k.topic = args.Config["topic"]

	return nil
}

func (k *KafkaSink) Connect() error {
	log.Trace().Msg("Connecting to kafka cluster as a sink...")
	opts := []kgo.Opt{
		kgo.SeedBrokers(k.bootstrapServers...),
		kgo.DefaultProduceTopic(k.topic),
		kgo.AllowAutoTopicCreation(),
	}
	kafkaProducerClient, err := kgo.NewClient(opts...)
	if err != nil {
		log.Err(err).Msg("Error when creating a kafka producer!")
		return err
	}
	k.kafkaProducerClient = kafkaProducerClient

	return nil
}

func (k *KafkaSink) Write(ctx context.Context, rec stream.Record) error {
	if err := k.err(); err != nil {
		return err
	}
	value, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("encode record value: %w", err)
	}
	record := &kgo.Record{
		Key:       rec.Key,
		Value:     value,
		Timestamp: rec.EventTime,
		Headers: []kgo.RecordHeader{
			{Key: epochHeader, Value: []byte(strconv.FormatInt(int64(k.epoch+1), 10))},
		},
	}

	k.outstanding.Add(1)
	k.kafkaProducerClient.Produce(ctx, record, func(record *kgo.Record, err error) {
		defer k.outstanding.Done()
		if err != nil {
			log.Err(err).Str("topic", record.Topic).Msg("record had a produce error")
			k.setErr(err)
		}
	})
	return nil
}

// Barrier flushes the producer and reports any produce failure of the epoch.
func (k *KafkaSink) Barrier(ctx context.Context, b *stream.Barrier) error {
	if err := k.kafkaProducerClient.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	k.outstanding.Wait()
	if err := k.err(); err != nil {
		return fmt.Errorf("produce epoch %s: %w", b.Epoch, err)
	}
	k.epoch = b.Epoch
	log.Debug().Str("topic", k.topic).Int64("epoch", int64(b.Epoch)).Msg("kafka sink flushed")
	return nil
}

func (k *KafkaSink) Close() error {
	log.Info().Msg("Disconnecting kafka sink")
	if k.kafkaProducerClient != nil {
		k.kafkaProducerClient.Close()
	}
	return nil
}

func (k *KafkaSink) Name() string { return k.name }

func (k *KafkaSink) err() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.produceErr
}

func (k *KafkaSink) setErr(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.produceErr == nil {
		k.produceErr = err
	}
}
