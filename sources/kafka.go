package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tarungka/wirecore/stream"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSource consumes a topic as part of a consumer group. Offsets are
// marked once a record has been handed to the pipeline and committed by the
// client in the background.
type KafkaSource struct {
	name string
	// Kafka Consumer details
	bootstrapServers []string
	consumerGroup    string
	topic            string

	kafkaConsumerClient *kgo.Client

	cancel context.CancelFunc
	done   chan struct{}
}

func (k *KafkaSource) Init(args SourceConfig) error {
	k.name = args.Name

	if args.Config["bootstrap_servers"] == "" || args.Config["group"] == "" || args.Config["topic"] == "" {
		log.Error().Msg("Error missing config values")
		return fmt.Errorf("error missing config values")
	} else {
		log.Debug().Str("bootstrap_servers", args.Config["bootstrap_servers"]).Str("topic", args.Config["topic"]).Str("group", args.Config["group"]).Send()
	}

	k.bootstrapServers = strings.Split(args.Config["bootstrap_servers"], ",")
	k.consumerGroup = args.Config["group"]
	k.topic = args.Config["topic"]

	return nil
}

func (k *KafkaSource) Connect() error {
	log.Trace().Msg("Connecting to kafka cluster as a source...")
	opts := []kgo.Opt{
		kgo.SeedBrokers(k.bootstrapServers...),
		kgo.ConsumerGroup(k.consumerGroup),
		kgo.ConsumeTopics(k.topic),
		kgo.AllowAutoTopicCreation(),
		kgo.AutoCommitMarks(),
	}
	kafkaConsumerClient, err := kgo.NewClient(opts...)
	if err != nil {
		log.Err(err).Msg("Error when creating a kafka consumer!")
		return err
	}
	k.kafkaConsumerClient = kafkaConsumerClient

	return nil
}

// Open starts polling the topic. The channel is closed when ctx is done or
// the source is closed.
func (k *KafkaSource) Open(ctx context.Context) (<-chan stream.Message, error) {
	if k.kafkaConsumerClient == nil {
		return nil, errors.New("kafka source is not connected")
	}
	ctx, k.cancel = context.WithCancel(ctx)
	k.done = make(chan struct{})
	out := make(chan stream.Message)

	go func() {
		defer close(k.done)
		defer close(out)

		var seen int
		for {
			fetches := k.kafkaConsumerClient.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				log.Trace().Int("records", seen).Msg("Done reading from the kafka source")
				return
			}
			// non-retriable errors only; the client retries everything else
			fetches.EachError(func(t string, p int32, err error) {
				log.Err(err).Str("topic", t).Int32("partition", p).Msg("fetch error")
			})

			iter := fetches.RecordIter()
			for !iter.Done() {
				record := iter.Next()
				rec := stream.Record{
					Key:       record.Key,
					Value:     decodeValue(record.Value),
					EventTime: record.Timestamp,
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
				k.kafkaConsumerClient.MarkCommitRecords(record)
				seen++
			}
		}
	}()

	return out, nil
}

// decodeValue keeps JSON values structured and everything else as a string.
func decodeValue(b []byte) any {
	var v any
	if json.Unmarshal(b, &v) == nil {
		return v
	}
	return string(b)
}

func (k *KafkaSource) Name() string {
	return k.name
}

// Close stops polling and leaves the consumer group.
func (k *KafkaSource) Close() error {
	log.Trace().Msg("Disconnecting kafka source")
	if k.cancel != nil {
		k.cancel()
		<-k.done
	}
	if k.kafkaConsumerClient != nil {
		k.kafkaConsumerClient.Close()
		k.kafkaConsumerClient = nil
	}
	return nil
}
