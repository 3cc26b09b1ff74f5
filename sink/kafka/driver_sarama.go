package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"odwatch/sink"
)

type Config struct {
	Brokers []string
	Topic   string
	Acks    int16  // 0,1,-1
	Version string // empty: sarama default

	// Producer replaces the dialled producer, for tests.
	Producer sarama.SyncProducer
}

// driver publishes each diff row as a JSON message keyed by project.
type driver struct {
	cfg Config
	p   sarama.SyncProducer
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	d.cfg = cfg
	if cfg.Producer != nil {
		d.p = cfg.Producer
		return nil
	}

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	if cfg.Version != "" {
		ver, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return err
		}
		sc.Version = ver
	}
	var err error
	d.p, err = sarama.NewSyncProducer(cfg.Brokers, sc)
	return err
}

func (d *driver) Push(_ context.Context, b sink.Batch) error {
	if b.Rows == nil || b.Rows.Len() == 0 {
		return nil
	}
	headers := []sarama.RecordHeader{
		{Key: []byte("project"), Value: []byte(b.Project)},
		{Key: []byte("run_id"), Value: []byte(b.RunID)},
	}
	msgs := make([]*sarama.ProducerMessage, 0, b.Rows.Len())
	for i := 0; i < b.Rows.Len(); i++ {
		val, err := json.Marshal(b.Rows.Record(i))
		if err != nil {
			return fmt.Errorf("kafka-sink: row %d: %w", i, err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic:   d.cfg.Topic,
			Key:     sarama.StringEncoder(b.Project),
			Value:   sarama.ByteEncoder(val),
			Headers: headers,
		})
	}
	if err := d.p.SendMessages(msgs); err != nil {
		return fmt.Errorf("kafka-sink: %w", err)
	}
	return nil
}

func (d *driver) Close() error {
	if d.p == nil {
		return nil
	}
	err := d.p.Close()
	d.p = nil
	return err
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
