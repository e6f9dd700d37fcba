package service

import (
	"context"
	"encoding/json"
	"fmt"

	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const IngestTopic = "ingest.requested"

// IngestJob asks the consumer to index the chapters under Dir.
type IngestJob struct {
	Dir      string `json:"dir"`
	Recreate bool   `json:"recreate"`
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	ingestion  IIngestionService
	defaultDir string
	logger     logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	ingestion IIngestionService,
	defaultDir string,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		ingestion:  ingestion,
		defaultDir: defaultDir,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	// Jobs run one at a time, in arrival order.
	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var job IngestJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		cs.logger.Error("INGEST", "Failed to unmarshal ingest job", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}
	if job.Dir == "" {
		job.Dir = cs.defaultDir
	}

	cs.logger.Info("INGEST", "Processing ingest job", map[string]interface{}{
		"message_id": msg.UUID,
		"dir":        job.Dir,
		"recreate":   job.Recreate,
	})

	report, err := cs.ingestion.Run(ctx, job.Dir, IngestOptions{Recreate: job.Recreate})
	if err != nil {
		// Redelivery would rerun the whole book, so failed jobs are dropped.
		cs.logger.Error("INGEST", "Ingest job failed", map[string]interface{}{"message_id": msg.UUID, "error": err.Error()})
		msg.Ack()
		return
	}

	cs.logger.Info("INGEST", "Ingest job done", map[string]interface{}{
		"message_id": msg.UUID,
		"chunks":     report.Chunks,
		"chapters":   report.Chapters,
	})
	msg.Ack()
}

// PublishIngestJob queues a job on the in-process bus.
func PublishIngestJob(publisher message.Publisher, topic string, job IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return publisher.Publish(topic, message.NewMessage(watermill.NewUUID(), payload))
}

// IngestRequestedHandler forwards INGEST_REQUESTED domain events onto the
// in-process bus. It matches the NATS subscriber handler signature.
func IngestRequestedHandler(publisher message.Publisher, topic string) func(context.Context, events.Event) error {
	return func(ctx context.Context, event events.Event) error {
		if event.EventType() != events.TypeIngestRequested {
			return fmt.Errorf("unexpected event type %q", event.EventType())
		}

		job := IngestJob{}
		payload := event.Payload()
		if dir, ok := payload["dir"].(string); ok {
			job.Dir = dir
		}
		if recreate, ok := payload["recreate"].(bool); ok {
			job.Recreate = recreate
		}
		return PublishIngestJob(publisher, topic, job)
	}
}
