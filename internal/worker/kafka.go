package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// CompletionPublisher announces one job's terminal outcome so external
// dashboards and the outcome harness can consume completions without
// polling the status operation (spec.md §5's optional event stream).
type CompletionPublisher interface {
	PublishDone(ctx context.Context, artifactUID, revisionID, jobID string)
	PublishFailed(ctx context.Context, artifactUID, revisionID, jobID, errCode, errMsg string)
	Close() error
}

type completionEvent struct {
	Event       string `json:"event"`
	ArtifactUID string `json:"artifact_uid"`
	RevisionID  string `json:"revision_id"`
	JobID       string `json:"job_id"`
	ErrorCode   string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// KafkaPublisher writes completionEvent records to one topic. Wired in only
// when KAFKA_BROKERS is configured; off by default.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 5 * time.Second,
		Async:        true,
	}}
}

func (k *KafkaPublisher) PublishDone(ctx context.Context, artifactUID, revisionID, jobID string) {
	k.publish(ctx, completionEvent{Event: "job.completed", ArtifactUID: artifactUID, RevisionID: revisionID, JobID: jobID})
}

func (k *KafkaPublisher) PublishFailed(ctx context.Context, artifactUID, revisionID, jobID, errCode, errMsg string) {
	k.publish(ctx, completionEvent{Event: "job.failed", ArtifactUID: artifactUID, RevisionID: revisionID, JobID: jobID, ErrorCode: errCode, ErrorMessage: errMsg})
}

func (k *KafkaPublisher) publish(ctx context.Context, ev completionEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	// Best-effort: a lost completion event never blocks job processing,
	// since status() remains the source of truth.
	_ = k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.JobID), Value: payload})
}

func (k *KafkaPublisher) Close() error { return k.writer.Close() }
