package marketsync

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/warepulse/stockwatch_backend/config"
)

// ETLRunPayload is the pubsub message enqueuing one ETL run. Manual triggers
// publish it; the push subscription delivers it back to the service.
type ETLRunPayload struct {
	RunId         string       `json:"run_id"`
	Params        ReportParams `json:"params"`
	TriggeredBy   string       `json:"triggered_by"`
	CorrelationId string       `json:"correlation_id"`
}

// PubSubPushEnvelope is the Google push-subscription wrapper. Data unmarshals
// with base64 decoding handled by encoding/json.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func etlTopicName() string {
	topic := strings.TrimSpace(os.Getenv("ETL_RUN_TOPIC"))
	if topic == "" {
		topic = "stock-etl-run"
	}
	return topic
}

func PublishETLRun(ctx context.Context, payload ETLRunPayload) error {
	if payload.RunId == "" {
		return errors.New("run id is required")
	}

	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}

	topicName := etlTopicName()
	topic := client.Topic(topicName)
	if config.BoolFromEnv("ETL_RUN_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// DecodeETLRunPush unwraps a push envelope body into the run payload.
func DecodeETLRunPush(body []byte) (ETLRunPayload, error) {
	var envelope PubSubPushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ETLRunPayload{}, err
	}
	var payload ETLRunPayload
	if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
		return ETLRunPayload{}, err
	}
	if payload.RunId == "" {
		return ETLRunPayload{}, errors.New("invalid payload")
	}
	return payload, nil
}
