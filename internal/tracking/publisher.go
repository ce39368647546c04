package tracking

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/reachify/beacon/internal/domain"
)

// Publisher pushes engagement events onto SQS so a beacon-only edge process
// can hand them to the main service. Publishing is fire-and-forget: the
// request that produced the event must not wait on, or fail with, the queue.
type Publisher struct {
	client   *sqs.Client
	queueURL string
}

// NewPublisher creates a publisher for the given queue.
func NewPublisher(client *sqs.Client, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// Publish enqueues an engagement event asynchronously. Errors are logged
// and dropped. The event method rides along as a message attribute so queue
// tooling can filter pixel from click traffic without parsing bodies.
func (p *Publisher) Publish(ctx context.Context, evt domain.EngagementEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("ERROR marshal engagement event: %v", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
			MessageAttributes: map[string]types.MessageAttributeValue{
				"method": {
					DataType:    aws.String("String"),
					StringValue: aws.String(string(evt.Method)),
				},
			},
		})
		if err != nil {
			log.Printf("ERROR publishing to SQS: %v", err)
		}
	}()
}
