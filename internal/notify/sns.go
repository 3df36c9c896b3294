package notify

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"mess/internal/apperr"
)

// SNSTransport publishes notifications to an AWS SNS topic that the
// mobile apps subscribe to.
type SNSTransport struct {
	client   *sns.Client
	topicARN string
}

// NewSNSTransport builds a transport from the default AWS config chain.
func NewSNSTransport(ctx context.Context, region, topicARN string) (*SNSTransport, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, apperr.Transient(err, "aws config load failed")
	}
	return &SNSTransport{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

// RequestPermission verifies the topic is configured and reachable.
func (t *SNSTransport) RequestPermission(ctx context.Context) (bool, error) {
	if t.topicARN == "" {
		return false, nil
	}
	_, err := t.client.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{
		TopicArn: aws.String(t.topicARN),
	})
	if err != nil {
		return false, apperr.Transient(err, "sns topic check failed")
	}
	return true, nil
}

// Dispatch publishes one notification.
func (t *SNSTransport) Dispatch(ctx context.Context, title, body string, meta map[string]string) (string, error) {
	attrs := map[string]types.MessageAttributeValue{
		"title": {DataType: aws.String("String"), StringValue: aws.String(title)},
	}
	for k, v := range meta {
		attrs[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	out, err := t.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(t.topicARN),
		Subject:           aws.String(title),
		Message:           aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", apperr.Transient(err, "sns publish failed")
	}
	return aws.ToString(out.MessageId), nil
}

// CancelAll is best-effort: published SNS messages cannot be recalled,
// so this only logs. The scheduler still stops ticking on disable.
func (t *SNSTransport) CancelAll(context.Context) error {
	log.Printf("sns transport: cancel requested; published messages cannot be recalled")
	return nil
}
