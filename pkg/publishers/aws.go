package publishers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// sendFunc delivers one encoded event and returns the broker message id.
type sendFunc func(ctx context.Context, body string, attrs map[string]string) (string, error)

// awsPublisher delivers events to SQS or SNS; the two differ only in send.
type awsPublisher struct {
	id     string
	typ    string
	target string
	send   sendFunc
	log    Logger
}

func newSQSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SQS == nil {
		return nil, fmt.Errorf("publisher %q missing sqs configuration", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SQS.AWSConfig)
	if err != nil {
		return nil, err
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.SQS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SQS.Endpoint)
		}
	})
	return sqsSink(cfg.ID, cfg.SQS.QueueURL, client, log), nil
}

func sqsSink(id, queueURL string, client sqsAPI, log Logger) *awsPublisher {
	send := func(ctx context.Context, body string, attrs map[string]string) (string, error) {
		out, err := client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:          aws.String(queueURL),
			MessageBody:       aws.String(body),
			MessageAttributes: messageAttributes(attrs, sqsAttribute),
		})
		if err != nil {
			return "", fmt.Errorf("send message to sqs: %w", err)
		}
		return aws.ToString(out.MessageId), nil
	}
	return &awsPublisher{id: id, typ: TypeSQS, target: queueURL, send: send, log: ensureLogger(log)}
}

func newSNSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("publisher %q missing sns configuration", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SNS.AWSConfig)
	if err != nil {
		return nil, err
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.SNS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SNS.Endpoint)
		}
	})
	return snsSink(cfg.ID, cfg.SNS.TopicARN, client, log), nil
}

func snsSink(id, topicARN string, client snsAPI, log Logger) *awsPublisher {
	send := func(ctx context.Context, body string, attrs map[string]string) (string, error) {
		out, err := client.Publish(ctx, &sns.PublishInput{
			TopicArn:          aws.String(topicARN),
			Message:           aws.String(body),
			MessageAttributes: messageAttributes(attrs, snsAttribute),
		})
		if err != nil {
			return "", fmt.Errorf("publish to sns: %w", err)
		}
		return aws.ToString(out.MessageId), nil
	}
	return &awsPublisher{id: id, typ: TypeSNS, target: topicARN, send: send, log: ensureLogger(log)}
}

func (a *awsPublisher) ID() string   { return a.id }
func (a *awsPublisher) Type() string { return a.typ }

func (a *awsPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := evt.encode()
	if err != nil {
		return err
	}

	msgID, err := a.send(ctx, string(body), evt.attributes())
	if err != nil {
		a.log.ErrorObj(a.typ+" publisher send failed", "publisher_aws_error", map[string]any{
			"publisher_id": a.id,
			"target":       a.target,
			"event_type":   evt.Type,
			"error":        err.Error(),
		})
		return err
	}
	a.log.DebugObj(a.typ+" publisher delivered event", "publisher_aws_delivery", map[string]any{
		"publisher_id": a.id,
		"event_id":     evt.ID,
		"message_id":   msgID,
	})
	return nil
}

// loadAWSConfig resolves the AWS configuration for a sink, preferring static
// credentials when both key parts are present.
func loadAWSConfig(ctx context.Context, c AWSConfig) (aws.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(c.Region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken),
		))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func sqsAttribute(v string) sqstypes.MessageAttributeValue {
	return sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

func snsAttribute(v string) snstypes.MessageAttributeValue {
	return snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

func messageAttributes[T any](attrs map[string]string, build func(value string) T) map[string]T {
	out := make(map[string]T, len(attrs))
	for k, v := range attrs {
		out[k] = build(v)
	}
	return out
}
