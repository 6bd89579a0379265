package transport

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	errspkg "github.com/drblury/qbroker/internal/runtime/errors"
	"github.com/drblury/qbroker/internal/runtime/metadata"
)

// allAttributes asks SQS to return every message attribute on receive.
const allAttributes = "All"

// snsTopicPrefix identifies destinations that are SNS topics rather than
// SQS queue urls.
const snsTopicPrefix = "arn:aws:sns:"

// SQSAPI is the subset of the SQS client used by SQSClient.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *amazonsqs.ReceiveMessageInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.ReceiveMessageOutput, error)
	SendMessage(ctx context.Context, in *amazonsqs.SendMessageInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.SendMessageOutput, error)
	DeleteMessage(ctx context.Context, in *amazonsqs.DeleteMessageInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.DeleteMessageOutput, error)
}

// SNSAPI is the subset of the SNS client used to publish replies to topics.
type SNSAPI interface {
	Publish(ctx context.Context, in *amazonsns.PublishInput, optFns ...func(*amazonsns.Options)) (*amazonsns.PublishOutput, error)
}

// SQSClient implements Client on top of the AWS SDK.
type SQSClient struct {
	sqs SQSAPI
	sns SNSAPI
}

// NewSQSClient builds a client. snsAPI may be nil, in which case sending to
// an SNS topic arn fails.
func NewSQSClient(sqsAPI SQSAPI, snsAPI SNSAPI) (*SQSClient, error) {
	if sqsAPI == nil {
		return nil, errspkg.ErrClientRequired
	}
	return &SQSClient{sqs: sqsAPI, sns: snsAPI}, nil
}

func (c *SQSClient) Receive(ctx context.Context, req ReceiveRequest) ([]Message, error) {
	in := &amazonsqs.ReceiveMessageInput{
		QueueUrl:              aws.String(req.QueueURL),
		MaxNumberOfMessages:   int32(req.MaxMessages),
		WaitTimeSeconds:       int32(req.WaitTimeSeconds),
		MessageAttributeNames: []string{allAttributes},
	}
	if req.VisibilityTimeout > 0 {
		in.VisibilityTimeout = int32(req.VisibilityTimeout)
	}

	out, err := c.sqs.ReceiveMessage(ctx, in)
	if err != nil {
		return nil, transportError("receive", req.QueueURL, err)
	}
	if status := responseStatus(out.ResultMetadata); !successStatus(status) {
		return nil, &errspkg.TransportError{Op: "receive", Queue: req.QueueURL, StatusCode: status}
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, fromSQSMessage(m))
	}
	return msgs, nil
}

func (c *SQSClient) Send(ctx context.Context, destination, body string, attrs metadata.Metadata) (string, error) {
	if destination == "" {
		return "", errspkg.ErrDestinationRequired
	}
	if strings.HasPrefix(destination, snsTopicPrefix) {
		return c.publish(ctx, destination, body, attrs)
	}

	out, err := c.sqs.SendMessage(ctx, &amazonsqs.SendMessageInput{
		QueueUrl:          aws.String(destination),
		MessageBody:       aws.String(body),
		MessageAttributes: metadata.ToSQS(attrs),
	})
	if err != nil {
		return "", transportError("send", destination, err)
	}
	if status := responseStatus(out.ResultMetadata); !successStatus(status) {
		return "", &errspkg.TransportError{Op: "send", Queue: destination, StatusCode: status}
	}
	return aws.ToString(out.MessageId), nil
}

func (c *SQSClient) publish(ctx context.Context, topicARN, body string, attrs metadata.Metadata) (string, error) {
	if c.sns == nil {
		return "", &errspkg.TransportError{Op: "publish", Queue: topicARN, Err: errors.New("no SNS client configured")}
	}
	out, err := c.sns.Publish(ctx, &amazonsns.PublishInput{
		TopicArn:          aws.String(topicARN),
		Message:           aws.String(body),
		MessageAttributes: metadata.ToSNS(attrs),
	})
	if err != nil {
		return "", transportError("publish", topicARN, err)
	}
	if status := responseStatus(out.ResultMetadata); !successStatus(status) {
		return "", &errspkg.TransportError{Op: "publish", Queue: topicARN, StatusCode: status}
	}
	return aws.ToString(out.MessageId), nil
}

func (c *SQSClient) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	out, err := c.sqs.DeleteMessage(ctx, &amazonsqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return transportError("delete", queueURL, err)
	}
	if status := responseStatus(out.ResultMetadata); !successStatus(status) {
		return &errspkg.TransportError{Op: "delete", Queue: queueURL, StatusCode: status}
	}
	return nil
}

func fromSQSMessage(m sqstypes.Message) Message {
	return Message{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Body:          aws.ToString(m.Body),
		Attributes:    metadata.FromSQS(m.MessageAttributes),
	}
}

// responseStatus returns the HTTP status recorded in the result metadata, or
// 0 when the call did not go over HTTP (for example in tests).
func responseStatus(md middleware.Metadata) int {
	raw, ok := awsmiddleware.GetRawResponse(md).(*smithyhttp.Response)
	if !ok || raw == nil || raw.Response == nil {
		return 0
	}
	return raw.StatusCode
}

func successStatus(status int) bool {
	return status == 0 || (status >= 200 && status < 300)
}

func transportError(op, queue string, err error) error {
	te := &errspkg.TransportError{Op: op, Queue: queue, Err: err}
	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		te.StatusCode = withStatus.HTTPStatusCode()
	}
	return te
}
