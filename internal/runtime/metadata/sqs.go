package metadata

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const attributeDataTypeString = "String"

// FromSQS converts SQS message attributes into Metadata. Only attributes that
// carry a string value (String and Number data types) are kept.
func FromSQS(attrs map[string]sqstypes.MessageAttributeValue) Metadata {
	if len(attrs) == 0 {
		return Metadata{}
	}

	result := make(Metadata, len(attrs))
	for k, v := range attrs {
		if v.StringValue == nil {
			continue
		}
		result[k] = *v.StringValue
	}
	return result
}

// ToSQS converts Metadata into String typed SQS message attributes.
func ToSQS(md Metadata) map[string]sqstypes.MessageAttributeValue {
	if len(md) == 0 {
		return nil
	}

	attrs := make(map[string]sqstypes.MessageAttributeValue, len(md))
	for k, v := range md {
		attrs[k] = sqstypes.MessageAttributeValue{
			DataType:    aws.String(attributeDataTypeString),
			StringValue: aws.String(v),
		}
	}
	return attrs
}

// ToSNS converts Metadata into String typed SNS message attributes.
func ToSNS(md Metadata) map[string]snstypes.MessageAttributeValue {
	if len(md) == 0 {
		return nil
	}

	attrs := make(map[string]snstypes.MessageAttributeValue, len(md))
	for k, v := range md {
		attrs[k] = snstypes.MessageAttributeValue{
			DataType:    aws.String(attributeDataTypeString),
			StringValue: aws.String(v),
		}
	}
	return attrs
}
