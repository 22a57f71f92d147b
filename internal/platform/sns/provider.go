package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
)

// Provider is the mobile push service as the registry protocol sees it.
// Implementations map their errors to ErrNotFound, *InvalidParameterError
// and ErrCredentials.
type Provider interface {
	ListPlatformApplications(ctx context.Context) error
	GetPlatformApplicationAttributes(ctx context.Context, appARN string) (map[string]string, error)
	CreatePlatformEndpoint(ctx context.Context, appARN, token, userData string) (string, error)
	GetEndpointAttributes(ctx context.Context, endpointARN string) (map[string]string, error)
	SetEndpointAttributes(ctx context.Context, endpointARN string, attrs map[string]string) error
	Publish(ctx context.Context, targetARN, message string) (string, error)
}

// API is the subset of *sns.Client the AWS provider needs.
type API interface {
	ListPlatformApplications(ctx context.Context, in *sns.ListPlatformApplicationsInput, optFns ...func(*sns.Options)) (*sns.ListPlatformApplicationsOutput, error)
	GetPlatformApplicationAttributes(ctx context.Context, in *sns.GetPlatformApplicationAttributesInput, optFns ...func(*sns.Options)) (*sns.GetPlatformApplicationAttributesOutput, error)
	CreatePlatformEndpoint(ctx context.Context, in *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	GetEndpointAttributes(ctx context.Context, in *sns.GetEndpointAttributesInput, optFns ...func(*sns.Options)) (*sns.GetEndpointAttributesOutput, error)
	SetEndpointAttributes(ctx context.Context, in *sns.SetEndpointAttributesInput, optFns ...func(*sns.Options)) (*sns.SetEndpointAttributesOutput, error)
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// AWSProvider implements Provider on the AWS SDK.
type AWSProvider struct {
	api API
}

func NewAWSProvider(api API) *AWSProvider {
	return &AWSProvider{api: api}
}

func (p *AWSProvider) ListPlatformApplications(ctx context.Context) error {
	_, err := p.api.ListPlatformApplications(ctx, &sns.ListPlatformApplicationsInput{})
	return mapError(err)
}

func (p *AWSProvider) GetPlatformApplicationAttributes(ctx context.Context, appARN string) (map[string]string, error) {
	out, err := p.api.GetPlatformApplicationAttributes(ctx, &sns.GetPlatformApplicationAttributesInput{
		PlatformApplicationArn: aws.String(appARN),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out.Attributes, nil
}

func (p *AWSProvider) CreatePlatformEndpoint(ctx context.Context, appARN, token, userData string) (string, error) {
	in := &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(appARN),
		Token:                  aws.String(token),
	}
	if userData != "" {
		in.CustomUserData = aws.String(userData)
	}
	out, err := p.api.CreatePlatformEndpoint(ctx, in)
	if err != nil {
		return "", mapError(err)
	}
	return aws.ToString(out.EndpointArn), nil
}

func (p *AWSProvider) GetEndpointAttributes(ctx context.Context, endpointARN string) (map[string]string, error) {
	out, err := p.api.GetEndpointAttributes(ctx, &sns.GetEndpointAttributesInput{
		EndpointArn: aws.String(endpointARN),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out.Attributes, nil
}

func (p *AWSProvider) SetEndpointAttributes(ctx context.Context, endpointARN string, attrs map[string]string) error {
	_, err := p.api.SetEndpointAttributes(ctx, &sns.SetEndpointAttributesInput{
		EndpointArn: aws.String(endpointARN),
		Attributes:  attrs,
	})
	return mapError(err)
}

func (p *AWSProvider) Publish(ctx context.Context, targetARN, message string) (string, error) {
	out, err := p.api.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(targetARN),
		MessageStructure: aws.String("json"),
		Message:          aws.String(message),
	})
	if err != nil {
		return "", mapError(err)
	}
	return aws.ToString(out.MessageId), nil
}

var credentialErrorCodes = map[string]bool{
	"InvalidClientTokenId":        true,
	"SignatureDoesNotMatch":       true,
	"UnrecognizedClientException": true,
	"AuthorizationError":          true,
	"AccessDenied":                true,
	"ExpiredToken":                true,
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var notFound *types.NotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, notFound.ErrorMessage())
	}
	var invalid *types.InvalidParameterException
	if errors.As(err, &invalid) {
		return &InvalidParameterError{Message: invalid.ErrorMessage()}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && credentialErrorCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%w: %s", ErrCredentials, apiErr.ErrorMessage())
	}
	return fmt.Errorf("sns: %w", err)
}
