package ses_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/ses"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListIdentities(ctx context.Context, in *awsses.ListIdentitiesInput, _ ...func(*awsses.Options)) (*awsses.ListIdentitiesOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*awsses.ListIdentitiesOutput), args.Error(1)
}

func (m *mockAPI) ListVerifiedEmailAddresses(ctx context.Context, in *awsses.ListVerifiedEmailAddressesInput, _ ...func(*awsses.Options)) (*awsses.ListVerifiedEmailAddressesOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*awsses.ListVerifiedEmailAddressesOutput), args.Error(1)
}

func (m *mockAPI) SendEmail(ctx context.Context, in *awsses.SendEmailInput, _ ...func(*awsses.Options)) (*awsses.SendEmailOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*awsses.SendEmailOutput), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newVerifiedAPI() *mockAPI {
	api := new(mockAPI)
	api.On("ListIdentities", mock.Anything, mock.Anything).Return(&awsses.ListIdentitiesOutput{}, nil)
	api.On("ListVerifiedEmailAddresses", mock.Anything, mock.Anything).Return(&awsses.ListVerifiedEmailAddressesOutput{
		VerifiedEmailAddresses: []string{"no-reply@example.com"},
	}, nil)
	return api
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("Success", func(t *testing.T) {
		api := newVerifiedAPI()
		client, err := ses.NewClient(ctx, api, ses.Config{Identity: "no-reply@example.com"}, logger)
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("Unverified identity", func(t *testing.T) {
		api := newVerifiedAPI()
		_, err := ses.NewClient(ctx, api, ses.Config{Identity: "other@example.com"}, logger)
		assert.ErrorIs(t, err, ses.ErrIdentityNotVerified)
	})

	t.Run("Rejected credentials", func(t *testing.T) {
		api := new(mockAPI)
		api.On("ListIdentities", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "InvalidClientTokenId", Message: "bad token"})
		_, err := ses.NewClient(ctx, api, ses.Config{Identity: "no-reply@example.com"}, logger)
		assert.ErrorIs(t, err, ses.ErrCredentialsInvalid)
	})

	t.Run("Unreachable endpoint", func(t *testing.T) {
		api := new(mockAPI)
		api.On("ListIdentities", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: no such host"))
		_, err := ses.NewClient(ctx, api, ses.Config{Identity: "no-reply@example.com"}, logger)
		assert.ErrorIs(t, err, ses.ErrInvalidClient)
	})
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("Success returns message id", func(t *testing.T) {
		api := newVerifiedAPI()
		client, err := ses.NewClient(ctx, api, ses.Config{Identity: "no-reply@example.com", From: `"Team" <no-reply@example.com>`}, logger)
		require.NoError(t, err)

		api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *awsses.SendEmailInput) bool {
			return aws.ToString(in.Source) == `"Team" <no-reply@example.com>` &&
				len(in.Destination.ToAddresses) == 1 &&
				in.Message.Body.Html != nil && in.Message.Body.Text == nil
		})).Return(&awsses.SendEmailOutput{MessageId: aws.String("ses-1")}, nil)

		id, err := client.Send(ctx, dispatch.EmailMessage{To: []string{"u@example.com"}, Subject: "S", HTML: "<b>x</b>"})
		require.NoError(t, err)
		assert.Equal(t, "ses-1", id)
	})

	t.Run("Provider error is normalized", func(t *testing.T) {
		api := newVerifiedAPI()
		client, err := ses.NewClient(ctx, api, ses.Config{Identity: "no-reply@example.com"}, logger)
		require.NoError(t, err)

		api.On("SendEmail", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "Throttling", Message: "rate exceeded"})

		_, err = client.Send(ctx, dispatch.EmailMessage{To: []string{"u@example.com"}, Text: "x"})
		assert.ErrorIs(t, err, dispatch.ErrDelivery)
		var apiErr smithy.APIError
		assert.False(t, errors.As(err, &apiErr), "provider error types must not leak")
	})

	t.Run("Validation", func(t *testing.T) {
		api := newVerifiedAPI()
		client, err := ses.NewClient(ctx, api, ses.Config{Identity: "no-reply@example.com"}, logger)
		require.NoError(t, err)

		_, err = client.Send(ctx, dispatch.EmailMessage{Text: "x"})
		assert.ErrorIs(t, err, dispatch.ErrValidation)
		_, err = client.Send(ctx, dispatch.EmailMessage{To: []string{"u@example.com"}})
		assert.ErrorIs(t, err, dispatch.ErrValidation)
		api.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})
}
