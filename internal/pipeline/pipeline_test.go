package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/pipeline"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const validBody = `{"action":"send_email","args":[],"kwargs":{"to":["a@b.c"]}}`

func TestPayloadTransformer(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name        string
		payload     string
		expectError bool
	}{
		{name: "Happy Path", payload: validBody},
		{name: "Malformed JSON", payload: "not-json", expectError: true},
		{name: "Missing action", payload: `{"args":[]}`, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "msg-1", Payload: []byte(tc.payload)},
			}
			p, skip, err := pipeline.PayloadTransformer(ctx, msg)

			if tc.expectError {
				require.Error(t, err)
				assert.True(t, skip)
				assert.Contains(t, err.Error(), "msg-1")
				return
			}
			require.NoError(t, err)
			assert.False(t, skip)
			assert.Equal(t, "send_email", p.Action)
		})
	}
}

func TestForwardProcessor(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	msg := messagepipeline.Message{MessageData: messagepipeline.MessageData{ID: "msg-7", Payload: []byte(validBody)}}

	t.Run("Posts the raw body and succeeds on 200", func(t *testing.T) {
		var gotBody []byte
		var gotID string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			gotBody, _ = io.ReadAll(r.Body)
			gotID = r.Header.Get(pipeline.MessageIDHeader)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		p, _, err := pipeline.PayloadTransformer(ctx, &msg)
		require.NoError(t, err)

		processor := pipeline.NewForwardProcessor(server.URL+"/tasks/", server.Client(), logger)
		require.NoError(t, processor(ctx, msg, p))
		assert.JSONEq(t, validBody, string(gotBody))
		assert.Equal(t, "msg-7", gotID)
	})

	t.Run("Non-2xx is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Task could not be processed.", http.StatusInternalServerError)
		}))
		defer server.Close()

		p, _, err := pipeline.PayloadTransformer(ctx, &msg)
		require.NoError(t, err)

		processor := pipeline.NewForwardProcessor(server.URL, server.Client(), logger)
		err = processor(ctx, msg, p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("Unreachable ingress is an error", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		p, _, err := pipeline.PayloadTransformer(ctx, &msg)
		require.NoError(t, err)

		processor := pipeline.NewForwardProcessor(url, http.DefaultClient, logger)
		assert.Error(t, processor(ctx, msg, p))
	})
}
