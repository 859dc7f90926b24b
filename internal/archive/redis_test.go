package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRedisBackend_RejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisBackend("not-a-url", "jobs", 0, testLogger())
	require.Error(t, err)
}

func TestRedisBackend_PublishFailureIsTransportError(t *testing.T) {
	t.Parallel()

	// Port 1 on localhost refuses connections, so the lazy connect on the
	// first publish fails and must surface as a transport error.
	backend, err := NewRedisBackend("redis://127.0.0.1:1/0", "jobs", 0, testLogger())
	require.NoError(t, err)

	defer backend.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = backend.Archive(ctx, makeRequest("1234", time.Now()))
	require.ErrorIs(t, err, ErrTransport)
}

func TestJobEnvelope_Encoding(t *testing.T) {
	t.Parallel()

	moment := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	doc := jobEnvelope{
		ID:          "1234",
		Cluster:     "huppel",
		Scheduler:   "slurm",
		Path:        "/spool/hash.4/job.1234",
		EventKind:   "created",
		Timestamp:   moment,
		Script:      "#!/bin/bash\n",
		Environment: map[string]string{"PATH": "/usr/bin"},
	}

	payload, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "1234", decoded["id"])
	require.Equal(t, "huppel", decoded["cluster"])
	require.Equal(t, "2024-03-15T10:00:00Z", decoded["timestamp"])

	// An empty environment is omitted from the wire document.
	doc.Environment = nil
	payload, err = json.Marshal(doc)
	require.NoError(t, err)
	require.NotContains(t, string(payload), "environment")
}
