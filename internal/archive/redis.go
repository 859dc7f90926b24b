package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend publishes each archived job to a Redis Stream via XADD.
//
// Wire encoding (stable within a deployment): one stream entry per job
// with a single "job" field holding the JSON document
//
//	{id, cluster, scheduler, path, event_kind, timestamp,
//	 script, environment}
//
// where timestamp is RFC 3339 and environment is the scheduler-specific
// extra info map.
type RedisBackend struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *slog.Logger
}

// jobEnvelope is the published message payload.
type jobEnvelope struct {
	ID          string            `json:"id"`
	Cluster     string            `json:"cluster"`
	Scheduler   string            `json:"scheduler"`
	Path        string            `json:"path"`
	EventKind   string            `json:"event_kind"`
	Timestamp   time.Time         `json:"timestamp"`
	Script      string            `json:"script"`
	Environment map[string]string `json:"environment,omitempty"`
}

// NewRedisBackend parses the connection URL and creates the client.
// The connection itself is established lazily on first publish, so a
// broker outage at startup surfaces as per-event transport errors rather
// than blocking the daemon from watching the spool.
func NewRedisBackend(url, stream string, maxLen int64, logger *slog.Logger) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	logger.Info("using redis stream archival",
		slog.String("addr", opts.Addr),
		slog.String("stream", stream),
	)

	return &RedisBackend{
		client: redis.NewClient(opts),
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}, nil
}

func (r *RedisBackend) Name() string { return "redis" }

// Archive serializes the job envelope and appends it to the stream.
func (r *RedisBackend) Archive(ctx context.Context, req *Request) error {
	doc := jobEnvelope{
		ID:          req.Job.ID,
		Cluster:     req.Cluster,
		Scheduler:   string(req.Scheduler),
		Path:        req.Path,
		EventKind:   req.EventKind,
		Timestamp:   req.Moment,
		Script:      string(req.Job.Script),
		Environment: req.Job.Env,
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: serializing job %s: %w", ErrTransport, req.Job.ID, err)
	}

	add := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{"job": payload},
	}
	if r.maxLen > 0 {
		add.MaxLen = r.maxLen
		add.Approx = true
	}

	if err := r.client.XAdd(ctx, add).Err(); err != nil {
		return fmt.Errorf("%w: publishing job %s to stream %s: %w",
			ErrTransport, req.Job.ID, r.stream, err)
	}

	r.logger.Debug("published job to stream",
		slog.String("job_id", req.Job.ID),
		slog.String("stream", r.stream),
	)

	return nil
}

// Close releases the client connection pool.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
