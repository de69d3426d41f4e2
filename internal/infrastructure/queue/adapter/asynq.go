package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/apaluca/CipherTalk/internal/infrastructure/queue/port"
)

func redisOptFromURL(url string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:     opt.Addr,
		Username: opt.Username,
		Password: opt.Password,
		DB:       opt.DB,
	}, nil
}

func mapOptions(opts []port.EnqueueOption) []asynq.Option {
	var out []asynq.Option
	for _, o := range opts {
		if o.Queue != "" {
			out = append(out, asynq.Queue(o.Queue))
		}
		if o.ProcessIn > 0 {
			out = append(out, asynq.ProcessIn(o.ProcessIn))
		}
		if o.MaxRetry > 0 {
			out = append(out, asynq.MaxRetry(o.MaxRetry))
		}
		if o.UniqueTTL > 0 {
			out = append(out, asynq.Unique(o.UniqueTTL))
		}
		if !o.Deadline.IsZero() {
			out = append(out, asynq.Deadline(o.Deadline))
		}
	}
	return out
}

// AsynqClient implements port.Client on top of asynq.
type AsynqClient struct {
	client *asynq.Client
}

func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	opt, err := redisOptFromURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &AsynqClient{client: asynq.NewClient(opt)}, nil
}

func (c *AsynqClient) Enqueue(ctx context.Context, t port.Task, opts ...port.EnqueueOption) (string, error) {
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), mapOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", t.Type, err)
	}
	return info.ID, nil
}

func (c *AsynqClient) Close() error {
	return c.client.Close()
}

// AsynqServer implements port.Server. Queues "default" and "chat" share
// capacity evenly; message fan-out work is enqueued on "chat".
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewAsynqServer(redisURL string, concurrency int) (*AsynqServer, error) {
	opt, err := redisOptFromURL(redisURL)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
			"chat":    1,
		},
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

func (s *AsynqServer) Register(taskType string, h port.Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, port.Task{Type: t.Type(), Payload: t.Payload()})
	})
}

func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	<-ctx.Done()
	s.server.Shutdown()
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *AsynqServer) Stop(ctx context.Context) error {
	s.server.Shutdown()
	return nil
}
