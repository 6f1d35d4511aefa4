package temporal

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"

	"github.com/canopy-network/govlens/pkg/config"
)

// StatsScheduleID identifies the schedule that triggers distribution precompute.
const StatsScheduleID = "stats:precompute"

type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	Namespace string

	// ReportsQueue carries the precompute workflow and its activity.
	ReportsQueue string
}

type Health struct {
	ConnectionOK bool                      `json:"connection_ok"`
	ReportsQueue []*taskqueuepb.PollerInfo `json:"reports_queue"`
}

func NewClient(ctx context.Context, logger *zap.Logger, cfg config.TemporalConfig) (*Client, error) {
	logger.Info("Connecting to Temporal",
		zap.String("host", cfg.HostPort),
		zap.String("namespace", cfg.Namespace))
	tClient, err := dial(ctx, cfg.HostPort, cfg.Namespace, NewZapAdapter(logger))
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		tClient.Close()
		return nil, err
	}

	return &Client{
		TClient:      tClient,
		TSClient:     tClient.ScheduleClient(),
		Namespace:    cfg.Namespace,
		ReportsQueue: cfg.TaskQueue,
	}, nil
}

// dial connects to Temporal using the provided hostPort and namespace.
func dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// GetScheduleSpec returns a schedule spec for the given interval.
func GetScheduleSpec(interval time.Duration) client.ScheduleSpec {
	return client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
}

// EnsureSchedule creates schedule id unless it already exists. An existing
// schedule is left untouched even if its spec differs.
func (c *Client) EnsureSchedule(ctx context.Context, logger *zap.Logger, id string, spec client.ScheduleSpec, action *client.ScheduleWorkflowAction) error {
	h := c.TSClient.GetHandle(ctx, id)
	_, err := h.Describe(ctx)
	if err == nil {
		logger.Info("Schedule already exists",
			zap.String("id", id),
			zap.String("namespace", c.Namespace))
		return nil
	}

	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		logger.Info("Creating schedule",
			zap.String("id", id),
			zap.String("namespace", c.Namespace),
			zap.Any("workflow", action.Workflow))
		_, scheduleErr := c.TSClient.Create(ctx, client.ScheduleOptions{
			ID:     id,
			Spec:   spec,
			Action: action,
		})
		return scheduleErr
	}
	return err
}

// Health reports the pollers of the reports queue.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h := Health{ConnectionOK: true}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if _, err := c.TClient.CheckHealth(ctx, nil); err != nil {
		h.ConnectionOK = false
		return h, err
	}
	svc := c.TClient.WorkflowService()
	if svc != nil {
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.ReportsQueue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.ReportsQueue = rep.GetPollers()
		}
	}
	return h, nil
}

func (c *Client) Close() {
	if c.TClient != nil {
		c.TClient.Close()
	}
}
