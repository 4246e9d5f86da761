// Package inventory lists and terminates EC2 instances on behalf of the skill.
package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yairfalse/fleetvoice/internal/telemetry"
	"github.com/yairfalse/fleetvoice/pkg/instance"
)

// Config holds EC2 inventory configuration.
type Config struct {
	Profile string
	// Timeout bounds every single provider call. Zero disables it.
	Timeout time.Duration
}

// EC2 implements Client against the EC2 API.
type EC2 struct {
	newClient ClientFactory
	timeout   time.Duration
	logger    zerolog.Logger
	telemetry *telemetry.Provider

	mu      sync.Mutex
	clients map[string]EC2API
}

// New loads the shared AWS configuration and returns an EC2 inventory
// client. The SDK retryer is disabled: every call is attempted once.
func New(ctx context.Context, cfg Config, logger zerolog.Logger, tp *telemetry.Provider) (*EC2, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	factory := func(regionID string) EC2API {
		return ec2.NewFromConfig(awsCfg, func(o *ec2.Options) {
			o.Region = regionID
		})
	}

	return NewWithFactory(factory, cfg.Timeout, logger, tp), nil
}

// NewWithFactory returns an EC2 inventory client that builds its
// per-region API clients with factory.
func NewWithFactory(factory ClientFactory, timeout time.Duration, logger zerolog.Logger, tp *telemetry.Provider) *EC2 {
	return &EC2{
		newClient: factory,
		timeout:   timeout,
		logger:    logger.With().Str("component", "inventory").Logger(),
		telemetry: tp,
		clients:   make(map[string]EC2API),
	}
}

func (c *EC2) client(regionID string) EC2API {
	c.mu.Lock()
	defer c.mu.Unlock()

	if api, ok := c.clients[regionID]; ok {
		return api
	}
	api := c.newClient(regionID)
	c.clients[regionID] = api
	return api
}

func runningFilter() []ec2types.Filter {
	return []ec2types.Filter{{
		Name:   aws.String("instance-state-name"),
		Values: []string{string(ec2types.InstanceStateNameRunning)},
	}}
}

// call runs one provider operation under the call timeout and records it.
func (c *EC2) call(ctx context.Context, op, regionID string, fn func(context.Context, EC2API) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := c.telemetry.StartSpan(ctx, "inventory."+op,
		attribute.String("region", regionID),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx, c.client(regionID))
	c.telemetry.RecordCall(ctx, op, regionID, time.Since(start))

	if err == nil {
		return nil
	}

	failure := newFailure(op, regionID, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, failure.Code)
	c.telemetry.RecordCallError(ctx, op, regionID, failure.Code)
	return failure
}

// ListRunningInstances returns running instances across all pages,
// flattened in the order the provider returned them.
func (c *EC2) ListRunningInstances(ctx context.Context, regionID string) ([]instance.Instance, error) {
	var instances []instance.Instance

	err := c.call(ctx, OpList, regionID, func(ctx context.Context, api EC2API) error {
		var nextToken *string
		for {
			output, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
				Filters:   runningFilter(),
				NextToken: nextToken,
			})
			if err != nil {
				return fmt.Errorf("describe instances: %w", err)
			}

			for _, reservation := range output.Reservations {
				for _, inst := range reservation.Instances {
					converted := convertInstance(regionID, inst)
					if !converted.Running() {
						c.logger.Debug().
							Str("instance_id", converted.ID).
							Str("state", converted.State).
							Msg("skipping instance that is not running")
						continue
					}
					instances = append(instances, converted)
				}
			}

			if aws.ToString(output.NextToken) == "" {
				return nil
			}
			nextToken = output.NextToken
		}
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("region_id", regionID).Int("count", len(instances)).Msg("listed running instances")
	return instances, nil
}

// CountRunningInstances counts running instances using instance status,
// which is cheaper than describing every instance.
func (c *EC2) CountRunningInstances(ctx context.Context, regionID string) (int, error) {
	count := 0

	err := c.call(ctx, OpCount, regionID, func(ctx context.Context, api EC2API) error {
		var nextToken *string
		for {
			output, err := api.DescribeInstanceStatus(ctx, &ec2.DescribeInstanceStatusInput{
				Filters:   runningFilter(),
				NextToken: nextToken,
			})
			if err != nil {
				return fmt.Errorf("describe instance status: %w", err)
			}

			count += len(output.InstanceStatuses)

			if aws.ToString(output.NextToken) == "" {
				return nil
			}
			nextToken = output.NextToken
		}
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// TerminateInstances issues one TerminateInstances call for all ids.
func (c *EC2) TerminateInstances(ctx context.Context, regionID string, ids []string) error {
	if len(ids) == 0 {
		return ErrNoInstances
	}

	batch := make([]string, len(ids))
	copy(batch, ids)

	err := c.call(ctx, OpTerminate, regionID, func(ctx context.Context, api EC2API) error {
		if _, err := api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: batch}); err != nil {
			return fmt.Errorf("terminate instances: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info().Str("region_id", regionID).Strs("instance_ids", batch).Msg("terminated instances")
	return nil
}

func convertInstance(regionID string, inst ec2types.Instance) instance.Instance {
	converted := instance.Instance{
		ID:     aws.ToString(inst.InstanceId),
		Region: regionID,
	}
	if inst.State != nil {
		converted.State = string(inst.State.Name)
	}
	if inst.Tags != nil {
		converted.Tags = make([]instance.Tag, 0, len(inst.Tags))
		for _, tag := range inst.Tags {
			converted.Tags = append(converted.Tags, instance.Tag{
				Key:   copyString(tag.Key),
				Value: copyString(tag.Value),
			})
		}
	}
	return converted
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
