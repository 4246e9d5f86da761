package inventory

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/yairfalse/fleetvoice/pkg/instance"
)

// Client is the inventory surface the skill needs from the compute provider.
// All operations take a provider region identifier (e.g., "us-east-1").
type Client interface {
	// ListRunningInstances returns running instances in provider order.
	ListRunningInstances(ctx context.Context, regionID string) ([]instance.Instance, error)

	// CountRunningInstances returns the number of running instances.
	CountRunningInstances(ctx context.Context, regionID string) (int, error)

	// TerminateInstances terminates all ids with a single bulk call.
	TerminateInstances(ctx context.Context, regionID string, ids []string) error
}

// EC2API defines the EC2 operations used by the inventory client.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeInstanceStatus(ctx context.Context, params *ec2.DescribeInstanceStatusInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceStatusOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// ClientFactory returns an EC2 client bound to a region.
type ClientFactory func(regionID string) EC2API
