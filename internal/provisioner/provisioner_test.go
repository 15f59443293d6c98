package provisioner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/synthetic-monitor/internal/clock/system"
	"github.com/JakeFAU/synthetic-monitor/internal/document"
	"github.com/JakeFAU/synthetic-monitor/internal/sink/memory"
	"github.com/JakeFAU/synthetic-monitor/internal/validate"
)

type fakeStacks struct {
	mu     sync.Mutex
	inputs map[string]*cloudformation.CreateStackInput
	fail   map[string]error
}

func newFakeStacks() *fakeStacks {
	return &fakeStacks{
		inputs: map[string]*cloudformation.CreateStackInput{},
		fail:   map[string]error{},
	}
}

func (f *fakeStacks) factory(_ context.Context, r string) (StackAPI, error) {
	return &regionClient{parent: f, region: r}, nil
}

type regionClient struct {
	parent *fakeStacks
	region string
}

func (c *regionClient) CreateStack(_ context.Context, in *cloudformation.CreateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	if err := c.parent.fail[c.region]; err != nil {
		return nil, err
	}
	c.parent.inputs[c.region] = in
	return &cloudformation.CreateStackOutput{StackId: aws.String("arn:" + c.region)}, nil
}

func validRequest() Request {
	return Request{
		Regions:         []string{"us-east-1", "eu-west-1"},
		URL:             "https://www.example.com",
		MetricsToken:    "metricsLogzioTokenlogzioTokenLog",
		LogsToken:       "logsLogzioTokenlogzioTokenLogzio",
		TelemetryRegion: "eu",
		Protocol:        "https",
		ScrapeInterval:  "rate(5 minutes)",
		FunctionName:    "deployer",
	}
}

func paramMap(params []types.Parameter) map[string]string {
	out := map[string]string{}
	for _, p := range params {
		out[aws.ToString(p.ParameterKey)] = aws.ToString(p.ParameterValue)
	}
	return out
}

func TestStackNaming(t *testing.T) {
	t.Parallel()

	require.Equal(t, "httpswwwexamplecom", URLLabel("https://www.example.com"))
	require.Equal(t, "logzio-sm-us-east-1-httpswwwexamplecom", StackName("us-east-1", "https://www.example.com"))
	require.Equal(t, "https://sm-template.s3.amazonaws.com/sm-stack-eu-west-1.yaml", TemplateURL("", "eu-west-1"))
	require.Equal(t, "https://bucket/x-ap-south-1.json", TemplateURL("https://bucket/x-{region}.json", "ap-south-1"))
}

func TestParameters(t *testing.T) {
	t.Parallel()

	params := paramMap(validRequest().Parameters())
	require.Equal(t, map[string]string{
		"logzioURL":          "https://listener-eu.logz.io",
		"scrapeInterval":     "rate(5 minutes)",
		"logzioRegion":       "eu",
		"url":                "https://www.example.com",
		"logzioMetricsToken": "metricsLogzioTokenlogzioTokenLog",
		"logzioLogsToken":    "logsLogzioTokenlogzioTokenLogzio",
		"shippingProtocol":   "https",
	}, params)

	req := validRequest()
	req.CustomListener = "https://custom.example.com"
	require.Equal(t, "https://custom.example.com", paramMap(req.Parameters())["logzioURL"])
}

func TestDeployCreatesStackPerRegion(t *testing.T) {
	t.Parallel()

	stacks := newFakeStacks()
	s := memory.New()
	p := New(stacks.factory, s, system.Fixed{At: time.UnixMilli(0)}, zap.NewNop())

	results, err := p.Deploy(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		require.NoError(t, res.Err)
		require.Equal(t, "arn:"+res.Region, res.StackID)
	}

	in := stacks.inputs["eu-west-1"]
	require.NotNil(t, in)
	require.Equal(t, "logzio-sm-eu-west-1-httpswwwexamplecom", aws.ToString(in.StackName))
	require.Equal(t, "https://sm-template.s3.amazonaws.com/sm-stack-eu-west-1.yaml", aws.ToString(in.TemplateURL))
	require.Equal(t, []types.Capability{types.CapabilityCapabilityIam}, in.Capabilities)

	logs := s.Logs()
	require.Len(t, logs, 2)
	require.Equal(t, "Starting to deploy cloudformation stack to us-east-1 region", logs[0].Message)
	require.Equal(t, document.LevelInfo, logs[0].Level)
	require.Equal(t, "deployer", logs[0].FunctionName)
}

func TestDeployRegionFailureDoesNotAbortOthers(t *testing.T) {
	t.Parallel()

	stacks := newFakeStacks()
	stacks.fail["us-east-1"] = errors.New("AlreadyExistsException")
	s := memory.New()
	p := New(stacks.factory, s, system.Fixed{At: time.UnixMilli(0)}, zap.NewNop())

	req := validRequest()
	req.Regions = []string{"us-east-1", "mars-north-1", "eu-west-1"}
	results, err := p.Deploy(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.ErrorContains(t, results[0].Err, "AlreadyExistsException")
	require.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
	require.Contains(t, stacks.inputs, "eu-west-1")

	var errorLogs []string
	for _, l := range s.Logs() {
		if l.Level == document.LevelError {
			errorLogs = append(errorLogs, l.Message)
		}
	}
	require.Len(t, errorLogs, 2)
	require.Contains(t, errorLogs[0], "Error while creating cloudformation stack at us-east-1 region. message:")
	require.Contains(t, errorLogs[1], "mars-north-1")
}

func TestDeployClientFactoryFailure(t *testing.T) {
	t.Parallel()

	p := New(func(context.Context, string) (StackAPI, error) {
		return nil, errors.New("no credentials")
	}, nil, nil, zap.NewNop())

	req := validRequest()
	req.Regions = []string{"us-west-2"}
	results, err := p.Deploy(context.Background(), req)
	require.NoError(t, err)
	require.ErrorContains(t, results[0].Err, "no credentials")
}

func TestDeployValidation(t *testing.T) {
	t.Parallel()

	p := New(newFakeStacks().factory, nil, nil, zap.NewNop())

	req := validRequest()
	req.Regions = nil
	_, err := p.Deploy(context.Background(), req)
	require.ErrorIs(t, err, ErrNoRegions)

	req = validRequest()
	req.ScrapeInterval = "every minute"
	_, err = p.Deploy(context.Background(), req)
	require.ErrorIs(t, err, validate.ErrValue)

	req = validRequest()
	req.LogsToken = "short"
	_, err = p.Deploy(context.Background(), req)
	require.ErrorIs(t, err, validate.ErrValue)
}
