// Package provisioner creates the per-region CloudFormation stacks that run
// the monitor on a schedule.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"go.uber.org/zap"

	"github.com/JakeFAU/synthetic-monitor/internal/document"
	"github.com/JakeFAU/synthetic-monitor/internal/listener"
	"github.com/JakeFAU/synthetic-monitor/internal/metrics"
	"github.com/JakeFAU/synthetic-monitor/internal/region"
	"github.com/JakeFAU/synthetic-monitor/internal/sink"
	"github.com/JakeFAU/synthetic-monitor/internal/validate"
)

const (
	// DefaultTemplateURL is the per-region template location; {region} is
	// substituted.
	DefaultTemplateURL = "https://sm-template.s3.amazonaws.com/sm-stack-{region}.yaml"

	stackPrefix = "logzio-sm"

	statusCreated = "created"
	statusFailed  = "failed"
)

// ErrNoRegions is returned when a request names no regions.
var ErrNoRegions = errors.New("no regions to deploy to")

// StackAPI is the slice of the CloudFormation client the provisioner uses.
type StackAPI interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
}

// ClientFactory returns a StackAPI bound to region.
type ClientFactory func(ctx context.Context, region string) (StackAPI, error)

// AWSClients loads the default AWS credential chain for each region.
func AWSClients(ctx context.Context, r string) (StackAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(r))
	if err != nil {
		return nil, fmt.Errorf("load aws config for %s: %w", r, err)
	}
	return cloudformation.NewFromConfig(cfg), nil
}

// Clock supplies timestamps for shipped log documents.
type Clock interface {
	Now() time.Time
}

// Request describes one deployment across regions.
type Request struct {
	Regions         []string
	URL             string
	MetricsToken    string
	LogsToken       string
	TelemetryRegion string
	CustomListener  string
	Protocol        string
	ScrapeInterval  string
	TemplateURL     string
	FunctionName    string
}

// Result reports the outcome for one region.
type Result struct {
	Region    string
	StackName string
	StackID   string
	Err       error
}

// Provisioner creates stacks region by region. A failing region never stops
// the others.
type Provisioner struct {
	clients ClientFactory
	sink    sink.Sink
	clock   Clock
	logger  *zap.Logger
}

// New constructs a Provisioner. Failures are reported to s as log documents.
func New(clients ClientFactory, s sink.Sink, clock Clock, logger *zap.Logger) *Provisioner {
	if clients == nil {
		clients = AWSClients
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{clients: clients, sink: s, clock: clock, logger: logger}
}

// URLLabel strips the scheme separator and dots from rawURL for use in a
// stack name.
func URLLabel(rawURL string) string {
	return strings.ReplaceAll(strings.ReplaceAll(rawURL, "://", ""), ".", "")
}

// StackName returns the stack name for region and rawURL.
func StackName(r, rawURL string) string {
	return fmt.Sprintf("%s-%s-%s", stackPrefix, r, URLLabel(rawURL))
}

// TemplateURL expands pattern for region, falling back to DefaultTemplateURL.
func TemplateURL(pattern, r string) string {
	if pattern == "" {
		pattern = DefaultTemplateURL
	}
	return strings.ReplaceAll(pattern, "{region}", r)
}

// Validate checks the request fields shared by every region.
func (req Request) Validate() error {
	if len(req.Regions) == 0 {
		return ErrNoRegions
	}
	if _, err := validate.ScrapeInterval(req.ScrapeInterval); err != nil {
		return err
	}
	if _, err := validate.URL(req.URL); err != nil {
		return err
	}
	if _, err := validate.Token("metrics_token", req.MetricsToken); err != nil {
		return err
	}
	if _, err := validate.Token("logs_token", req.LogsToken); err != nil {
		return err
	}
	if _, err := validate.TelemetryRegion(req.TelemetryRegion); err != nil {
		return err
	}
	if _, err := validate.Protocol(req.Protocol); err != nil {
		return err
	}
	return nil
}

// Parameters returns the stack parameters for req.
func (req Request) Parameters() []types.Parameter {
	protocol, err := validate.Protocol(req.Protocol)
	if err != nil {
		protocol = req.Protocol
	}
	values := []struct{ key, value string }{
		{"logzioURL", listener.Resolve(req.CustomListener, req.TelemetryRegion, protocol)},
		{"scrapeInterval", req.ScrapeInterval},
		{"logzioRegion", req.TelemetryRegion},
		{"url", req.URL},
		{"logzioMetricsToken", req.MetricsToken},
		{"logzioLogsToken", req.LogsToken},
		{"shippingProtocol", protocol},
	}
	params := make([]types.Parameter, 0, len(values))
	for _, v := range values {
		params = append(params, types.Parameter{
			ParameterKey:   aws.String(v.key),
			ParameterValue: aws.String(v.value),
		})
	}
	return params
}

// Deploy validates req and creates one stack per region. The returned error
// covers only request validation; per-region failures are in the results.
func (p *Provisioner) Deploy(ctx context.Context, req Request) ([]Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	params := req.Parameters()
	results := make([]Result, 0, len(req.Regions))
	for _, r := range req.Regions {
		res := p.deployRegion(ctx, req, r, params)
		status := statusCreated
		if res.Err != nil {
			status = statusFailed
			msg := fmt.Sprintf("Error while creating cloudformation stack at %s region. message: %v", r, res.Err)
			p.logger.Error("stack creation failed",
				zap.String("region", r),
				zap.String("stack", res.StackName),
				zap.Error(res.Err),
			)
			p.report(ctx, req, r, document.LevelError, msg)
		}
		metrics.ObserveStack(r, status)
		results = append(results, res)
	}
	return results, nil
}

func (p *Provisioner) deployRegion(ctx context.Context, req Request, r string, params []types.Parameter) Result {
	res := Result{Region: r, StackName: StackName(r, req.URL)}
	if err := region.ValidateRegion(region.SystemAWS, r); err != nil {
		res.Err = err
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	p.logger.Info("Starting to deploy cloudformation stack", zap.String("region", r), zap.String("stack", res.StackName))
	p.report(ctx, req, r, document.LevelInfo, fmt.Sprintf("Starting to deploy cloudformation stack to %s region", r))

	client, err := p.clients(ctx, r)
	if err != nil {
		res.Err = err
		return res
	}
	out, err := client.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(res.StackName),
		TemplateURL:  aws.String(TemplateURL(req.TemplateURL, r)),
		Parameters:   params,
		Capabilities: []types.Capability{types.CapabilityCapabilityIam},
	})
	if err != nil {
		res.Err = fmt.Errorf("create stack %s: %w", res.StackName, err)
		return res
	}
	res.StackID = aws.ToString(out.StackId)
	p.logger.Info("stack creation started", zap.String("region", r), zap.String("stack_id", res.StackID))
	return res
}

func (p *Provisioner) report(ctx context.Context, req Request, r string, level document.Level, msg string) {
	if p.sink == nil {
		return
	}
	var now time.Time
	if p.clock != nil {
		now = p.clock.Now()
	} else {
		now = time.Now()
	}
	p.sink.Send(ctx, &document.LogDocument{
		Timestamp:    now,
		Level:        level,
		Message:      msg,
		FunctionName: req.FunctionName,
		Region:       r,
		URL:          req.URL,
	})
}
