package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/synthetic-monitor/internal/clock/system"
	"github.com/JakeFAU/synthetic-monitor/internal/config"
	"github.com/JakeFAU/synthetic-monitor/internal/listener"
	"github.com/JakeFAU/synthetic-monitor/internal/provisioner"
	"github.com/JakeFAU/synthetic-monitor/internal/sink"
	"github.com/JakeFAU/synthetic-monitor/internal/validate"
)

// stackDeployer is the part of provisioner.Provisioner the deploy command needs.
type stackDeployer interface {
	Deploy(ctx context.Context, req provisioner.Request) ([]provisioner.Result, error)
}

func newDeployCmd() *cobra.Command {
	var customResource bool
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create the per-region monitoring stacks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			p := provisioner.New(provisioner.AWSClients, deploySink(a), system.New(), a.logger.Named("provisioner"))
			if customResource {
				lambda.Start(cfn.LambdaWrap(customResourceHandler(a, p)))
				return nil
			}
			return deployOnce(cmd.Context(), a, p, deployRequest(a))
		},
	}
	cmd.Flags().BoolVar(&customResource, "custom-resource", false, "serve as a CloudFormation custom resource Lambda")
	return cmd
}

// deploySink ships provisioner events to the logs endpoint. Without a usable
// listener the provisioner only logs locally.
func deploySink(a *app) sink.Sink {
	mc := a.cfg.Monitor
	protocol, err := validate.Protocol(mc.Protocol)
	if err != nil {
		return nil
	}
	base := listener.Resolve(mc.CustomListener, mc.TelemetryRegion, protocol)
	s, err := sink.NewHTTPSink(base, protocol, mc.MetricsToken, mc.LogsToken,
		&http.Client{Timeout: mc.DeliveryTimeout()}, a.logger.Named("sink"))
	if err != nil {
		a.logger.Warn("deploy events will not be shipped", zap.Error(err))
		return nil
	}
	return s
}

func deployRequest(a *app) provisioner.Request {
	mc := a.cfg.Monitor
	req := provisioner.Request{
		Regions:         a.cfg.Deploy.RegionList(),
		MetricsToken:    mc.MetricsToken,
		LogsToken:       mc.LogsToken,
		TelemetryRegion: mc.TelemetryRegion,
		CustomListener:  mc.CustomListener,
		Protocol:        mc.Protocol,
		ScrapeInterval:  a.cfg.Deploy.ScrapeInterval,
		TemplateURL:     a.cfg.Deploy.TemplateURL,
		FunctionName:    mc.FunctionName,
	}
	if urls := mc.URLList(); len(urls) > 0 {
		req.URL = urls[0]
	}
	return req
}

func deployOnce(ctx context.Context, a *app, p stackDeployer, req provisioner.Request) error {
	results, err := p.Deploy(ctx, req)
	if err != nil {
		return fmt.Errorf("deploy: %w", err)
	}
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		a.logger.Info("stack requested", zap.String("region", res.Region), zap.String("stack_id", res.StackID))
	}
	a.logger.Info("deploy finished", zap.Int("regions", len(results)), zap.Int("failed", failed))
	return nil
}

// customResourceHandler deploys on Create and acknowledges Update and Delete
// without touching existing stacks. A "regions" resource property overrides
// the configured region list.
func customResourceHandler(a *app, p stackDeployer) cfn.CustomResourceFunction {
	return func(ctx context.Context, ev cfn.Event) (string, map[string]interface{}, error) {
		req := deployRequest(a)
		physicalID := ev.PhysicalResourceID
		if physicalID == "" {
			physicalID = "sm-deployer-" + provisioner.URLLabel(req.URL)
		}
		if ev.RequestType != cfn.RequestCreate {
			return physicalID, nil, nil
		}
		if raw, ok := ev.ResourceProperties["regions"].(string); ok && strings.TrimSpace(raw) != "" {
			req.Regions = config.DeployConfig{Regions: raw}.RegionList()
		}
		results, err := p.Deploy(ctx, req)
		if err != nil {
			return physicalID, nil, err
		}
		created := 0
		for _, res := range results {
			if res.Err == nil {
				created++
			}
		}
		return physicalID, map[string]interface{}{"requested": len(results), "created": created}, nil
	}
}
