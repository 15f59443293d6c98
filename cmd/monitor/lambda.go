package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// invocationEvent is the optional payload of a scheduled invocation.
type invocationEvent struct {
	URLs []string `json:"urls,omitempty"`
}

// invocationResult summarises one invocation.
type invocationResult struct {
	Runs          int `json:"runs"`
	DocumentsSent int `json:"documents_sent"`
}

func newLambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve AWS Lambda invocations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if a.cfg.Monitor.FunctionName == "" {
				a.cfg.Monitor.FunctionName = lambdacontext.FunctionName
			}
			lambda.Start(lambdaHandler(a, a.runner()))
			return nil
		},
	}
}

func lambdaHandler(a *app, r urlRunner) func(context.Context, invocationEvent) (invocationResult, error) {
	return func(ctx context.Context, ev invocationEvent) (invocationResult, error) {
		logger := a.logger
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			logger = logger.With(zap.String("aws_request_id", lc.AwsRequestID))
		}
		urls := ev.URLs
		if len(urls) == 0 {
			urls = a.cfg.Monitor.URLList()
		}
		reports, err := r.Run(ctx, a.cfg.Monitor.Raw(), urls)
		if err != nil {
			logger.Error("invocation rejected", zap.Error(err))
			return invocationResult{}, err
		}
		res := invocationResult{Runs: len(reports)}
		for _, rep := range reports {
			res.DocumentsSent += rep.DocumentsSent
		}
		logger.Info("invocation finished", zap.Int("runs", res.Runs), zap.Int("documents_sent", res.DocumentsSent))
		return res, nil
	}
}
