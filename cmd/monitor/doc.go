// Package main hosts the synthetic monitor binary.
//
// Subcommands:
//   - run: monitor the configured URLs once from the command line.
//   - serve: expose the chi trigger server (POST /v1/monitor, probes, /metrics).
//   - lambda: serve AWS Lambda invocations; each invocation monitors the
//     configured URL list, optionally overridden by the event payload.
//   - deploy: create one CloudFormation stack per region, either directly or as
//     a CloudFormation custom resource with --custom-resource.
//
// Configuration comes from an optional file (--config) and the environment
// (URL, LOGZIO_METRICS_TOKEN, LOGZIO_LOGS_TOKEN, LOGZIO_REGION, AWS_REGION,
// SYSTEM, PROTOCOL, MAX_DOM_COMPLETE, REGIONS, SCRAPE_INTERVAL and the
// SYNTHETIC_ prefixed keys). Every run ships its log and metric documents to
// the resolved listener and never fails the process for delivery errors.
package main
