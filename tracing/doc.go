// Package tracing wraps OpenTelemetry so gateway, checkpoint and callback
// code can open spans without importing the SDK. Spans are no-ops until Init
// or InitWithExporter installs a provider.
package tracing
