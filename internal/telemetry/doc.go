// Package telemetry wires OpenTelemetry tracing and metrics for patternd.
//
// When enabled, New installs OTLP-exporting tracer and meter providers as
// the otel globals, so the learning engine's spans and instruments are
// exported without further wiring. When disabled, the globals stay no-op.
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc          # or http/protobuf
//	  service_name: "patternd"
//	  sampling:
//	    rate: 1.0
//	  metrics:
//	    enabled: true
//	    export_interval: 15s
//
// # Testing
//
// NewTestTelemetry records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	engine, _ := learning.NewEngine(st, cfg, nil, learning.WithTracer(tt.Tracer("test")))
//	...
//	tt.AssertSpanExists(t, "learning.Learn")
package telemetry
