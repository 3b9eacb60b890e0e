package perflog

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/llrt/internal/perflog"

// ExportSpans replays every finished chunk as an OpenTelemetry span
// with its original timestamps. Spans go through the globally
// configured TracerProvider, so this is a no-op unless telemetry has
// been initialized.
func (r *Recorder) ExportSpans(ctx context.Context) {
	tracer := otel.Tracer(tracerName)

	for i := range r.operations {
		op := &r.operations[i]
		if !op.IsKernelOp {
			continue
		}
		for j := range op.Chunks {
			chunk := &op.Chunks[j]
			if !chunk.Finished {
				continue
			}
			_, span := tracer.Start(ctx, op.KernelName+"@"+op.LinkName,
				trace.WithTimestamp(chunk.Start),
				trace.WithAttributes(
					attribute.String("llrt.link", op.LinkName),
					attribute.String("llrt.kernel", op.KernelName),
					attribute.Int64("llrt.progress", chunk.Progress),
					attribute.Int("llrt.worker", chunk.Thread),
				))
			span.End(trace.WithTimestamp(chunk.End))
		}
	}
}
