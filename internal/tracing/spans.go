package tracing

// Span names for the run lifecycle.
const (
	SpanWorkflowRun = "workflow.run"
	SpanStage       = "workflow.stage"
	SpanServiceCall = "research.call"
	SpanAdapterExec = "adapter.execute"
)

// Attribute keys shared across spans.
const (
	AttrRunID      = "run.id"
	AttrTopic      = "run.topic"
	AttrProfile    = "run.profile"
	AttrStage      = "stage.name"
	AttrCapability = "call.capability"
	AttrSourceID   = "call.source_id"
	AttrCacheHit   = "call.cache_hit"
	AttrDryRun     = "call.dry_run"
	AttrErrorKind  = "error.kind"
	AttrAttempts   = "retry.attempts"
)
