package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/assetry/internal/errors"
	"github.com/conneroisu/assetry/internal/logging"
	"github.com/conneroisu/assetry/internal/metrics"
)

var tracer = otel.Tracer("github.com/conneroisu/assetry/internal/provider")

// Run is one pass of every provider over a template chain. A Run is created
// per call and is not safe for concurrent use.
type Run struct {
	Request *http.Request
	// Data is the rendering data of the template that started the run.
	Data map[string]any
	// Group restricts the run to providers of that group; empty runs all.
	Group string
	Chain []*TemplateInfo
	// Policy decides what happens when a provider fails.
	Policy FailurePolicy

	logger           logging.Logger
	metrics          *metrics.Collector
	inheritanceIndex int
	html             []string
}

// NewRun creates a run that uses the failure policy, logger, and metrics of
// the installed settings.
func NewRun(req *http.Request, data map[string]any, group string, chain []*TemplateInfo) *Run {
	run := &Run{
		Request: req,
		Data:    data,
		Group:   group,
		Chain:   chain,
		Policy:  FailAbort,
		logger:  logging.Nop(),
	}
	if s := current(); s != nil {
		run.Policy = s.FailurePolicy
		run.logger = s.Logger
		run.metrics = s.Metrics
	}
	return run
}

// InheritanceIndex is the position of the chain level being processed, 0
// for the root ancestor.
func (r *Run) InheritanceIndex() int {
	return r.inheritanceIndex
}

// IsLast reports whether the level being processed is the most-derived one.
func (r *Run) IsLast() bool {
	return r.inheritanceIndex == len(r.Chain)-1
}

// Content invokes every matching provider of every chain level, root first,
// and joins the fragments with newlines.
func (r *Run) Content(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "provider.Run",
		trace.WithAttributes(
			attribute.String("provider.group", r.Group),
			attribute.Int("provider.chain_length", len(r.Chain)),
			attribute.String("provider.failure_policy", string(r.Policy)),
		),
	)
	defer span.End()

	out, err := r.content(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider run failed")
	}
	r.metrics.RunFinished(err)
	return out, err
}

func (r *Run) content(ctx context.Context) (string, error) {
	collector := errors.NewErrorCollector()
	r.html = r.html[:0]

	for i, ti := range r.Chain {
		r.inheritanceIndex = i
		for _, p := range ti.Providers {
			if r.Group != "" && p.Group() != r.Group {
				continue
			}

			fragment, err := p.Content(ctx, r, ti)
			if err != nil {
				name := providerName(p)
				switch r.Policy {
				case FailCollect:
					collector.Add(ti.String(), name, err)
					continue
				case FailLog:
					r.logger.Error(ctx, err, "provider failed",
						"template", ti.String(), "provider", name)
					continue
				default:
					return "", fmt.Errorf("%s (%s): %w", ti.String(), name, err)
				}
			}

			if fragment != "" {
				r.html = append(r.html, fragment)
				r.metrics.FragmentEmitted(p.Group())
			}
		}
	}
	r.inheritanceIndex = len(r.Chain)

	if collector.HasErrors() {
		return "", collector.Err()
	}
	return strings.Join(r.html, "\n"), nil
}

func providerName(p Provider) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", p)
}
