// Package generator drafts a milestone roadmap from free text (a brief, a
// quote, meeting notes) by asking the agent service.
package generator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/guard"
	"freelancehub/internal/model"
	"freelancehub/internal/roadmap"
	"freelancehub/internal/storage"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/metrics"
	"freelancehub/pkg/otel"
)

const minTextLength = 10

// Result is a generated roadmap. Applied is set when the draft replaced the
// project's milestones.
type Result struct {
	Milestones []roadmap.MilestoneInput `json:"milestones"`
	Applied    []model.Milestone        `json:"applied,omitempty"`
}

type Generator struct {
	completer Completer
	store     storage.Reader
	engine    *roadmap.Engine
	logger    *zap.Logger
}

func New(completer Completer, store storage.Reader, engine *roadmap.Engine, logger *zap.Logger) *Generator {
	return &Generator{
		completer: completer,
		store:     store,
		engine:    engine,
		logger:    logger,
	}
}

// Generate drafts milestones for a project the caller owns. With apply the
// draft replaces the project's roadmap.
func (g *Generator) Generate(ctx context.Context, actor model.Actor, projectID, text string, apply bool) (*Result, error) {
	ctx, span := otel.StartSpan(ctx, "roadmap.generate")
	defer span.End()

	if _, err := guard.RequireOwnedProject(ctx, g.store, actor, projectID); err != nil {
		if apperr.IsApp(err) {
			return nil, err
		}
		return nil, g.fail(ctx, projectID, err)
	}

	text = strings.TrimSpace(text)
	if len([]rune(text)) < minTextLength {
		return nil, apperr.Validation("text must be at least %d characters", minTextLength)
	}

	content, err := g.completer.Complete(ctx, text)
	if err != nil {
		return nil, g.fail(ctx, projectID, err)
	}
	items, err := ParseMilestones(content)
	if err != nil {
		return nil, g.fail(ctx, projectID, err, zap.Int("output_length", len(content)))
	}
	metrics.IncrementMilestoneGeneration("success", len(items))

	res := &Result{Milestones: items}
	if apply {
		applied, err := g.engine.ReplaceAll(ctx, actor, projectID, items)
		if err != nil {
			return nil, err
		}
		res.Applied = applied
	}
	return res, nil
}

func (g *Generator) fail(ctx context.Context, projectID string, err error, fields ...zap.Field) error {
	metrics.IncrementMilestoneGeneration("failed", 1)
	logger.WithTrace(ctx, g.logger).Error("Roadmap generation failed",
		append(fields, zap.String("project_id", projectID), zap.Error(err))...,
	)
	return apperr.OperationFailed("could not generate a roadmap, try again later")
}
