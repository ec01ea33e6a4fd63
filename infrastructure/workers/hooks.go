package workers

import (
	"context"

	"github.com/jrazmi/habitsync/sdk/logger"
)

// AddPreProcessHooks runs hooks after Checkout and before Process. Call
// before Start.
func (p *Pool[T]) AddPreProcessHooks(hooks ...PreProcessHook[T]) {
	p.preProcessHooks = append(p.preProcessHooks, hooks...)
}

// AddPostProcessHooks runs hooks after Process and before Complete or
// Fail. Call before Start.
func (p *Pool[T]) AddPostProcessHooks(hooks ...PostProcessHook[T]) {
	p.postProcessHooks = append(p.postProcessHooks, hooks...)
}

// LogOutcomeHook logs each job's result at info, or warn on failure.
func LogOutcomeHook[T Job](log *logger.Logger) PostProcessHook[T] {
	return func(ctx context.Context, job T, err error) error {
		if err != nil {
			log.WarnContext(ctx, "job failed", "job_id", job.GetID(), "error", err)
			return nil
		}
		log.InfoContext(ctx, "job done", "job_id", job.GetID())
		return nil
	}
}
