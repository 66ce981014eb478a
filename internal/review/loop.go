package review

import (
	"context"

	"go.uber.org/zap"
)

// DefaultMaxIters bounds the grade/revise loop.
const DefaultMaxIters = 4

// LoopResult is the outcome of the grade/revise loop: the best-scoring
// draft seen and its verdict, plus how many gradings ran.
type LoopResult struct {
	Draft      string
	Verdict    GradeResult
	Iterations int
}

// Loop drives the grade/revise state machine over an assembled draft.
type Loop struct {
	grader   *Grader
	reviser  *Reviser
	maxIters int
	log      *zap.Logger
}

// NewLoop builds a Loop; maxIters <= 0 selects the default; log may be nil.
func NewLoop(grader *Grader, reviser *Reviser, maxIters int, log *zap.Logger) *Loop {
	if maxIters <= 0 {
		maxIters = DefaultMaxIters
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{grader: grader, reviser: reviser, maxIters: maxIters, log: log}
}

// Run grades the draft and revises until the grader is satisfied or the
// iteration budget runs out, performing at most maxIters+1 gradings. The
// returned draft is the earliest best-scoring one across iterations, never
// simply the last. If grading fails to parse even after its strict retry
// the loop terminates with the current draft and a synthetic failure
// verdict rather than erroring out.
func (l *Loop) Run(ctx context.Context, draft, researchQuestion string, items []EvidenceItem) LoopResult {
	best := LoopResult{Draft: draft, Verdict: GradeResult{Score: -1}}

	current := draft
	for iter := 0; iter <= l.maxIters; iter++ {
		verdict, err := l.grader.Grade(ctx, current, researchQuestion, items)
		if err != nil {
			l.log.Warn("grading failed, keeping current draft", zap.Int("iteration", iter+1), zap.Error(err))
			if best.Verdict.Score < 0 {
				best.Draft = current
				best.Verdict = GradeResult{
					Satisfactory: false,
					Score:        0,
					MajorIssues:  []string{"grading unavailable: model response never parsed"},
					RevisionPlan: "",
				}
			}
			best.Iterations = iter + 1
			return best
		}

		l.log.Info("draft graded",
			zap.Int("iteration", iter+1),
			zap.Int("score", verdict.Score),
			zap.Bool("satisfactory", verdict.Satisfactory))

		// Strictly greater keeps the earliest draft at a tied score.
		if verdict.Score > best.Verdict.Score {
			best.Draft = current
			best.Verdict = verdict
		}
		best.Iterations = iter + 1

		if verdict.Satisfactory || iter == l.maxIters {
			return best
		}

		revised, err := l.reviser.Revise(ctx, current, verdict, items)
		if err != nil {
			l.log.Warn("revision failed, keeping best draft", zap.Int("iteration", iter+1), zap.Error(err))
			return best
		}
		current = revised
	}
	return best
}
