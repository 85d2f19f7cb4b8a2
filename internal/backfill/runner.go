package backfill

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/MikeSquared-Agency/veilmatch/internal/bus"
	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
	"github.com/MikeSquared-Agency/veilmatch/internal/service"
	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

// Applier folds a tally into a user's trust score.
type Applier interface {
	ApplyActions(ctx context.Context, userID string, tally trust.ActionTally) (service.TrustChange, error)
}

// Config holds the replay configuration.
type Config struct {
	Dir       string   // every *.jsonl file in Dir is replayed
	Files     []string // explicit files, replayed after Dir
	StatePath string
	DryRun    bool // parse and count only
}

// Summary counts what a run did.
type Summary struct {
	Files   int `json:"files"`
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Runner replays archived trust signals, one JSON object per line, through
// the same path live bus signals take.
type Runner struct {
	cfg     Config
	applier Applier
	logger  *slog.Logger
}

func NewRunner(cfg Config, a Applier, logger *slog.Logger) *Runner {
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}
	return &Runner{cfg: cfg, applier: a, logger: logger}
}

func (r *Runner) discoverFiles() ([]string, error) {
	var files []string
	if r.cfg.Dir != "" {
		matches, err := filepath.Glob(filepath.Join(r.cfg.Dir, "*.jsonl"))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", r.cfg.Dir, err)
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return append(files, r.cfg.Files...), nil
}

// maxLineSize bounds one archived signal line.
const maxLineSize = 1 << 20

// Run replays every file not yet recorded in the state. Progress is kept per
// line: a file that stops partway (cancellation, a failed apply, an
// unreadable line) is resumed after its last consumed line on the next run,
// so no signal is applied twice. State is saved after each file and on
// interruption. A dry run never writes state.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return Summary{}, fmt.Errorf("load state: %w", err)
	}
	files, err := r.discoverFiles()
	if err != nil {
		return Summary{}, fmt.Errorf("discover files: %w", err)
	}

	var sum Summary
	for _, path := range files {
		if state.IsProcessed(path) {
			r.logger.Info("skipping replayed file", "path", path)
			continue
		}
		if ctx.Err() != nil {
			return sum, r.interrupted(ctx, state, path)
		}

		fileSum, err := r.replayFile(ctx, path, state)
		sum.Files++
		sum.Applied += fileSum.Applied
		sum.Skipped += fileSum.Skipped
		sum.Failed += fileSum.Failed
		if err != nil {
			if ctx.Err() != nil {
				return sum, r.interrupted(ctx, state, path)
			}
			state.AddError(fmt.Sprintf("replay %s: %v", path, err))
			r.logger.Warn("failed to replay file", "path", path, "resume_line", state.Offset(path)+1, "error", err)
			if err := r.save(state); err != nil {
				return sum, err
			}
			continue
		}

		r.logger.Info("file replayed",
			"path", path,
			"applied", fileSum.Applied,
			"skipped", fileSum.Skipped,
			"failed", fileSum.Failed,
		)
		if r.cfg.DryRun {
			continue
		}
		state.MarkProcessed(path)
		if err := r.save(state); err != nil {
			return sum, err
		}
	}
	return sum, r.save(state)
}

func (r *Runner) interrupted(ctx context.Context, state *State, path string) error {
	r.logger.Info("backfill interrupted, saving state", "path", path, "resume_line", state.Offset(path)+1)
	if err := r.save(state); err != nil {
		r.logger.Error("failed to save state", "error", err)
	}
	return ctx.Err()
}

func (r *Runner) save(state *State) error {
	if r.cfg.DryRun {
		return nil
	}
	if err := state.Save(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// replayFile applies the lines of path after its recorded offset. It stops at
// the first line that could not be applied, leaving the offset just before it.
func (r *Runner) replayFile(ctx context.Context, path string, state *State) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()

	var sum Summary
	skip := state.Offset(path)
	consumed := func(line int) {
		if !r.cfg.DryRun {
			state.SetOffset(path, line)
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		line++
		if line <= skip {
			continue
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			consumed(line)
			continue
		}

		sig, err := bus.ParseTrustSignal(raw)
		if err != nil {
			sum.Skipped++
			state.SignalsSkipped++
			state.AddError(fmt.Sprintf("%s:%d: %v", path, line, err))
			consumed(line)
			continue
		}
		if r.cfg.DryRun {
			sum.Applied++
			continue
		}

		if _, err := r.applier.ApplyActions(ctx, sig.UserID, sig.Tally); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				sum.Skipped++
				state.SignalsSkipped++
				consumed(line)
				continue
			}
			if ctx.Err() != nil {
				return sum, fmt.Errorf("line %d: %w", line, err)
			}
			sum.Failed++
			return sum, fmt.Errorf("apply line %d: %w", line, err)
		}
		sum.Applied++
		state.SignalsApplied++
		consumed(line)
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("read line %d: %w", line+1, err)
	}
	return sum, nil
}
