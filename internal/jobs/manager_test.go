package jobs

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"effectlab/internal/domain"
	"effectlab/internal/effects"
	"effectlab/internal/providers/genai"
	"effectlab/internal/store"
	"effectlab/internal/transform"
)

// scriptedGenerator mimics the generative transformer. sleep does not honor
// context cancellation, so a sleeping generator models a call that completes
// only after its timeout already failed the job.
type scriptedGenerator struct {
	data  []byte
	err   error
	sleep time.Duration
}

func (g *scriptedGenerator) EditImage(ctx context.Context, data []byte, mimeType, directive string) ([]byte, string, error) {
	if g.sleep > 0 {
		time.Sleep(g.sleep)
	}
	return g.data, "image/png", g.err
}

func sourcePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 150))
	for y := 0; y < 150; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestManager(t *testing.T, gen transform.Generator, timeout time.Duration, fallback bool) (*Manager, *store.ImageStore, string) {
	t.Helper()
	st, err := store.New(t.TempDir(), 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("store.New returned error: %v", err)
	}
	sourceID, _, err := st.Put(context.Background(), sourcePNG(t), "image/png")
	if err != nil {
		t.Fatalf("seed source image: %v", err)
	}
	reg := effects.NewRegistry()
	exec := transform.NewExecutor(st, reg, gen, timeout, fallback, zerolog.Nop())
	return NewManager(st, reg, exec, zerolog.Nop()), st, sourceID
}

// waitTerminal polls GetStatus until the job reaches a terminal state,
// asserting monotone progress and legal transitions along the way.
func waitTerminal(t *testing.T, m *Manager, jobID string) domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	lastProgress := -1
	seenProcessing := false
	for time.Now().Before(deadline) {
		job, err := m.GetStatus(jobID)
		if err != nil {
			t.Fatalf("GetStatus returned error: %v", err)
		}
		if job.Progress < lastProgress {
			t.Fatalf("progress regressed from %d to %d", lastProgress, job.Progress)
		}
		lastProgress = job.Progress
		switch job.Status {
		case domain.JobStatusProcessing:
			seenProcessing = true
		case domain.JobStatusPending:
			if seenProcessing {
				t.Fatalf("status reversed from processing back to pending")
			}
		default:
			return job
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return domain.Job{}
}

func TestSubmitUnknownEffectCreatesNoJob(t *testing.T) {
	m, _, sourceID := newTestManager(t, &scriptedGenerator{err: genai.ErrNoImage}, time.Second, true)

	if _, err := m.Submit(context.Background(), sourceID, "does_not_exist"); !errors.Is(err, domain.ErrUnknownEffect) {
		t.Fatalf("Submit error = %v, want ErrUnknownEffect", err)
	}
	if n := m.Count(); n != 0 {
		t.Fatalf("job table size = %d, want 0 after rejected submission", n)
	}
}

func TestSubmitUnknownImage(t *testing.T) {
	m, _, _ := newTestManager(t, &scriptedGenerator{err: genai.ErrNoImage}, time.Second, true)

	if _, err := m.Submit(context.Background(), "missing-image", "vintage_filter"); !errors.Is(err, domain.ErrUnknownImage) {
		t.Fatalf("Submit error = %v, want ErrUnknownImage", err)
	}
	if n := m.Count(); n != 0 {
		t.Fatalf("job table size = %d, want 0 after rejected submission", n)
	}
}

func TestJobCompletesViaFallbackWhenGeneratorDeclines(t *testing.T) {
	m, st, sourceID := newTestManager(t, &scriptedGenerator{err: genai.ErrNoImage}, time.Second, true)

	jobID, err := m.Submit(context.Background(), sourceID, "vintage_filter")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	job := waitTerminal(t, m, jobID)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s (%s), want completed", job.Status, job.ErrorMessage)
	}
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want 100", job.Progress)
	}
	if job.ResultImageID == "" {
		t.Fatalf("completed job has no result image id")
	}
	if job.ErrorMessage != "" {
		t.Fatalf("completed job carries error message %q", job.ErrorMessage)
	}
	if job.CompletedAt == nil {
		t.Fatalf("completed job has no completion timestamp")
	}
	if !st.Exists(job.ResultImageID) {
		t.Fatalf("result image %q not in store", job.ResultImageID)
	}
}

func TestJobFailsOnGenerationErrorWithoutFallback(t *testing.T) {
	m, _, sourceID := newTestManager(t, &scriptedGenerator{err: errors.New("model refused")}, time.Second, false)

	jobID, err := m.Submit(context.Background(), sourceID, "noir")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	job := waitTerminal(t, m, jobID)
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Fatalf("failed job has no error message")
	}
	if job.ResultImageID != "" {
		t.Fatalf("failed job carries result image id %q", job.ResultImageID)
	}
}

func TestTerminalStatusIsIdempotent(t *testing.T) {
	m, _, sourceID := newTestManager(t, &scriptedGenerator{err: genai.ErrNoImage}, time.Second, true)

	jobID, err := m.Submit(context.Background(), sourceID, "vintage_filter")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	first := waitTerminal(t, m, jobID)

	for i := 0; i < 10; i++ {
		again, err := m.GetStatus(jobID)
		if err != nil {
			t.Fatalf("GetStatus returned error: %v", err)
		}
		if again.Status != first.Status || again.Progress != first.Progress ||
			again.ResultImageID != first.ResultImageID || again.ErrorMessage != first.ErrorMessage {
			t.Fatalf("terminal status drifted: first %+v, later %+v", first, again)
		}
	}
}

func TestLateGenerationCannotOverwriteTimedOutJob(t *testing.T) {
	src := sourcePNG(t)
	gen := &scriptedGenerator{data: src, sleep: 150 * time.Millisecond}
	m, _, sourceID := newTestManager(t, gen, 20*time.Millisecond, false)

	jobID, err := m.Submit(context.Background(), sourceID, "vintage_filter")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	job := waitTerminal(t, m, jobID)
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed after timeout", job.Status)
	}

	// Let the sleeping generator finish its late "success", then verify
	// nothing about the terminal job changed.
	time.Sleep(300 * time.Millisecond)
	after, err := m.GetStatus(jobID)
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if after.Status != domain.JobStatusFailed {
		t.Fatalf("late generation flipped status to %s", after.Status)
	}
	if after.ResultImageID != "" {
		t.Fatalf("late generation attached result image %q", after.ResultImageID)
	}
	if after.ErrorMessage != job.ErrorMessage || after.Progress != job.Progress {
		t.Fatalf("terminal job mutated after late completion: before %+v, after %+v", job, after)
	}
}

func TestGetStatusUnknownJob(t *testing.T) {
	m, _, _ := newTestManager(t, &scriptedGenerator{}, time.Second, true)
	if _, err := m.GetStatus("never-submitted"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("GetStatus error = %v, want ErrJobNotFound", err)
	}
}

func TestConcurrentSubmissions(t *testing.T) {
	m, _, sourceID := newTestManager(t, &scriptedGenerator{err: genai.ErrNoImage}, time.Second, true)

	const n = 8
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			id, err := m.Submit(context.Background(), sourceID, "vivid_pop")
			if err != nil {
				t.Errorf("Submit returned error: %v", err)
				ids <- ""
				return
			}
			ids <- id
		}()
	}

	for i := 0; i < n; i++ {
		id := <-ids
		if id == "" {
			continue
		}
		job := waitTerminal(t, m, id)
		if job.Status != domain.JobStatusCompleted {
			t.Fatalf("job %s status = %s (%s), want completed", id, job.Status, job.ErrorMessage)
		}
	}
	if m.Count() != n {
		t.Fatalf("job table size = %d, want %d", m.Count(), n)
	}
}
