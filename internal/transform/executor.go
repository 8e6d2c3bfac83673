// Package transform runs the effect pipeline for a single job: resolve the
// effect, load the source image, attempt generative transformation under a
// timeout, optionally fall back to a deterministic filter chain, and persist
// the result.
package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/rs/zerolog"

	"effectlab/internal/effects"
	"effectlab/internal/store"
)

const jpegQuality = 85

// Generator is the contract the generative transformer must satisfy. A
// text-only or empty response is reported as an error; the executor does not
// care which error, only whether image bytes came back.
type Generator interface {
	EditImage(ctx context.Context, data []byte, mimeType, directive string) ([]byte, string, error)
}

// Executor applies one effect to one source image. It is stateless and safe
// to share across concurrent jobs.
type Executor struct {
	store     *store.ImageStore
	registry  *effects.Registry
	generator Generator
	timeout   time.Duration
	fallback  bool
	logger    zerolog.Logger
}

// NewExecutor wires an executor. fallback toggles the deterministic filter
// pipeline used when generation yields no image; with it disabled any
// generation failure fails the job (AI-only mode).
func NewExecutor(st *store.ImageStore, reg *effects.Registry, gen Generator, timeout time.Duration, fallback bool, logger zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		store:     st,
		registry:  reg,
		generator: gen,
		timeout:   timeout,
		fallback:  fallback,
		logger:    logger,
	}
}

type generation struct {
	data []byte
	err  error
}

// Execute runs the pipeline and returns the id of the stored result image.
// Progress is reported through the injected callback at fixed milestones;
// the values are advisory and never drive control flow.
func (e *Executor) Execute(ctx context.Context, sourceImageID, effectID string, report func(int)) (string, error) {
	if report == nil {
		report = func(int) {}
	}

	// Re-checked defensively even though submission validates eagerly.
	desc, err := e.registry.Resolve(effectID)
	if err != nil {
		return "", fmt.Errorf("resolve effect %q: %w", effectID, err)
	}

	srcData, srcMeta, err := e.store.Get(ctx, sourceImageID)
	if err != nil {
		return "", fmt.Errorf("load source image %q: %w", sourceImageID, err)
	}
	report(20)

	report(40)
	generated, timedOut, genErr := e.generate(ctx, srcData, srcMeta.ContentType(), desc.Prompt())
	report(60)

	var result image.Image
	switch {
	case genErr == nil && len(generated) > 0:
		result, err = decodeImage(generated)
		if err != nil {
			e.logger.Warn().Err(err).Str("effect_id", effectID).Msg("transform: generated bytes undecodable")
			genErr = err
		}
	case genErr == nil:
		genErr = fmt.Errorf("generator returned no image")
	}

	if result == nil {
		if !e.fallback {
			if timedOut {
				return "", fmt.Errorf("generation timed out after %s: %w", e.timeout, genErr)
			}
			return "", fmt.Errorf("generation failed: %w", genErr)
		}
		e.logger.Info().
			Err(genErr).
			Str("effect_id", effectID).
			Bool("timed_out", timedOut).
			Msg("transform: generation unavailable, applying deterministic fallback")
		result, err = applyFallback(srcData, effectID)
		if err != nil {
			return "", fmt.Errorf("fallback filter: %w", err)
		}
	}
	report(80)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, result, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	report(90)

	resultID, _, err := e.store.Put(ctx, buf.Bytes(), "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("persist result: %w", err)
	}
	report(100)

	e.logger.Info().
		Str("source_image_id", sourceImageID).
		Str("result_image_id", resultID).
		Str("effect_id", effectID).
		Msg("transform: effect applied")
	return resultID, nil
}

// generate races the generative call against the configured timeout. A call
// that finishes after the deadline delivers into a buffered channel that is
// then abandoned; its result can never leak into the pipeline.
func (e *Executor) generate(ctx context.Context, data []byte, mimeType, directive string) ([]byte, bool, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ch := make(chan generation, 1)
	go func() {
		out, _, err := e.generator.EditImage(genCtx, data, mimeType, directive)
		ch <- generation{data: out, err: err}
	}()

	select {
	case res := <-ch:
		return res.data, false, res.err
	case <-genCtx.Done():
		return nil, true, genCtx.Err()
	}
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	return img, nil
}
