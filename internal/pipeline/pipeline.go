// Package pipeline implements spec.md §4.8: the Processing Pipeline that
// chains the HTML Processor, Markdown Converter, and Text Normalizer over a
// scraper's raw HTML, timing each stage and collecting non-fatal stage
// errors instead of aborting the whole chain.
package pipeline

import (
	"time"

	"github.com/ncecere-raito/scrapeengine/internal/htmlproc"
	"github.com/ncecere-raito/scrapeengine/internal/mdconvert"
	"github.com/ncecere-raito/scrapeengine/internal/model"
	"github.com/ncecere-raito/scrapeengine/internal/textproc"
)

// Options configures one Run call.
type Options struct {
	HTMLOptions htmlproc.Options
	TextOptions textproc.Options
	DomainHint  string
	// StructurePreservingText switches the text stage's HTML→text source
	// from the HTML Processor's flat stripped text to textproc.ExtractText's
	// structure-preserving mode, per spec.md §4.7.
	StructurePreservingText bool
	// StopOnError aborts the remaining stages the first time one fails,
	// per spec.md §4.8 ("a stage error never prevents following stages
	// from running unless stop_on_error is set"). The aborted stages are
	// left out of Metadata.StagesExecuted entirely.
	StopOnError bool
	// PreserveOriginal controls what RawMarkup holds, per spec.md §3:
	// true keeps the untouched input; false stores the cleaned markup
	// instead, the way CleanMarkup does.
	PreserveOriginal bool
}

// Run executes htmlproc, then mdconvert and textproc over its output,
// recording each stage's elapsed time and any non-fatal error. Unless
// Options.StopOnError is set, a stage failure does not abort the pipeline:
// later stages run against whatever the last successful stage produced,
// per spec.md §4.8's degrade-gracefully rule.
func Run(rawHTML string, opts Options) model.ProcessedContent {
	out := model.ProcessedContent{}
	meta := &out.Metadata
	meta.TextStats.OriginalLen = len(rawHTML)

	htmlStart := time.Now()
	htmlResult, err := htmlproc.Process(rawHTML, opts.HTMLOptions)
	recordStage(meta, "htmlproc", htmlStart, err)
	if htmlResult.Truncated {
		meta.Errors = append(meta.Errors, model.StageError{Stage: "htmlproc", Message: "markup truncated to max length"})
	}
	if err == nil {
		out.CleanMarkup = htmlResult.CleanMarkup
		out.MainContent = htmlResult.MainContent
		out.HasMain = htmlResult.HasMainContent
		meta.MarkupStats.OriginalLen = htmlResult.OriginalLen
		meta.MarkupStats.CleanLen = htmlResult.CleanLen
		if htmlResult.HasMainContent {
			mainLen := htmlResult.MainLen
			meta.MarkupStats.MainLen = &mainLen
		}
	} else {
		out.CleanMarkup = rawHTML
	}

	if opts.StopOnError && (err != nil || htmlResult.Truncated) {
		return finish(out, rawHTML, opts)
	}

	sourceForConversion := out.CleanMarkup
	if out.HasMain {
		sourceForConversion = out.MainContent
	}

	mdStart := time.Now()
	mdResult, err := mdconvert.Convert(sourceForConversion, opts.DomainHint)
	recordStage(meta, "mdconvert", mdStart, err)
	if err == nil {
		out.Markdown = mdResult.Markdown
	}

	if err != nil && opts.StopOnError {
		return finish(out, rawHTML, opts)
	}

	textSource := htmlResult.Text
	if opts.StructurePreservingText {
		structuralSource := out.CleanMarkup
		if out.HasMain {
			structuralSource = out.MainContent
		}
		if extracted, extractErr := textproc.ExtractText(structuralSource, true); extractErr == nil && extracted != "" {
			textSource = extracted
		}
	}
	if textSource == "" {
		textSource = out.Markdown
	}

	textStart := time.Now()
	normalized := textproc.Normalize(textSource, opts.TextOptions)
	recordStage(meta, "textproc", textStart, nil)
	out.Text = normalized
	meta.TextStats.ProcessedLen = len(normalized)

	return finish(out, rawHTML, opts)
}

// finish fills in RawMarkup per Options.PreserveOriginal and totals the
// per-stage timings recorded so far, regardless of whether Run returned
// early under StopOnError.
func finish(out model.ProcessedContent, rawHTML string, opts Options) model.ProcessedContent {
	if opts.PreserveOriginal {
		out.RawMarkup = rawHTML
	} else {
		out.RawMarkup = out.CleanMarkup
	}

	var total int64
	for _, t := range out.Metadata.PerStageTimings {
		total += t.Ms
	}
	out.Metadata.ExecutionTimeMs = total

	return out
}

func recordStage(meta *model.ProcessedContentMetadata, stage string, start time.Time, err error) {
	elapsed := time.Since(start)
	meta.StagesExecuted = append(meta.StagesExecuted, stage)
	meta.PerStageTimings = append(meta.PerStageTimings, model.StageTiming{
		Stage: stage,
		Ms:    elapsed.Milliseconds(),
	})
	if err != nil {
		meta.Errors = append(meta.Errors, model.StageError{Stage: stage, Message: err.Error()})
	}
}
