package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/models"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/photogen"
)

// NoImagesSelectedError is the per-product error recorded when a product
// reaches generation with an empty selection. No backend call is made.
const NoImagesSelectedError = "no images selected"

// Observer receives each finished result row together with the live
// completed/total counter.
type Observer func(row models.ResultRow, completed, total int)

type generationTask struct {
	ean     string
	name    string
	urls    []string
	uploads []string
}

// runSequence drives one generation call per task, strictly sequentially:
// call N+1 is not issued before call N's row has been emitted. Rows appear in
// task order, exactly one per task, failures included. A cancelled context
// stops issuing calls; the remaining tasks still get their rows so the
// rows-per-eligible-product invariant holds.
func runSequence(ctx context.Context, backend Backend, tasks []generationTask, callTimeout time.Duration, emit func(row models.ResultRow, outcome string)) {
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			emit(models.ResultRow{
				EAN:         task.ean,
				ProductName: task.name,
				Error:       fmt.Sprintf("generation aborted: %v", err),
			}, "cancelled")
			continue
		}

		if len(task.urls) == 0 && len(task.uploads) == 0 {
			emit(models.ResultRow{
				EAN:         task.ean,
				ProductName: task.name,
				Error:       NoImagesSelectedError,
			}, "no_images")
			continue
		}

		slog.Info("Generating description", "ean", task.ean, "progress", fmt.Sprintf("%d/%d", i+1, len(tasks)))

		callCtx := ctx
		cancel := func() {}
		if callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, callTimeout)
		}
		result, err := backend.RunFromImages(callCtx, photogen.GenerationRequest{
			EAN:            task.ean,
			ProductName:    task.name,
			ImageURLs:      task.urls,
			UploadedImages: task.uploads,
		})
		cancel()

		if err != nil {
			slog.Error("Generation failed", "ean", task.ean, "error", err)
			emit(models.ResultRow{
				EAN:         task.ean,
				ProductName: task.name,
				Error:       err.Error(),
			}, "error")
			continue
		}

		emit(buildRow(task, result), "ok")
	}
}

// buildRow maps a backend result onto a row, falling back to the request's
// identity fields when the backend omits them.
func buildRow(task generationTask, result *photogen.GenerationResult) models.ResultRow {
	row := models.ResultRow{
		EAN:            task.ean,
		ProductName:    task.name,
		Description:    result.Description(),
		EANFromImages:  result.Verified.EANFromImages,
		Dimensions:     result.Verified.Dimensions,
		VolumeOrWeight: result.Verified.VolumeOrWeight,
	}
	if result.EAN != "" {
		row.EAN = result.EAN
	}
	if result.Product.Name != "" {
		row.ProductName = result.Product.Name
	}
	return row
}
