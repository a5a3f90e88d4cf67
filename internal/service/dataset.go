package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/internal/service/mappers"
	"github.com/mozilla-ai/lumigator/internal/store"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"github.com/mozilla-ai/lumigator/pkg/artifact"
	"github.com/mozilla-ai/lumigator/pkg/log"
	"github.com/mozilla-ai/lumigator/pkg/metrics"
	"github.com/thoas/go-funk"
	"github.com/xuri/excelize/v2"
)

const (
	ExamplesColumn    = "examples"
	GroundTruthColumn = "ground_truth"

	xlsxExtension  = ".xlsx"
	csvContentType = "text/csv"
)

type DatasetService struct {
	store     store.Store
	artifacts artifact.Store
	maxSize   int64
	logger    *log.StructuredLogger
}

func NewDatasetService(store store.Store, artifacts artifact.Store, maxSize int64) *DatasetService {
	return &DatasetService{
		store:     store,
		artifacts: artifacts,
		maxSize:   maxSize,
		logger:    log.NewDebugLogger("dataset_service"),
	}
}

// Upload validates the dataset, records it and writes its canonical CSV to the artifact store.
func (ds *DatasetService) Upload(ctx context.Context, form mappers.DatasetUploadForm) (*model.Dataset, error) {
	tracer := ds.logger.WithContext(ctx).Operation("upload_dataset").
		WithString("filename", form.Filename).
		WithString("format", form.Format).
		WithBool("generated", form.Generated).
		Build()

	dataset, err := ds.upload(ctx, form, tracer)
	if err != nil {
		metrics.IncreaseDatasetUploadsMetric(metrics.OutcomeFailure)
		tracer.Error(err).Log()
		return nil, err
	}

	metrics.IncreaseDatasetUploadsMetric(metrics.OutcomeSuccess)
	tracer.Success().WithUUID("dataset_id", dataset.ID).WithBool("ground_truth", dataset.GroundTruth).Log()
	return dataset, nil
}

func (ds *DatasetService) upload(ctx context.Context, form mappers.DatasetUploadForm, tracer *log.OperationTracer) (*model.Dataset, error) {
	if form.Format != model.DatasetFormatJob {
		return nil, NewErrValidation("unsupported dataset format %q", form.Format)
	}

	tmp, size, err := ds.spool(form.Body)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)
	tracer.Step("spool_upload").WithParam("size", size).Log()

	xlsx := strings.EqualFold(path.Ext(form.Filename), xlsxExtension)

	var rows [][]string
	if xlsx {
		rows, err = readWorkbook(tmp)
	} else {
		rows, err = readCSV(tmp)
	}
	if err != nil {
		return nil, err
	}

	header := rows[0]
	if !funk.ContainsString(header, ExamplesColumn) {
		return nil, NewErrDatasetMissingFields([]string{ExamplesColumn})
	}
	groundTruth := hasGroundTruth(rows)
	tracer.Step("validate_dataset").WithInt("rows", len(rows)-1).WithBool("ground_truth", groundTruth).Log()

	canonical, err := encodeCSV(rows)
	if err != nil {
		return nil, NewErrDatasetInvalid(err.Error())
	}

	var dataset *model.Dataset
	err = store.InTransaction(ctx, ds.store, func(ctx context.Context) error {
		created, err := ds.store.Dataset().Create(ctx, form.ToModel(uuid.New(), size, groundTruth))
		if err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}
		tracer.Step("create_dataset_record").WithUUID("dataset_id", created.ID).Log()

		if err := ds.putTree(ctx, created, tmp, canonical, xlsx); err != nil {
			// the record is rolled back, only the objects already written need removing
			if rmErr := ds.artifacts.RemoveRecursive(ctx, artifact.DatasetPrefix(created.ID)); rmErr != nil && !errors.Is(rmErr, artifact.ErrNotFound) {
				tracer.Warn("failed to remove partial dataset tree").WithParam("error", rmErr.Error()).Log()
			}
			return NewErrUpstream("s3", err)
		}
		tracer.Step("upload_dataset_tree").Log()

		dataset = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dataset, nil
}

// spool copies body into a temporary file, failing once more than maxSize bytes are read.
func (ds *DatasetService) spool(body io.Reader) (string, int64, error) {
	f, err := os.CreateTemp("", "dataset-*")
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(body, ds.maxSize+1))
	if err != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("failed to read dataset: %w", err)
	}
	if n > ds.maxSize {
		os.Remove(f.Name())
		return "", 0, NewErrDatasetSize(humanize.Bytes(uint64(ds.maxSize)))
	}
	return f.Name(), n, nil
}

func (ds *DatasetService) putTree(ctx context.Context, dataset *model.Dataset, source string, canonical []byte, xlsx bool) error {
	if xlsx {
		if err := ds.artifacts.PutFile(ctx, artifact.SourceDatasetKey(dataset.ID, dataset.Filename), source); err != nil {
			return err
		}
	}
	key := artifact.CanonicalDatasetKey(dataset.ID, dataset.Filename)
	return ds.artifacts.PutObject(ctx, key, bytes.NewReader(canonical), int64(len(canonical)), csvContentType)
}

func (ds *DatasetService) Get(ctx context.Context, id uuid.UUID) (*model.Dataset, error) {
	dataset, err := ds.store.Dataset().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrDatasetNotFound(id)
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return dataset, nil
}

// GetByJobID returns the dataset produced by the job.
func (ds *DatasetService) GetByJobID(ctx context.Context, jobID uuid.UUID) (*model.Dataset, error) {
	dataset, err := ds.store.Dataset().GetByRunID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrResourceNotFound(jobID.String(), "dataset of job")
		}
		return nil, fmt.Errorf("failed to get dataset of job: %w", err)
	}
	return dataset, nil
}

func (ds *DatasetService) List(ctx context.Context, skip, limit int) (model.DatasetList, int64, error) {
	tracer := ds.logger.WithContext(ctx).Operation("list_datasets").
		WithInt("skip", skip).
		WithInt("limit", limit).
		Build()

	total, err := ds.store.Dataset().Count(ctx, nil)
	if err != nil {
		tracer.Error(err).Log()
		return nil, 0, fmt.Errorf("failed to count datasets: %w", err)
	}

	opts := store.NewDatasetQueryOptions().
		WithSortOrder(store.SortByCreatedTime).
		WithOffset(skip).
		WithLimit(limit)
	datasets, err := ds.store.Dataset().List(ctx, nil, opts)
	if err != nil {
		tracer.Error(err).Log()
		return nil, 0, fmt.Errorf("failed to list datasets: %w", err)
	}

	tracer.Success().WithInt("count", len(datasets)).Log()
	return datasets, total, nil
}

// GetS3Path returns the uri of the dataset tree.
func (ds *DatasetService) GetS3Path(ctx context.Context, id uuid.UUID) (string, error) {
	dataset, err := ds.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return ds.artifacts.URI(artifact.DatasetKey(dataset.ID, dataset.Filename)), nil
}

// Delete removes the dataset tree and its record. A tree already gone is not an error.
func (ds *DatasetService) Delete(ctx context.Context, id uuid.UUID) error {
	tracer := ds.logger.WithContext(ctx).Operation("delete_dataset").WithUUID("dataset_id", id).Build()

	if _, err := ds.Get(ctx, id); err != nil {
		tracer.Error(err).Log()
		return err
	}

	if err := ds.artifacts.RemoveRecursive(ctx, artifact.DatasetPrefix(id)); err != nil {
		if !errors.Is(err, artifact.ErrNotFound) {
			tracer.Error(err).Log()
			return NewErrUpstream("s3", err)
		}
		tracer.Warn("dataset tree not found").Log()
	}

	if err := ds.store.Dataset().Delete(ctx, id); err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		tracer.Error(err).Log()
		return fmt.Errorf("failed to delete dataset: %w", err)
	}

	tracer.Success().Log()
	return nil
}

// Download returns presigned urls of every object of the dataset whose key ends with extension.
func (ds *DatasetService) Download(ctx context.Context, id uuid.UUID, extension string) ([]string, error) {
	tracer := ds.logger.WithContext(ctx).Operation("download_dataset").
		WithUUID("dataset_id", id).
		WithString("extension", extension).
		Build()

	objects, err := ds.artifacts.ListObjects(ctx, artifact.DatasetPrefix(id))
	if err != nil {
		tracer.Error(err).Log()
		return nil, NewErrUpstream("s3", err)
	}
	if len(objects) == 0 {
		return nil, NewErrDatasetNotFound(id)
	}

	extension = strings.ToLower(strings.TrimSpace(extension))
	keys := funk.Map(objects, func(o artifact.ObjectInfo) string { return o.Key }).([]string)
	if extension != "" {
		keys = funk.FilterString(keys, func(k string) bool {
			return strings.HasSuffix(strings.ToLower(k), extension)
		})
	}

	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		url, err := ds.artifacts.PresignedGetURL(ctx, key)
		if err != nil {
			tracer.Error(err).Log()
			return nil, NewErrUpstream("s3", err)
		}
		urls = append(urls, url)
	}

	tracer.Success().WithInt("count", len(urls)).Log()
	return urls, nil
}

func readCSV(name string) ([][]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, NewErrDatasetInvalid(err.Error())
	}
	if len(rows) == 0 {
		return nil, NewErrDatasetInvalid("no header row")
	}
	for i, row := range rows {
		for _, field := range row {
			if !utf8.ValidString(field) {
				return nil, NewErrDatasetInvalid(fmt.Sprintf("line %d is not valid UTF-8", i+1))
			}
		}
	}
	return rows, nil
}

// readWorkbook reads the first sheet of a workbook. Short rows are padded to the header width.
func readWorkbook(name string) ([][]string, error) {
	f, err := excelize.OpenFile(name)
	if err != nil {
		return nil, NewErrDatasetInvalid(err.Error())
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewErrDatasetInvalid("workbook has no sheet")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, NewErrDatasetInvalid(err.Error())
	}
	if len(rows) == 0 {
		return nil, NewErrDatasetInvalid("no header row")
	}

	width := len(rows[0])
	for i, row := range rows {
		if len(row) > width {
			return nil, NewErrDatasetInvalid(fmt.Sprintf("row %d has more cells than the header", i+1))
		}
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}
	return rows, nil
}

// hasGroundTruth is true when the ground truth column exists and no row leaves it blank.
func hasGroundTruth(rows [][]string) bool {
	col := funk.IndexOfString(rows[0], GroundTruthColumn)
	if col < 0 {
		return false
	}
	for _, row := range rows[1:] {
		if strings.TrimSpace(row[col]) == "" {
			return false
		}
	}
	return true
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
