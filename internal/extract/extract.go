// Package extract turns uploaded statements into transaction candidates.
// JSON uploads are decoded directly. CSV and Excel files are sent to a
// language model in fixed-size row chunks, and images go to a
// vision-capable model in a single request.
package extract

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"budget-tracker-backend/internal/logging"
)

// FileType is the declared kind of an upload.
type FileType string

const (
	FileTypeCSV   FileType = "csv"
	FileTypeExcel FileType = "excel"
	FileTypeJSON  FileType = "json"
	FileTypeImage FileType = "image"
)

// ParseFileType validates the declared file type.
func ParseFileType(s string) (FileType, error) {
	switch ft := FileType(strings.ToLower(strings.TrimSpace(s))); ft {
	case FileTypeCSV, FileTypeExcel, FileTypeJSON, FileTypeImage:
		return ft, nil
	}
	return "", newError(KindUnsupportedFileType, http.StatusBadRequest, nil,
		"unsupported fileType %q: must be one of csv, excel, json, image", s)
}

// DefaultChunkRows is the number of data rows sent to the model per call.
const DefaultChunkRows = 50

const instructions = `Each transaction should have: date (YYYY-MM-DD format), amount (positive number), and description.
Determine if each transaction is Income, Expenses, or Savings based on context (negative amounts or debits = Expenses, positive amounts or credits = Income, transfers to savings = Savings) and include it as "type".
Return ONLY a valid JSON array, no other text.`

const tableSystemPrompt = `You are a financial data extraction assistant. Extract transaction data from the provided CSV content and return it as a JSON array.
` + instructions

const imagePrompt = `Extract all transaction data from this bank statement screenshot. Return a JSON array of transactions.
` + instructions

// Request is one model call. ImageURL is set for vision requests.
type Request struct {
	System   string
	User     string
	ImageURL string
}

// Completer sends a request to a language model and returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Extractor runs the extraction pipeline.
type Extractor struct {
	completer Completer
	chunkRows int
	logger    *slog.Logger
}

// NewExtractor returns an Extractor. A nil completer means no AI provider
// is configured; only JSON uploads can then be processed.
func NewExtractor(completer Completer, chunkRows int) *Extractor {
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}
	return &Extractor{
		completer: completer,
		chunkRows: chunkRows,
		logger:    slog.Default().With(logging.FieldComponent, logging.ComponentExtract),
	}
}

// Configured reports whether an AI provider is available.
func (e *Extractor) Configured() bool {
	return e.completer != nil
}

// Extract reads the upload and returns its transaction candidates with
// dates normalized. Any failing chunk fails the whole extraction.
func (e *Extractor) Extract(ctx context.Context, ft FileType, r io.Reader) ([]Record, error) {
	var (
		records []Record
		err     error
	)
	switch ft {
	case FileTypeJSON:
		records, err = e.fromJSON(r)
	case FileTypeCSV, FileTypeExcel:
		records, err = e.fromTable(ctx, ft, r)
	case FileTypeImage:
		records, err = e.fromImage(ctx, r)
	default:
		err = newError(KindUnsupportedFileType, http.StatusBadRequest, nil, "unsupported fileType %q", ft)
	}
	if err != nil {
		return nil, err
	}

	normalizeDates(records)
	e.logger.InfoContext(ctx, "extraction finished", logging.FieldFileType, ft, "records", len(records))
	return records, nil
}

func (e *Extractor) fromJSON(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newError(KindFileParse, http.StatusUnprocessableEntity, err, "could not read JSON file")
	}
	records, ok := decodeRecords(data)
	if !ok {
		return nil, newError(KindInvalidInput, http.StatusBadRequest, nil,
			"JSON must be an array of transactions or an object with a \"transactions\" array")
	}
	return records, nil
}

func (e *Extractor) requireCompleter() error {
	if e.completer == nil {
		return newError(KindAPIKeyMissing, http.StatusServiceUnavailable, nil,
			"OpenAI API key not configured. Set OPENAI_API_KEY to enable file extraction")
	}
	return nil
}

func (e *Extractor) fromTable(ctx context.Context, ft FileType, r io.Reader) ([]Record, error) {
	if err := e.requireCompleter(); err != nil {
		return nil, err
	}

	var (
		t   *table
		err error
	)
	if ft == FileTypeExcel {
		t, err = loadExcel(r)
	} else {
		t, err = loadCSV(r)
	}
	if err != nil {
		return nil, err
	}

	chunks, err := t.chunks(e.chunkRows)
	if err != nil {
		return nil, newError(KindFileParse, http.StatusUnprocessableEntity, err, "could not render table")
	}
	e.logger.DebugContext(ctx, "table loaded", logging.FieldFileType, ft, logging.FieldRows, len(t.rows), "chunks", len(chunks))

	records := make([]Record, 0, len(t.rows))
	for i, chunk := range chunks {
		reply, err := e.completer.Complete(ctx, Request{
			System: tableSystemPrompt,
			User:   "Extract transaction data from this CSV:\n\n" + chunk,
		})
		if err != nil {
			e.logger.WarnContext(ctx, "chunk extraction failed", logging.FieldChunk, i+1, "chunks", len(chunks), logging.FieldError, err)
			return nil, err
		}
		got, err := parseModelOutput(reply)
		if err != nil {
			e.logger.WarnContext(ctx, "chunk returned malformed output", logging.FieldChunk, i+1, "chunks", len(chunks))
			return nil, err
		}
		records = append(records, got...)
	}
	return records, nil
}

func (e *Extractor) fromImage(ctx context.Context, r io.Reader) ([]Record, error) {
	if err := e.requireCompleter(); err != nil {
		return nil, err
	}
	dataURL, err := imageDataURL(r)
	if err != nil {
		return nil, err
	}
	reply, err := e.completer.Complete(ctx, Request{User: imagePrompt, ImageURL: dataURL})
	if err != nil {
		return nil, err
	}
	return parseModelOutput(reply)
}
