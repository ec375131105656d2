package enrich

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// BatchRow is one input row of a batch enrichment.
type BatchRow struct {
	Index int
	Name  string
	URL   string
}

// BatchError records a row that failed, with the offending URL.
type BatchError struct {
	Row   int    `json:"row"`
	Name  string `json:"name,omitempty"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BatchOutcome aggregates per-row results and failures.
type BatchOutcome struct {
	Results []Result     `json:"results"`
	Errors  []BatchError `json:"errors"`
}

// ReadBatchCSV reads rows from a CSV file with a header line. urlCol is
// required in the header; nameCol is optional.
func ReadBatchCSV(path, urlCol, nameCol string) ([]BatchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	urlIdx, nameIdx := -1, -1
	for i, col := range header {
		switch col {
		case urlCol:
			urlIdx = i
		case nameCol:
			nameIdx = i
		}
	}
	if urlIdx < 0 {
		return nil, fmt.Errorf("url column %q not found in csv header", urlCol)
	}

	var rows []BatchRow
	for i := 1; ; i++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", i, err)
		}
		row := BatchRow{Index: i, URL: record[urlIdx]}
		if nameIdx >= 0 && nameIdx < len(record) {
			row.Name = record[nameIdx]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// EnrichBatch processes rows sequentially, throttled by limiter. A failed row
// is recorded and skipped; remaining rows continue. Only context cancellation
// aborts the batch.
func (e *Enricher) EnrichBatch(
	ctx context.Context,
	rows []BatchRow,
	schema ExtractionSchema,
	tpl PromptTemplate,
	limiter *rate.Limiter,
) (BatchOutcome, error) {
	outcome := BatchOutcome{
		Results: []Result{},
		Errors:  []BatchError{},
	}

	for _, row := range rows {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return outcome, fmt.Errorf("batch canceled: %w", err)
			}
		}

		vars := map[string]string{}
		if row.Name != "" {
			vars["company_name"] = row.Name
		}
		result, err := e.EnrichURL(ctx, row.URL, schema, tpl, vars)
		if err != nil {
			if ctx.Err() != nil {
				return outcome, fmt.Errorf("batch canceled: %w", ctx.Err())
			}
			e.logger.Warn("batch row failed",
				zap.Int("row", row.Index),
				zap.String("url", row.URL),
				zap.Error(err),
			)
			outcome.Errors = append(outcome.Errors, BatchError{
				Row:   row.Index,
				Name:  row.Name,
				URL:   row.URL,
				Error: err.Error(),
			})
			continue
		}
		outcome.Results = append(outcome.Results, result)
	}
	return outcome, nil
}
