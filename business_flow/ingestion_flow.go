package businessflow

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/voteflow/voteflow/app/services"
	"github.com/voteflow/voteflow/models"
	"github.com/voteflow/voteflow/utils"
)

// IngestionOutcome is the result of loading a voter list into a draft
type IngestionOutcome struct {
	Voters        models.VoterList
	TotalParsed   int
	UsableNumbers int
	Truncated     bool
	Log           []string
}

// IngestionFlow loads voter contact lists from uploaded files
type IngestionFlow interface {
	Ingest(ctx context.Context, filename string, content []byte, plan *models.Plan) (*IngestionOutcome, error)
}

// IngestionFlowImpl dispatches uploads by extension: scanned rolls go to the
// extraction backend, spreadsheets to the backend parser, and plain text is
// parsed locally.
type IngestionFlowImpl struct {
	extraction services.ExtractionService
}

// NewIngestionFlow creates a new ingestion flow
func NewIngestionFlow(extraction services.ExtractionService) IngestionFlow {
	return &IngestionFlowImpl{extraction: extraction}
}

func (f *IngestionFlowImpl) Ingest(ctx context.Context, filename string, content []byte, plan *models.Plan) (*IngestionOutcome, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf", ".csv", ".txt", ".xlsx", ".xls":
	default:
		return nil, NewBusinessError("UNSUPPORTED_FORMAT", "unsupported file format: "+ext, ErrUnsupportedFormat)
	}
	var (
		result *services.ExtractionResult
		err    error
	)
	switch ext {
	case ".pdf":
		if len(content) > utils.MaxUploadBytes {
			return nil, NewBusinessError("FILE_TOO_LARGE", "scan exceeds 10MB upload limit", ErrFileTooLarge)
		}
		result, err = f.extraction.ExtractScan(ctx, filename, content)
		if err != nil {
			return nil, NewBusinessError("EXTRACTION_FAILED", "scan extraction failed", wrapTransport(err, ErrExtractionFailed))
		}
	case ".xlsx", ".xls":
		result, err = f.extraction.ParseSpreadsheet(ctx, filename, content)
		if err != nil {
			return nil, NewBusinessError("EXTRACTION_FAILED", "spreadsheet parsing failed", wrapTransport(err, ErrExtractionFailed))
		}
	default:
		result = parseDelimited(content)
	}

	usable := filterUsable(result.Voters)
	if len(usable) == 0 {
		return nil, NewBusinessError("NO_USABLE_CONTACTS", "no contacts with a valid mobile number", ErrNoUsableContacts)
	}

	outcome := &IngestionOutcome{
		Voters:      usable,
		TotalParsed: result.TotalCount,
		Log:         result.Log,
	}
	if plan != nil && plan.MaxMessages > 0 {
		outcome.Voters, outcome.Truncated = outcome.Voters.Truncate(plan.MaxMessages)
	}
	outcome.UsableNumbers = len(outcome.Voters)
	return outcome, nil
}

// parseDelimited handles comma-separated text lists: one contact per line,
// name first, mobile somewhere after. The first line is always treated as a
// header and skipped; lines without a recognizable mobile number are dropped.
func parseDelimited(content []byte) *services.ExtractionResult {
	lines := strings.Split(string(content), "\n")
	voters := make(models.VoterList, 0, len(lines))
	total := 0
	for i, line := range lines {
		if i == 0 {
			continue
		}
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		total++
		fields := strings.Split(line, ",")
		name := strings.TrimSpace(fields[0])
		mobile := ""
		for _, field := range fields[1:] {
			if normalized, ok := utils.NormalizeMobile(field); ok {
				mobile = normalized
				break
			}
		}
		if mobile == "" {
			continue
		}
		voters = append(voters, models.VoterContact{Name: name, Mobile: mobile})
	}
	return &services.ExtractionResult{
		Voters:     voters,
		TotalCount: total,
		WithMobile: len(voters),
	}
}

// filterUsable normalizes mobiles and drops sentinel or malformed entries.
func filterUsable(in models.VoterList) models.VoterList {
	out := make(models.VoterList, 0, len(in))
	for _, v := range in {
		if utils.IsUnusableMobile(v.Mobile) {
			continue
		}
		normalized, ok := utils.NormalizeMobile(v.Mobile)
		if !ok {
			continue
		}
		v.Mobile = normalized
		out = append(out, v)
	}
	return out
}

// wrapTransport keeps the sentinel visible to errors.Is while preserving the
// underlying cause in the message.
func wrapTransport(cause, sentinel error) error {
	return &transportError{cause: cause, sentinel: sentinel}
}

type transportError struct {
	cause    error
	sentinel error
}

func (e *transportError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *transportError) Is(target error) bool {
	return target == e.sentinel
}

func (e *transportError) Unwrap() error {
	return e.cause
}
