package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"attendance-checker/internal/platform/export"
)

// ===== Error model (members/scan と同型) =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeWriteError      Code = "WRITE_ERROR"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string       { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError   { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrWriteFile(msg string) *APIError { return &APIError{Code: CodeWriteError, Message: msg} }
func ErrInternal(msg string) *APIError  { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeWriteError:
			return 507
		default:
			return 500
		}
	}
	return 500
}

var Header = []string{"QR Code/Name", "Date", "Time"}

// ===== Service =====

type Service struct {
	ledger   *Ledger
	dir      string
	encoding string
}

func NewService(ledger *Ledger, exportDir, encoding string) *Service {
	return &Service{ledger: ledger, dir: exportDir, encoding: encoding}
}

func (s *Service) Ledger() *Ledger { return s.ledger }

// GET /attendance
func (s *Service) List(ctx context.Context) ListResponse {
	entries := s.ledger.Entries()
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.toDTO())
	}
	return ListResponse{Entries: out, Total: len(out)}
}

// POST /attendance/reset
func (s *Service) Reset(ctx context.Context) {
	n := s.ledger.Len()
	s.ledger.Reset()
	log.Printf("[INFO] attendance reset: %d entries cleared", n)
}

func rows(entries []Entry) [][]string {
	out := make([][]string, 0, len(entries))
	for _, e := range entries {
		d := e.toDTO()
		out = append(out, []string{d.Identifier, d.Date, d.Time})
	}
	return out
}

// Export: ログを CSV で w に書き出す。ログ自体は変更しない
func (s *Service) Export(ctx context.Context, w io.Writer) (int, error) {
	r := rows(s.ledger.Entries())
	if err := export.WriteCSV(w, s.encoding, Header, r); err != nil {
		return 0, fmt.Errorf("%w: %v", export.ErrWrite, err)
	}
	return len(r), nil
}

// POST /attendance/export
func (s *Service) ExportFile(ctx context.Context, filename string) (ExportResponse, error) {
	r := rows(s.ledger.Entries())
	path, err := export.WriteFile(s.dir, filename, s.encoding, Header, r)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrInvalidFilename):
			return ExportResponse{}, ErrInvalid("filename is invalid")
		case errors.Is(err, export.ErrWrite):
			log.Printf("[ERROR] attendance export: %v", err)
			return ExportResponse{}, ErrWriteFile(err.Error())
		default:
			log.Printf("[ERROR] attendance export: %v", err)
			return ExportResponse{}, ErrInternal(err.Error())
		}
	}
	log.Printf("[INFO] attendance exported: %s (%d rows)", path, len(r))
	return ExportResponse{Path: path, Rows: len(r)}, nil
}
