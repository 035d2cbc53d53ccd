package members

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"attendance-checker/internal/platform/db"
	"attendance-checker/internal/platform/export"
)

// ===== Error model (attendance/scan と同型) =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeForbidden       Code = "FORBIDDEN"
	CodeWriteError      Code = "WRITE_ERROR"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string       { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError   { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError  { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError  { return &APIError{Code: CodeConflict, Message: msg} }
func ErrForbidden(msg string) *APIError { return &APIError{Code: CodeForbidden, Message: msg} }
func ErrWriteFile(msg string) *APIError { return &APIError{Code: CodeWriteError, Message: msg} }
func ErrInternal(msg string) *APIError  { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeForbidden:
			return 403
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		case CodeWriteError:
			return 507
		default:
			return 500
		}
	}
	return 500
}

var ExportHeader = []string{"First Name", "Last Name", "Contact Number", "Email", "Membership Type", "QR Code Image"}

// ===== Service =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Options struct {
	PurgePIN  string
	CacheTTL  time.Duration
	ExportDir string
	Encoding  string
}

type Service struct {
	db        *sql.DB
	store     *Store
	artifacts *Artifacts
	cache     *cache.Cache
	clock     Clock
	opts      Options
}

func NewService(conn *sql.DB, artifacts *Artifacts, opts Options) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 2 * time.Second
	}
	return &Service{
		db:        conn,
		store:     NewStore(conn),
		artifacts: artifacts,
		cache:     cache.New(opts.CacheTTL, time.Minute),
		clock:     realClock{},
		opts:      opts,
	}
}

// POST /members
func (s *Service) Create(ctx context.Context, in CreateMemberRequest) (MemberResponse, error) {
	m := Member{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		ContactNumber:  strings.TrimSpace(in.ContactNumber),
		Email:          strings.TrimSpace(in.Email),
		MembershipType: strings.TrimSpace(in.MembershipType),
	}
	if m.FirstName == "" || m.LastName == "" || m.ContactNumber == "" || m.Email == "" || m.MembershipType == "" {
		return MemberResponse{}, ErrInvalid("all fields are required")
	}
	if !validType(m.MembershipType) {
		return MemberResponse{}, ErrInvalid("membership_type must be Member or Pre-Reg")
	}
	m.Name = m.FirstName + " " + m.LastName
	m.DateRegistered = s.clock.Now().Format(DateLayout)

	var artifactPath string
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		exists, err := st.ExistsByName(ctx, m.Name)
		if err != nil {
			return err
		}
		if exists {
			return ErrConflict(fmt.Sprintf("member %q already exists", m.Name))
		}
		id, err := st.Insert(ctx, &m)
		if err != nil {
			return err
		}
		m.ID = id

		// 画像が書けなければ行ごとロールバック
		artifactPath, err = s.artifacts.Write(m.Name)
		return err
	})
	if err != nil {
		if artifactPath != "" {
			_ = s.artifacts.Remove(m.Name)
		}
		var api *APIError
		if errors.As(err, &api) {
			return MemberResponse{}, api
		}
		log.Printf("[ERROR] create member %q: %v", m.Name, err)
		return MemberResponse{}, ErrInternal("failed to create member")
	}
	s.cache.Flush()

	log.Printf("[INFO] member created: %s (%s), qr=%s", m.Name, m.MembershipType, artifactPath)
	return m.toDTO(FileName(m.Name)), nil
}

// FindByName: スキャン時の照合。見つからなければ (nil, nil)。
// 同じ識別子の行が複数ある場合は id が最小の行を返し、警告を出す。
func (s *Service) FindByName(ctx context.Context, name string) (*Member, error) {
	if v, ok := s.cache.Get(name); ok {
		cached := v.(*Member)
		if cached == nil {
			return nil, nil
		}
		m := *cached
		return &m, nil
	}

	rows, err := s.store.FindByName(ctx, name, 2)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		s.cache.SetDefault(name, (*Member)(nil))
		return nil, nil
	}
	if len(rows) > 1 {
		log.Printf("[WARN] ambiguous identifier %q: %d+ members share it, using id=%d", name, len(rows), rows[0].ID)
	}
	m := rows[0]
	s.cache.SetDefault(name, &m)
	out := m
	return &out, nil
}

// GET /members/:name
func (s *Service) Get(ctx context.Context, name string) (MemberResponse, error) {
	m, err := s.FindByName(ctx, name)
	if err != nil {
		log.Printf("[ERROR] get member %q: %v", name, err)
		return MemberResponse{}, ErrInternal("failed to get member")
	}
	if m == nil {
		return MemberResponse{}, ErrNotFound("member not found")
	}
	return m.toDTO(FileName(m.Name)), nil
}

// GET /members
func (s *Service) List(ctx context.Context, sort string) (ListResponse, error) {
	switch sort {
	case SortDefault, SortFirstNameAsc, SortFirstNameDesc, SortLastNameAsc, SortLastNameDesc:
	default:
		return ListResponse{}, ErrInvalid("sort must be one of first_name, -first_name, last_name, -last_name")
	}
	rows, err := s.store.List(ctx, sort)
	if err != nil {
		log.Printf("[ERROR] list members: %v", err)
		return ListResponse{}, ErrInternal("failed to list members")
	}
	out := make([]MemberResponse, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDTO(FileName(m.Name)))
	}
	return ListResponse{Members: out, Total: len(out)}, nil
}

// DELETE /members/:name: 行と QR 画像をまとめて消す
func (s *Service) Delete(ctx context.Context, name string) error {
	n, err := s.store.DeleteByName(ctx, name)
	if err != nil {
		log.Printf("[ERROR] delete member %q: %v", name, err)
		return ErrInternal("failed to delete member")
	}
	if n == 0 {
		return ErrNotFound("member not found")
	}
	s.cache.Flush()

	if err := s.artifacts.Remove(name); err != nil {
		log.Printf("[WARN] delete qr code for %q: %v", name, err)
	}
	log.Printf("[INFO] member deleted: %s (%d rows)", name, n)
	return nil
}

// POST /members/purge: 区分単位の一括削除（PIN 必須）
func (s *Service) Purge(ctx context.Context, in PurgeRequest) (PurgeResponse, error) {
	t := strings.TrimSpace(in.MembershipType)
	if t == "" {
		t = TypePreReg
	}
	if !validType(t) {
		return PurgeResponse{}, ErrInvalid("membership_type must be Member or Pre-Reg")
	}
	if s.opts.PurgePIN == "" {
		return PurgeResponse{}, ErrForbidden("purge is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(in.PIN), []byte(s.opts.PurgePIN)) != 1 {
		log.Printf("[WARN] purge %s rejected: incorrect PIN", t)
		return PurgeResponse{}, ErrForbidden("incorrect PIN")
	}

	var (
		names   []string
		deleted int64
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		var err error
		if names, err = st.NamesByType(ctx, t); err != nil {
			return err
		}
		deleted, err = st.DeleteByType(ctx, t)
		return err
	})
	if err != nil {
		log.Printf("[ERROR] purge %s: %v", t, err)
		return PurgeResponse{}, ErrInternal("failed to purge members")
	}
	s.cache.Flush()

	for _, n := range names {
		if err := s.artifacts.Remove(n); err != nil {
			log.Printf("[WARN] delete qr code for %q: %v", n, err)
		}
	}
	log.Printf("[INFO] purged %d %s members", deleted, t)
	return PurgeResponse{MembershipType: t, Deleted: deleted}, nil
}

// GET /members/:name/qrcode
func (s *Service) QRCode(ctx context.Context, name string) ([]byte, error) {
	b, err := s.artifacts.Read(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound("qr code not found")
		}
		log.Printf("[ERROR] read qr code %q: %v", name, err)
		return nil, ErrInternal("failed to read qr code")
	}
	return b, nil
}

func (s *Service) exportRows(ctx context.Context) ([][]string, error) {
	var list []Member
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		var err error
		list, err = NewStore(tx).List(ctx, SortDefault)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(list))
	for _, m := range list {
		out = append(out, []string{m.FirstName, m.LastName, m.ContactNumber, m.Email, m.MembershipType, FileName(m.Name)})
	}
	return out, nil
}

// Export: 会員一覧 CSV を w に書き出す
func (s *Service) Export(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.exportRows(ctx)
	if err != nil {
		log.Printf("[ERROR] export members: %v", err)
		return 0, ErrInternal("failed to read members")
	}
	if err := export.WriteCSV(w, s.opts.Encoding, ExportHeader, rows); err != nil {
		return 0, ErrWriteFile(err.Error())
	}
	return len(rows), nil
}

// POST /members/export
func (s *Service) ExportFile(ctx context.Context, filename string) (ExportResponse, error) {
	rows, err := s.exportRows(ctx)
	if err != nil {
		log.Printf("[ERROR] export members: %v", err)
		return ExportResponse{}, ErrInternal("failed to read members")
	}
	path, err := export.WriteFile(s.opts.ExportDir, filename, s.opts.Encoding, ExportHeader, rows)
	if err != nil {
		if errors.Is(err, export.ErrInvalidFilename) {
			return ExportResponse{}, ErrInvalid("filename is invalid")
		}
		log.Printf("[ERROR] export members: %v", err)
		return ExportResponse{}, ErrWriteFile(err.Error())
	}
	log.Printf("[INFO] members exported: %s (%d rows)", path, len(rows))
	return ExportResponse{Path: path, Rows: len(rows)}, nil
}
