package members

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEncoder struct{ err error }

func (f fakeEncoder) EncodePNG(id string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png:" + id), nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixture struct {
	svc       *Service
	conn      *sql.DB
	qrDir     string
	exportDir string
}

func newFixture(t *testing.T, enc Encoder) fixture {
	t.Helper()
	conn := openTestDB(t)
	qrDir := filepath.Join(t.TempDir(), "qrcodes")
	exportDir := filepath.Join(t.TempDir(), "exports")
	svc := NewService(conn, NewArtifacts(qrDir, enc), Options{
		PurgePIN:  "2024",
		CacheTTL:  time.Minute,
		ExportDir: exportDir,
		Encoding:  "utf-8",
	})
	svc.clock = fixedClock{t: time.Date(2026, 10, 19, 10, 0, 0, 0, time.Local)}
	return fixture{svc: svc, conn: conn, qrDir: qrDir, exportDir: exportDir}
}

func janeReq() CreateMemberRequest {
	return CreateMemberRequest{
		FirstName:      " Jane ",
		LastName:       "Doe",
		ContactNumber:  "090-1111-2222",
		Email:          "jane@example.com",
		MembershipType: TypeMember,
	}
}

func apiCode(t *testing.T, err error) Code {
	t.Helper()
	var api *APIError
	require.ErrorAs(t, err, &api)
	return api.Code
}

func TestCreate_WritesRowAndArtifact(t *testing.T) {
	f := newFixture(t, fakeEncoder{})
	ctx := context.Background()

	res, err := f.svc.Create(ctx, janeReq())
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", res.Name)
	assert.Equal(t, "Jane", res.FirstName)
	assert.Equal(t, TypeMember, res.MembershipType)
	assert.Equal(t, "2026-10-19", res.DateRegistered)
	assert.Equal(t, "Jane Doe.png", res.QRCodeImage)

	b, err := os.ReadFile(filepath.Join(f.qrDir, "Jane Doe.png"))
	require.NoError(t, err)
	assert.Equal(t, "png:Jane Doe", string(b))

	m, err := f.svc.FindByName(ctx, "Jane Doe")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, res.ID, m.ID)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, fakeEncoder{})

	req := janeReq()
	req.Email = ""
	_, err := f.svc.Create(context.Background(), req)
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))

	req = janeReq()
	req.MembershipType = " "
	_, err = f.svc.Create(context.Background(), req)
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))

	req = janeReq()
	req.MembershipType = "VIP"
	_, err = f.svc.Create(context.Background(), req)
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))
}

func TestCreate_DuplicateIdentifierRejected(t *testing.T) {
	f := newFixture(t, fakeEncoder{})
	_, err := f.svc.Create(context.Background(), janeReq())
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), janeReq())
	assert.Equal(t, CodeConflict, apiCode(t, err))
}

func TestCreate_ArtifactFailureRollsBack(t *testing.T) {
	f := newFixture(t, fakeEncoder{err: errors.New("boom")})

	_, err := f.svc.Create(context.Background(), janeReq())
	assert.Equal(t, CodeInternal, apiCode(t, err))

	list, err := f.svc.List(context.Background(), SortDefault)
	require.NoError(t, err)
	assert.Equal(t, 0, list.Total)
}

func TestFindByName_NegativeCacheFlushedOnCreate(t *testing.T) {
	f := newFixture(t, fakeEncoder{})
	ctx := context.Background()

	m, err := f.svc.FindByName(ctx, "Jane Doe")
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = f.svc.Create(ctx, janeReq())
	require.NoError(t, err)

	m, err = f.svc.FindByName(ctx, "Jane Doe")
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestDelete_RemovesArtifact(t *testing.T) {
	f := newFixture(t, fakeEncoder{})
	ctx := context.Background()
	_, err := f.svc.Create(ctx, janeReq())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "Jane Doe"))
	assert.NoFileExists(t, filepath.Join(f.qrDir, "Jane Doe.png"))

	m, err := f.svc.FindByName(ctx, "Jane Doe")
	require.NoError(t, err)
	assert.Nil(t, m)

	err = f.svc.Delete(ctx, "Jane Doe")
	assert.Equal(t, CodeNotFound, apiCode(t, err))
}

func TestPurge(t *testing.T) {
	f := newFixture(t, fakeEncoder{})
	ctx := context.Background()
	_, err := f.svc.Create(ctx, janeReq())
	require.NoError(t, err)
	pre := CreateMemberRequest{FirstName: "Pre", LastName: "One", ContactNumber: "1", Email: "p@example.com", MembershipType: TypePreReg}
	_, err = f.svc.Create(ctx, pre)
	require.NoError(t, err)

	_, err = f.svc.Purge(ctx, PurgeRequest{PIN: "0000"})
	assert.Equal(t, CodeForbidden, apiCode(t, err))
	list, _ := f.svc.List(ctx, SortDefault)
	assert.Equal(t, 2, list.Total, "wrong PIN deletes nothing")

	res, err := f.svc.Purge(ctx, PurgeRequest{PIN: "2024"})
	require.NoError(t, err)
	assert.Equal(t, TypePreReg, res.MembershipType)
	assert.Equal(t, int64(1), res.Deleted)
	assert.NoFileExists(t, filepath.Join(f.qrDir, "Pre One.png"))
	assert.FileExists(t, filepath.Join(f.qrDir, "Jane Doe.png"))
}

func TestPurge_DisabledWithoutPIN(t *testing.T) {
	f := newFixture(t, fakeEncoder{})
	f.svc.opts.PurgePIN = ""
	_, err := f.svc.Purge(context.Background(), PurgeRequest{PIN: ""})
	assert.Equal(t, CodeForbidden, apiCode(t, err))
}

func TestExport(t *testing.T) {
	f := newFixture(t, fakeEncoder{})
	ctx := context.Background()
	_, err := f.svc.Create(ctx, janeReq())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.svc.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"First Name", "Last Name", "Contact Number", "Email", "Membership Type", "QR Code Image"},
		{"Jane", "Doe", "090-1111-2222", "jane@example.com", "Member", "Jane Doe.png"},
	}, records)

	res, err := f.svc.ExportFile(ctx, "members")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.exportDir, "members.csv"), res.Path)
	assert.FileExists(t, res.Path)
}

func TestFindByName_DBError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	svc := NewService(conn, NewArtifacts(t.TempDir(), fakeEncoder{}), Options{})
	mock.ExpectQuery(regexp.QuoteMeta("FROM members WHERE name = ?")).
		WithArgs("Jane Doe", 2).
		WillReturnError(errors.New("connection reset"))

	m, err := svc.FindByName(context.Background(), "Jane Doe")
	assert.Error(t, err)
	assert.Nil(t, m)

	_, err = svc.Get(context.Background(), "Jane Doe")
	assert.Equal(t, CodeInternal, apiCode(t, err))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Jane Doe.png", FileName("Jane Doe"))
	assert.Equal(t, "a%2Fb%5Cc.png", FileName(`a/b\c`))
	assert.Equal(t, "100%25.png", FileName("100%"))

	seen := map[string]string{}
	for _, id := range []string{"A/B C", "A_B C", "A%2FB C", `A\B C`, "A%5CB C"} {
		name := FileName(id)
		prev, dup := seen[name]
		assert.False(t, dup, "%q and %q share %s", prev, id, name)
		seen[name] = id
	}
}

func TestArtifacts_DistinctIdentifiersKeepOwnFiles(t *testing.T) {
	f := newFixture(t, fakeEncoder{})
	ctx := context.Background()

	slash := janeReq()
	slash.FirstName, slash.LastName = "A/B", "C"
	under := janeReq()
	under.FirstName, under.LastName = "A_B", "C"

	_, err := f.svc.Create(ctx, slash)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, under)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "A_B C"))

	b, err := f.svc.QRCode(ctx, "A/B C")
	require.NoError(t, err)
	assert.Equal(t, "png:A/B C", string(b))

	_, err = f.svc.QRCode(ctx, "A_B C")
	assert.Equal(t, CodeNotFound, apiCode(t, err))
}
