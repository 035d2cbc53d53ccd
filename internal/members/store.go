package members

import (
	"context"

	"attendance-checker/internal/platform/db"
)

const memberColumns = `id, firstname, lastname, contact_number, email, name, date_registered, membership_type`

type Store struct{ db db.DBTX }

func NewStore(d db.DBTX) *Store { return &Store{db: d} }

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(sc scanner) (Member, error) {
	var m Member
	err := sc.Scan(&m.ID, &m.FirstName, &m.LastName, &m.ContactNumber, &m.Email, &m.Name, &m.DateRegistered, &m.MembershipType)
	return m, err
}

func (s *Store) Insert(ctx context.Context, m *Member) (int64, error) {
	const q = `
	INSERT INTO members (firstname, lastname, contact_number, email, name, date_registered, membership_type)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		m.FirstName, m.LastName, m.ContactNumber, m.Email, m.Name, m.DateRegistered, m.MembershipType)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FindByName: 識別子一致の行を id 昇順で最大 limit 件
func (s *Store) FindByName(ctx context.Context, name string, limit int) ([]Member, error) {
	if limit <= 0 {
		limit = 1
	}
	q := `SELECT ` + memberColumns + ` FROM members WHERE name = ? ORDER BY id ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ExistsByName(ctx context.Context, name string) (bool, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE name = ?`, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context, sort string) ([]Member, error) {
	q := `SELECT ` + memberColumns + ` FROM members`
	switch sort {
	case SortFirstNameAsc:
		q += ` ORDER BY firstname ASC, id ASC`
	case SortFirstNameDesc:
		q += ` ORDER BY firstname DESC, id DESC`
	case SortLastNameAsc:
		q += ` ORDER BY lastname ASC, id ASC`
	case SortLastNameDesc:
		q += ` ORDER BY lastname DESC, id DESC`
	default:
		q += ` ORDER BY id ASC`
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Member, 0, 32)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteByName: 識別子が一致する行をすべて削除し、削除件数を返す
func (s *Store) DeleteByName(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE name = ?`, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) NamesByType(ctx context.Context, membershipType string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT name FROM members WHERE membership_type = ? ORDER BY name`, membershipType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) DeleteByType(ctx context.Context, membershipType string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE membership_type = ?`, membershipType)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
