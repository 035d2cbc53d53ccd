package members

const (
	TypeMember = "Member"
	TypePreReg = "Pre-Reg"

	DateLayout = "2006-01-02"
)

// Member: members テーブル1行。Name は FirstName + " " + LastName で、QR コードの中身になる
type Member struct {
	ID             int64
	FirstName      string
	LastName       string
	ContactNumber  string
	Email          string
	Name           string
	DateRegistered string // YYYY-MM-DD
	MembershipType string
}

func validType(t string) bool {
	return t == TypeMember || t == TypePreReg
}

func (m Member) toDTO(qr string) MemberResponse {
	return MemberResponse{
		ID:             m.ID,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		ContactNumber:  m.ContactNumber,
		Email:          m.Email,
		Name:           m.Name,
		DateRegistered: m.DateRegistered,
		MembershipType: m.MembershipType,
		QRCodeImage:    qr,
	}
}
