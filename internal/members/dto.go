package members

const (
	SortDefault       = ""
	SortFirstNameAsc  = "first_name"
	SortFirstNameDesc = "-first_name"
	SortLastNameAsc   = "last_name"
	SortLastNameDesc  = "-last_name"
)

type CreateMemberRequest struct {
	FirstName      string `json:"first_name"      binding:"required"`
	LastName       string `json:"last_name"       binding:"required"`
	ContactNumber  string `json:"contact_number"  binding:"required"`
	Email          string `json:"email"           binding:"required,email"`
	MembershipType string `json:"membership_type" binding:"required"` // Member | Pre-Reg
}

type PurgeRequest struct {
	MembershipType string `json:"membership_type"` // 未指定なら Pre-Reg
	PIN            string `json:"pin" binding:"required"`
}

type ExportRequest struct {
	Filename string `json:"filename" binding:"required"`
}

type MemberResponse struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ContactNumber  string `json:"contact_number"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	DateRegistered string `json:"date_registered"`
	MembershipType string `json:"membership_type"`
	QRCodeImage    string `json:"qr_code_image"`
}

type ListResponse struct {
	Members []MemberResponse `json:"members"`
	Total   int              `json:"total"`
}

type PurgeResponse struct {
	MembershipType string `json:"membership_type"`
	Deleted        int64  `json:"deleted"`
}

type ExportResponse struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}
