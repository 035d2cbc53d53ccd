package attendance

type EntryResponse struct {
	Identifier string `json:"identifier"`
	Date       string `json:"date"` // YYYY-MM-DD
	Time       string `json:"time"` // HH:MM:SS
}

type ListResponse struct {
	Entries []EntryResponse `json:"entries"`
	Total   int             `json:"total"`
}

type ExportRequest struct {
	Filename string `json:"filename" binding:"required"`
}

type ExportResponse struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

func (e Entry) toDTO() EntryResponse {
	return EntryResponse{
		Identifier: e.Identifier,
		Date:       e.ScannedAt.Format(DateLayout),
		Time:       e.ScannedAt.Format(TimeLayout),
	}
}
