package domain

// UploadedPart is one named part of a multipart request body.
type UploadedPart struct {
	Name              string
	IsFile            bool
	Filename          string
	DeclaredMediaType string
	RawBytes          []byte
}

// ExtractedDocument is the text recovered from one uploaded file. An empty
// Text means the file had no extractable text, which is not an error.
type ExtractedDocument struct {
	SourceFilename string `json:"source_filename"`
	MediaType      string `json:"media_type,omitempty"`
	Text           string `json:"-"`
	ByteLength     int    `json:"byte_length"`
	TextLength     int    `json:"text_length"`
}

// Corpus is the combined text of all documents of one intake request.
type Corpus struct {
	CombinedText    string `json:"-"`
	FileCount       int    `json:"file_count"`
	TotalTextLength int    `json:"total_text_length"`
}
