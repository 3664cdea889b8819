package assets

import (
	"errors"
	"fmt"
	"time"
)

// FolderType is one of the three sub-folders of a client namespace, or All
// for listings spanning the whole namespace.
type FolderType string

const (
	FolderInput     FolderType = "input"
	FolderGenerated FolderType = "generated"
	FolderEdited    FolderType = "edited"
	FolderAll       FolderType = "all"
)

// ClientFolders are the sub-folders every client namespace is expected to hold.
var ClientFolders = []FolderType{FolderInput, FolderGenerated, FolderEdited}

const (
	DefaultListLimit = 50
	DefaultPageSize  = 30
	maxListLimit     = 500
	dateLayout       = "2006-01-02"
)

var (
	// ErrNotConfigured - Cloudinary 자격증명 없음
	ErrNotConfigured = errors.New("Cloudinary not configured")
	// ErrMissingClient is returned before any provider call when no client id was given.
	ErrMissingClient = errors.New("client_folder must be provided either in the request or via CLIENT_FOLDER_NAME environment variable")
	// ErrInvalidFolderType rejects folder types outside the client namespace convention.
	ErrInvalidFolderType = errors.New("folder_type must be one of input, generated, edited")
	// ErrInvalidDate rejects date bounds not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("dates must use the YYYY-MM-DD format")
	// ErrFolderNotFound is reported by providers when a folder has never been materialised.
	ErrFolderNotFound = errors.New("folder not found")
	// ErrNotImage rejects upload payloads that do not decode as an image.
	ErrNotImage = errors.New("upload data is not an image")
)

// StorageError wraps any failure reported by the storage provider.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Asset is one stored image as reported by the provider.
type Asset struct {
	PublicID  string    `json:"public_id"`
	SecureURL string    `json:"secure_url"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Format    string    `json:"format"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadResult - 업로드 성공 결과
type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int    `json:"bytes"`
	Format   string `json:"format"`
}

// ListResult is a single unpaginated listing.
type ListResult struct {
	Images     []Asset `json:"images"`
	TotalCount int     `json:"total_count"`
}

// ListQuery selects one page of a paginated listing. A cursor is only valid
// for the ClientID, FolderType and MaxResults that produced it.
type ListQuery struct {
	ClientID   string
	FolderType FolderType
	MaxResults int
	Cursor     string
	// StartDate and EndDate are inclusive YYYY-MM-DD bounds; empty is unbounded.
	StartDate string
	EndDate   string
}

// Page is one provider page after date filtering. HasMore is the provider's
// pagination state: a short or empty page with HasMore set is not the end.
type Page struct {
	Images     []Asset `json:"images"`
	TotalCount int     `json:"total_count"`
	NextCursor string  `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// ClientStatus reports whether a client namespace has been materialised.
type ClientStatus struct {
	Exists     bool     `json:"exists"`
	FolderPath string   `json:"folder_path"`
	Subfolders []string `json:"subfolders,omitempty"`
}

// FolderSetup is returned by CreateClientFolders. Nothing is written to the
// provider; folders appear on the first upload into them.
type FolderSetup struct {
	FoldersCreated []string `json:"folders_created"`
	FolderPath     string   `json:"folder_path"`
	Message        string   `json:"message"`
}

// UploadConfig carries what a browser upload widget needs.
type UploadConfig struct {
	CloudName    string `json:"cloud_name"`
	APIKey       string `json:"api_key"`
	Folder       string `json:"folder"`
	UploadPreset string `json:"upload_preset"`
}

// Signature is a signed set of upload parameters.
type Signature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
}

// DeleteResult mirrors the provider's destroy answer ("ok", "not found").
type DeleteResult struct {
	Deleted bool   `json:"success"`
	Result  string `json:"result"`
}
