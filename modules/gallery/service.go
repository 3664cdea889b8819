package gallery

import (
	"context"
	"encoding/csv"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/client"
	"nanobanana-studio/modules/common/logger"
	"nanobanana-studio/modules/session"
)

// PageSizes are the page sizes the gallery offers.
var PageSizes = []int{20, 30, 50}

// ErrNoFilters is returned when navigating before filters were applied.
var ErrNoFilters = &client.ValidationError{Field: "filters", Message: "apply filters before browsing"}

// Storage is the listing side of the asset gateway.
type Storage interface {
	ListPaginated(ctx context.Context, q assets.ListQuery) (*assets.Page, error)
}

// Filters select what the gallery shows.
type Filters struct {
	Client     string `json:"client"`
	FolderType string `json:"folder_type"`
	PerPage    int    `json:"per_page"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// Service pages through a client's assets. The current page and the cursor
// of every earlier page are kept in the session, so Previous goes back to
// exactly the page that was shown before.
type Service struct {
	sessions *session.Manager
	storage  Storage
	log      zerolog.Logger
}

func NewService(sessions *session.Manager, storage Storage, log *zerolog.Logger) *Service {
	l := logger.Discard()
	if log != nil {
		l = *log
	}
	return &Service{sessions: sessions, storage: storage, log: l.With().Str("module", "gallery").Logger()}
}

// Start opens a new gallery session.
func (s *Service) Start(ctx context.Context) (*session.Session, error) {
	return s.sessions.Create(ctx)
}

// ApplyFilters replaces the filters and loads the first page.
func (s *Service) ApplyFilters(ctx context.Context, id string, f Filters) (*session.Session, error) {
	f, err := normalize(f)
	if err != nil {
		return nil, err
	}
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		g := session.GalleryState{
			Client:     f.Client,
			FolderType: f.FolderType,
			PerPage:    f.PerPage,
			StartDate:  f.StartDate,
			EndDate:    f.EndDate,
			PageNumber: 1,
		}
		if err := s.load(ctx, &g); err != nil {
			return err
		}
		sess.Gallery = g
		return nil
	})
}

// Next advances to the provider's next page. A short or empty filtered page
// with more pages behind it is still navigable.
func (s *Service) Next(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		g := sess.Gallery
		if g.Client == "" {
			return ErrNoFilters
		}
		if !g.HasMore || g.NextCursor == "" {
			return &client.ValidationError{Field: "page", Message: "no more pages"}
		}
		g.History = append(append([]string(nil), g.History...), g.Cursor)
		g.Cursor = g.NextCursor
		g.PageNumber++
		if err := s.load(ctx, &g); err != nil {
			return err
		}
		sess.Gallery = g
		return nil
	})
}

// Previous returns to the page shown before the last Next.
func (s *Service) Previous(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		g := sess.Gallery
		if g.Client == "" {
			return ErrNoFilters
		}
		if len(g.History) == 0 {
			return &client.ValidationError{Field: "page", Message: "already on the first page"}
		}
		g.Cursor = g.History[len(g.History)-1]
		g.History = append([]string(nil), g.History[:len(g.History)-1]...)
		g.PageNumber--
		if err := s.load(ctx, &g); err != nil {
			return err
		}
		sess.Gallery = g
		return nil
	})
}

// Reload refetches the current page.
func (s *Service) Reload(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		g := sess.Gallery
		if g.Client == "" {
			return ErrNoFilters
		}
		if err := s.load(ctx, &g); err != nil {
			return err
		}
		sess.Gallery = g
		return nil
	})
}

// ExportCSV writes the current page as CSV.
func (s *Service) ExportCSV(ctx context.Context, id string, w io.Writer) error {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	return WriteCSV(w, sess.Gallery.Images)
}

// WriteCSV - 갤러리 CSV 내보내기
func WriteCSV(w io.Writer, images []assets.Asset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"filename", "url", "width", "height", "created_at", "public_id"}); err != nil {
		return err
	}
	for _, img := range images {
		created := ""
		if !img.CreatedAt.IsZero() {
			created = img.CreatedAt.UTC().Format(time.RFC3339)
		}
		if err := cw.Write([]string{
			Filename(img),
			img.SecureURL,
			strconv.Itoa(img.Width),
			strconv.Itoa(img.Height),
			created,
			img.PublicID,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename is the last path segment of the public id plus its format.
func Filename(img assets.Asset) string {
	name := path.Base(img.PublicID)
	if img.Format != "" {
		name += "." + img.Format
	}
	return name
}

func (s *Service) load(ctx context.Context, g *session.GalleryState) error {
	page, err := s.storage.ListPaginated(ctx, assets.ListQuery{
		ClientID:   g.Client,
		FolderType: assets.FolderType(g.FolderType),
		MaxResults: g.PerPage,
		Cursor:     g.Cursor,
		StartDate:  g.StartDate,
		EndDate:    g.EndDate,
	})
	if err != nil {
		return err
	}
	g.Images = page.Images
	g.NextCursor = page.NextCursor
	g.HasMore = page.HasMore
	s.log.Debug().Str("client", g.Client).Int("page", g.PageNumber).Int("count", len(page.Images)).Msg("🖼️  Gallery page loaded")
	return nil
}

func normalize(f Filters) (Filters, error) {
	f.Client = strings.TrimSpace(f.Client)
	if f.Client == "" {
		return f, &client.ValidationError{Field: "client", Message: "Missing required field: client"}
	}
	if err := client.Validate(f.Client); err != nil {
		return f, err
	}

	ft, err := assets.ParseFolderType(defaultString(f.FolderType, string(assets.FolderAll)), true)
	if err != nil {
		return f, &client.ValidationError{Field: "folder_type", Message: "folder_type must be one of all, input, generated, edited"}
	}
	f.FolderType = string(ft)

	if f.PerPage == 0 {
		f.PerPage = assets.DefaultPageSize
	}
	valid := false
	for _, n := range PageSizes {
		if f.PerPage == n {
			valid = true
		}
	}
	if !valid {
		return f, &client.ValidationError{Field: "per_page", Message: "per_page must be 20, 30 or 50"}
	}

	for _, d := range []string{f.StartDate, f.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return f, &client.ValidationError{Field: "date", Message: assets.ErrInvalidDate.Error()}
		}
	}
	if f.StartDate != "" && f.EndDate != "" && f.StartDate > f.EndDate {
		return f, &client.ValidationError{Field: "date", Message: "start_date must not be after end_date"}
	}
	return f, nil
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
