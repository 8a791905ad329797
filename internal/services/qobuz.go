// Qobuz API implementation of [Service]
//
// Endpoint shapes follow the api.qobuz.com/api.json/0.2 surface: user/login
// for the auth token, favorite/getUserFavorites for paginated listings,
// track/getFileUrl (signed) for streamable files, album/get and artist/get
// for expanding albums and artists into tracks.
package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	qobuzBaseURL   = "https://www.qobuz.com/api.json/0.2"
	favoritesLimit = 50
)

// QobuzConfig contains the settings needed to construct a QobuzService.
type QobuzConfig struct {
	Email     string
	Password  string
	AppID     string
	AppSecret string
	Directory string
	BaseURL   string // Defaults to the public Qobuz API; overridable for tests
}

// QobuzService implements [Service] for the Qobuz catalog.
type QobuzService struct {
	cfg        QobuzConfig
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	tokenSrc   oauth2.TokenSource
}

// NewQobuzService creates a Qobuz catalog client. The client is not
// authenticated until [QobuzService.Authenticate] succeeds.
func NewQobuzService(cfg QobuzConfig, client *http.Client, logger *log.Logger) *QobuzService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = qobuzBaseURL
	}

	return &QobuzService{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: client,
		// Qobuz throttles aggressive clients; 4 req/s with a small burst
		// keeps listing and URL resolution under the radar.
		limiter: rate.NewLimiter(rate.Limit(4), 8),
		logger:  shared.WithLogger(logger, "service", "qobuz"),
	}
}

// Name returns the provider name.
func (q *QobuzService) Name() string { return "Qobuz" }

type loginResponse struct {
	UserAuthToken string `json:"user_auth_token"`
	User          struct {
		ID    json.Number `json:"id"`
		Login string      `json:"login"`
	} `json:"user"`
}

// Authenticate logs in with the account credentials and stores the user auth
// token as an [oauth2.TokenSource] consulted on every request.
func (q *QobuzService) Authenticate(ctx context.Context) error {
	if q.cfg.Email == "" || q.cfg.Password == "" {
		return fmt.Errorf("%w: qobuz email and password required", shared.ErrMissingCredentials)
	}

	params := url.Values{}
	params.Set("email", q.cfg.Email)
	params.Set("password", fmt.Sprintf("%x", md5.Sum([]byte(q.cfg.Password))))
	params.Set("app_id", q.cfg.AppID)

	var login loginResponse
	if err := q.getJSON(ctx, "/user/login", params, &login); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if login.UserAuthToken == "" {
		return fmt.Errorf("%w: no auth token in login response", shared.ErrAuthFailed)
	}

	q.tokenSrc = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: login.UserAuthToken})
	q.logger.Info("authenticated", "user", login.User.Login)
	return nil
}

type favoriteTrack struct {
	ID        json.Number `json:"id"`
	Title     string      `json:"title"`
	Performer struct {
		Name string `json:"name"`
	} `json:"performer"`
	Album struct {
		Title string `json:"title"`
	} `json:"album"`
}

type favoriteAlbum struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
}

type favoriteArtist struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

type favoritesResponse struct {
	Tracks struct {
		Items []favoriteTrack `json:"items"`
	} `json:"tracks"`
	Albums struct {
		Items []favoriteAlbum `json:"items"`
	} `json:"albums"`
	Artists struct {
		Items []favoriteArtist `json:"items"`
	} `json:"artists"`
}

// ListFavorites retrieves every favorite of the given kind using offset
// pagination, preserving the provider's listing order.
func (q *QobuzService) ListFavorites(ctx context.Context, kind models.Kind) ([]models.FavoriteItem, error) {
	if q.tokenSrc == nil {
		return nil, shared.ErrNotAuthenticated
	}

	var favorites []models.FavoriteItem
	offset := 0

	for {
		params := url.Values{}
		params.Set("type", kind.Plural())
		params.Set("limit", fmt.Sprint(favoritesLimit))
		params.Set("offset", fmt.Sprint(offset))

		var page favoritesResponse
		if err := q.getJSON(ctx, "/favorite/getUserFavorites", params, &page); err != nil {
			return nil, fmt.Errorf("%w: failed to list %s favorites: %v", shared.ErrAPIRequest, kind.Plural(), err)
		}

		items := page.items(kind)
		if len(items) == 0 {
			break
		}

		favorites = append(favorites, items...)
		offset += favoritesLimit
		q.logger.Debug("retrieved favorites page", "kind", kind, "page", len(items), "total", len(favorites))
	}

	return favorites, nil
}

// items flattens one favorites page into FavoriteItems for the requested kind.
func (r *favoritesResponse) items(kind models.Kind) []models.FavoriteItem {
	var items []models.FavoriteItem
	switch kind {
	case models.KindTrack:
		for _, t := range r.Tracks.Items {
			items = append(items, models.FavoriteItem{
				ID:     t.ID.String(),
				Kind:   models.KindTrack,
				Title:  t.Title,
				Artist: t.Performer.Name,
				Album:  t.Album.Title,
			})
		}
	case models.KindAlbum:
		for _, a := range r.Albums.Items {
			items = append(items, models.FavoriteItem{
				ID:     a.ID,
				Kind:   models.KindAlbum,
				Title:  a.Title,
				Artist: a.Artist.Name,
				Album:  a.Title,
			})
		}
	case models.KindArtist:
		for _, a := range r.Artists.Items {
			items = append(items, models.FavoriteItem{
				ID:     a.ID.String(),
				Kind:   models.KindArtist,
				Title:  a.Name,
				Artist: a.Name,
			})
		}
	}
	return items
}

// FetchArtifact downloads an item at the given quality. Tracks resolve to a
// single file; albums expand to their track list; artists expand to their
// album list. Returns a classified error on failure.
func (q *QobuzService) FetchArtifact(ctx context.Context, item models.FavoriteItem, quality int) (*ArtifactResult, error) {
	if q.tokenSrc == nil {
		return nil, &PermanentError{Err: shared.ErrNotAuthenticated}
	}

	switch item.Kind {
	case models.KindTrack:
		return q.fetchTrack(ctx, item.ID, item.Artist, item.Album, item.Title, 0, quality)
	case models.KindAlbum:
		return q.fetchAlbum(ctx, item.ID, quality)
	case models.KindArtist:
		return q.fetchArtist(ctx, item.ID, quality)
	}
	return nil, &PermanentError{Err: fmt.Errorf("unknown kind %q", item.Kind)}
}

type fileURLResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FormatID int    `json:"format_id"`
}

// fetchTrack resolves the signed file URL for one track and streams it to
// <dir>/tracks/<artist>/<artist> - <album>/<track>.<ext> (albums pass their
// own directory layout through trackNo).
func (q *QobuzService) fetchTrack(ctx context.Context, trackID, artist, album, title string, trackNo, quality int) (*ArtifactResult, error) {
	ts := time.Now().Unix()
	sig := fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf(
		"trackgetFileUrlformat_id%dintentstreamtrack_id%s%d%s",
		quality, trackID, ts, q.cfg.AppSecret,
	))))

	params := url.Values{}
	params.Set("track_id", trackID)
	params.Set("format_id", fmt.Sprint(quality))
	params.Set("intent", "stream")
	params.Set("request_ts", fmt.Sprint(ts))
	params.Set("request_sig", sig)

	var fileURL fileURLResponse
	if err := q.getJSON(ctx, "/track/getFileUrl", params, &fileURL); err != nil {
		return nil, err
	}
	if fileURL.URL == "" {
		return nil, &PermanentError{Err: fmt.Errorf("no streamable file for track %s", trackID)}
	}

	name := sanitizeComponent(title)
	if trackNo > 0 {
		name = fmt.Sprintf("%02d - %s", trackNo, name)
	}
	dir := filepath.Join(q.cfg.Directory, "tracks", sanitizeComponent(artist),
		fmt.Sprintf("%s - %s", sanitizeComponent(artist), sanitizeComponent(album)))
	path := filepath.Join(dir, name+extensionFor(fileURL.MimeType))

	written, err := q.download(ctx, fileURL.URL, path)
	if err != nil {
		return nil, err
	}

	return &ArtifactResult{Path: path, Files: 1, BytesWritten: written}, nil
}

type albumResponse struct {
	Title  string `json:"title"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
	Tracks struct {
		Items []struct {
			ID          json.Number `json:"id"`
			Title       string      `json:"title"`
			TrackNumber int         `json:"track_number"`
		} `json:"items"`
	} `json:"tracks"`
}

// fetchAlbum expands an album into its tracks and downloads each one.
func (q *QobuzService) fetchAlbum(ctx context.Context, albumID string, quality int) (*ArtifactResult, error) {
	params := url.Values{}
	params.Set("album_id", albumID)

	var album albumResponse
	if err := q.getJSON(ctx, "/album/get", params, &album); err != nil {
		return nil, err
	}
	if len(album.Tracks.Items) == 0 {
		return nil, &PermanentError{Err: fmt.Errorf("album %s has no tracks", albumID)}
	}

	result := &ArtifactResult{}
	for _, track := range album.Tracks.Items {
		tr, err := q.fetchTrack(ctx, track.ID.String(), album.Artist.Name, album.Title, track.Title, track.TrackNumber, quality)
		if err != nil {
			return nil, err
		}
		result.Path = filepath.Dir(tr.Path)
		result.Files++
		result.BytesWritten += tr.BytesWritten
	}

	return result, nil
}

type artistResponse struct {
	Name   string `json:"name"`
	Albums struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	} `json:"albums"`
}

// fetchArtist expands an artist into their albums and downloads each one.
func (q *QobuzService) fetchArtist(ctx context.Context, artistID string, quality int) (*ArtifactResult, error) {
	params := url.Values{}
	params.Set("artist_id", artistID)
	params.Set("extra", "albums")

	var artist artistResponse
	if err := q.getJSON(ctx, "/artist/get", params, &artist); err != nil {
		return nil, err
	}
	if len(artist.Albums.Items) == 0 {
		return nil, &PermanentError{Err: fmt.Errorf("artist %s has no albums", artistID)}
	}

	result := &ArtifactResult{}
	for _, album := range artist.Albums.Items {
		ar, err := q.fetchAlbum(ctx, album.ID, quality)
		if err != nil {
			return nil, err
		}
		result.Path = filepath.Dir(ar.Path)
		result.Files += ar.Files
		result.BytesWritten += ar.BytesWritten
	}

	return result, nil
}

// getJSON performs a rate-limited GET against the Qobuz API and decodes the
// JSON response, classifying HTTP failures.
func (q *QobuzService) getJSON(ctx context.Context, path string, params url.Values, target any) error {
	if err := q.limiter.Wait(ctx); err != nil {
		return &TransientError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return &PermanentError{Err: err}
	}
	req.Header.Set("X-App-Id", q.cfg.AppID)
	if q.tokenSrc != nil {
		token, err := q.tokenSrc.Token()
		if err != nil {
			return &PermanentError{Err: err}
		}
		req.Header.Set("X-User-Auth-Token", token.AccessToken)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &TransientError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// download streams a resolved file URL to disk, writing through a temp file so
// an interrupted transfer never leaves a partial artifact at the final path.
func (q *QobuzService) download(ctx context.Context, fileURL, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, &PermanentError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, &PermanentError{Err: err}
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return 0, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return 0, err
	}

	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, &PermanentError{Err: err}
	}

	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, &TransientError{Err: err}
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, &PermanentError{Err: err}
	}

	return written, nil
}

// classifyStatus maps an HTTP status to the transient/permanent taxonomy.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &PermanentError{Err: fmt.Errorf("%w: status %d", shared.ErrAuthFailed, code)}
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
		return &TransientError{Err: fmt.Errorf("status %d", code)}
	default:
		return &PermanentError{Err: fmt.Errorf("status %d", code)}
	}
}

// extensionFor picks a file extension from the resolved mime type.
func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "flac"):
		return ".flac"
	case strings.Contains(mimeType, "mpeg"):
		return ".mp3"
	default:
		return ".flac"
	}
}

// sanitizeComponent makes a metadata string safe as a single path element.
func sanitizeComponent(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
