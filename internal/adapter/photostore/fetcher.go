package photostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
)

// MaxPhotoBytes bounds how much of a remote or local photo is read.
const MaxPhotoBytes = 25 << 20

// Fetcher loads the image behind a photo_url: http(s) URLs are downloaded,
// anything else is read as a local path.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a Fetcher. A nil client gets a 60s timeout default.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{httpClient: client}
}

// Fetch returns the photo referenced by ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (domain.Photo, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Photo{}, errors.New("empty photo reference")
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return f.download(ctx, ref)
	}
	return readLocal(ctx, ref)
}

func (f *Fetcher) download(ctx context.Context, url string) (domain.Photo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("build photo request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("download photo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.Photo{}, fmt.Errorf("download photo: unexpected status %d", resp.StatusCode)
	}
	data, err := readLimited(resp.Body)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("download photo: %w", err)
	}
	return domain.Photo{
		Filename:    path.Base(req.URL.Path),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readLocal(ctx context.Context, name string) (domain.Photo, error) {
	if err := ctx.Err(); err != nil {
		return domain.Photo{}, err
	}
	file, err := os.Open(name)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("open photo: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := readLimited(file)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("read photo: %w", err)
	}
	return domain.Photo{Filename: path.Base(name), Data: data}, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPhotoBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", MaxPhotoBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("photo is empty")
	}
	return data, nil
}
