package standby

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"github.com/rs/zerolog"
	"go-teethagent/internal/modes"
	"go-teethagent/pkg/agenterrors"
	"go-teethagent/pkg/logger"
	"go-teethagent/pkg/models"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const Name = "standby"

type runner interface {
	Go(result *models.AsyncCommandResult, work func() (any, error))
}

type ImageInfo struct {
	ID       string
	URLs     []string
	Checksum string
}

// Mode keeps a node ready for deployment by caching images ahead of time.
type Mode struct {
	*modes.Base
	runner   runner
	cacheDir string
	client   *http.Client
	log      zerolog.Logger
}

func New(r runner, cacheDir string, client *http.Client) *Mode {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	m := &Mode{
		Base:     modes.NewBase(Name),
		runner:   r,
		cacheDir: cacheDir,
		client:   client,
		log:      logger.Component("standby"),
	}
	m.AddCommand("cache_image", m.cacheImage)
	return m
}

// Factory binds the mode's dependencies so the registry can build it without arguments.
func Factory(r runner, cacheDir string) modes.Factory {
	return func() modes.Mode {
		return New(r, cacheDir, nil)
	}
}

func (m *Mode) cacheImage(command string, params map[string]any) (models.CommandResult, error) {
	info, err := parseImageInfo(params)
	if err != nil {
		return nil, err
	}

	result := models.NewAsyncCommandResult(command, params)
	m.runner.Go(result, func() (any, error) {
		path, err := m.downloadImage(context.Background(), info)
		if err != nil {
			return nil, err
		}
		return map[string]any{"image_id": info.ID, "path": path}, nil
	})
	return result, nil
}

func parseImageInfo(params map[string]any) (ImageInfo, error) {
	raw, ok := params["image_info"].(map[string]any)
	if !ok {
		return ImageInfo{}, agenterrors.NewInvalidContent("image_info must be an object")
	}

	id, _ := raw["id"].(string)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return ImageInfo{}, agenterrors.NewInvalidContent("image_info.id must be a non-empty file name")
	}

	checksum, _ := raw["checksum"].(string)
	if _, err := hex.DecodeString(checksum); err != nil || len(checksum) != md5.Size*2 {
		return ImageInfo{}, agenterrors.NewInvalidContent("image_info.checksum must be an md5 hex digest")
	}

	rawURLs, ok := raw["urls"].([]any)
	if !ok || len(rawURLs) == 0 {
		return ImageInfo{}, agenterrors.NewInvalidContent("image_info.urls must be a non-empty list")
	}
	urls := make([]string, 0, len(rawURLs))
	for _, u := range rawURLs {
		s, ok := u.(string)
		if !ok || s == "" {
			return ImageInfo{}, agenterrors.NewInvalidContent("image_info.urls must only contain strings")
		}
		urls = append(urls, s)
	}

	return ImageInfo{ID: id, URLs: urls, Checksum: strings.ToLower(checksum)}, nil
}

// downloadImage tries each URL in order and returns the path of the first verified copy.
func (m *Mode) downloadImage(ctx context.Context, info ImageInfo) (string, error) {
	if err := os.MkdirAll(m.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	dest := filepath.Join(m.cacheDir, info.ID)
	var lastErr error
	for _, url := range info.URLs {
		err := m.fetch(ctx, url, dest, info.Checksum)
		if err == nil {
			m.log.Info().Str("image_id", info.ID).Str("url", url).Msg("image cached")
			return dest, nil
		}
		m.log.Warn().Err(err).Str("image_id", info.ID).Str("url", url).Msg("image download failed")
		lastErr = err
	}
	return "", &ImageDownloadError{ImageID: info.ID, Err: lastErr}
}

func (m *Mode) fetch(ctx context.Context, url, dest, checksum string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := md5.New()
	_, err = io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	if sum := hex.EncodeToString(hash.Sum(nil)); sum != checksum {
		return &ImageChecksumError{Expected: checksum, Actual: sum}
	}
	return os.Rename(tmp.Name(), dest)
}

type ImageDownloadError struct {
	ImageID string
	Err     error
}

func (e *ImageDownloadError) Error() string {
	return fmt.Sprintf("unable to download image %s: %v", e.ImageID, e.Err)
}

func (e *ImageDownloadError) Unwrap() error {
	return e.Err
}

type ImageChecksumError struct {
	Expected string
	Actual   string
}

func (e *ImageChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}
