package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"regexp"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/justsurfingit/resume-builder/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MinUploadSize = 10 << 10
	MaxUploadSize = 10 << 20
	maxImageSide  = 800
	jpegQuality   = 85
	uploadsPrefix = "uploads/"
)

// Pictures whose header claims larger bounds are refused before decoding.
const (
	maxSourceSide   = 10000
	maxSourcePixels = 40_000_000
)

var (
	allowedImageTypes = []string{"image/png", "image/jpeg", "image/webp"}
	pathSegment       = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

type StorageService struct {
	Store  storage.Store
	AppURL string
	Log    *zap.Logger
}

func NewStorageService(store storage.Store, appURL string, log *zap.Logger) *StorageService {
	return &StorageService{Store: store, AppURL: appURL, Log: log}
}

// UploadImage validates an uploaded picture, scales it to fit 800x800 and
// stores it as JPEG. It returns the public url of the stored file.
func (s *StorageService) UploadImage(ctx context.Context, userID string, r io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if len(raw) < MinUploadSize || len(raw) > MaxUploadSize {
		return "", fmt.Errorf("%w: size must be between 10KB and 10MB", ErrInvalidFile)
	}

	mt := mimetype.Detect(raw)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return "", fmt.Errorf("%w: unsupported type %s", ErrInvalidFile, mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if cfg.Width > maxSourceSide || cfg.Height > maxSourceSide || cfg.Width*cfg.Height > maxSourcePixels {
		return "", fmt.Errorf("%w: image is %dx%d pixels, sides may not exceed %d", ErrInvalidFile, cfg.Width, cfg.Height, maxSourceSide)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fit(src, maxImageSide), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encoding image: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("creating uuid: %w", err)
	}
	key := uploadsPrefix + userID + "/" + id.String() + ".jpg"
	if err := s.Store.Put(ctx, key, &buf, int64(buf.Len()), "image/jpeg"); err != nil {
		return "", err
	}

	s.Log.Info("image uploaded", zap.String("user_id", userID), zap.String("key", key))
	return s.AppURL + "/" + key, nil
}

// fit scales img down so neither side exceeds side, keeping its aspect ratio.
func fit(img image.Image, side int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= side && h <= side {
		return img
	}
	if w >= h {
		h = max(h*side/w, 1)
		w = side
	} else {
		w = max(w*side/h, 1)
		h = side
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func uploadKey(userID, filename string) (string, error) {
	if !pathSegment.MatchString(userID) || !pathSegment.MatchString(filename) {
		return "", ErrForbidden
	}
	return uploadsPrefix + userID + "/" + filename, nil
}

// DeleteFile removes one of the user's uploads.
func (s *StorageService) DeleteFile(ctx context.Context, userID, filename string) error {
	key, err := uploadKey(userID, filename)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *StorageService) DeleteUserFiles(ctx context.Context, userID string) error {
	if !pathSegment.MatchString(userID) {
		return ErrForbidden
	}
	return s.Store.DeletePrefix(ctx, uploadsPrefix+userID+"/")
}

// Stat returns the metadata of an upload.
func (s *StorageService) Stat(ctx context.Context, userID, filename string) (storage.Info, error) {
	key, err := uploadKey(userID, filename)
	if err != nil {
		return storage.Info{}, err
	}
	info, err := s.Store.Stat(ctx, key)
	if errors.Is(err, storage.ErrNotExist) {
		return storage.Info{}, ErrNotFound
	}
	return info, err
}

// Open returns an upload for serving.
func (s *StorageService) Open(ctx context.Context, userID, filename string) (io.ReadCloser, storage.Info, error) {
	key, err := uploadKey(userID, filename)
	if err != nil {
		return nil, storage.Info{}, err
	}
	rc, info, err := s.Store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, storage.Info{}, ErrNotFound
	}
	return rc, info, err
}

func (s *StorageService) HealthCheck(ctx context.Context) error {
	return s.Store.HealthCheck(ctx)
}
