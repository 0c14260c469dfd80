// Package avatar normalizes uploaded profile pictures into square PNGs and
// keeps them in file storage keyed by user id.
package avatar

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"go-accounts/internal/util"
	"go-accounts/pkg/apierror"
)

const (
	DefaultMaxBytes = 5 << 20
	DefaultSize     = 256
)

// FileStore is the subset of *storage.Storage the avatar service needs.
type FileStore interface {
	OpenForRead(name string) (*os.File, error)
	WriteAtomic(name string, data []byte) error
	Remove(name string) error
}

type Service struct {
	files    FileStore
	maxBytes int64
	size     int
}

func NewService(files FileStore, maxBytes int64, size int) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Service{files: files, maxBytes: maxBytes, size: size}
}

// Save decodes r, crops and scales it, and stores the result for userID.
func (s *Service) Save(userID int64, r io.Reader) error {
	encoded, err := Process(r, s.maxBytes, s.size)
	if err != nil {
		return err
	}

	if err := s.files.WriteAtomic(fileName(userID), encoded); err != nil {
		return fmt.Errorf("store avatar for user %d: %w", userID, err)
	}
	return nil
}

// Open returns the stored avatar and its modification time. The caller closes
// the file.
func (s *Service) Open(userID int64) (*os.File, time.Time, error) {
	file, err := s.files.OpenForRead(fileName(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, time.Time{}, apierror.NotFound("avatar not found", strconv.FormatInt(userID, 10))
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("open avatar for user %d: %w", userID, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, time.Time{}, fmt.Errorf("stat avatar for user %d: %w", userID, err)
	}

	return file, info.ModTime(), nil
}

func (s *Service) Remove(userID int64) error {
	return s.files.Remove(fileName(userID))
}

// Process reads at most maxBytes from r and returns a size x size PNG cut from
// the center of the decoded image.
func Process(r io.Reader, maxBytes int64, size int) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if int64(len(raw)) > maxBytes {
		return nil, apierror.New("PAYLOAD_TOO_LARGE", "avatar exceeds the upload limit", strconv.FormatInt(maxBytes, 10), http.StatusRequestEntityTooLarge)
	}
	if len(raw) == 0 {
		return nil, apierror.BadRequest("avatar file is empty", "")
	}

	mimeType := util.DetectMIME(raw)
	if !util.IsImageMIME(mimeType) {
		return nil, apierror.New("UNSUPPORTED_TYPE", "avatar must be an image", mimeType, http.StatusUnsupportedMediaType)
	}
	if !util.IsAvatarMIME(mimeType) {
		return nil, apierror.New("UNSUPPORTED_TYPE", "avatar must be a JPEG, PNG, GIF, WebP or BMP image", mimeType, http.StatusUnsupportedMediaType)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apierror.BadRequest("avatar image could not be decoded", mimeType)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, centerSquare(src.Bounds()), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}

func centerSquare(b image.Rectangle) image.Rectangle {
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

func fileName(userID int64) string {
	return strconv.FormatInt(userID, 10) + ".png"
}
