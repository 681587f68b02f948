package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	DefaultMaxVideoSize = 50 * 1024 * 1024
	DefaultMaxImageSize = 10 * 1024 * 1024
)

var (
	ErrNoFile          = errors.New("no file uploaded")
	ErrEmptyFilename   = errors.New("no file selected")
	ErrFileTooLarge    = errors.New("file size exceeds limit")
	ErrInvalidFileType = errors.New("file type not allowed")
)

var VideoExtensions = []string{"webm", "mp4", "avi", "mov"}

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateVideoFile(file *multipart.FileHeader) error
	ValidateImageFile(file *multipart.FileHeader) error
	HashFile(file *multipart.FileHeader) (string, error)
	SaveTempFile(file *multipart.FileHeader, dir string) (string, error)
}

type utils struct {
	maxVideoSize int64
	maxImageSize int64
}

func New() IUtils {
	return NewWithLimits(DefaultMaxVideoSize, DefaultMaxImageSize)
}

// NewWithLimits is New with explicit upload size caps in bytes. Non-positive
// values fall back to the defaults.
func NewWithLimits(maxVideoSize, maxImageSize int64) IUtils {
	if maxVideoSize <= 0 {
		maxVideoSize = DefaultMaxVideoSize
	}
	if maxImageSize <= 0 {
		maxImageSize = DefaultMaxImageSize
	}
	return &utils{
		maxVideoSize: maxVideoSize,
		maxImageSize: maxImageSize,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// AllowedVideo reports whether filename carries one of VideoExtensions,
// compared case-insensitively.
func AllowedVideo(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, allowed := range VideoExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (u *utils) ValidateVideoFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}
	if file.Filename == "" {
		return ErrEmptyFilename
	}
	if !AllowedVideo(file.Filename) {
		return fmt.Errorf("%w: %s", ErrInvalidFileType, filepath.Ext(file.Filename))
	}
	if file.Size > u.maxVideoSize {
		return ErrFileTooLarge
	}

	return nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if file.Size > u.maxImageSize {
		return ErrFileTooLarge
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("%w: %s", ErrInvalidFileType, contentType)
	}

	return nil
}

// HashFile returns the hex sha256 of the uploaded content.
func (u *utils) HashFile(file *multipart.FileHeader) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SaveTempFile copies the upload into dir under a unique name that keeps the
// original extension. The caller removes the file.
func (u *utils) SaveTempFile(file *multipart.FileHeader, dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, "upload-*"+strings.ToLower(filepath.Ext(file.Filename)))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}

	return dst.Name(), nil
}
