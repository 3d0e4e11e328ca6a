package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind partitions stored files by what they illustrate. Each kind gets
// its own subdirectory under the upload root.
type Kind string

const (
	KindProfile    Kind = "profile"
	KindGuide      Kind = "guide"
	KindAd         Kind = "ad"
	KindCountry    Kind = "country"
	KindCity       Kind = "city"
	KindUniversity Kind = "university"
)

var (
	ErrFileTooLarge   = errors.New("uploaded file too large")
	ErrInvalidKind    = errors.New("invalid upload kind")
	ErrDisallowedType = errors.New("disallowed upload mime type")
	ErrExecutableFile = errors.New("executable files are not allowed")
	ErrInvalidPath    = errors.New("invalid upload path")
)

type StoredFile struct {
	ID           string
	Kind         Kind
	StoragePath  string
	MimeType     string
	SizeBytes    int64
	OriginalName string
	CreatedAt    time.Time
}

// Service stores uploaded images on the local filesystem. Files are
// written under rootDir/<kind>/ with a random name, so a caller can
// never influence where a file lands.
type Service struct {
	rootDir        string
	maxUploadBytes int64
}

func NewService(rootDir string, maxUploadBytes int64) (*Service, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("upload root directory is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload root directory: %w", err)
	}

	return &Service{
		rootDir:        rootDir,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Save sniffs the first 512 bytes of src, rejects anything that is not
// an image, and streams the rest to disk under a freshly generated name.
func (s *Service) Save(_ context.Context, kind Kind, originalName string, src io.Reader) (*StoredFile, error) {
	if !isValidKind(kind) {
		return nil, ErrInvalidKind
	}

	name := sanitizeOriginalName(originalName)
	fileID := uuid.NewString()

	sniff := make([]byte, 512)
	sniffN, sniffErr := io.ReadFull(src, sniff)
	if sniffErr != nil && sniffErr != io.EOF && sniffErr != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading upload data: %w", sniffErr)
	}
	sniff = sniff[:sniffN]

	if isExecutableSignature(sniff) {
		return nil, ErrExecutableFile
	}

	mimeType := detectMimeType(sniff)
	if !isAllowedMimeType(mimeType) {
		return nil, ErrDisallowedType
	}

	relPath := storageRelativePath(kind, fileID, mimeType)
	absPath, err := s.resolveStoragePath(relPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(absPath), fileID+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary upload file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	fullReader := io.MultiReader(bytes.NewReader(sniff), src)
	written, err := io.Copy(tmpFile, io.LimitReader(fullReader, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("writing upload file: %w", err)
	}
	if written > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("closing temporary upload file: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return nil, fmt.Errorf("finalizing upload file: %w", err)
	}

	return &StoredFile{
		ID:           fileID,
		Kind:         kind,
		StoragePath:  relPath,
		MimeType:     mimeType,
		SizeBytes:    written,
		OriginalName: name,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (s *Service) Open(storagePath string) (*os.File, error) {
	absPath, err := s.resolveStoragePath(storagePath)
	if err != nil {
		return nil, err
	}
	return os.Open(absPath)
}

func (s *Service) Delete(storagePath string) error {
	absPath, err := s.resolveStoragePath(storagePath)
	if err != nil {
		return err
	}

	err = os.Remove(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting upload file: %w", err)
	}

	return nil
}

func (s *Service) resolveStoragePath(storagePath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storagePath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidPath
	}

	return filepath.Join(s.rootDir, clean), nil
}

func storageRelativePath(kind Kind, fileID, mimeType string) string {
	return filepath.ToSlash(filepath.Join(string(kind), fileID+extensionFor(mimeType)))
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".img"
	}
}

func sanitizeOriginalName(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload.bin"
	}
	if len(name) > 255 {
		return name[:255]
	}
	return name
}

func detectMimeType(sniff []byte) string {
	if len(sniff) == 0 {
		return "application/octet-stream"
	}

	return trimMimeParams(http.DetectContentType(sniff))
}

func isExecutableSignature(sniff []byte) bool {
	if len(sniff) < 2 {
		return false
	}

	if sniff[0] == 'M' && sniff[1] == 'Z' {
		return true // PE/COFF (Windows)
	}
	if len(sniff) >= 4 {
		if bytes.Equal(sniff[:4], []byte{0x7f, 'E', 'L', 'F'}) {
			return true // ELF
		}

		machoMagics := [][]byte{
			{0xfe, 0xed, 0xfa, 0xce},
			{0xce, 0xfa, 0xed, 0xfe},
			{0xfe, 0xed, 0xfa, 0xcf},
			{0xcf, 0xfa, 0xed, 0xfe},
			{0xca, 0xfe, 0xba, 0xbe},
			{0xbe, 0xba, 0xfe, 0xca},
		}
		for _, magic := range machoMagics {
			if bytes.Equal(sniff[:4], magic) {
				return true
			}
		}
	}

	if sniff[0] == '#' && sniff[1] == '!' {
		return true // shebang scripts
	}

	return false
}

func trimMimeParams(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}

func isValidKind(kind Kind) bool {
	switch kind {
	case KindProfile, KindGuide, KindAd, KindCountry, KindCity, KindUniversity:
		return true
	default:
		return false
	}
}

func isAllowedMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" || mimeType == "image/svg+xml" {
		return false
	}

	return strings.HasPrefix(mimeType, "image/")
}
