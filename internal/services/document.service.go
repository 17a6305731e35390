package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/pkg/logger"
	"github.com/abrahamus/iBeekeeper/pkg/prom"
	"github.com/google/uuid"
)

var (
	ErrEmptyFile       = errors.New("uploaded file is empty")
	ErrFileTooLarge    = errors.New("uploaded file exceeds the size limit")
	ErrUnsupportedType = errors.New("only pdf attachments are accepted")
	ErrPathOutsideRoot = errors.New("document path escapes the upload root")
)

const DefaultMaxDocumentSize = 16 * 1024 * 1024

var pdfMagic = []byte("%PDF")

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)
	GetByID(ctx context.Context, userID, id int64) (*model.Document, error)
	Delete(ctx context.Context, userID, id int64) error
	Attach(ctx context.Context, userID, transactionID, documentID int64) error
	Detach(ctx context.Context, userID, transactionID, documentID int64) error
	ListByTransaction(ctx context.Context, userID, transactionID int64) ([]*model.Document, error)
}

type TransactionGetter interface {
	GetByID(ctx context.Context, userID, id int64) (*model.Transaction, error)
}

type DocumentService struct {
	documentRepo    DocumentRepository
	transactionRepo TransactionGetter
	root            string
	maxSize         int64
}

func NewDocumentService(documentRepo DocumentRepository, transactionRepo TransactionGetter, root string, maxSize int64) *DocumentService {
	if maxSize <= 0 {
		maxSize = DefaultMaxDocumentSize
	}
	return &DocumentService{
		documentRepo:    documentRepo,
		transactionRepo: transactionRepo,
		root:            root,
		maxSize:         maxSize,
	}
}

// Upload stores a pdf under the user's upload directory and attaches it
// to the transaction. The path embeds a fresh uuid so concurrent uploads
// of the same filename never collide.
func (s *DocumentService) Upload(ctx context.Context, userID, transactionID int64, filename string, data []byte) (*model.Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}
	name := sanitizeFilename(filename)
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return nil, ErrUnsupportedType
	}
	// the extension is client-controlled, the leading bytes are not
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, ErrUnsupportedType
	}

	if _, err := s.transactionRepo.GetByID(ctx, userID, transactionID); err != nil {
		return nil, err
	}

	started := time.Now()
	now := time.Now().UTC()
	relPath := filepath.Join(
		fmt.Sprintf("%d", userID),
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", int(now.Month())),
		fmt.Sprintf("%s_%s", uuid.NewString()[:8], name),
	)
	absPath, err := s.confine(relPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return nil, err
	}

	doc, err := s.documentRepo.Create(ctx, &model.Document{
		UserID:   userID,
		Filename: name,
		FilePath: relPath,
		FileSize: int64(len(data)),
	})
	if err != nil {
		// orphaned file, remove it
		if rmErr := os.Remove(absPath); rmErr != nil {
			logger.Warn("failed to remove orphaned upload", "path", relPath, "error", rmErr)
		}
		return nil, err
	}

	if err := s.documentRepo.Attach(ctx, userID, transactionID, doc.ID); err != nil {
		return nil, err
	}

	prom.AddDocumentUploadDuration(time.Since(started).Seconds())
	return doc, nil
}

// Detach unlinks the document from the transaction. The document row and
// the stored file survive.
func (s *DocumentService) Detach(ctx context.Context, userID, transactionID, documentID int64) error {
	if _, err := s.transactionRepo.GetByID(ctx, userID, transactionID); err != nil {
		return err
	}
	return s.documentRepo.Detach(ctx, userID, transactionID, documentID)
}

// Delete removes the document row, its attachments and the stored file.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID int64) error {
	doc, err := s.documentRepo.GetByID(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.documentRepo.Delete(ctx, userID, documentID); err != nil {
		return err
	}

	absPath, err := s.confine(doc.FilePath)
	if err != nil {
		return err
	}
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove document file", "path", doc.FilePath, "error", err)
	}
	return nil
}

func (s *DocumentService) ListByTransaction(ctx context.Context, userID, transactionID int64) ([]*model.Document, error) {
	return s.documentRepo.ListByTransaction(ctx, userID, transactionID)
}

// FilePath resolves a document to its absolute on-disk path after the
// ownership and confinement checks.
func (s *DocumentService) FilePath(ctx context.Context, userID, documentID int64) (*model.Document, string, error) {
	doc, err := s.documentRepo.GetByID(ctx, userID, documentID)
	if err != nil {
		return nil, "", err
	}
	absPath, err := s.confine(doc.FilePath)
	if err != nil {
		return nil, "", err
	}
	return doc, absPath, nil
}

func (s *DocumentService) confine(relPath string) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	abs := filepath.Clean(filepath.Join(root, relPath))
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}
	return abs, nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "..", "")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
