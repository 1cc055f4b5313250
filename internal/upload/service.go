package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/Byteflies/matrix-qms-github-actions/internal/matrix"
)

const (
	projectMissingMessageConstant  = "project must be provided"
	itemMissingMessageConstant     = "item reference must be provided"
	fileNameMissingMessageConstant = "file name must be provided"
	reasonMissingMessageConstant   = "reason must be provided"
	uploadErrorTemplateConstant    = "unable to upload %s: %w"
	attachErrorTemplateConstant    = "unable to attach %s to %s field %s: %w"
	fileReferenceTemplateConstant  = "%d?key=%s"
	logMessageUploadingConstant    = "uploading file"
	logMessageUploadedConstant     = "file uploaded"
	logMessageAttachingConstant    = "attaching file to item field"
	logFieldProjectConstant        = "project"
	logFieldItemConstant           = "item"
	logFieldFieldConstant          = "field"
	logFieldFileNameConstant       = "file_name"
	logFieldFileIDConstant         = "file_id"
	logFieldFilePathConstant       = "file_path"
	logFieldReasonConstant         = "reason"
)

// Validation errors returned before the repository is contacted.
var (
	ErrProjectMissing  = errors.New(projectMissingMessageConstant)
	ErrItemMissing     = errors.New(itemMissingMessageConstant)
	ErrFileNameMissing = errors.New(fileNameMissingMessageConstant)
	ErrReasonMissing   = errors.New(reasonMissingMessageConstant)
)

// RepositoryWriter is the subset of the repository API used to attach files.
type RepositoryWriter interface {
	UploadFile(executionContext context.Context, project string, fileName string, content io.Reader) (matrix.UploadedFile, error)
	UpdateItemField(executionContext context.Context, project string, referenceID string, reason string, fieldID string, value any) error
}

// Options describe one attachment.
type Options struct {
	Project  string
	Item     string
	FieldID  string
	FileName string
	Reason   string
}

// Validate checks the options before any repository call.
func (options Options) Validate() error {
	if len(strings.TrimSpace(options.Project)) == 0 {
		return ErrProjectMissing
	}
	if len(strings.TrimSpace(options.Item)) == 0 {
		return ErrItemMissing
	}
	if fieldError := matrix.ValidateFieldID(options.FieldID); fieldError != nil {
		return fieldError
	}
	if len(strings.TrimSpace(options.FileName)) == 0 {
		return ErrFileNameMissing
	}
	if len(strings.TrimSpace(options.Reason)) == 0 {
		return ErrReasonMissing
	}
	return nil
}

// Result reports the stored file and the value written into the field.
type Result struct {
	File  matrix.UploadedFile
	Entry matrix.FileFieldEntry
}

// Service uploads files and attaches them to item fields.
type Service struct {
	writer RepositoryWriter
	logger *zap.Logger
}

// NewService constructs a Service. logger may be nil.
func NewService(writer RepositoryWriter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{writer: writer, logger: logger}
}

// Attach uploads content and replaces the field value with a single entry
// pointing at the stored file.
func (service *Service) Attach(executionContext context.Context, options Options, content io.Reader) (Result, error) {
	if validationError := options.Validate(); validationError != nil {
		return Result{}, validationError
	}

	project := strings.TrimSpace(options.Project)
	item := strings.TrimSpace(options.Item)
	fieldID := strings.TrimSpace(options.FieldID)
	fileName := strings.TrimSpace(options.FileName)

	service.logger.Info(logMessageUploadingConstant, zap.String(logFieldProjectConstant, project), zap.String(logFieldFileNameConstant, fileName))
	uploaded, uploadError := service.writer.UploadFile(executionContext, project, fileName, content)
	if uploadError != nil {
		return Result{}, fmt.Errorf(uploadErrorTemplateConstant, fileName, uploadError)
	}
	service.logger.Info(
		logMessageUploadedConstant,
		zap.String(logFieldFileNameConstant, fileName),
		zap.Int64(logFieldFileIDConstant, uploaded.FileID),
		zap.String(logFieldFilePathConstant, uploaded.FileFullPath),
	)

	entry := matrix.FileFieldEntry{
		FileName: fileName,
		FileID:   fmt.Sprintf(fileReferenceTemplateConstant, uploaded.FileID, uploaded.Key),
	}

	service.logger.Info(
		logMessageAttachingConstant,
		zap.String(logFieldItemConstant, item),
		zap.String(logFieldFieldConstant, fieldID),
		zap.String(logFieldReasonConstant, options.Reason),
	)
	if updateError := service.writer.UpdateItemField(executionContext, project, item, options.Reason, fieldID, []matrix.FileFieldEntry{entry}); updateError != nil {
		return Result{File: uploaded}, fmt.Errorf(attachErrorTemplateConstant, fileName, item, fieldID, updateError)
	}

	return Result{File: uploaded, Entry: entry}, nil
}
