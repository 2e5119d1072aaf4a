// Package validation checks the local files read and written by the
// command-line tools before the forecast pipeline touches them.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"salesforecast/internal/dataset"
	"salesforecast/pkg/contracts/domain"
)

// FileValidator validates history, model and export paths
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateFile checks that path is an existing, readable regular file
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateHistoryFile checks a sales history file and returns its format.
// Excel lock files ("~$name.xlsx") are rejected.
func (v *FileValidator) ValidateHistoryFile(path string) (dataset.Format, error) {
	if err := v.ValidateFile(path); err != nil {
		return "", err
	}

	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		v.logger.Warn("Rejecting temporary Excel file",
			slog.String("file", path))
		return "", &domain.SchemaError{Reason: fmt.Sprintf("%s is a temporary Excel lock file", base)}
	}

	format, err := dataset.DetectFormat(base, "")
	if err != nil {
		v.logger.Error("Unsupported history file",
			slog.String("file", path),
			slog.String("extension", filepath.Ext(path)))
		return "", err
	}
	return format, nil
}

// ValidateModelFile checks that a model artifact exists with a JSON or YAML
// extension. Missing artifacts are reported as domain.ModelNotFoundError.
func (v *FileValidator) ValidateModelFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return &domain.ModelNotFoundError{Path: path, Cause: err}
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml":
		return nil
	default:
		v.logger.Error("Model artifact has an unknown extension",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("model artifact %s must be .json, .yaml or .yml", path)
	}
}

// ValidateOutputDirectory ensures dir exists or can be created and is
// writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}
