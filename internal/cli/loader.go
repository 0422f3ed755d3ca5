package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/reactive-systems/rtlola-streamir/internal/compiler"
	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// LoadResult contains a compiled specification and where it came from.
type LoadResult struct {
	Spec      *ir.StreamIR
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files loaded
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpec loads and compiles a specification. path is either a directory
// holding one CUE package or a single .cue file.
//
// The returned spec is compiled but not validated; callers run
// compiler.ValidateIR (engine.Build does so implicitly).
func LoadSpec(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("spec not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing spec: %v", err)}
	}

	var (
		files []string
		cfg   *load.Config
		args  []string
	)
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		cfg = &load.Config{Dir: path}
		args = []string{"."}
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}
		}
		files = []string{path}
		cfg = &load.Config{Dir: filepath.Dir(path)}
		args = []string{filepath.Base(path)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	spec, err := compiler.CompileSpec(value)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &LoadResult{Spec: spec, CUEValue: value, FileCount: len(files)}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeOpenFailed  = "E008" // Trace or database could not be opened

	// Declaration errors
	ErrCodeInvalidInput     = "E101" // Malformed input declaration
	ErrCodeInvalidOutput    = "E102" // Malformed output declaration
	ErrCodeInvalidWindow    = "E103" // Malformed window declaration
	ErrCodeInvalidFrequency = "E104" // Malformed frequency declaration

	// Evaluation order errors
	ErrCodeInvalidEval = "E110" // Malformed eval statement, guard or expression

	// Runtime errors
	ErrCodeRuntime = "E301" // Monitor failed while evaluating a trace
)

// MapFieldToErrorCode maps a compiler error field to an error code.
// Fields are dotted paths such as "outputs.b.type" or "eval[2].then".
func MapFieldToErrorCode(field string) string {
	switch {
	case strings.HasPrefix(field, "inputs"):
		return ErrCodeInvalidInput
	case strings.HasPrefix(field, "outputs"):
		return ErrCodeInvalidOutput
	case strings.HasPrefix(field, "windows"):
		return ErrCodeInvalidWindow
	case strings.HasPrefix(field, "frequencies"):
		return ErrCodeInvalidFrequency
	case strings.HasPrefix(field, "eval"):
		return ErrCodeInvalidEval
	default:
		return ErrCodeGeneric
	}
}
