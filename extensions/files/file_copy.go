package files

import (
	"context"
	"io"

	"github.com/finploy/matchbatch"
)

// FileMove copies FromFileName in FromFileStore to ToFileName in ToFileStore.
// Both names may be FilePath patterns.
type FileMove struct {
	FromFileName  string
	FromFileStore FileStore
	ToFileName    string
	ToFileStore   FileStore
	// Optional skips a missing source file instead of failing.
	Optional bool
}

// NewCopier returns a step handler copying files byte for byte, e.g. uploading
// an export to FTP.
func NewCopier(filesToMove ...FileMove) matchbatch.Handler {
	return &fileCopyHandler{filesToMove: filesToMove}
}

type fileCopyHandler struct {
	filesToMove []FileMove
}

func (handler *fileCopyHandler) Handle(ctx context.Context, execution *matchbatch.StepExecution) matchbatch.BatchError {
	logger := matchbatch.DefaultLogger
	for _, fm := range handler.filesToMove {
		ffp := &FilePath{fm.FromFileName}
		fromFileName, err := ffp.Format(execution)
		if err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "get real file path:%v err", fm.FromFileName, err)
		}
		tfp := &FilePath{fm.ToFileName}
		toFileName, err := tfp.Format(execution)
		if err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "get real file path:%v err", fm.ToFileName, err)
		}

		if fm.Optional {
			exists, err := fm.FromFileStore.Exists(fromFileName)
			if err != nil {
				return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "check from file:%v err", fromFileName, err)
			}
			if !exists {
				logger.Warn(ctx, "skip copy of missing file:%v", fromFileName)
				execution.AddSkip("missing_file", 1)
				continue
			}
		}

		reader, err := fm.FromFileStore.Open(fromFileName, Binary)
		if err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "open from file:%v err", fromFileName, err)
		}
		writer, err := fm.ToFileStore.Create(toFileName, Binary)
		if err != nil {
			if er := reader.Close(); er != nil {
				logger.Error(ctx, "close file reader:%v error:%v", fromFileName, er)
			}
			return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "open to file:%v err", toFileName, err)
		}

		n, err := io.Copy(writer, reader)

		if er := reader.Close(); er != nil {
			logger.Error(ctx, "close file reader:%v error:%v", fromFileName, er)
		}
		if er := writer.Close(); er != nil && err == nil {
			err = er
		}
		if err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "copy file: %v -> %v error", fromFileName, toFileName, err)
		}
		execution.WriteCount++
		logger.Info(ctx, "copied file: %v -> %v, %v bytes", fromFileName, toFileName, n)
	}
	return nil
}
