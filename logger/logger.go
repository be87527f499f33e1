package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmism/common"
)

// Log is the global logger instance.
var Log *XMLog

// XMLog wraps *logrus.Logger with lifecycle-aware entry helpers.
type XMLog struct {
	*logrus.Logger
}

var defaultFieldsOrder = []string{
	common.IndexName, common.PolicyName, common.ActionName, common.StepName, common.NodeName,
}

func init() {
	Log = &XMLog{Logger: newConsoleLogger(logrus.InfoLevel, false)}
}

// InitGlobalLogger replaces the global Log. An empty outputPath keeps console output,
// otherwise logs go to a daily rotated file under outputPath.
func InitGlobalLogger(outputPath string, verbose bool, defaultLevel logrus.Level) error {
	l, err := NewXMLog(outputPath, verbose, defaultLevel)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// NewXMLog creates a new instance of XMLog.
func NewXMLog(outputPath string, verbose bool, defaultLevel logrus.Level) (*XMLog, error) {
	level := defaultLevel
	if verbose {
		level = logrus.DebugLevel
	}
	if outputPath == "" {
		return &XMLog{Logger: newConsoleLogger(level, verbose)}, nil
	}

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create log output directory %s", outputPath)
	}
	logFilePath := filepath.Join(outputPath, common.AppName+".log")
	writer, err := rotatelogs.New(
		logFilePath+".%Y%m%d",
		rotatelogs.WithLinkName(logFilePath),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to initialize rotatelogs for %s", logFilePath)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetReportCaller(true)
	fileFormatter := &Formatter{
		TimestampFormat:        "2006-01-02 15:04:05.000 MST",
		NoColors:               true,
		DisplayLevelName:       ShowAll,
		FieldsDisplayWithOrder: defaultFieldsOrder,
		Prettyfier:             JSONPrettyfier,
		CustomCallerFormatter: func(frame *runtime.Frame) string {
			return fmt.Sprintf("[%s:%d]", filepath.Base(frame.File), frame.Line)
		},
	}
	logger.SetFormatter(fileFormatter)

	writers := lfshook.WriterMap{}
	for _, lvl := range logrus.AllLevels {
		writers[lvl] = writer
	}
	logger.Hooks.Add(lfshook.NewHook(writers, fileFormatter))
	// lfshook owns the file; the default writer would duplicate every line.
	logger.SetOutput(io.Discard)

	return &XMLog{Logger: logger}, nil
}

func newConsoleLogger(level logrus.Level, verbose bool) *logrus.Logger {
	displayLevel := ShowAboveWarn
	if verbose {
		displayLevel = ShowAll
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&Formatter{
		TimestampFormat:        "15:04:05",
		DisplayLevelName:       displayLevel,
		DisableCaller:          true,
		FieldsDisplayWithOrder: defaultFieldsOrder,
	})
	return logger
}

// ForIndex returns an entry scoped to a managed index.
func (xl *XMLog) ForIndex(index, policyID string) *logrus.Entry {
	return xl.WithFields(logrus.Fields{
		common.IndexName:  index,
		common.PolicyName: policyID,
	})
}

// ForAction returns an entry scoped to one action run on a managed index.
func (xl *XMLog) ForAction(index, policyID, action string) *logrus.Entry {
	return xl.ForIndex(index, policyID).WithField(common.ActionName, action)
}

// ForStep returns an entry scoped to one step execution.
func (xl *XMLog) ForStep(index, policyID, stepName, nodeName string) *logrus.Entry {
	return xl.WithFields(logrus.Fields{
		common.IndexName:  index,
		common.PolicyName: policyID,
		common.StepName:   stepName,
		common.NodeName:   nodeName,
	})
}
