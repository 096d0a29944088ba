// Structured logging for the scheduling core, ported from the teacher's
// logrus + lumberjack wiring (see vmi/internal/logger.go in the example
// pack) and renamed for this domain.

package prodsched_internal

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LOGGER_CONFIG_USE_JSON_DEFAULT                = false
	LOGGER_CONFIG_LEVEL_DEFAULT                   = "info"
	LOGGER_CONFIG_DISABLE_SRC_FILE_DEFAULT        = false
	LOGGER_CONFIG_LOG_FILE_DEFAULT                = "" // i.e. stderr
	LOGGER_CONFIG_LOG_FILE_MAX_SIZE_MB_DEFAULT    = 10
	LOGGER_CONFIG_LOG_FILE_MAX_BACKUP_NUM_DEFAULT = 3

	LOGGER_DEFAULT_LEVEL    = logrus.InfoLevel
	LOGGER_TIMESTAMP_FORMAT = time.RFC3339
	// Extra field added for component sub loggers:
	LOGGER_COMPONENT_FIELD_NAME = "comp"
)

// EngineLoggerConfig controls the root logger used by every subsystem of
// the engine.
type EngineLoggerConfig struct {
	// Whether to structure the logged record in JSON:
	UseJson bool `yaml:"use_json"`
	// Log level name: info, warn, debug, ...:
	Level string `yaml:"level"`
	// Whether to disable the reporting of the source file:line# info:
	DisableSrcFile bool `yaml:"disable_src_file"`
	// Whether to log to a file or, if empty, to stderr:
	LogFile string `yaml:"log_file"`
	// Log file max size, in MB, before rotation, use 0 to disable:
	LogFileMaxSizeMB int `yaml:"log_file_max_size_mb"`
	// How many older log files to keep upon rotation:
	LogFileMaxBackupNum int `yaml:"log_file_max_backup_num"`
}

func DefaultEngineLoggerConfig() *EngineLoggerConfig {
	return &EngineLoggerConfig{
		UseJson:             LOGGER_CONFIG_USE_JSON_DEFAULT,
		Level:               LOGGER_CONFIG_LEVEL_DEFAULT,
		DisableSrcFile:      LOGGER_CONFIG_DISABLE_SRC_FILE_DEFAULT,
		LogFile:             LOGGER_CONFIG_LOG_FILE_DEFAULT,
		LogFileMaxSizeMB:    LOGGER_CONFIG_LOG_FILE_MAX_SIZE_MB_DEFAULT,
		LogFileMaxBackupNum: LOGGER_CONFIG_LOG_FILE_MAX_BACKUP_NUM_DEFAULT,
	}
}

// CollectableLogger wraps logrus.Logger so tests can swap its output and
// so callers can query its enabled-for-debug state cheaply.
type CollectableLogger struct {
	logrus.Logger
	IsEnabledForDebug bool
}

func (log *CollectableLogger) GetOutput() io.Writer { return log.Out }

func (log *CollectableLogger) GetLevel() any {
	return log.Logger.GetLevel()
}

func (log *CollectableLogger) SetLevel(level any) {
	if level, ok := level.(logrus.Level); ok {
		log.Logger.SetLevel(level)
		log.IsEnabledForDebug = log.IsLevelEnabled(logrus.DebugLevel)
	}
}

// moduleDirPathCache strips the module's own source root from logged
// file:line# info, falling back to keeping the last N path components.
type moduleDirPathCacheT struct {
	mu         sync.Mutex
	prefixList []string
	keepNDirs  int
}

func (p *moduleDirPathCacheT) addPrefix(prefix string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.prefixList {
		if existing == prefix {
			return
		}
	}
	p.prefixList = append(p.prefixList, prefix)
	sort.Slice(p.prefixList, func(i, j int) bool { return len(p.prefixList[i]) > len(p.prefixList[j]) })
}

func (p *moduleDirPathCacheT) stripPrefix(filePath string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, prefix := range p.prefixList {
		if strings.HasPrefix(filePath, prefix) {
			return filePath[len(prefix):]
		}
	}
	comp := strings.Split(filePath, "/")
	keep := p.keepNDirs + 1
	if keep < 1 {
		keep = 1
	}
	if keep < len(comp) {
		filePath = path.Join(comp[len(comp)-keep:]...)
	}
	return filePath
}

var moduleDirPathCache = &moduleDirPathCacheT{prefixList: []string{}, keepNDirs: 1}

// AddCallerSrcPathPrefixToLogger registers a source-root prefix to strip
// from file:line# info, inferred from the caller going upNDirs dirs above
// its own file.
func AddCallerSrcPathPrefixToLogger(upNDirs int, skip int) error {
	_, file, _, ok := runtime.Caller(skip + 1)
	if !ok {
		return fmt.Errorf("cannot determine source root: runtime.Caller failed")
	}
	prefix := path.Dir(file)
	for i := 0; i < upNDirs; i++ {
		prefix = path.Dir(prefix)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	moduleDirPathCache.addPrefix(prefix)
	return nil
}

type logFuncFilePair struct{ function, file string }

type logFuncFileCacheT struct {
	mu    sync.Mutex
	cache map[uintptr]*logFuncFilePair
}

func (c *logFuncFileCacheT) prettyfy(f *runtime.Frame) (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pair := c.cache[f.PC]
	if pair == nil {
		pair = &logFuncFilePair{file: fmt.Sprintf("%s:%d", moduleDirPathCache.stripPrefix(f.File), f.Line)}
		c.cache[f.PC] = pair
	}
	return pair.function, pair.file
}

var logFuncFileCache = &logFuncFileCacheT{cache: make(map[uintptr]*logFuncFilePair)}

var logFieldKeySortOrder = map[string]int{
	logrus.FieldKeyTime:         -5,
	logrus.FieldKeyLevel:        -4,
	LOGGER_COMPONENT_FIELD_NAME: -3,
	logrus.FieldKeyFile:         -2,
	logrus.FieldKeyFunc:         -1,
	logrus.FieldKeyMsg:          1,
}

type logFieldKeySortable struct{ keys []string }

func (d *logFieldKeySortable) Len() int      { return len(d.keys) }
func (d *logFieldKeySortable) Swap(i, j int) { d.keys[i], d.keys[j] = d.keys[j], d.keys[i] }
func (d *logFieldKeySortable) Less(i, j int) bool {
	ki, kj := d.keys[i], d.keys[j]
	oi, oj := logFieldKeySortOrder[ki], logFieldKeySortOrder[kj]
	if oi != 0 || oj != 0 {
		return oi < oj
	}
	return strings.Compare(ki, kj) < 0
}

func logSortFieldKeys(keys []string) { sort.Sort(&logFieldKeySortable{keys}) }

var logTextFormatter = &logrus.TextFormatter{
	DisableColors:    true,
	FullTimestamp:    true,
	TimestampFormat:  LOGGER_TIMESTAMP_FORMAT,
	CallerPrettyfier: logFuncFileCache.prettyfy,
	SortingFunc:      logSortFieldKeys,
}

var logJsonFormatter = &logrus.JSONFormatter{
	TimestampFormat:  LOGGER_TIMESTAMP_FORMAT,
	CallerPrettyfier: logFuncFileCache.prettyfy,
}

// RootLogger is the single logrus logger every component logger derives
// from via NewCompLogger.
var RootLogger = &CollectableLogger{
	Logger: logrus.Logger{
		Out:          os.Stderr,
		Formatter:    logTextFormatter,
		Level:        LOGGER_DEFAULT_LEVEL,
		ReportCaller: true,
	},
}

func GetRootLogger() *CollectableLogger { return RootLogger }

func init() {
	// The default prefix is the module root, 1 dir up from this "internal"
	// package's own directory.
	AddCallerSrcPathPrefixToLogger(1, 0)
}

// SetLogger applies an EngineLoggerConfig to RootLogger: level, formatter,
// caller reporting and output (stderr/stdout/rotating file).
func SetLogger(cfg *EngineLoggerConfig) error {
	if cfg == nil {
		cfg = DefaultEngineLoggerConfig()
	}
	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		RootLogger.SetLevel(level)
	}
	if cfg.UseJson {
		RootLogger.SetFormatter(logJsonFormatter)
	} else {
		RootLogger.SetFormatter(logTextFormatter)
	}
	RootLogger.SetReportCaller(!cfg.DisableSrcFile)

	switch cfg.LogFile {
	case "stderr", "":
		RootLogger.SetOutput(os.Stderr)
	case "stdout":
		RootLogger.SetOutput(os.Stdout)
	default:
		logDir := path.Dir(cfg.LogFile)
		if _, err := os.Stat(logDir); err != nil {
			if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
				return err
			}
		}
		RootLogger.SetOutput(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogFileMaxSizeMB,
			MaxBackups: cfg.LogFileMaxBackupNum,
		})
	}
	return nil
}

// NewCompLogger returns a component-scoped logger, i.e. one that tags
// every entry with comp=<compName>.
func NewCompLogger(compName string) *logrus.Entry {
	return RootLogger.WithField(LOGGER_COMPONENT_FIELD_NAME, compName)
}
