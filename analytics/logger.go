package analytics

import (
	"os"

	"github.com/mohitkumar/carepath/action"
	"github.com/mohitkumar/carepath/flow"
	"github.com/mohitkumar/carepath/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileRecorder appends one JSON line per advance or rejection.
type LogFileRecorder struct {
	fileName string
	logger   *zap.Logger
}

var _ OperationRecorder = new(LogFileRecorder)

func NewLogFileRecorder(fileName string) (*LogFileRecorder, error) {
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &LogFileRecorder{
		fileName: fileName,
		logger:   newRecorderLogger(zapcore.AddSync(logFile)),
	}, nil
}

func newRecorderLogger(writer zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	encoderConfig.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, zapcore.InfoLevel)
	return zap.New(core)
}

func (lr *LogFileRecorder) RecordAdvance(instance *model.WorkflowInstance, act action.Action, ops []flow.Operation) {
	lr.logger.Info("advance",
		zap.String("instance", instance.Id),
		zap.String("template", instance.TemplateId),
		zap.String("patient", instance.PatientId),
		zap.Int64("version", instance.Version),
		zap.Any("action", action.ToRequest(act)),
		zap.Any("operations", flow.ToRecords(ops)),
		zap.String("status", string(instance.Status)))
}

func (lr *LogFileRecorder) RecordRejected(instanceId string, act action.Action, reason string) {
	lr.logger.Info("rejected",
		zap.String("instance", instanceId),
		zap.Any("action", action.ToRequest(act)),
		zap.String("reason", reason))
}

func (lr *LogFileRecorder) Close() error {
	return lr.logger.Sync()
}
