package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/models"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  name: yolov8n
  family: yolo
  path: /models/yolov8n.onnx
  inputSize: 640
  confidenceThreshold: 0.25
  nms:
    iouThreshold: 0.45
provider:
  device: gpu
  cuda:
    deviceID: 1
statusBuffer: 16
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, models.ModelNameYOLOv8n, cfg.Model.Name)
	assert.Equal(t, models.FamilyYOLO, cfg.Model.Family)
	assert.Equal(t, "/models/yolov8n.onnx", cfg.Model.Path)
	assert.Equal(t, 640, cfg.Model.InputSize)
	assert.InDelta(t, 0.25, cfg.Model.ConfidenceThreshold, 1e-6)
	assert.InDelta(t, 0.45, cfg.Model.NMS.IoUThreshold, 1e-6)
	assert.Equal(t, "gpu", cfg.Provider.Device)
	require.NotNil(t, cfg.Provider.CUDA)
	assert.Equal(t, 1, cfg.Provider.CUDA.DeviceID)
	assert.Equal(t, 16, cfg.StatusBuffer)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	// IoU threshold outside (0,1] must not survive loading.
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  name: yolov8n
  family: yolo
  path: /models/yolov8n.onnx
  inputSize: 640
  confidenceThreshold: 0.25
  nms:
    iouThreshold: 1.7
`), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_StatusBufferDefault(t *testing.T) {
	assert.Equal(t, DefaultStatusBuffer, Config{}.statusBuffer())
	assert.Equal(t, 8, Config{StatusBuffer: 8}.statusBuffer())
}
