package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	Password string

	ModelType        string // squeezenet or mobilenet
	ModelDirectory   string // holds <model>.json descriptors, parameter bundles and label files
	InferenceBackend string // opencv or onnx
	InferenceTarget  string // cpu, opencl or cuda (opencv backend only)
	OnnxLibraryPath  string
	InferenceWorkers int // backend instances, one goroutine each
	InferenceQueue   int // frames the engine holds while workers are busy
	TopK             int
	BackPressure     string // drop or queue

	CaptureSource       string // udp or device
	CaptureDevice       string // device index or stream URL for the device source
	CamerasPort         int
	CameraNames         map[string]string // sender IP -> camera name
	FrameRate           int
	PauseWithoutViewers bool

	ImageDirectory           string
	DatabasePath             string
	ImageBufferLimit         int
	ImageBufferFlushInterval int // seconds
	LogDirectory             string
}

// Load reads the configuration from the environment. Values from a .env file in
// the working directory (or ENV_FILE) are applied first without overriding
// variables that are already set.
func Load() *Config {
	envFile := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Password: getEnv("PASSWORD", "changeme"),

		ModelType:        strings.ToLower(getEnv("MODEL_TYPE", "squeezenet")),
		ModelDirectory:   getEnv("MODEL_DIR", filepath.Join(".", "models")),
		InferenceBackend: strings.ToLower(getEnv("INFERENCE_BACKEND", "opencv")),
		InferenceTarget:  strings.ToLower(getEnv("INFERENCE_TARGET", "cpu")),
		OnnxLibraryPath:  getEnv("ONNX_LIBRARY_PATH", ""),
		InferenceWorkers: getEnvAsInt("INFERENCE_WORKERS", 1),
		InferenceQueue:   getEnvAsInt("INFERENCE_QUEUE", 4),
		TopK:             getEnvAsInt("TOP_K", 5),
		BackPressure:     strings.ToLower(getEnv("BACK_PRESSURE", "drop")),

		CaptureSource:       strings.ToLower(getEnv("CAPTURE_SOURCE", "udp")),
		CaptureDevice:       getEnv("CAPTURE_DEVICE", "0"),
		CamerasPort:         getEnvAsInt("CAMERAS_PORT", 8081),
		CameraNames:         getEnvAsMap("CAMERA_NAMES", map[string]string{}),
		FrameRate:           getEnvAsInt("FRAME_RATE", 10),
		PauseWithoutViewers: getEnvAsBool("PAUSE_WITHOUT_VIEWERS", false),

		ImageDirectory:           getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		DatabasePath:             getEnv("DB_PATH", filepath.Join(".", "data", "camnet.db")),
		ImageBufferLimit:         getEnvAsInt("BUFFER_LIMIT", 10),
		ImageBufferFlushInterval: getEnvAsInt("FLUSH_INTERVAL", 30),
		LogDirectory:             getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

// FlushInterval returns the storage flush period.
func (c *Config) FlushInterval() time.Duration {
	if c.ImageBufferFlushInterval <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ImageBufferFlushInterval) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsMap parses "key=value,key2=value2".
func getEnvAsMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			continue
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return result
}
