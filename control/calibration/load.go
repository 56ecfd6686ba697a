package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Load reads a calibration JSON file on top of Defaults and validates it.
// Fields omitted from the file keep their default values. The file must have
// a .json extension and be at most 1MB.
func Load(path string) (VehicleCalibration, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return VehicleCalibration{}, fmt.Errorf("calibration file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return VehicleCalibration{}, fmt.Errorf("failed to stat calibration file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return VehicleCalibration{}, fmt.Errorf("calibration file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return VehicleCalibration{}, fmt.Errorf("failed to read calibration file: %w", err)
	}
	return Parse(data)
}

// Parse decodes calibration JSON on top of Defaults and validates it.
func Parse(data []byte) (VehicleCalibration, error) {
	cal := Defaults()
	// messages and checksums replace the defaults as a whole instead of
	// merging into them.
	cal.Messages = Messages{}
	cal.Checksums = nil

	if err := json.Unmarshal(data, &cal); err != nil {
		return VehicleCalibration{}, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}
	if cal.Messages == (Messages{}) {
		cal.Messages = Defaults().Messages
	}
	if cal.Checksums == nil {
		cal.Checksums = Defaults().Checksums
	}

	if err := cal.Validate(); err != nil {
		return VehicleCalibration{}, fmt.Errorf("invalid calibration %q: %w", cal.Name, err)
	}
	return cal, nil
}
