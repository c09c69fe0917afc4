package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"vlink-go/internal/processing"
)

// GapReport is the JSON document written next to the data file when the
// stream had missing frames.
type GapReport struct {
	RunID     string           `json:"run_id"`
	Policy    string           `json:"policy"`
	Capacity  int              `json:"capacity"`
	DataBytes int              `json:"data_bytes"`
	Gaps      []processing.Gap `json:"gaps"`
}

// GapReportPath is where WriteStream puts the gap report for dataPath.
func GapReportPath(dataPath string) string {
	return dataPath + ".gaps.json"
}

// WriteStream writes the recovered bytes and the packed validity bitmap, plus
// a gap report when gaps exist. Each file is replaced atomically.
func WriteStream(dataPath, validityPath string, s *processing.Stream, report GapReport) error {
	if err := WriteFileAtomic(dataPath, s.Data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	if err := WriteFileAtomic(validityPath, s.Bitmap()); err != nil {
		return fmt.Errorf("write validity: %w", err)
	}
	if len(s.Gaps) == 0 {
		return nil
	}
	report.Gaps = s.Gaps
	report.DataBytes = len(s.Data)
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(GapReportPath(dataPath), encoded); err != nil {
		return fmt.Errorf("write gap report: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
