package planner

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"slotcal/internal/config"
	"slotcal/internal/ics"
)

// WriteOutputs writes the plan as JSON and/or ICS. Empty paths are skipped.
func WriteOutputs(plan *Plan, out config.OutputConfig, calName string) error {
	if out.JSON != "" {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return err
		}
		if err := writeAtomic(out.JSON, append(data, '\n')); err != nil {
			return err
		}
	}
	if out.ICS != "" {
		var buf bytes.Buffer
		err := ics.WriteICS(&buf, plan.Events, ics.ExportOptions{
			Name:  "slotcal " + calName,
			Stamp: plan.GeneratedAt,
		})
		if err != nil {
			return err
		}
		if err := writeAtomic(out.ICS, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".slotcal-out-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
