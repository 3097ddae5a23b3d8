package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ManifestName is the manifest's filename inside the output directory.
const ManifestName = "manifest.json"

// Manifest lists the graphs present in an output directory.
type Manifest struct {
	RunID     string  `json:"run_id"`
	Generated string  `json:"generated"`
	Graphs    []Graph `json:"graphs"`
}

// Graph describes one converted model file. Filename is relative to the
// manifest's directory.
type Graph struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	Source    string `json:"source,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	Format    string `json:"format"`
	ImgSize   int    `json:"imgsz"`
	Opset     int    `json:"opset"`
	Dynamic   bool   `json:"dynamic"`
	Simplify  bool   `json:"simplify"`
}

func (c *Converter) buildManifest(report Report) Manifest {
	m := Manifest{
		RunID:     report.RunID,
		Generated: time.Now().UTC().Format(time.RFC3339),
		Graphs:    make([]Graph, 0, len(report.Converted)),
	}

	for _, res := range report.Converted {
		sum, err := fileSHA256(res.OutputPath)
		if err != nil {
			c.log.Warn("checksum failed", "path", res.OutputPath, "error", err)
		}

		m.Graphs = append(m.Graphs, Graph{
			Name:      res.Name,
			Filename:  filepath.Base(res.OutputPath),
			Source:    filepath.ToSlash(res.SourcePath),
			SHA256:    sum,
			SizeBytes: res.SizeBytes,
			Format:    c.opts.Export.Format,
			ImgSize:   c.opts.Export.ImgSize,
			Opset:     c.opts.Export.Opset,
			Dynamic:   c.opts.Export.Dynamic,
			Simplify:  c.opts.Export.Simplify,
		})
	}

	return m
}

// WriteManifest writes m into dir, keeping entries from an earlier manifest
// whose graph file is still present and was not converted again.
func WriteManifest(dir string, m Manifest) (string, error) {
	path := filepath.Join(dir, ManifestName)

	seen := make(map[string]bool, len(m.Graphs))
	for _, g := range m.Graphs {
		seen[g.Name] = true
	}

	if prev, err := ReadManifest(path); err == nil {
		for _, g := range prev.Graphs {
			if seen[g.Name] || g.Filename == "" {
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, g.Filename)); err != nil {
				continue
			}
			m.Graphs = append(m.Graphs, g)
			seen[g.Name] = true
		}
	}

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move manifest into place: %w", err)
	}

	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}

	for _, g := range m.Graphs {
		if g.Name == "" {
			return Manifest{}, errors.New("manifest graph has empty name")
		}
		if g.Filename == "" {
			return Manifest{}, fmt.Errorf("manifest graph %q has empty filename", g.Name)
		}
	}

	return m, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
